package main

import (
	"fmt"
	"io"

	"github.com/INLOpen/nexuslog/core"
	"github.com/caio/go-tdigest/v4"
)

// fileSummary accumulates the live files of a scan.
type fileSummary struct {
	count      int
	totalBytes int64
	withDV     int
	td         *tdigest.TDigest
}

func newFileSummary() (*fileSummary, error) {
	td, err := tdigest.New()
	if err != nil {
		return nil, fmt.Errorf("tdigest.New failed: %w", err)
	}
	return &fileSummary{td: td}, nil
}

func (s *fileSummary) add(a *core.Add) error {
	s.count++
	s.totalBytes += a.Size
	if a.DeletionVector != nil {
		s.withDV++
	}
	if err := s.td.AddWeighted(float64(a.Size), 1); err != nil {
		return fmt.Errorf("failed to record size of %s: %w", a.Path, err)
	}
	return nil
}

// quantile returns the p-th percentile file size, or 0 for an empty scan.
func (s *fileSummary) quantile(p float64) float64 {
	if s.td.Count() == 0 {
		return 0
	}
	return s.td.Quantile(p / 100.0)
}

func (s *fileSummary) print(w io.Writer) {
	fmt.Fprintf(w, "files=%d bytes=%d with_dv=%d\n", s.count, s.totalBytes, s.withDV)
	fmt.Fprintf(w, "size p50=%.0f p95=%.0f p99=%.0f\n", s.quantile(50), s.quantile(95), s.quantile(99))
}
