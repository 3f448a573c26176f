package table

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/INLOpen/nexuslog/core"
	"github.com/INLOpen/nexuslog/hooks"
	"github.com/INLOpen/nexuslog/logstore"
	"github.com/INLOpen/nexuslog/scan"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidLocation is returned by New for a location that is not a directory.
var ErrInvalidLocation = errors.New("invalid table location")

// Options configures a Table and every snapshot and scan taken from it.
type Options struct {
	// Schema types the columns predicates refer to.
	Schema        core.TableSchema
	ReadAhead     int
	CheckOrdering bool

	Logger      *slog.Logger
	Tracer      trace.Tracer
	HookManager hooks.HookManager

	BatchesProcessed *expvar.Int
	FilesEmitted     *expvar.Int
	FilesSuppressed  *expvar.Int
}

// Table is a table on the local filesystem, identified by its root directory.
// It is immutable and safe for concurrent use; each snapshot and scan owns
// its own state.
type Table struct {
	location string
	opts     Options
	logger   *slog.Logger
}

// New opens the table rooted at location, which must be an existing
// directory. Relative paths are made absolute.
func New(location string, opts Options) (*Table, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLocation, location, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidLocation, abs)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNoopTracerProvider().Tracer("nexuslog/table")
	}
	return &Table{
		location: abs,
		opts:     opts,
		logger:   opts.Logger.With("component", "Table", "location", abs),
	}, nil
}

// Location returns the absolute table root.
func (t *Table) Location() string {
	return t.location
}

// Snapshot resolves the files that make up version. A negative version
// selects the latest.
func (t *Table) Snapshot(ctx context.Context, version int64) (*Snapshot, error) {
	_, span := t.opts.Tracer.Start(ctx, "Table.Snapshot")
	defer span.End()
	span.SetAttributes(attribute.Int64("table.requested_version", version))

	seg, err := logstore.ListSegment(logstore.LogDir(t.location), version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to resolve snapshot of %s: %w", t.location, err)
	}
	span.SetAttributes(
		attribute.Int64("table.version", seg.Version),
		attribute.Int("table.commits", len(seg.Commits)),
		attribute.Int64("table.checkpoint_version", seg.CheckpointVersion),
	)
	t.logger.Debug("Resolved snapshot", "version", seg.Version, "commits", len(seg.Commits), "checkpoint", seg.CheckpointVersion)
	return &Snapshot{table: t, segment: seg}, nil
}

// Snapshot is one version of a table.
type Snapshot struct {
	table   *Table
	segment *logstore.Segment
}

// Version returns the table version of the snapshot.
func (s *Snapshot) Version() int64 {
	return s.segment.Version
}

// Segment returns the log files the snapshot is built from.
func (s *Snapshot) Segment() *logstore.Segment {
	return s.segment
}

// Scan starts a replay of the snapshot. predicate may be nil. The caller must
// Close the returned iterator.
func (s *Snapshot) Scan(ctx context.Context, predicate core.Expression) *scan.LogReplayIterator {
	opts := s.table.opts
	source := logstore.NewSource(ctx, s.segment, logstore.SourceOptions{ReadAhead: opts.ReadAhead, Logger: opts.Logger})
	return scan.NewLogReplayIterator(ctx, source, scan.Options{
		TableSchema:      opts.Schema,
		Predicate:        predicate,
		CheckOrdering:    opts.CheckOrdering,
		Logger:           opts.Logger,
		Tracer:           opts.Tracer,
		HookManager:      opts.HookManager,
		BatchesProcessed: opts.BatchesProcessed,
		FilesEmitted:     opts.FilesEmitted,
		FilesSuppressed:  opts.FilesSuppressed,
	})
}

// Files yields the live files of the snapshot that may match predicate.
func (s *Snapshot) Files(ctx context.Context, predicate core.Expression) iter.Seq2[*core.Add, error] {
	return func(yield func(*core.Add, error) bool) {
		it := s.Scan(ctx, predicate)
		defer it.Close()
		for it.Next() {
			if !yield(it.At()) {
				return
			}
		}
	}
}
