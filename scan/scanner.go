package scan

import (
	"errors"
	"expvar"
	"fmt"
	"log/slog"

	"github.com/INLOpen/nexuslog/columnar"
	"github.com/INLOpen/nexuslog/core"
	"github.com/INLOpen/nexuslog/filter"
	"github.com/INLOpen/nexuslog/hooks"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a replay. The zero value replays without a predicate
// using the columnar extractor.
type Options struct {
	// TableSchema decides the comparison domain of predicate columns.
	TableSchema core.TableSchema
	// Predicate enables data skipping when non-nil.
	Predicate core.Expression
	Extractor core.DataExtractor
	// CheckOrdering asserts that batch versions never increase and that no
	// log batch follows a checkpoint batch.
	CheckOrdering bool

	Logger      *slog.Logger
	Tracer      trace.Tracer
	HookManager hooks.HookManager

	BatchesProcessed *expvar.Int
	FilesEmitted     *expvar.Int
	FilesSuppressed  *expvar.Int
}

// batchResult is the outcome of reducing one batch.
type batchResult struct {
	emitted []*core.Add
	adds    int
	removes int
}

// LogReplayScanner reconciles batches delivered newest to oldest into the set
// of live files. It owns the seen-set for exactly one replay and is not safe
// for concurrent use.
type LogReplayScanner struct {
	filter    *filter.DataSkippingFilter
	extractor core.DataExtractor
	seen      map[core.FileKey]struct{}

	checkOrdering bool
	sawBatch      bool
	sawCheckpoint bool
	lastVersion   int64

	logger *slog.Logger

	metricsBatchesProcessed *expvar.Int
	metricsFilesEmitted     *expvar.Int
	metricsFilesSuppressed  *expvar.Int
}

// NewLogReplayScanner creates a scanner with an empty seen-set.
func NewLogReplayScanner(opts Options) *LogReplayScanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "LogReplayScanner_default")
	} else {
		logger = logger.With("component", "LogReplayScanner")
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = columnar.NewExtractor()
	}
	return &LogReplayScanner{
		filter:                  filter.New(opts.TableSchema, opts.Predicate, extractor, logger),
		extractor:               extractor,
		seen:                    make(map[core.FileKey]struct{}),
		checkOrdering:           opts.CheckOrdering,
		logger:                  logger,
		metricsBatchesProcessed: opts.BatchesProcessed,
		metricsFilesEmitted:     opts.FilesEmitted,
		metricsFilesSuppressed:  opts.FilesSuppressed,
	}
}

// ProcessBatch returns the additions of batch that are live given every batch
// processed before it. A failed batch emits nothing and leaves the seen-set
// untouched.
func (s *LogReplayScanner) ProcessBatch(batch *core.ActionBatch) ([]*core.Add, error) {
	res, err := s.process(batch)
	if err != nil {
		return nil, err
	}
	return res.emitted, nil
}

func (s *LogReplayScanner) process(batch *core.ActionBatch) (batchResult, error) {
	if batch == nil {
		return batchResult{}, errors.New("log replay: nil batch")
	}
	if err := s.checkOrder(batch); err != nil {
		return batchResult{}, err
	}

	data := batch.Data
	if s.filter != nil {
		filtered, err := s.filter.Apply(data)
		if err != nil {
			return batchResult{}, fmt.Errorf("failed to filter batch at version %d: %w", batch.Version, err)
		}
		data = filtered
	}

	schema := core.CheckpointBatchSchema
	if batch.IsLogBatch {
		schema = core.LogBatchSchema
	}

	// Everything is extracted before the seen-set is touched, so an
	// extraction failure cannot leave half a batch applied.
	visitor := &addRemoveVisitor{}
	if err := s.extractor.Extract(data, schema, visitor); err != nil {
		return batchResult{}, fmt.Errorf("failed to extract actions at version %d: %w", batch.Version, err)
	}

	for _, remove := range visitor.removes {
		s.seen[remove.Key()] = struct{}{}
	}

	emitted := make([]*core.Add, 0, len(visitor.adds))
	for _, add := range visitor.adds {
		key := add.Key()
		if _, ok := s.seen[key]; ok {
			if s.metricsFilesSuppressed != nil {
				s.metricsFilesSuppressed.Add(1)
			}
			continue
		}
		s.logger.Debug("Found file", "path", add.Path, "dv", key.DVUniqueID, "is_log_batch", batch.IsLogBatch)
		emitted = append(emitted, add)
		if batch.IsLogBatch {
			s.seen[key] = struct{}{}
		}
	}

	if s.metricsBatchesProcessed != nil {
		s.metricsBatchesProcessed.Add(1)
	}
	if s.metricsFilesEmitted != nil {
		s.metricsFilesEmitted.Add(int64(len(emitted)))
	}
	s.logger.Debug("Processed batch",
		"version", batch.Version,
		"is_log_batch", batch.IsLogBatch,
		"adds", len(visitor.adds),
		"removes", len(visitor.removes),
		"emitted", len(emitted),
		"seen", len(s.seen))

	return batchResult{emitted: emitted, adds: len(visitor.adds), removes: len(visitor.removes)}, nil
}

func (s *LogReplayScanner) checkOrder(batch *core.ActionBatch) error {
	if !s.checkOrdering {
		return nil
	}
	if s.sawBatch {
		if batch.Version > s.lastVersion {
			return &core.OrderingError{Previous: s.lastVersion, Current: batch.Version, Message: "batch versions must not increase"}
		}
		if s.sawCheckpoint && batch.IsLogBatch {
			return &core.OrderingError{Previous: s.lastVersion, Current: batch.Version, Message: "log batch after a checkpoint batch"}
		}
	}
	s.sawBatch = true
	s.lastVersion = batch.Version
	if !batch.IsLogBatch {
		s.sawCheckpoint = true
	}
	return nil
}
