package scan

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/INLOpen/nexuslog/core"
	"github.com/INLOpen/nexuslog/hooks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LogReplayIterator yields the live files of a replay one at a time. A batch
// is pulled from the source only once every file of the previous batch has
// been consumed.
//
// Errors are elements: Next returns true and At returns the error. The
// iterator keeps going if the caller keeps pulling; Error reports the first
// error seen for callers that stop there.
type LogReplayIterator struct {
	ctx         context.Context
	source      core.IteratorInterface[*core.ActionBatch]
	scanner     *LogReplayScanner
	tracer      trace.Tracer
	hookManager hooks.HookManager
	logger      *slog.Logger

	pending    []*core.Add
	current    *core.Add
	currentErr error

	// upstreamErr is the last error element passed through from the source,
	// so a source that also reports it from Error() is not surfaced twice.
	upstreamErr error
	firstErr    error
	sourceDone  bool
	closed      bool

	batches int
	emitted int
}

var _ core.IteratorInterface[*core.Add] = (*LogReplayIterator)(nil)

// NewLogReplayIterator wraps source, which must deliver batches newest to
// oldest. The iterator takes ownership of source and closes it in Close.
func NewLogReplayIterator(ctx context.Context, source core.IteratorInterface[*core.ActionBatch], opts Options) *LogReplayIterator {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNoopTracerProvider().Tracer("nexuslog/scan")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "LogReplayIterator_default")
	} else {
		logger = logger.With("component", "LogReplayIterator")
	}
	return &LogReplayIterator{
		ctx:         ctx,
		source:      source,
		scanner:     NewLogReplayScanner(opts),
		tracer:      opts.Tracer,
		hookManager: opts.HookManager,
		logger:      logger,
	}
}

func (it *LogReplayIterator) Next() bool {
	if it.closed {
		return false
	}
	it.current, it.currentErr = nil, nil

	for {
		if len(it.pending) > 0 {
			it.current = it.pending[0]
			it.pending[0] = nil
			it.pending = it.pending[1:]
			it.emitted++
			return true
		}
		if it.sourceDone {
			return false
		}
		if err := it.ctx.Err(); err != nil {
			it.sourceDone = true
			it.setErr(err)
			return true
		}
		if !it.source.Next() {
			it.sourceDone = true
			if err := it.source.Error(); err != nil && (it.upstreamErr == nil || !errors.Is(err, it.upstreamErr)) {
				it.setErr(err)
				return true
			}
			return false
		}

		batch, err := it.source.At()
		if err != nil {
			it.upstreamErr = err
			it.setErr(err)
			return true
		}
		it.batches++
		adds, err := it.processBatch(batch)
		if err != nil {
			it.setErr(err)
			return true
		}
		it.pending = adds
	}
}

func (it *LogReplayIterator) setErr(err error) {
	it.currentErr = err
	if it.firstErr == nil {
		it.firstErr = err
	}
}

func (it *LogReplayIterator) processBatch(batch *core.ActionBatch) ([]*core.Add, error) {
	ctx, span := it.tracer.Start(it.ctx, "LogReplay.ProcessBatch")
	defer span.End()

	if batch == nil {
		err := errors.New("log replay: source produced a nil batch")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("replay.is_log_batch", batch.IsLogBatch),
		attribute.Int64("replay.version", batch.Version),
	)

	if it.hookManager != nil {
		rows := 0
		if batch.Data != nil {
			rows = batch.Data.Len()
		}
		pre := hooks.NewPreReplayBatchEvent(hooks.PreReplayBatchPayload{Version: batch.Version, IsLogBatch: batch.IsLogBatch, Rows: rows})
		if err := it.hookManager.Trigger(ctx, pre); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pre-hook aborted batch")
			return nil, err
		}
	}

	res, err := it.scanner.process(batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		it.logger.Error("Failed to process batch", "version", batch.Version, "is_log_batch", batch.IsLogBatch, "error", err)
	} else {
		span.SetAttributes(
			attribute.Int("replay.adds", res.adds),
			attribute.Int("replay.removes", res.removes),
			attribute.Int("replay.emitted", len(res.emitted)),
		)
	}

	if it.hookManager != nil {
		post := hooks.NewPostReplayBatchEvent(hooks.PostReplayBatchPayload{
			Version:    batch.Version,
			IsLogBatch: batch.IsLogBatch,
			Adds:       res.adds,
			Removes:    res.removes,
			Emitted:    len(res.emitted),
			Err:        err,
		})
		_ = it.hookManager.Trigger(ctx, post)
	}
	if err != nil {
		return nil, err
	}
	return res.emitted, nil
}

// At returns the current file, or the error element the iterator stopped on.
func (it *LogReplayIterator) At() (*core.Add, error) {
	return it.current, it.currentErr
}

// Error returns the first error produced by the replay.
func (it *LogReplayIterator) Error() error {
	return it.firstErr
}

// Close releases the source and fires the completion hook. It is safe to call
// more than once.
func (it *LogReplayIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.pending = nil
	it.current = nil

	if it.hookManager != nil {
		done := hooks.NewPostReplayCompleteEvent(hooks.PostReplayCompletePayload{Batches: it.batches, Emitted: it.emitted, FirstErr: it.firstErr})
		_ = it.hookManager.Trigger(it.ctx, done)
	}
	it.logger.Debug("Replay finished", "batches", it.batches, "emitted", it.emitted, "error", it.firstErr)
	return it.source.Close()
}

// Replay runs a log replay over batches and yields each live file, or an
// error element, as it is confirmed. The sequence is single-use: iterating it
// consumes and closes batches.
func Replay(ctx context.Context, batches core.IteratorInterface[*core.ActionBatch], opts Options) iter.Seq2[*core.Add, error] {
	return func(yield func(*core.Add, error) bool) {
		it := NewLogReplayIterator(ctx, batches, opts)
		defer it.Close()
		for it.Next() {
			if !yield(it.At()) {
				return
			}
		}
	}
}
