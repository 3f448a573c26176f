package logstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/INLOpen/nexuslog/checkpoint"
	"github.com/INLOpen/nexuslog/columnar"
	"github.com/INLOpen/nexuslog/core"
	"golang.org/x/sync/errgroup"
)

// SourceOptions configures a Source.
type SourceOptions struct {
	// ReadAhead is how many files after the one being consumed may be read
	// concurrently. Zero reads each file only when it is pulled.
	ReadAhead int
	Logger    *slog.Logger
}

// fileRef is one file of a segment in replay order.
type fileRef struct {
	path    string
	version int64
	isLog   bool
}

// slot holds the result of reading one file.
type slot struct {
	done  chan struct{}
	batch *core.ActionBatch
	err   error
}

// Source yields the batches of a segment newest first: every commit, then the
// checkpoint. A file that cannot be read becomes an error element and the
// source moves on to the next file.
type Source struct {
	ctx    context.Context
	cancel context.CancelFunc
	files  []fileRef
	idx    int

	readAhead int
	group     *errgroup.Group
	slots     []*slot
	started   int

	current    *core.ActionBatch
	currentErr error
	firstErr   error
	closed     bool

	logger *slog.Logger
}

var _ core.IteratorInterface[*core.ActionBatch] = (*Source)(nil)

// NewSource returns a batch source over seg.
func NewSource(ctx context.Context, seg *Segment, opts SourceOptions) *Source {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "LogSource_default")
	} else {
		logger = logger.With("component", "LogSource")
	}

	files := make([]fileRef, 0, len(seg.Commits)+1)
	for _, v := range seg.Commits {
		files = append(files, fileRef{path: seg.CommitPath(v), version: v, isLog: true})
	}
	if seg.HasCheckpoint() {
		files = append(files, fileRef{path: seg.CheckpointPath(), version: seg.CheckpointVersion})
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Source{
		ctx:       ctx,
		cancel:    cancel,
		files:     files,
		readAhead: opts.ReadAhead,
		logger:    logger,
	}
	if s.readAhead > 0 {
		s.group = &errgroup.Group{}
		s.group.SetLimit(s.readAhead + 1)
		s.slots = make([]*slot, len(files))
	}
	return s
}

func (s *Source) Next() bool {
	s.current, s.currentErr = nil, nil
	if s.closed || s.idx >= len(s.files) {
		return false
	}
	i := s.idx
	s.idx++

	var batch *core.ActionBatch
	var err error
	if s.group == nil {
		batch, err = s.read(s.files[i])
	} else {
		s.startThrough(i + s.readAhead)
		sl := s.slots[i]
		<-sl.done
		batch, err = sl.batch, sl.err
		s.slots[i] = nil
	}

	if err != nil {
		s.currentErr = err
		if s.firstErr == nil {
			s.firstErr = err
		}
		return true
	}
	s.current = batch
	return true
}

// startThrough schedules reads of every file up to index last.
func (s *Source) startThrough(last int) {
	if last >= len(s.files) {
		last = len(s.files) - 1
	}
	for ; s.started <= last; s.started++ {
		sl := &slot{done: make(chan struct{})}
		s.slots[s.started] = sl
		ref := s.files[s.started]
		s.group.Go(func() error {
			defer close(sl.done)
			sl.batch, sl.err = s.read(ref)
			return nil
		})
	}
}

func (s *Source) read(ref fileRef) (*core.ActionBatch, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if !ref.isLog {
		data, err := checkpoint.ReadFile(ref.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint %d: %w", ref.version, err)
		}
		s.logger.Debug("Read checkpoint", "version", ref.version, "rows", data.Len())
		return &core.ActionBatch{Data: data, IsLogBatch: false, Version: ref.version}, nil
	}

	file, err := os.Open(ref.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open commit %d: %w", ref.version, err)
	}
	defer file.Close()
	data, err := columnar.DecodeJSONLines(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %d: %w", ref.version, err)
	}
	s.logger.Debug("Read commit", "version", ref.version, "rows", data.Len())
	return &core.ActionBatch{Data: data, IsLogBatch: true, Version: ref.version}, nil
}

func (s *Source) At() (*core.ActionBatch, error) {
	return s.current, s.currentErr
}

// Error returns the first read error.
func (s *Source) Error() error {
	return s.firstErr
}

// Close stops outstanding read-ahead and waits for it to finish.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	if s.group != nil {
		_ = s.group.Wait()
	}
	s.slots = nil
	s.current = nil
	return nil
}
