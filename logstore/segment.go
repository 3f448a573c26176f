package logstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/INLOpen/nexuslog/checkpoint"
	"github.com/INLOpen/skiplist"
)

const (
	// LogDirName is the log directory under a table root.
	LogDirName   = "_delta_log"
	commitSuffix = ".json"
)

var (
	// ErrNoLog is returned for a directory that holds no commits or checkpoints.
	ErrNoLog = errors.New("no transaction log found")
	// ErrVersionNotFound is returned when a requested version cannot be rebuilt.
	ErrVersionNotFound = errors.New("version not found")
)

// LogDir returns the log directory of the table rooted at root.
func LogDir(root string) string {
	return filepath.Join(root, LogDirName)
}

// CommitFileName returns the commit file name for version.
func CommitFileName(version int64) string {
	return fmt.Sprintf("%020d%s", version, commitSuffix)
}

// ParseCommitFileName returns the version of a commit file name.
func ParseCommitFileName(name string) (int64, bool) {
	digits, ok := strings.CutSuffix(name, commitSuffix)
	if !ok || len(digits) != 20 {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// versionIndex keeps file versions ordered newest first, so Seek lands on the
// newest version at or before the one asked for.
type versionIndex struct {
	list *skiplist.SkipList[int64, string]
}

func newestFirst(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func newVersionIndex() *versionIndex {
	return &versionIndex{list: skiplist.NewWithComparator[int64, string](newestFirst)}
}

func (x *versionIndex) add(version int64, name string) {
	x.list.Insert(version, name)
}

func (x *versionIndex) len() int {
	return x.list.Len()
}

// newest returns the highest version in the index.
func (x *versionIndex) newest() (int64, bool) {
	it := x.list.NewIterator()
	if !it.First() {
		return 0, false
	}
	return it.Key(), true
}

// atOrBefore returns the highest version <= version.
func (x *versionIndex) atOrBefore(version int64) (int64, bool) {
	it := x.list.NewIterator()
	if !it.Seek(version) {
		return 0, false
	}
	return it.Key(), true
}

// descending returns the versions in (after, upTo], newest first.
func (x *versionIndex) descending(upTo, after int64) []int64 {
	var out []int64
	it := x.list.NewIterator()
	for ok := it.Seek(upTo); ok && it.Key() > after; ok = it.Next() {
		out = append(out, it.Key())
	}
	return out
}

// Listing is the set of commit and checkpoint files in a log directory.
type Listing struct {
	LogDir      string
	commits     *versionIndex
	checkpoints *versionIndex
}

// List scans a log directory. Files that are neither commits nor checkpoints
// are ignored.
func List(logDir string) (*Listing, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoLog, logDir)
		}
		return nil, fmt.Errorf("failed to read log directory %s: %w", logDir, err)
	}

	l := &Listing{LogDir: logDir, commits: newVersionIndex(), checkpoints: newVersionIndex()}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if v, ok := ParseCommitFileName(name); ok {
			l.commits.add(v, name)
		} else if v, ok := checkpoint.ParseFileName(name); ok {
			l.checkpoints.add(v, name)
		}
	}
	if l.commits.len() == 0 && l.checkpoints.len() == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoLog, logDir)
	}
	return l, nil
}

// Latest returns the newest version the listing can rebuild.
func (l *Listing) Latest() int64 {
	latest, _ := l.commits.newest()
	if cp, ok := l.checkpoints.newest(); ok && cp > latest {
		latest = cp
	}
	return latest
}

// Segment is the minimal set of files that rebuilds one version: the newest
// checkpoint at or before it and every commit after that checkpoint.
type Segment struct {
	LogDir  string
	Version int64
	// Commits lists commit versions newest first.
	Commits []int64
	// CheckpointVersion is -1 when the segment starts at version 0.
	CheckpointVersion int64
}

// HasCheckpoint reports whether the segment ends in a checkpoint.
func (s *Segment) HasCheckpoint() bool {
	return s.CheckpointVersion >= 0
}

// CommitPath returns the path of the commit file of version.
func (s *Segment) CommitPath(version int64) string {
	return filepath.Join(s.LogDir, CommitFileName(version))
}

// CheckpointPath returns the path of the segment's checkpoint file.
func (s *Segment) CheckpointPath() string {
	return filepath.Join(s.LogDir, checkpoint.FileName(s.CheckpointVersion))
}

// ListSegment resolves the segment for version in logDir. A negative version
// selects the latest.
func ListSegment(logDir string, version int64) (*Segment, error) {
	listing, err := List(logDir)
	if err != nil {
		return nil, err
	}
	return listing.Segment(version)
}

// Segment resolves the segment for version. A negative version selects the
// latest. The commits after the checkpoint must be contiguous.
func (l *Listing) Segment(version int64) (*Segment, error) {
	latest := l.Latest()
	if version < 0 {
		version = latest
	}
	if version > latest {
		return nil, fmt.Errorf("%w: version %d, latest is %d", ErrVersionNotFound, version, latest)
	}

	seg := &Segment{LogDir: l.LogDir, Version: version, CheckpointVersion: -1}
	if cp, ok := l.checkpoints.atOrBefore(version); ok {
		seg.CheckpointVersion = cp
	}
	seg.Commits = l.commits.descending(version, seg.CheckpointVersion)

	// Commits must run from version down to just after the checkpoint (or to 0)
	// without a gap.
	want := version
	for _, v := range seg.Commits {
		if v != want {
			return nil, fmt.Errorf("%w: commit %d is missing from %s", ErrVersionNotFound, want, l.LogDir)
		}
		want--
	}
	if want != seg.CheckpointVersion {
		return nil, fmt.Errorf("%w: commit %d is missing from %s", ErrVersionNotFound, want, l.LogDir)
	}
	return seg, nil
}
