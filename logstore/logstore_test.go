package logstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/INLOpen/nexuslog/core"
	"github.com/INLOpen/nexuslog/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommitFileName(t *testing.T) {
	v, ok := ParseCommitFileName(CommitFileName(12))
	require.True(t, ok)
	assert.Equal(t, int64(12), v)
	assert.Equal(t, "00000000000000000012.json", CommitFileName(12))

	for _, name := range []string{"12.json", "00000000000000000012.crc", "_last_checkpoint", "00000000000000000012.checkpoint.nxc"} {
		_, ok := ParseCommitFileName(name)
		assert.False(t, ok, name)
	}
}

func TestListSegment(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	for v := int64(0); v <= 6; v++ {
		testutil.WriteCommit(t, logDir, v, testutil.Add("f", 1))
	}
	testutil.WriteCheckpoint(t, logDir, 3, core.CompressionSnappy, testutil.Add("f", 1))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "README"), []byte("ignored"), 0644))

	testCases := []struct {
		name       string
		version    int64
		commits    []int64
		checkpoint int64
	}{
		{"latest", -1, []int64{6, 5, 4}, 3},
		{"at checkpoint", 3, nil, 3},
		{"before checkpoint", 2, []int64{2, 1, 0}, -1},
		{"just after checkpoint", 4, []int64{4}, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seg, err := ListSegment(logDir, tc.version)
			require.NoError(t, err)
			assert.Equal(t, tc.commits, seg.Commits)
			assert.Equal(t, tc.checkpoint, seg.CheckpointVersion)
			assert.Equal(t, tc.checkpoint >= 0, seg.HasCheckpoint())
		})
	}

	t.Run("beyond latest", func(t *testing.T) {
		_, err := ListSegment(logDir, 7)
		assert.ErrorIs(t, err, ErrVersionNotFound)
	})
}

func TestListSegment_CheckpointOnly(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	testutil.WriteCheckpoint(t, logDir, 10, core.CompressionNone, testutil.Add("f", 1))
	testutil.WriteCommit(t, logDir, 11, testutil.Add("g", 1))

	seg, err := ListSegment(logDir, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(11), seg.Version)
	assert.Equal(t, []int64{11}, seg.Commits)
	assert.Equal(t, int64(10), seg.CheckpointVersion)

	_, err = ListSegment(logDir, 9)
	assert.ErrorIs(t, err, ErrVersionNotFound, "history before the checkpoint was cleaned up")
}

func TestListSegment_Gap(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	for v := int64(0); v <= 3; v++ {
		testutil.WriteCommit(t, logDir, v, testutil.Add("f", 1))
	}
	testutil.RemoveCommit(t, logDir, 1)

	_, err := ListSegment(logDir, 3)
	require.ErrorIs(t, err, ErrVersionNotFound)
	assert.Contains(t, err.Error(), "commit 1 is missing")
}

func TestListSegment_NoLog(t *testing.T) {
	_, err := ListSegment(filepath.Join(t.TempDir(), "_delta_log"), -1)
	assert.ErrorIs(t, err, ErrNoLog)

	_, logDir := testutil.NewTable(t)
	_, err = ListSegment(logDir, -1)
	assert.ErrorIs(t, err, ErrNoLog)
}

func drain(t *testing.T, src *Source) ([]*core.ActionBatch, []error) {
	t.Helper()
	defer src.Close()
	var batches []*core.ActionBatch
	var errs []error
	for src.Next() {
		b, err := src.At()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		batches = append(batches, b)
	}
	return batches, errs
}

func TestSource_Order(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	testutil.WriteCommit(t, logDir, 0, testutil.Add("a", 1))
	testutil.WriteCheckpoint(t, logDir, 0, core.CompressionZSTD, testutil.Add("a", 1))
	testutil.WriteCommit(t, logDir, 1, testutil.Add("b", 1))
	testutil.WriteCommit(t, logDir, 2, testutil.Remove("a"), testutil.Add("c", 1))

	seg, err := ListSegment(logDir, -1)
	require.NoError(t, err)

	for _, readAhead := range []int{0, 1, 4} {
		batches, errs := drain(t, NewSource(context.Background(), seg, SourceOptions{ReadAhead: readAhead}))
		require.Empty(t, errs)
		require.Len(t, batches, 3)
		assert.Equal(t, int64(2), batches[0].Version)
		assert.True(t, batches[0].IsLogBatch)
		assert.Equal(t, 2, batches[0].Data.Len())
		assert.Equal(t, int64(1), batches[1].Version)
		assert.Equal(t, int64(0), batches[2].Version)
		assert.False(t, batches[2].IsLogBatch)
	}
}

func TestSource_ReadErrorIsAnElement(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	testutil.WriteCommit(t, logDir, 0, testutil.Add("a", 1))
	testutil.WriteRawCommit(t, logDir, 1, "not json\n")
	testutil.WriteCommit(t, logDir, 2, testutil.Add("c", 1))

	seg, err := ListSegment(logDir, -1)
	require.NoError(t, err)

	for _, readAhead := range []int{0, 2} {
		src := NewSource(context.Background(), seg, SourceOptions{ReadAhead: readAhead})
		batches, errs := drain(t, src)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "failed to read commit 1")
		assert.Len(t, batches, 2)
		assert.Equal(t, errs[0], src.Error())
	}
}

func TestSource_IsLazyWithoutReadAhead(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	testutil.WriteCommit(t, logDir, 0, testutil.Add("a", 1))
	testutil.WriteCommit(t, logDir, 1, testutil.Add("b", 1))

	seg, err := ListSegment(logDir, -1)
	require.NoError(t, err)
	src := NewSource(context.Background(), seg, SourceOptions{})
	defer src.Close()

	require.True(t, src.Next())
	// Commit 0 has not been read yet, so deleting it now surfaces on the next pull.
	testutil.RemoveCommit(t, logDir, 0)
	require.True(t, src.Next())
	_, err = src.At()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSource_CloseStopsReading(t *testing.T) {
	_, logDir := testutil.NewTable(t)
	for v := int64(0); v < 5; v++ {
		testutil.WriteCommit(t, logDir, v, testutil.Add("a", 1))
	}
	seg, err := ListSegment(logDir, -1)
	require.NoError(t, err)

	src := NewSource(context.Background(), seg, SourceOptions{ReadAhead: 2})
	require.True(t, src.Next())
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.False(t, src.Next())
}
