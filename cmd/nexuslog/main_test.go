package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/INLOpen/nexuslog/config"
	"github.com/INLOpen/nexuslog/core"
	"github.com/INLOpen/nexuslog/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	root, logDir := testutil.NewTable(t)
	testutil.WriteCommit(t, logDir, 0, testutil.Add("a", 100), testutil.Add("c", 300))
	testutil.WriteCheckpoint(t, logDir, 0, core.CompressionLZ4, testutil.Add("a", 100), testutil.Add("c", 300))
	testutil.WriteCommit(t, logDir, 1, testutil.Add("b", 200))
	testutil.WriteCommit(t, logDir, 2, testutil.Remove("a"), testutil.Add("d", 400))

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.Table.Location = root

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, run(cfg, logger, &out, true))

	text := out.String()
	assert.Contains(t, text, "# last checkpoint: version=0 actions=2\n")
	assert.Contains(t, text, "# version=2 commits=2 checkpoint=0\n")
	assert.Contains(t, text, "d\t400\nb\t200\nc\t300\n")
	assert.Contains(t, text, "files=3 bytes=900 with_dv=0\n")
}

func TestRun_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.Table.Location = t.TempDir()
	assert.Error(t, run(cfg, logger, io.Discard, false), "no log")

	root, logDir := testutil.NewTable(t)
	testutil.WriteRawCommit(t, logDir, 0, "not json\n")
	cfg.Table.Location = root
	err = run(cfg, logger, io.Discard, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read commit 0")

	cfg.Replay.Predicates = []string{"id <"}
	assert.Error(t, run(cfg, logger, io.Discard, false))
}

func TestCreateLogger(t *testing.T) {
	for _, output := range []string{"stderr", "stdout", "none"} {
		logger, closer, err := createLogger(config.LoggingConfig{Level: "debug", Output: output})
		require.NoError(t, err, output)
		assert.NotNil(t, logger)
		assert.Nil(t, closer)
	}

	path := filepath.Join(t.TempDir(), "nexuslog.log")
	logger, closer, err := createLogger(config.LoggingConfig{Level: "info", Output: "file", File: path})
	require.NoError(t, err)
	require.NotNil(t, closer)
	logger.Info("hello")
	require.NoError(t, closer.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)

	_, _, err = createLogger(config.LoggingConfig{Level: "info", Output: "syslog"})
	assert.Error(t, err)
}

func TestFileSummary(t *testing.T) {
	s, err := newFileSummary()
	require.NoError(t, err)
	assert.Zero(t, s.quantile(50))

	for i := int64(1); i <= 100; i++ {
		require.NoError(t, s.add(&core.Add{Path: "f", Size: i}))
	}
	assert.Equal(t, 100, s.count)
	assert.Equal(t, int64(5050), s.totalBytes)
	assert.InDelta(t, 50, s.quantile(50), 2)
	assert.InDelta(t, 99, s.quantile(99), 2)
}
