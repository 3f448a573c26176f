package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/INLOpen/nexuslog/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	yamlContent := `
table:
  location: "/data/events"
  version: 12
replay:
  check_ordering: true
  predicates:
    - "id < 100"
    - "city = 'Austin'"
  columns:
    id: long
    city: string
log_store:
  read_ahead: 2
`
	cfg, err := Load(strings.NewReader(yamlContent))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Check overridden values
	assert.Equal(t, "/data/events", cfg.Table.Location)
	assert.Equal(t, int64(12), cfg.Table.Version)
	assert.True(t, cfg.Replay.CheckOrdering)
	assert.Equal(t, 2, cfg.LogStore.ReadAhead)

	pred, err := cfg.Replay.Predicate()
	require.NoError(t, err)
	assert.Equal(t, core.And(
		core.Lt(core.Column("id"), core.Literal(100)),
		core.Eq(core.Column("city"), core.Literal("Austin")),
	), pred)

	schema, err := cfg.Replay.TableSchema()
	require.NoError(t, err)
	field, ok := schema.Column("id")
	require.True(t, ok)
	assert.Equal(t, core.TypeLong, field.Type)

	// Check a default value that was not overridden
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_PartialConfig(t *testing.T) {
	cfg, err := Load(strings.NewReader("tracing:\n  enabled: true\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "grpc", cfg.Tracing.Protocol)
	assert.Equal(t, int64(-1), cfg.Table.Version)
	assert.Zero(t, cfg.LogStore.ReadAhead)

	pred, err := cfg.Replay.Predicate()
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestLoad_EmptyReader(t *testing.T) {
	// Test with nil reader
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, int64(-1), cfg.Table.Version)

	// Test with empty string reader
	cfg, err = Load(strings.NewReader(""))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "stderr", cfg.Logging.Output)
}

func TestLoad_InvalidYAML(t *testing.T) {
	yamlContent := `
table:
  location: "/tmp/test_data"
  this: is: invalid: yaml
`
	_, err := Load(strings.NewReader(yamlContent))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config yaml")
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(strings.NewReader("log_store:\n  read_ahead: -1\n"))
	require.Error(t, err)

	cfg, err := Load(strings.NewReader("replay:\n  predicates: [\"id <\"]\n  columns:\n    id: struct\n"))
	require.NoError(t, err)
	_, err = cfg.Replay.Predicate()
	assert.Error(t, err)
	_, err = cfg.Replay.TableSchema()
	assert.Error(t, err)
}

// TestLoadConfig_FileIntegration ensures LoadConfig works with the filesystem.
func TestLoadConfig_FileIntegration(t *testing.T) {
	t.Run("FileExists", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "config.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("table:\n  version: 3\n"), 0644))

		cfg, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, int64(3), cfg.Table.Version)
	})

	t.Run("FileDoesNotExist", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "non_existent_config.yaml"))
		require.NoError(t, err)
		require.NotNil(t, cfg)
		// Should return default value
		assert.Equal(t, int64(-1), cfg.Table.Version)
	})
}

func TestParseDuration(t *testing.T) {
	// Use a logger that discards output for this test
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultDuration := 10 * time.Second

	testCases := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{"ValidSeconds", "5s", 5 * time.Second},
		{"ValidMilliseconds", "500ms", 500 * time.Millisecond},
		{"EmptyString", "", defaultDuration},
		{"ZeroString", "0", defaultDuration},
		{"InvalidString", "5x", defaultDuration},
		{"NilLogger", "5x", defaultDuration}, // Should not panic with nil logger
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var testLogger *slog.Logger
			if tc.name != "NilLogger" {
				testLogger = logger
			}
			assert.Equal(t, tc.expected, ParseDuration(tc.input, defaultDuration, testLogger))
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
