package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/INLOpen/nexuslog/core"
	"gopkg.in/yaml.v3"
)

// TableConfig selects the table and version to read.
type TableConfig struct {
	Location string `yaml:"location"`
	Version  int64  `yaml:"version"` // -1 selects the latest version
}

// ReplayConfig holds log replay options.
type ReplayConfig struct {
	CheckOrdering bool `yaml:"check_ordering"`
	// Predicates are "column op literal" terms, combined with AND.
	Predicates []string `yaml:"predicates"`
	// Columns declares the primitive type of every column predicates may use,
	// e.g. {"id": "long", "city": "string"}.
	Columns map[string]string `yaml:"columns"`
}

// LogStoreConfig holds options of the log directory reader.
type LogStoreConfig struct {
	ReadAhead int `yaml:"read_ahead"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // "stderr", "stdout", "file" or "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol        string `yaml:"protocol"` // "grpc" or "http"
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// Config is the top-level configuration struct.
type Config struct {
	Table    TableConfig    `yaml:"table"`
	Replay   ReplayConfig   `yaml:"replay"`
	LogStore LogStoreConfig `yaml:"log_store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// ParseLevel maps a logging level name to its slog level. Unknown names
// select info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Predicate parses the configured predicates into one expression. It returns
// nil when none are configured.
func (c ReplayConfig) Predicate() (core.Expression, error) {
	if len(c.Predicates) == 0 {
		return nil, nil
	}
	terms := make([]core.Expression, 0, len(c.Predicates))
	for _, p := range c.Predicates {
		expr, err := core.ParsePredicate(p)
		if err != nil {
			return nil, fmt.Errorf("invalid predicate %q: %w", p, err)
		}
		terms = append(terms, expr)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return core.And(terms...), nil
}

// TableSchema builds the column schema used for data skipping.
func (c ReplayConfig) TableSchema() (core.TableSchema, error) {
	fields := make([]core.Field, 0, len(c.Columns))
	for name, typ := range c.Columns {
		dt := core.DataType(typ)
		if !dt.IsPrimitive() {
			return core.TableSchema{}, fmt.Errorf("column %q: unsupported type %q", name, typ)
		}
		fields = append(fields, core.Field{Name: name, Type: dt, Nullable: true})
	}
	return core.NewTableSchema(fields...), nil
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	// Set default values
	cfg := &Config{
		Table: TableConfig{
			Location: ".",
			Version:  -1,
		},
		Replay: ReplayConfig{
			CheckOrdering: false,
		},
		LogStore: LogStoreConfig{
			ReadAhead: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			File:   "nexuslog.log",
		},
		Tracing: TracingConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			ShutdownTimeout: "5s",
		},
	}

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	if cfg.LogStore.ReadAhead < 0 {
		return nil, fmt.Errorf("log_store.read_ahead must not be negative, got %d", cfg.LogStore.ReadAhead)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
