package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/INLOpen/nexuslog/checkpoint"
	"github.com/INLOpen/nexuslog/config"
	"github.com/INLOpen/nexuslog/core"
	"github.com/INLOpen/nexuslog/hooks"
	"github.com/INLOpen/nexuslog/logstore"
	"github.com/INLOpen/nexuslog/table"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

var (
	batchesProcessed = expvar.NewInt("nexuslog_replay_batches_processed")
	filesEmitted     = expvar.NewInt("nexuslog_replay_files_emitted")
	filesSuppressed  = expvar.NewInt("nexuslog_replay_files_suppressed")
)

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	level := config.ParseLevel(strings.ToLower(cfg.Level))
	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// initTracerProvider creates and configures an OpenTelemetry TracerProvider.
func initTracerProvider(cfg config.TracingConfig, logger *slog.Logger) (*sdktrace.TracerProvider, func(), error) {
	if !cfg.Enabled {
		logger.Debug("Distributed tracing is disabled.")
		return sdktrace.NewTracerProvider(), func() {}, nil
	}

	logger.Info("Initializing distributed tracing...", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, nil, fmt.Errorf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("nexuslog")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	timeout := config.ParseDuration(cfg.ShutdownTimeout, 5*time.Second, logger)
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer provider", "error", err)
		}
	}
	return tp, cleanup, nil
}

func main() {
	configPath := flag.String("config", "nexuslog.yaml", "Path to the configuration file")
	location := flag.String("table", "", "Table root directory (overrides table.location)")
	version := flag.Int64("version", -2, "Table version to read, -1 for latest (overrides table.version)")
	var where multiFlag
	flag.Var(&where, "where", "Predicate term such as \"id < 10\"; may be repeated (appends to replay.predicates)")
	quiet := flag.Bool("summary", false, "Print only the summary, not every file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *location != "" {
		cfg.Table.Location = *location
	}
	if *version != -2 {
		cfg.Table.Version = *version
	}
	cfg.Replay.Predicates = append(cfg.Replay.Predicates, where...)

	logger, logCloser, err := createLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	if err := run(cfg, logger, os.Stdout, !*quiet); err != nil {
		logger.Error("Scan failed", "table", cfg.Table.Location, "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		if logCloser != nil {
			logCloser.Close()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, out io.Writer, listFiles bool) error {
	tp, cleanup, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	predicate, err := cfg.Replay.Predicate()
	if err != nil {
		return err
	}
	schema, err := cfg.Replay.TableSchema()
	if err != nil {
		return err
	}

	hookManager := hooks.NewHookManager(logger)
	defer hookManager.Stop()
	hookManager.Register(hooks.EventPostReplayBatch, hooks.ListenerFunc{Fn: func(ctx context.Context, event hooks.HookEvent) error {
		p := event.Payload().(hooks.PostReplayBatchPayload)
		logger.Debug("Replayed batch", "version", p.Version, "is_log_batch", p.IsLogBatch, "adds", p.Adds, "removes", p.Removes, "emitted", p.Emitted)
		return nil
	}})

	tbl, err := table.New(cfg.Table.Location, table.Options{
		Schema:           schema,
		ReadAhead:        cfg.LogStore.ReadAhead,
		CheckOrdering:    cfg.Replay.CheckOrdering,
		Logger:           logger,
		Tracer:           tp.Tracer("nexuslog"),
		HookManager:      hookManager,
		BatchesProcessed: batchesProcessed,
		FilesEmitted:     filesEmitted,
		FilesSuppressed:  filesSuppressed,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := tbl.Snapshot(ctx, cfg.Table.Version)
	if err != nil {
		return err
	}

	logDir := logstore.LogDir(tbl.Location())
	if lc, found, err := checkpoint.ReadLastCheckpoint(logDir); err != nil {
		logger.Warn("Ignoring unreadable last checkpoint hint", "error", err)
	} else if found {
		fmt.Fprintf(out, "# last checkpoint: version=%d actions=%d\n", lc.Version, lc.Size)
	}
	seg := snap.Segment()
	fmt.Fprintf(out, "# version=%d commits=%d checkpoint=%d\n", snap.Version(), len(seg.Commits), seg.CheckpointVersion)

	summary, err := newFileSummary()
	if err != nil {
		return err
	}
	for add, err := range snap.Files(ctx, predicate) {
		if err != nil {
			return err
		}
		if listFiles {
			printAdd(out, add)
		}
		if err := summary.add(add); err != nil {
			return err
		}
	}
	summary.print(out)
	logger.Info("Scan complete", "version", snap.Version(), "batches", batchesProcessed.Value(), "emitted", filesEmitted.Value(), "suppressed", filesSuppressed.Value())
	return nil
}

func printAdd(w io.Writer, a *core.Add) {
	if dv := a.DVUniqueID(); dv != "" {
		fmt.Fprintf(w, "%s\t%d\t%s\n", a.Path, a.Size, dv)
		return
	}
	fmt.Fprintf(w, "%s\t%d\n", a.Path, a.Size)
}

// multiFlag collects a repeated string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, " AND ") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}
