// Command normalize cleans survey feedback CSV exports and merges them into a
// single unified table.
//
// Inputs are either the positional arguments or, when none are given, the
// files matching the configured glob (default feedback*.csv in the working
// directory). Each input yields <out>/<stem>_limpio.csv; the merged,
// deduplicated rows go to the unified file (default validacion_unificado.csv).
//
// Settings come from an optional YAML file (-config), overridden by the
// environment (FEEDBACK_DB_DSN, METRICS_BACKEND, METRICS_TAGS) and then by
// flags. A .env file in the working directory is loaded first when present.
//
// Exit codes:
//
//	0  at least one input was processed
//	1  no input could be processed, or writing/loading the results failed
//	2  bad flags or configuration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"feedbacketl/internal/config"
	"feedbacketl/internal/logger"
	"feedbacketl/internal/metrics"
	"feedbacketl/internal/metrics/datadog"
	"feedbacketl/internal/pipeline"
	"feedbacketl/internal/storage"

	// register all backends with the storage factory.
	_ "feedbacketl/internal/storage/all"
)

// metricsBackend is what initMetrics needs from a constructed backend.
type metricsBackend interface {
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
)

// appDeps are the side-effecting collaborators of runMain.
type appDeps struct {
	initMetrics func(ctx context.Context, log *logger.Logger, m config.Metrics) (func(), error)
	openStore   func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	newRunID    func() string
	newLogger   func(level string, w io.Writer) *logger.Logger
}

func defaultDeps() appDeps {
	return appDeps{
		initMetrics: initMetrics,
		openStore:   storage.Open,
		newRunID:    func() string { return uuid.New().String() },
		newLogger:   logger.New,
	}
}

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

type cliFlags struct {
	config      string
	dir         string
	pattern     string
	out         string
	unified     string
	sampleBytes int
	logLevel    string
	dbKind      string
	dbDSN       string
	dbTable     string
	metrics     string
}

func parseFlags(args []string, stderr io.Writer) (*flag.FlagSet, cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: normalize [flags] [file.csv ...]")
		fs.PrintDefaults()
	}

	fs.StringVar(&f.config, "config", "", "optional YAML config path")
	fs.StringVar(&f.dir, "dir", "", "input directory searched when no files are given")
	fs.StringVar(&f.pattern, "pattern", "", "input glob (default "+config.DefaultPattern+")")
	fs.StringVar(&f.out, "out", "", "directory for cleaned files (default "+config.DefaultOutputDir+")")
	fs.StringVar(&f.unified, "unified", "", "unified output path (default "+config.DefaultUnified+")")
	fs.IntVar(&f.sampleBytes, "sample-bytes", 0, "bytes sampled for encoding and delimiter detection")
	fs.StringVar(&f.logLevel, "log-level", "", "debug|info|warn|error")
	fs.StringVar(&f.dbKind, "db-kind", "", "load unified rows into sqlite|postgres|mssql (default off)")
	fs.StringVar(&f.dbDSN, "db-dsn", "", "storage DSN (overrides FEEDBACK_DB_DSN)")
	fs.StringVar(&f.dbTable, "db-table", "", "storage table (default "+config.DefaultTable+")")
	fs.StringVar(&f.metrics, "metrics-backend", "", "none|datadog (overrides METRICS_BACKEND)")

	err := fs.Parse(args)
	return fs, f, err
}

// buildConfig layers defaults, the config file, the environment and flags.
func buildConfig(f cliFlags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		c, err := config.Load(f.config)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}

	if v := strings.TrimSpace(os.Getenv("METRICS_BACKEND")); v != "" {
		cfg.Metrics.Backend = v
	}
	if tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")); len(tags) > 0 {
		cfg.Metrics.Tags = append(cfg.Metrics.Tags, tags...)
	}

	if f.dir != "" {
		cfg.Input.Dir = f.dir
	}
	if f.pattern != "" {
		cfg.Input.Pattern = f.pattern
	}
	if f.out != "" {
		cfg.Output.Dir = f.out
	}
	if f.unified != "" {
		cfg.Output.Unified = f.unified
	}
	if f.sampleBytes != 0 {
		cfg.Detect.SampleBytes = f.sampleBytes
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.metrics != "" {
		cfg.Metrics.Backend = f.metrics
	}
	if f.dbKind != "" {
		cfg.Storage.Kind = f.dbKind
	}
	if f.dbTable != "" {
		cfg.Storage.Table = f.dbTable
	}

	cfg.Storage.Kind = normalizeKind(cfg.Storage.Kind)
	if cfg.Storage.Enabled() {
		dsn, ok, err := resolveDSN(cfg.Storage.Kind, f.dbDSN, cfg.Storage.DSN)
		if err != nil {
			return cfg, err
		}
		if ok {
			cfg.Storage.DSN = dsn
		}
	}
	return cfg, nil
}

// runMain is main without os.Exit so tests can drive it directly.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs, f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := buildConfig(f)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	hasError := false
	for _, iss := range cfg.Validate() {
		fmt.Fprintf(stderr, "%s: %s: %v\n", iss.Severity, iss.Path, iss.Err)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 2
	}

	log := deps.newLogger(cfg.Logging.Level, stderr)
	defer log.Sync()

	paths, err := inputPaths(fs.Args(), cfg)
	if err != nil {
		fmt.Fprintf(stderr, "inputs: %v\n", err)
		return 2
	}
	if len(paths) == 0 {
		fmt.Fprintf(stdout, "no input files match %s\n", cfg.Glob())
		return 1
	}

	cleanup, err := deps.initMetrics(ctx, log, cfg.Metrics)
	if err != nil {
		log.Warn("metrics disabled", "error", err)
	}
	defer cleanup()

	started := time.Now()
	res, err := pipeline.Run(ctx, paths, pipeline.Options{
		OutputDir:   cfg.Output.Dir,
		UnifiedPath: cfg.Output.Unified,
		SampleBytes: cfg.Detect.SampleBytes,
		Logger:      log,
	})
	if res != nil {
		for _, fr := range res.Files {
			fmt.Fprintln(stdout, fr.String())
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(stdout, "[WARN] %s\n", w)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "normalize: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, res.Summary())
	log.Debug("run finished", "elapsed", time.Since(started).Truncate(time.Millisecond))

	if res.Succeeded() == 0 {
		return 1
	}

	if cfg.Storage.Enabled() {
		runID := deps.newRunID()
		n, err := loadUnified(ctx, deps, cfg.Storage, runID, res)
		if err != nil {
			fmt.Fprintf(stderr, "storage: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "stored: %d new rows in %s (%s, run %s)\n", n, cfg.Storage.Table, cfg.Storage.Kind, runID)
	}
	return 0
}

// inputPaths returns the positional args, or the glob matches when there are
// none. Matches are sorted, which fixes the merge order.
func inputPaths(args []string, cfg config.Config) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	matches, err := filepath.Glob(cfg.Glob())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", cfg.Glob(), err)
	}
	out := matches[:0]
	for _, m := range matches {
		if strings.HasSuffix(strings.TrimSuffix(filepath.Base(m), filepath.Ext(m)), pipeline.CleanedSuffix) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func loadUnified(ctx context.Context, deps appDeps, sc config.Storage, runID string, res *pipeline.Result) (int64, error) {
	repo, err := deps.openStore(ctx, storage.Config{Kind: sc.Kind, DSN: sc.DSN, Table: sc.Table})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx); err != nil {
		return 0, err
	}
	return repo.InsertRows(ctx, runID, res.Unified.Rows)
}

// initMetrics wires the configured backend into internal/metrics. The
// returned cleanup is never nil and flushes the backend.
func initMetrics(ctx context.Context, log *logger.Logger, m config.Metrics) (func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "none":
		log.Debug("metrics disabled", "backend", m.Backend)
		return noop, nil

	case "datadog":
		job := m.Job
		if job == "" {
			job = datadog.DefaultJobName
		}
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       m.Tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return noop, err
		}
		setMetricsBackend(b)
		log.Info("metrics enabled", "backend", "datadog", "job", job, "tags", m.Tags)
		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics: datadog close error", "error", err)
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog)", m.Backend)
	}
}
