// Package config holds the run configuration for the normalize command.
//
// The file format is YAML. Every field is optional: Default supplies the
// layout the survey exports have always used, and command-line flags override
// whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyPattern     = errors.New("config: input pattern is empty")
	ErrBadPattern       = errors.New("config: input pattern is malformed")
	ErrEmptyOutputDir   = errors.New("config: output dir is empty")
	ErrEmptyUnified     = errors.New("config: unified path is empty")
	ErrSampleBytes      = errors.New("config: sample_bytes must be positive")
	ErrUnknownLevel     = errors.New("config: unknown log level")
	ErrUnknownStorage   = errors.New("config: unknown storage kind")
	ErrMissingDSN       = errors.New("config: storage dsn is required")
	ErrUnknownMetrics   = errors.New("config: unknown metrics backend")
	ErrNegativeInterval = errors.New("config: metrics flush_every is negative")
)

// Severity of a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Err is one of the package sentinels.
type Issue struct {
	Severity Severity
	Path     string
	Err      error
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s: %v", i.Severity, i.Path, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

type Input struct {
	Dir     string `yaml:"dir"`
	Pattern string `yaml:"pattern"`
}

type Output struct {
	Dir     string `yaml:"dir"`
	Unified string `yaml:"unified"`
}

type Detect struct {
	SampleBytes int `yaml:"sample_bytes"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Storage selects an optional database sink for the unified rows. An empty
// Kind disables loading.
type Storage struct {
	Kind  string `yaml:"kind"`
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

func (s Storage) Enabled() bool { return s.Kind != "" && s.Kind != "none" }

type Metrics struct {
	Backend    string        `yaml:"backend"`
	Job        string        `yaml:"job"`
	Tags       []string      `yaml:"tags"`
	FlushEvery time.Duration `yaml:"flush_every"`
}

type Config struct {
	Input   Input   `yaml:"input"`
	Output  Output  `yaml:"output"`
	Detect  Detect  `yaml:"detect"`
	Logging Logging `yaml:"logging"`
	Storage Storage `yaml:"storage"`
	Metrics Metrics `yaml:"metrics"`
}

const (
	DefaultPattern     = "feedback*.csv"
	DefaultOutputDir   = "limpios"
	DefaultUnified     = "validacion_unificado.csv"
	DefaultSampleBytes = 64 << 10
	DefaultTable       = "feedback_respuestas"
)

// StorageKinds and MetricsBackends list the accepted selector values.
var (
	StorageKinds    = []string{"sqlite", "postgres", "mssql"}
	MetricsBackends = []string{"none", "datadog"}
)

func Default() Config {
	return Config{
		Input:   Input{Dir: ".", Pattern: DefaultPattern},
		Output:  Output{Dir: DefaultOutputDir, Unified: DefaultUnified},
		Detect:  Detect{SampleBytes: DefaultSampleBytes},
		Logging: Logging{Level: "info"},
		Storage: Storage{Table: DefaultTable},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load reads path on top of Default. A missing path is an error; callers that
// treat the file as optional check for os.ErrNotExist.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses YAML from r over Default. Unknown keys are rejected so typos
// surface instead of silently falling back to defaults. An empty document
// yields Default.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if c.Storage.Table == "" {
		c.Storage.Table = DefaultTable
	}
	return c, nil
}

// Glob returns the input pattern joined onto the input dir.
func (c Config) Glob() string {
	if c.Input.Dir == "" || c.Input.Dir == "." {
		return c.Input.Pattern
	}
	return filepath.Join(c.Input.Dir, c.Input.Pattern)
}

// Validate reports every problem it finds rather than stopping at the first.
func (c Config) Validate() []Issue {
	var out []Issue
	add := func(sev Severity, path string, err error) {
		out = append(out, Issue{Severity: sev, Path: path, Err: err})
	}

	if strings.TrimSpace(c.Input.Pattern) == "" {
		add(SeverityError, "input.pattern", ErrEmptyPattern)
	} else if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
		add(SeverityError, "input.pattern", ErrBadPattern)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		add(SeverityError, "output.dir", ErrEmptyOutputDir)
	}
	if strings.TrimSpace(c.Output.Unified) == "" {
		add(SeverityError, "output.unified", ErrEmptyUnified)
	}
	if c.Detect.SampleBytes <= 0 {
		add(SeverityError, "detect.sample_bytes", ErrSampleBytes)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add(SeverityError, "logging.level", ErrUnknownLevel)
	}

	if c.Storage.Enabled() {
		if !oneOf(c.Storage.Kind, StorageKinds) {
			add(SeverityError, "storage.kind", ErrUnknownStorage)
		}
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add(SeverityError, "storage.dsn", ErrMissingDSN)
		}
	}

	if c.Metrics.Backend != "" && !oneOf(c.Metrics.Backend, MetricsBackends) {
		add(SeverityError, "metrics.backend", ErrUnknownMetrics)
	}
	if c.Metrics.FlushEvery < 0 {
		add(SeverityWarning, "metrics.flush_every", ErrNegativeInterval)
	}
	return out
}

// Err joins the error-severity issues, or returns nil.
func (c Config) Err() error {
	var errs []error
	for _, iss := range c.Validate() {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
