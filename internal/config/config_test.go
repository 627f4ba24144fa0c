package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if issues := c.Validate(); len(issues) != 0 {
		t.Fatalf("Default().Validate() = %v", issues)
	}
	if c.Glob() != "feedback*.csv" {
		t.Fatalf("Glob() = %q", c.Glob())
	}
	if c.Storage.Enabled() {
		t.Fatal("storage should be off by default")
	}
}

func TestDecode(t *testing.T) {
	doc := `
input:
  dir: exports
output:
  dir: out
storage:
  kind: sqlite
  dsn: file:feedback.db
metrics:
  backend: datadog
  tags: [team:research]
  flush_every: 30s
`
	c, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Input.Pattern != DefaultPattern {
		t.Errorf("pattern default lost: %q", c.Input.Pattern)
	}
	if c.Glob() != filepath.Join("exports", DefaultPattern) {
		t.Errorf("Glob() = %q", c.Glob())
	}
	if c.Output.Dir != "out" || c.Output.Unified != DefaultUnified {
		t.Errorf("output = %+v", c.Output)
	}
	if c.Storage.Table != DefaultTable || !c.Storage.Enabled() {
		t.Errorf("storage = %+v", c.Storage)
	}
	if c.Metrics.FlushEvery != 30*time.Second || len(c.Metrics.Tags) != 1 {
		t.Errorf("metrics = %+v", c.Metrics)
	}
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestDecode_EmptyAndUnknown(t *testing.T) {
	c, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if c.Output.Dir != DefaultOutputDir {
		t.Fatalf("empty doc should yield defaults, got %+v", c)
	}

	if _, err := Decode(strings.NewReader("outptu:\n  dir: x\n")); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want error
	}{
		{"empty pattern", func(c *Config) { c.Input.Pattern = " " }, ErrEmptyPattern},
		{"bad pattern", func(c *Config) { c.Input.Pattern = "[" }, ErrBadPattern},
		{"empty out", func(c *Config) { c.Output.Dir = "" }, ErrEmptyOutputDir},
		{"empty unified", func(c *Config) { c.Output.Unified = "" }, ErrEmptyUnified},
		{"sample", func(c *Config) { c.Detect.SampleBytes = 0 }, ErrSampleBytes},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, ErrUnknownLevel},
		{"storage kind", func(c *Config) { c.Storage.Kind = "oracle"; c.Storage.DSN = "x" }, ErrUnknownStorage},
		{"storage dsn", func(c *Config) { c.Storage.Kind = "postgres" }, ErrMissingDSN},
		{"metrics", func(c *Config) { c.Metrics.Backend = "statsd" }, ErrUnknownMetrics},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mod(&c)
			err := c.Err()
			if !errors.Is(err, tc.want) {
				t.Fatalf("Err() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidate_WarningIsNotError(t *testing.T) {
	c := Default()
	c.Metrics.FlushEvery = -time.Second
	issues := c.Validate()
	if len(issues) != 1 || issues[0].Severity != SeverityWarning {
		t.Fatalf("issues = %v", issues)
	}
	if c.Err() != nil {
		t.Fatal("warnings must not fail Err()")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "feedback.yaml")
	if err := os.WriteFile(p, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("level = %q", c.Logging.Level)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing: %v", err)
	}
}
