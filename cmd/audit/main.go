// Command audit checks feedback exports against the canonical 11-column
// layout without modifying them.
//
//	audit [-config normalize.yaml] [-dir DIR] [-pattern GLOB] [file.csv ...]
//
// Every finding is printed under its file. The command exits 1 when any file
// has a finding, so it can gate a pipeline before normalize runs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"feedbacketl/internal/audit"
	"feedbacketl/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "optional YAML config path (input and detect sections are used)")
	dir := fs.String("dir", "", "input directory searched when no files are given")
	pattern := fs.String("pattern", "", "input glob (default "+config.DefaultPattern+")")
	sampleBytes := fs.Int("sample-bytes", 0, "bytes sampled for encoding and delimiter detection")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: audit [flags] [file.csv ...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.Default()
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(stderr, "config: %v\n", err)
			return 2
		}
		cfg = c
	}
	if *dir != "" {
		cfg.Input.Dir = *dir
	}
	if *pattern != "" {
		cfg.Input.Pattern = *pattern
	}
	if *sampleBytes != 0 {
		cfg.Detect.SampleBytes = *sampleBytes
	}
	if cfg.Detect.SampleBytes < 0 {
		fmt.Fprintf(stderr, "detect.sample_bytes: %v\n", config.ErrSampleBytes)
		return 2
	}

	paths := fs.Args()
	if len(paths) == 0 {
		matches, err := filepath.Glob(cfg.Glob())
		if err != nil {
			fmt.Fprintf(stderr, "glob %q: %v\n", cfg.Glob(), err)
			return 2
		}
		paths = matches
	}
	if len(paths) == 0 {
		fmt.Fprintf(stdout, "no files match %s\n", cfg.Glob())
		return 1
	}

	reports := audit.CheckAll(paths, audit.Options{SampleBytes: cfg.Detect.SampleBytes})
	failed := 0
	for _, r := range reports {
		printReport(stdout, r)
		if !r.OK() {
			failed++
		}
	}
	fmt.Fprintf(stdout, "audited %d files: %d ok, %d with findings\n", len(reports), len(reports)-failed, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func printReport(w io.Writer, r audit.Report) {
	switch {
	case r.OK():
		fmt.Fprintf(w, "[OK] %s (%d rows, %s)\n", r.Path, r.Rows, r.Encoding)
	case r.HasErrors():
		fmt.Fprintf(w, "[ERROR] %s\n", r.Path)
	default:
		fmt.Fprintf(w, "[WARN] %s\n", r.Path)
	}
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}
