// Package pipeline normalizes survey feedback exports into the canonical
// 11-column table and merges them into one deduplicated unified file.
//
// Files are processed one at a time in the order given. A file that cannot be
// read is reported and skipped; everything else about a file (odd encoding,
// broken quoting, missing or unknown columns, oversized comments) is
// recovered locally and reported as a warning.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/logger"
	"feedbacketl/internal/merge"
	"feedbacketl/internal/metrics"
	"feedbacketl/internal/probe"
)

const (
	DefaultOutputDir = "limpios"
	DefaultUnified   = "validacion_unificado.csv"
	CleanedSuffix    = "_limpio"
)

// Options configure a run. The zero value uses the defaults above.
type Options struct {
	// OutputDir receives one cleaned file per input.
	OutputDir string
	// UnifiedPath is where the merged table is written.
	UnifiedPath string
	// SampleBytes bounds encoding and dialect detection.
	SampleBytes int
	Logger      *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.UnifiedPath == "" {
		o.UnifiedPath = DefaultUnified
	}
	if o.SampleBytes <= 0 {
		o.SampleBytes = probe.DefaultSampleBytes
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// Result summarizes a run.
type Result struct {
	Files []FileResult
	// Unified is the merged table; UnifiedPath is empty when it was not
	// written because no input succeeded.
	Unified     feedback.Table
	UnifiedPath string
	Duplicates  int
	Warnings    []string
}

// Succeeded returns the number of files that produced a table.
func (r *Result) Succeeded() int {
	n := 0
	for _, f := range r.Files {
		if f.Status != StatusError {
			n++
		}
	}
	return n
}

// Failed returns the number of skipped files.
func (r *Result) Failed() int { return len(r.Files) - r.Succeeded() }

// Summary is the final console line.
func (r *Result) Summary() string {
	if r.UnifiedPath == "" {
		return fmt.Sprintf("no unified file written: %d of %d files failed", r.Failed(), len(r.Files))
	}
	return fmt.Sprintf("unified: %d rows x %d columns -> %s (%d duplicates removed, %d/%d files ok)",
		r.Unified.Len(), feedback.NumColumns, r.UnifiedPath, r.Duplicates, r.Succeeded(), len(r.Files))
}

// Run normalizes each path into OutputDir and writes the merged table to
// UnifiedPath. Per-file failures are reported in Result.Files and never stop
// the run. The returned error is reserved for cancellation and for failing to
// write the unified table.
func Run(ctx context.Context, paths []string, opt Options) (*Result, error) {
	opt = opt.withDefaults()
	log := opt.Logger
	res := &Result{Files: make([]FileResult, 0, len(paths))}
	m := merge.New()

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fr, t := processFile(p, opt)
		res.Files = append(res.Files, fr)
		if fr.Status != StatusError {
			m.Add(t)
		}
	}

	started := time.Now()
	res.Unified = m.Table()
	res.Duplicates = m.Duplicates()
	metrics.AddRecords("duplicate", res.Duplicates)

	if res.Succeeded() == 0 {
		res.Warnings = append(res.Warnings, "no input file could be processed; unified table not written")
		log.Warn("unified table not written", "files", len(paths))
		metrics.RecordStep("merge", "skipped", started)
		return res, nil
	}

	if err := WriteFile(opt.UnifiedPath, res.Unified); err != nil {
		metrics.RecordStep("merge", "error", started)
		return res, err
	}
	res.UnifiedPath = opt.UnifiedPath
	metrics.AddRecords("unified", res.Unified.Len())
	metrics.RecordStep("merge", "ok", started)
	log.Info("unified table written",
		"path", res.UnifiedPath,
		"rows", res.Unified.Len(),
		"duplicates", res.Duplicates,
	)
	return res, nil
}

func processFile(path string, opt Options) (FileResult, feedback.Table) {
	started := time.Now()
	log := opt.Logger.With("file", path)

	t, fr, err := LoadFile(path, opt)
	if err == nil {
		fr.Output = CleanedPath(path, opt.OutputDir)
		if werr := WriteFile(fr.Output, t); werr != nil {
			fr.Err = werr
			fr.Output = ""
			fr.settle()
		}
	}

	metrics.RecordStep("file", string(fr.Status), started)
	switch fr.Status {
	case StatusError:
		log.Error("file skipped", "err", fr.Err)
		return fr, feedback.Table{}
	case StatusWarn:
		log.Warn("file normalized with warnings",
			"rows", fr.Rows,
			"encoding", fr.Encoding,
			"delimiter", fr.Delimiter,
			"warnings", fr.Warnings,
		)
	default:
		log.Info("file normalized",
			"rows", fr.Rows,
			"encoding", fr.Encoding,
			"delimiter", fr.Delimiter,
		)
	}

	metrics.AddRecords("parsed", fr.Rows)
	metrics.AddRecords("written", fr.Rows)
	metrics.AddRecords("truncated", fr.Truncated)
	metrics.AddRecords("ragged", fr.Ragged)
	return fr, t
}
