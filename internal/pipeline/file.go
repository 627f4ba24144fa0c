package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/header"
	csvparser "feedbacketl/internal/parser/csv"
	"feedbacketl/internal/probe"
	"feedbacketl/internal/sanitize"
)

// Status is the outcome of one input file.
type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
)

// FileResult describes what happened to one input file.
type FileResult struct {
	Path   string
	Output string
	Status Status

	Rows      int
	Encoding  string
	Delimiter string
	Quote     rune

	Ragged    int
	Truncated int
	Fallback  bool
	Missing   []string
	Dropped   []string

	Warnings []string
	Err      error
}

func (f FileResult) String() string {
	switch f.Status {
	case StatusError:
		return fmt.Sprintf("[ERROR] %s: %v", f.Path, f.Err)
	case StatusWarn:
		return fmt.Sprintf("[WARN] %s -> %s (%d rows): %s", f.Path, f.Output, f.Rows, strings.Join(f.Warnings, "; "))
	default:
		return fmt.Sprintf("[OK] %s -> %s (%d rows)", f.Path, f.Output, f.Rows)
	}
}

func (f *FileResult) warnf(format string, args ...any) {
	f.Warnings = append(f.Warnings, fmt.Sprintf(format, args...))
}

func (f *FileResult) settle() {
	switch {
	case f.Err != nil:
		f.Status = StatusError
	case len(f.Warnings) > 0:
		f.Status = StatusWarn
	default:
		f.Status = StatusOK
	}
}

// LoadFile runs detection, parsing, header canonicalization and sanitization
// over one file and returns the canonical table. Recoverable problems are
// recorded as warnings on the result; the error is non-nil only when the file
// cannot be read at all, and the result's Err is set to the same value.
func LoadFile(path string, opt Options) (feedback.Table, FileResult, error) {
	res := FileResult{Path: path}
	t, err := loadFile(path, opt.SampleBytes, &res)
	if err != nil {
		res.Err = err
	}
	res.settle()
	return t, res, err
}

func loadFile(path string, sampleBytes int, res *FileResult) (feedback.Table, error) {
	var t feedback.Table

	pr, err := probe.Probe(path, probe.Options{SampleBytes: sampleBytes})
	if err != nil {
		return t, err
	}
	res.Encoding = pr.Encoding.Name
	res.Delimiter = pr.Dialect.DelimiterName()
	res.Quote = pr.Dialect.Quote
	res.Warnings = append(res.Warnings, pr.Warnings...)

	f, err := os.Open(path)
	if err != nil {
		return t, err
	}
	defer f.Close()

	rd := csvparser.NewReader(pr.NewReader(f), pr.ParserOptions(), func(line int, err error) {
		if errors.Is(err, csvparser.ErrRaggedRow) {
			res.Ragged++
			return
		}
		res.warnf("line %d: %v", line, err)
	})

	raw, err := rd.Next()
	if errors.Is(err, io.EOF) {
		return t, probe.ErrEmptyFile
	}
	if err != nil {
		return t, fmt.Errorf("read header: %w", err)
	}

	m := header.Canonicalize(raw)
	res.Missing = m.Missing()
	if len(res.Missing) > 0 {
		res.warnf("missing columns filled with empty values: %s", strings.Join(res.Missing, ", "))
	}
	for _, d := range m.Decisions {
		if !d.Dropped() {
			continue
		}
		res.Dropped = append(res.Dropped, d.Raw)
		if d.Rule == "" && strings.TrimSpace(d.Raw) != "" {
			res.warnf("unrecognized column %q dropped", d.Raw)
		}
	}
	for _, dup := range m.Duplicates {
		res.warnf("%s", dup)
	}

	empty := 0
	for {
		row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t, fmt.Errorf("line %d: %w", rd.Line(), err)
		}
		rec, cut := sanitize.Record(m.Project(row))
		if rec == (feedback.Record{}) {
			empty++
			continue
		}
		res.Truncated += len(cut)
		t.Rows = append(t.Rows, rec)
	}
	res.Rows = len(t.Rows)
	res.Fallback = rd.UsedFallback()

	if res.Ragged > 0 {
		res.warnf("%d rows with a cell count different from the header", res.Ragged)
	}
	if res.Truncated > 0 {
		res.warnf("%d free-text values truncated to %d characters", res.Truncated, sanitize.MaxFreeText)
	}
	if empty > 0 {
		res.warnf("%d empty rows skipped", empty)
	}
	if res.Rows == 0 {
		res.warnf("no data rows")
	}
	return t, nil
}
