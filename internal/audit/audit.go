// Package audit checks survey exports against the canonical layout without
// repairing them. It reads the header as written, so a file that normalizes
// cleanly can still fail an audit (for example because of an alias header).
package audit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"feedbacketl/internal/feedback"
	csvparser "feedbacketl/internal/parser/csv"
	"feedbacketl/internal/probe"
	"feedbacketl/internal/sanitize"
)

// MinFilledCells is the fewest non-blank cells a row needs before it is
// flagged as sparse.
const MinFilledCells = 5

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is one finding. Line is 0 for file-level findings.
type Problem struct {
	Severity Severity
	Line     int
	Message  string
}

func (p Problem) String() string {
	if p.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", p.Severity, p.Line, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Severity, p.Message)
}

type Report struct {
	Path     string
	Encoding string
	Columns  int
	Rows     int
	Problems []Problem
}

// OK reports a file with no findings of any severity.
func (r Report) OK() bool { return len(r.Problems) == 0 }

// HasErrors reports whether any finding is an error.
func (r Report) HasErrors() bool {
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Report) add(sev Severity, line int, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Severity: sev, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Options control sampling for encoding and dialect detection.
type Options struct {
	SampleBytes int
}

// Check audits one file. It never returns an error: unreadable files come
// back as a Report with an error-severity problem.
func Check(path string, opt Options) Report {
	r := Report{Path: path}

	pr, err := probe.Probe(path, probe.Options{SampleBytes: opt.SampleBytes})
	if err != nil {
		r.add(SeverityError, 0, "cannot read file: %v", err)
		return r
	}
	r.Encoding = pr.Encoding.Name

	f, err := os.Open(path)
	if err != nil {
		r.add(SeverityError, 0, "cannot read file: %v", err)
		return r
	}
	defer f.Close()

	mojibake := false
	scan := func(cells []string) {
		for _, c := range cells {
			if strings.Contains(c, sanitize.MojibakeMarker) {
				mojibake = true
				return
			}
		}
	}

	rd := csvparser.NewReader(pr.NewReader(f), pr.ParserOptions(), func(line int, err error) {
		r.add(SeverityWarning, line, "%v", err)
	})

	hdr, err := rd.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = probe.ErrEmptyFile
		}
		r.add(SeverityError, 0, "cannot read header: %v", err)
		return r
	}
	scan(hdr)
	r.Columns = len(hdr)
	if r.Columns != feedback.NumColumns {
		r.add(SeverityError, 0, "has %d columns, expected %d", r.Columns, feedback.NumColumns)
	}
	present := make(map[string]bool, len(hdr))
	for _, h := range hdr {
		present[strings.TrimSpace(h)] = true
	}
	for _, c := range feedback.Columns {
		if !present[c] {
			r.add(SeverityError, 0, "missing column %s", c)
		}
	}

	for {
		row, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.add(SeverityError, rd.Line(), "read failed: %v", err)
			break
		}
		r.Rows++
		scan(row)

		filled := 0
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				filled++
			}
		}
		switch {
		case filled == 0:
			r.add(SeverityError, rd.Line(), "row is completely empty")
		case filled < MinFilledCells:
			r.add(SeverityWarning, rd.Line(), "row has only %d non-empty cells", filled)
		}
	}

	if r.Rows == 0 {
		r.add(SeverityWarning, 0, "no data rows (header only)")
	}
	if mojibake {
		r.add(SeverityWarning, 0, "possible double-encoded text (%q found)", sanitize.MojibakeMarker)
	}
	if pr.Encoding.Fallback {
		r.add(SeverityWarning, 0, "encoding fallback: %s", pr.Encoding.Warning)
	}
	return r
}

// CheckAll audits paths in order.
func CheckAll(paths []string, opt Options) []Report {
	out := make([]Report, 0, len(paths))
	for _, p := range paths {
		out = append(out, Check(p, opt))
	}
	return out
}
