// Package probe inspects a bounded prefix of a delimited text file and
// guesses its text encoding and CSV dialect.
//
// Probing is a pure read: it never modifies the file and never fails because
// of an odd encoding or dialect. Unknown encodings fall back to ISO-8859-1
// and unknown dialects to comma + double quote, with a warning recorded on
// the Result. The only errors are I/O failures and empty inputs.
package probe

import (
	"fmt"
	"io"
	"strings"

	csvparser "feedbacketl/internal/parser/csv"
)

// Options control sampling.
type Options struct {
	// SampleBytes bounds the inspected prefix. <= 0 means DefaultSampleBytes.
	SampleBytes int
}

// Result is the outcome of probing one file.
type Result struct {
	Path     string
	Size     int64
	Encoding Encoding
	Dialect  Dialect
	// Header is the first row of the sample under the detected dialect,
	// undecorated (no cleaning or canonicalization).
	Header   []string
	Warnings []string
}

// ParserOptions returns the dialect as row-parser options.
func (r Result) ParserOptions() csvparser.Options {
	return csvparser.Options{Comma: r.Dialect.Delimiter, Quote: r.Dialect.Quote}
}

// NewReader wraps the raw file bytes with the detected decoder.
func (r Result) NewReader(raw io.Reader) io.Reader {
	return r.Encoding.NewReader(raw)
}

// Probe samples path and detects its encoding and dialect.
//
// Errors:
//   - I/O errors from opening or reading the file;
//   - ErrEmptyFile when the file has zero bytes or decodes to whitespace.
func Probe(path string, opt Options) (Result, error) {
	sample, size, err := ReadFileSample(path, opt.SampleBytes)
	if err != nil {
		return Result{Path: path}, err
	}
	res, err := ProbeBytes(sample, int64(len(sample)) >= size)
	res.Path = path
	res.Size = size
	return res, err
}

// ProbeBytes runs detection over an in-memory sample. whole tells whether the
// sample holds the entire input, in which case its last line is complete.
func ProbeBytes(sample []byte, whole bool) (Result, error) {
	var res Result

	res.Encoding = DetectEncoding(sample)
	if res.Encoding.Fallback {
		res.Warnings = append(res.Warnings, "encoding fallback: "+res.Encoding.Warning)
	}

	text, err := res.Encoding.Decode(sample)
	if err != nil {
		res.Encoding = fallbackEncoding(err.Error())
		res.Warnings = append(res.Warnings, "encoding fallback: "+err.Error())
		text, _ = res.Encoding.Decode(sample)
	}
	if strings.TrimSpace(strings.ReplaceAll(text, "\ufeff", "")) == "" {
		return res, ErrEmptyFile
	}

	text = cutToLastLine(text, whole)
	res.Dialect = SniffDialect(text)
	if !res.Dialect.Guessed {
		res.Warnings = append(res.Warnings, fmt.Sprintf("dialect not detected, using %s and %q", res.Dialect.DelimiterName(), res.Dialect.Quote))
	}

	rd := csvparser.NewReader(strings.NewReader(text), res.ParserOptions(), nil)
	if h, err := rd.Next(); err == nil {
		res.Header = h
	}
	return res, nil
}
