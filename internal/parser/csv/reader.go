// Package csv reads delimited survey exports one row at a time.
//
// Rows are parsed with encoding/csv first. When that parser gives up on a
// structural error (malformed quoting), reading continues from the last good
// record with a byte-oriented splitter that applies the same delimiter and
// quote rules with less strictness. Files quoted with anything other than a
// double quote go straight to the splitter, and so do files delimited by white
// space: encoding/csv's TrimLeadingSpace would eat empty cells there.
package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode"
)

// Warnings reported through the onErr callback. None of them stop reading.
var (
	ErrRaggedRow          = errors.New("row width differs from header")
	ErrStructuralFallback = errors.New("structured parse failed, using tolerant splitter")
	ErrUnterminatedQuote  = errors.New("quoted field not closed before end of input")
)

// Options is the dialect used to split rows.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Quote is the quote character. Zero means '"'.
	Quote rune
}

func (o Options) withDefaults() Options {
	if o.Comma == 0 {
		o.Comma = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	return o
}

// Reader yields rows lazily. The first row returned is the header; data rows
// shorter than the header are padded with empty cells.
type Reader struct {
	opt   Options
	onErr func(line int, err error)

	src    *retainReader
	strict *csv.Reader
	loose  *splitter

	lastGood int64
	width    int
	line     int
	rows     int
	fallback bool
}

// NewReader returns a Reader over decoded UTF-8 text. onErr may be nil.
func NewReader(r io.Reader, opt Options, onErr func(line int, err error)) *Reader {
	opt = opt.withDefaults()
	rd := &Reader{
		opt:   opt,
		onErr: onErr,
		src:   &retainReader{r: r},
		width: -1,
	}

	if opt.Quote != '"' || unicode.IsSpace(opt.Comma) {
		rd.loose = newSplitter(rd.src, opt, 0, rd.warn)
		return rd
	}

	cr := csv.NewReader(rd.src)
	cr.Comma = opt.Comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rd.strict = cr
	return rd
}

// Next returns the next row, or io.EOF after the last one.
func (r *Reader) Next() ([]string, error) {
	if r.loose != nil {
		rec, line, err := r.loose.Read()
		if err != nil {
			return nil, err
		}
		return r.shape(rec, line), nil
	}

	rec, err := r.strict.Read()
	if err == nil {
		line, _ := r.strict.FieldPos(0)
		r.lastGood = r.strict.InputOffset()
		r.src.discardBefore(r.lastGood)
		return r.shape(rec, line), nil
	}
	if err == io.EOF {
		return nil, io.EOF
	}

	var pe *csv.ParseError
	if !errors.As(err, &pe) {
		return nil, err
	}

	r.warn(pe.StartLine, fmt.Errorf("%w: %v", ErrStructuralFallback, pe.Err))
	r.fallback = true
	r.loose = newSplitter(r.src.from(r.lastGood), r.opt, pe.StartLine-1, r.warn)
	r.strict = nil
	return r.Next()
}

// Line returns the line on which the last returned row started.
func (r *Reader) Line() int { return r.line }

// Rows returns the number of data rows returned so far.
func (r *Reader) Rows() int { return r.rows }

// UsedFallback reports whether the tolerant splitter took over after a
// structural parse error.
func (r *Reader) UsedFallback() bool { return r.fallback }

// ReadAll drains the reader, returning the header and data rows.
func (r *Reader) ReadAll() (header []string, rows [][]string, err error) {
	header, err = r.Next()
	if err != nil {
		return nil, nil, err
	}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return header, rows, nil
		}
		if err != nil {
			return header, rows, err
		}
		rows = append(rows, rec)
	}
}

func (r *Reader) shape(rec []string, line int) []string {
	r.line = line
	if r.width < 0 {
		r.width = len(rec)
		return rec
	}
	r.rows++
	if len(rec) != r.width {
		r.warn(line, fmt.Errorf("%w: %d cells, header has %d", ErrRaggedRow, len(rec), r.width))
		for len(rec) < r.width {
			rec = append(rec, "")
		}
	}
	return rec
}

func (r *Reader) warn(line int, err error) {
	if r.onErr != nil {
		r.onErr(line, err)
	}
}

// retainReader keeps every byte read from r since the last discard point so
// parsing can resume from a known record boundary.
type retainReader struct {
	r    io.Reader
	buf  []byte
	base int64
}

func (t *retainReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.buf = append(t.buf, p[:n]...)
	return n, err
}

func (t *retainReader) discardBefore(off int64) {
	if off <= t.base {
		return
	}
	drop := off - t.base
	if drop > int64(len(t.buf)) {
		drop = int64(len(t.buf))
	}
	t.buf = t.buf[drop:]
	t.base += drop
}

// from returns a reader positioned at absolute offset off, which must not be
// before the last discard point.
func (t *retainReader) from(off int64) io.Reader {
	start := off - t.base
	if start < 0 {
		start = 0
	}
	if start > int64(len(t.buf)) {
		start = int64(len(t.buf))
	}
	rest := bytes.Clone(t.buf[start:])
	return io.MultiReader(bytes.NewReader(rest), t.r)
}
