package csv

import (
	"bufio"
	"io"
	"strings"
)

// splitter is the tolerant row splitter. It honors the delimiter, quoted
// fields with embedded newlines and doubled-quote escapes, but never fails on
// bare or stray quotes: they are kept as literal text.
type splitter struct {
	br    *bufio.Reader
	comma rune
	quote rune
	line  int
	warn  func(line int, err error)
}

func newSplitter(r io.Reader, opt Options, line int, warn func(int, error)) *splitter {
	return &splitter{
		br:    bufio.NewReader(r),
		comma: opt.Comma,
		quote: opt.Quote,
		line:  line,
		warn:  warn,
	}
}

// Read returns the next non-blank record and the line it started on.
func (s *splitter) Read() ([]string, int, error) {
	for {
		rec, start, err := s.readRecord()
		if err != nil {
			return nil, start, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, start, nil
	}
}

func (s *splitter) readRecord() ([]string, int, error) {
	start := s.line + 1

	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
		atStart  = true
		sawAny   bool
	)

	for {
		r, _, err := s.br.ReadRune()
		if err == io.EOF {
			if !sawAny {
				return nil, start, io.EOF
			}
			if inQuotes {
				s.warn(start, ErrUnterminatedQuote)
			}
			s.line++
			return append(fields, field.String()), start, nil
		}
		if err != nil {
			return nil, start, err
		}
		sawAny = true

		if inQuotes {
			switch r {
			case s.quote:
				next, _, err := s.br.ReadRune()
				if err == nil && next == s.quote {
					field.WriteRune(s.quote)
					continue
				}
				if err == nil {
					_ = s.br.UnreadRune()
				}
				inQuotes = false
			case '\n':
				s.line++
				field.WriteRune(r)
			default:
				field.WriteRune(r)
			}
			continue
		}

		switch {
		case r == s.comma:
			fields = append(fields, field.String())
			field.Reset()
			atStart = true
		case r == '\r':
			if next, _, err := s.br.ReadRune(); err == nil && next != '\n' {
				_ = s.br.UnreadRune()
			}
			s.line++
			return append(fields, field.String()), start, nil
		case r == '\n':
			s.line++
			return append(fields, field.String()), start, nil
		case atStart && r == s.quote:
			inQuotes = true
			atStart = false
		case atStart && (r == ' ' || r == '\t'):
			// leading space before a possible quote
		default:
			field.WriteRune(r)
			atStart = false
		}
	}
}
