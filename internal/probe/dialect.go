package probe

import (
	"errors"
	"io"
	"regexp"
	"strings"

	csvparser "feedbacketl/internal/parser/csv"
)

// Candidates are the delimiters tried by SniffDialect, in tie-break order.
var Candidates = []rune{',', ';', '\t', '|'}

// Dialect is the delimiter/quote convention of a file.
type Dialect struct {
	Delimiter rune
	Quote     rune
	// Fields is the header width under Delimiter.
	Fields int
	// Consistency is the share of sampled rows whose width matches the
	// header (1 when the sample has no data rows).
	Consistency float64
	// Guessed is false when SniffDialect fell back to the default.
	Guessed bool
}

// DefaultDialect is comma and double quote.
func DefaultDialect() Dialect {
	return Dialect{Delimiter: ',', Quote: '"'}
}

// DelimiterName returns a printable name for the delimiter.
func (d Dialect) DelimiterName() string {
	switch d.Delimiter {
	case '\t':
		return "tab"
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '|':
		return "pipe"
	default:
		return string(d.Delimiter)
	}
}

// quotedFieldPattern matches a field wrapped in q between delimiters or line
// boundaries.
func quotedFieldPattern(q rune) *regexp.Regexp {
	qs := regexp.QuoteMeta(string(q))
	return regexp.MustCompile(`(?m)(?:^|[,;\t|]) ?` + qs + `[^` + qs + `\n]*` + qs + ` ?(?:[,;\t|]|\r?$)`)
}

var (
	doubleQuoted = quotedFieldPattern('"')
	singleQuoted = quotedFieldPattern('\'')
)

// sniffQuote prefers the double quote unless single quotes wrap more fields.
func sniffQuote(text string) rune {
	d := len(doubleQuoted.FindAllStringIndex(text, -1))
	s := len(singleQuoted.FindAllStringIndex(text, -1))
	if s > d {
		return '\''
	}
	return '"'
}

// SniffDialect guesses the delimiter and quote character of decoded text.
//
// Each candidate delimiter is tried with the detected quote. A candidate only
// qualifies when the header splits into more than one field; among those the
// highest share of rows matching the header width wins, then the wider
// header, then the earlier candidate. With no qualifying candidate the
// default (comma, double quote) is returned.
func SniffDialect(text string) Dialect {
	if strings.TrimSpace(text) == "" {
		return DefaultDialect()
	}
	quote := sniffQuote(text)

	best := DefaultDialect()
	for _, delim := range Candidates {
		fields, consistency, ok := scoreDelimiter(text, delim, quote)
		if !ok || fields < 2 {
			continue
		}
		if !best.Guessed ||
			consistency > best.Consistency ||
			(consistency == best.Consistency && fields > best.Fields) {
			best = Dialect{
				Delimiter:   delim,
				Quote:       quote,
				Fields:      fields,
				Consistency: consistency,
				Guessed:     true,
			}
		}
	}
	return best
}

func scoreDelimiter(text string, delim, quote rune) (fields int, consistency float64, ok bool) {
	ragged := 0
	rd := csvparser.NewReader(strings.NewReader(text), csvparser.Options{Comma: delim, Quote: quote}, func(_ int, err error) {
		if errors.Is(err, csvparser.ErrRaggedRow) {
			ragged++
		}
	})

	header, err := rd.Next()
	if err != nil {
		return 0, 0, false
	}
	for {
		if _, err := rd.Next(); err != nil {
			if err != io.EOF {
				return 0, 0, false
			}
			break
		}
	}

	rows := rd.Rows()
	if rows == 0 {
		return len(header), 1, true
	}
	return len(header), float64(rows-ragged) / float64(rows), true
}
