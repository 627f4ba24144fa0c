// Package sanitize strips characters that break naive delimited-text parsing
// and repairs the double-encoding defects seen in exported survey files.
//
// Every writer in this module goes through Cell (directly or via Record), so
// the set of hazardous characters is defined in exactly one place.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"feedbacketl/internal/feedback"
)

// Free-text length guard.
const (
	MaxFreeText = 500
	Ellipsis    = "..."
)

// Hazardous lists every character replaced by a space in Cell.
const Hazardous = ",\"';\n\r\t|\\"

var hazardReplacer = strings.NewReplacer(
	",", " ",
	`"`, " ",
	"'", " ",
	";", " ",
	"\n", " ",
	"\r", " ",
	"\t", " ",
	"|", " ",
	`\`, " ",
)

// Cell replaces hazardous characters with a space, then collapses whitespace
// runs to a single space and trims the ends.
//
// Replacement happens before collapsing so adjacent replaced characters merge
// into one separator.
func Cell(s string) string {
	if s == "" {
		return s
	}
	s = hazardReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// IsSafe reports whether s contains no hazardous character.
func IsSafe(s string) bool {
	return !strings.ContainsAny(s, Hazardous)
}

// Truncate cuts s to MaxFreeText runes, the last three being Ellipsis, when it
// is longer than MaxFreeText runes.
func Truncate(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= MaxFreeText {
		return s, false
	}
	keep := MaxFreeText - utf8.RuneCountInString(Ellipsis)
	n := 0
	for i := range s {
		if n == keep {
			return s[:i] + Ellipsis, true
		}
		n++
	}
	return s, false
}

// Record sanitizes every cell and applies the length guard to free-text
// columns. truncated lists the canonical names of the cut fields.
func Record(in feedback.Record) (out feedback.Record, truncated []string) {
	for i, v := range in {
		v = Cell(FixMojibake(v))
		if feedback.IsFreeText(i) {
			var cut bool
			if v, cut = Truncate(v); cut {
				truncated = append(truncated, feedback.Columns[i])
			}
		}
		out[i] = v
	}
	return out, truncated
}
