// Package header maps raw, possibly corrupted CSV header names onto the
// canonical feedback schema.
//
// Matching is an ordered list of rules evaluated top to bottom against the
// cleaned header name. A Rewrite rule edits the name and evaluation continues;
// the first Map, Keep or Drop rule that matches decides the outcome. A name no
// rule decides is dropped.
package header

import (
	"regexp"
	"strings"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/sanitize"
)

// Action is what a matching rule does with a header name.
type Action int

const (
	// Drop removes the column from the canonical output.
	Drop Action = iota
	// Map resolves the column to Rule.Target.
	Map
	// Keep resolves the column to its own (already canonical) name.
	Keep
	// Rewrite replaces matches of Rule.Pattern with Rule.Target and continues.
	Rewrite
)

func (a Action) String() string {
	switch a {
	case Drop:
		return "drop"
	case Map:
		return "map"
	case Keep:
		return "keep"
	case Rewrite:
		return "rewrite"
	default:
		return "unknown"
	}
}

// Rule is one (pattern, action) entry.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Action  Action
	Target  string
	// Unless skips a Rewrite when the name already contains this text.
	Unless string
}

var canonicalPattern = func() *regexp.Regexp {
	quoted := make([]string, len(feedback.Columns))
	for i, c := range feedback.Columns {
		quoted[i] = regexp.QuoteMeta(c)
	}
	return regexp.MustCompile(`^(?:` + strings.Join(quoted, "|") + `)$`)
}()

// Rules is the default evaluation order.
var Rules = []Rule{
	{Name: "opcion_suffix", Pattern: regexp.MustCompile(`_opcion$`), Action: Drop},
	{Name: "alias_diseno", Pattern: regexp.MustCompile(`^satisfaccion_diseno$`), Action: Map, Target: feedback.SatisfaccionDiseno},
	{Name: "alias_profesion", Pattern: regexp.MustCompile(`^profesion$`), Action: Map, Target: feedback.ProfesionProfesional},
	{Name: "alias_cedula", Pattern: regexp.MustCompile(`^cedula$`), Action: Map, Target: feedback.CedulaProfesional},
	{Name: "fix_diseno", Pattern: regexp.MustCompile(`diseno`), Action: Rewrite, Target: "diseño", Unless: "diseño"},
	{Name: "canonical", Pattern: canonicalPattern, Action: Keep},
	{Name: "corrupted_diseno", Pattern: regexp.MustCompile(`^satisfaccion_dise\p{L}{0,2}o$`), Action: Map, Target: feedback.SatisfaccionDiseno},
}

var markStripper = strings.NewReplacer("\ufeff", "", "\ufffd", "")

// Clean normalizes a raw header cell for matching: trims, strips byte-order
// mark and replacement characters, repairs mojibake and lowercases.
func Clean(h string) string {
	h = strings.TrimSpace(h)
	h = markStripper.Replace(h)
	h = sanitize.FixMojibake(h)
	return strings.ToLower(strings.TrimSpace(h))
}

// Decision is the outcome of resolving one header.
type Decision struct {
	Raw       string
	Cleaned   string
	Canonical string // empty when dropped
	Rule      string // deciding rule, empty when no rule matched
	Rewrites  []string
}

// Dropped reports whether the column is excluded from the canonical output.
func (d Decision) Dropped() bool { return d.Canonical == "" }

// Resolve runs rules against one raw header.
func Resolve(raw string, rules []Rule) Decision {
	d := Decision{Raw: raw, Cleaned: Clean(raw)}
	name := d.Cleaned

	for _, r := range rules {
		if !r.Pattern.MatchString(name) {
			continue
		}
		switch r.Action {
		case Rewrite:
			if r.Unless != "" && strings.Contains(name, r.Unless) {
				continue
			}
			name = r.Pattern.ReplaceAllLiteralString(name, r.Target)
			d.Rewrites = append(d.Rewrites, r.Name)
		case Drop:
			d.Rule = r.Name
			return d
		case Map:
			d.Rule = r.Name
			d.Canonical = r.Target
			return d
		case Keep:
			d.Rule = r.Name
			d.Canonical = name
			return d
		}
	}
	return d
}
