package header

import (
	"fmt"

	"feedbacketl/internal/feedback"
)

// Absent marks a canonical column with no source column.
const Absent = -1

// Mapping resolves every canonical column to a raw column index.
type Mapping struct {
	Index     [feedback.NumColumns]int
	Decisions []Decision
	// Duplicates lists raw columns that resolved to an already mapped
	// canonical column; the earlier raw column wins.
	Duplicates []Duplicate
}

// Duplicate is a raw column shadowed by an earlier one.
type Duplicate struct {
	RawIndex  int
	Raw       string
	Canonical string
	Kept      int
}

func (d Duplicate) String() string {
	return fmt.Sprintf("column %d %q also maps to %s; keeping column %d", d.RawIndex, d.Raw, d.Canonical, d.Kept)
}

// Canonicalize maps a raw header row with the default Rules.
func Canonicalize(raw []string) Mapping {
	return CanonicalizeWith(raw, Rules)
}

// CanonicalizeWith maps a raw header row with an explicit rule list.
func CanonicalizeWith(raw []string, rules []Rule) Mapping {
	var m Mapping
	for i := range m.Index {
		m.Index[i] = Absent
	}
	m.Decisions = make([]Decision, len(raw))

	for i, h := range raw {
		d := Resolve(h, rules)
		m.Decisions[i] = d
		if d.Dropped() {
			continue
		}
		ci := feedback.Index(d.Canonical)
		if ci < 0 {
			continue
		}
		if prev := m.Index[ci]; prev != Absent {
			m.Duplicates = append(m.Duplicates, Duplicate{RawIndex: i, Raw: h, Canonical: d.Canonical, Kept: prev})
			continue
		}
		m.Index[ci] = i
	}
	return m
}

// Missing returns canonical columns with no source column.
func (m Mapping) Missing() []string {
	var out []string
	for i, ix := range m.Index {
		if ix == Absent {
			out = append(out, feedback.Columns[i])
		}
	}
	return out
}

// DroppedColumns returns the raw names excluded from the output.
func (m Mapping) DroppedColumns() []string {
	var out []string
	for _, d := range m.Decisions {
		if d.Dropped() {
			out = append(out, d.Raw)
		}
	}
	return out
}

// Project builds a canonical record from one raw row. Absent columns and
// cells past the end of a short row are empty.
func (m Mapping) Project(row []string) feedback.Record {
	var rec feedback.Record
	for ci, ri := range m.Index {
		if ri == Absent || ri >= len(row) {
			continue
		}
		rec[ci] = row[ri]
	}
	return rec
}
