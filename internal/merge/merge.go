// Package merge concatenates canonical tables and removes exact duplicate
// rows, keeping the first occurrence in place.
package merge

import (
	"feedbacketl/internal/feedback"
	"feedbacketl/internal/transformer/builtin"
)

// Merger accumulates tables in input order. The zero value is not usable;
// call New.
type Merger struct {
	seen       map[string]struct{}
	rows       []feedback.Record
	duplicates int
}

// New returns an empty Merger.
func New() *Merger {
	return &Merger{seen: make(map[string]struct{})}
}

// Add appends the rows of t that were not seen before, in row order, and
// reports how many were kept and how many were dropped as duplicates.
func (m *Merger) Add(t feedback.Table) (added, duplicates int) {
	for _, r := range t.Rows {
		k := builtin.RowHash(r)
		if _, dup := m.seen[k]; dup {
			duplicates++
			continue
		}
		m.seen[k] = struct{}{}
		m.rows = append(m.rows, r)
		added++
	}
	m.duplicates += duplicates
	return added, duplicates
}

// Table returns the unified table.
func (m *Merger) Table() feedback.Table {
	rows := make([]feedback.Record, len(m.rows))
	copy(rows, m.rows)
	return feedback.Table{Rows: rows}
}

// Duplicates returns the total number of rows dropped so far.
func (m *Merger) Duplicates() int { return m.duplicates }
