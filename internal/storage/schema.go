package storage

import (
	"time"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/transformer/builtin"
)

// Metadata columns that precede the canonical feedback columns.
const (
	ColRowHash  = "row_hash"
	ColRunID    = "run_id"
	ColLoadedAt = "loaded_at"
)

// NumMeta is the number of metadata columns at the front of every row.
const NumMeta = 3

// Columns returns the full insert column list: metadata, then the canonical
// columns in order.
func Columns() []string {
	out := make([]string, 0, NumMeta+feedback.NumColumns)
	out = append(out, ColRowHash, ColRunID, ColLoadedAt)
	out = append(out, feedback.Columns[:]...)
	return out
}

// BuildRows converts records into insert rows aligned with Columns.
//
// Rows sharing a row hash are collapsed, keeping the first occurrence, so
// backends whose set-based inserts do not dedupe their own VALUES source
// never trip the unique constraint.
func BuildRows(runID string, loadedAt time.Time, recs []feedback.Record) [][]any {
	seen := make(map[string]struct{}, len(recs))
	out := make([][]any, 0, len(recs))
	for _, rec := range recs {
		h := builtin.RowHash(rec)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}

		row := make([]any, 0, NumMeta+feedback.NumColumns)
		row = append(row, h, runID, loadedAt)
		for _, v := range rec {
			row = append(row, v)
		}
		out = append(out, row)
	}
	return out
}

// Chunks splits rows so that no chunk uses more than maxParams bind
// parameters. It always yields at least one row per chunk.
func Chunks(rows [][]any, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	per := 1
	if width > 0 && maxParams > width {
		per = maxParams / width
	}
	var out [][][]any
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
