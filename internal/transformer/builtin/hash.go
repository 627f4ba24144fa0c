// Package builtin contains small, reusable row transforms.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"feedbacketl/internal/feedback"
)

// Separator is the ASCII Unit Separator placed between components.
const Separator = "\x1f"

// RowHash returns a deterministic SHA-256 key over every canonical column.
//
// It is the identity of a row for cross-file de-duplication and for
// idempotent loads into storage (the row_hash column). Each component is
// "name=value", components are joined by Separator in canonical order, and
// the result is lowercase hex (length 64). Two rows share a key only when all
// fields are identical.
func RowHash(rec feedback.Record) string {
	var b strings.Builder
	b.Grow(feedback.NumColumns * 24)

	for i, c := range feedback.Columns {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(rec[i])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
