package builtin

import (
	"testing"

	"feedbacketl/internal/feedback"
)

func sampleRecord() feedback.Record {
	var r feedback.Record
	r.Set(feedback.NombreProfesional, "Ana")
	r.Set(feedback.Utilidad, "5")
	r.Set(feedback.Comentarios, "Bien")
	r.Set(feedback.FechaEnvio, "2024-01-01")
	return r
}

func TestRowHash_Deterministic(t *testing.T) {
	a := RowHash(sampleRecord())
	b := RowHash(sampleRecord())
	if a != b {
		t.Fatalf("RowHash not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d (%q)", len(a), a)
	}
}

func TestRowHash_ChangesWhenAnyFieldChanges(t *testing.T) {
	base := RowHash(sampleRecord())
	for i := range feedback.Columns {
		r := sampleRecord()
		r[i] += "x"
		if RowHash(r) == base {
			t.Fatalf("changing %s did not change the hash", feedback.Columns[i])
		}
	}
}

func TestRowHash_ShiftedValuesDiffer(t *testing.T) {
	// "a" + "" and "" + "a" in adjacent columns must not collide.
	var r1, r2 feedback.Record
	r1[0], r1[1] = "a", ""
	r2[0], r2[1] = "", "a"
	if RowHash(r1) == RowHash(r2) {
		t.Fatalf("shifted values produced the same hash")
	}
}

func TestRowHash_EdgeSpaceIsSignificant(t *testing.T) {
	r := sampleRecord()
	r.Set(feedback.NombreProfesional, " Ana")
	if RowHash(r) == RowHash(sampleRecord()) {
		t.Fatalf("leading space should change the hash")
	}
}

func BenchmarkRowHash(b *testing.B) {
	r := sampleRecord()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = RowHash(r)
	}
}
