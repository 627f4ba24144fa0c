package merge

import (
	"testing"

	"feedbacketl/internal/feedback"
)

func rec(name, score string) feedback.Record {
	var r feedback.Record
	r.Set(feedback.NombreProfesional, name)
	r.Set(feedback.Utilidad, score)
	return r
}

// mergeAll runs one Merger over tables in order.
func mergeAll(tables ...feedback.Table) (feedback.Table, int) {
	m := New()
	for _, t := range tables {
		m.Add(t)
	}
	return m.Table(), m.Duplicates()
}

func TestMerger_DropsExactDuplicatesKeepingFirst(t *testing.T) {
	a := feedback.Table{Rows: []feedback.Record{rec("Ana", "5"), rec("Luis", "4"), rec("Ana", "5")}}
	b := feedback.Table{Rows: []feedback.Record{rec("Eva", "3"), rec("Luis", "4"), rec("Ana", "6")}}

	got, dups := mergeAll(a, b)

	want := []feedback.Record{rec("Ana", "5"), rec("Luis", "4"), rec("Eva", "3"), rec("Ana", "6")}
	if dups != 2 {
		t.Fatalf("duplicates=%d, want 2", dups)
	}
	if len(got.Rows) != len(want) {
		t.Fatalf("rows=%d, want %d", len(got.Rows), len(want))
	}
	for i := range want {
		if got.Rows[i] != want[i] {
			t.Fatalf("row %d=%v, want %v", i, got.Rows[i], want[i])
		}
	}
}

func TestMerger_NearDuplicatesAreKept(t *testing.T) {
	m := New()
	r1 := rec("Ana", "5")
	r2 := rec("Ana", "5")
	r2.Set(feedback.Comentarios, "Bien")

	added, dups := m.Add(feedback.Table{Rows: []feedback.Record{r1, r2}})
	if added != 2 || dups != 0 || m.Table().Len() != 2 || m.Duplicates() != 0 {
		t.Fatalf("added=%d dups=%d rows=%d total dups=%d", added, dups, m.Table().Len(), m.Duplicates())
	}
}

func TestMerger_Deterministic(t *testing.T) {
	in := []feedback.Table{
		{Rows: []feedback.Record{rec("B", "1"), rec("A", "2")}},
		{Rows: []feedback.Record{rec("A", "2"), rec("C", "3")}},
	}
	first, _ := mergeAll(in...)
	for i := 0; i < 5; i++ {
		again, _ := mergeAll(in...)
		for j := range first.Rows {
			if first.Rows[j] != again.Rows[j] {
				t.Fatalf("run %d row %d differs", i, j)
			}
		}
	}
}

func TestMerger_EmptyInputs(t *testing.T) {
	got, dups := mergeAll()
	if got.Len() != 0 || dups != 0 {
		t.Fatalf("mergeAll()=%d rows, %d dups", got.Len(), dups)
	}
	got, _ = mergeAll(feedback.Table{}, feedback.Table{})
	if got.Len() != 0 {
		t.Fatalf("empty tables produced %d rows", got.Len())
	}
}
