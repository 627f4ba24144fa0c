package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/storage"
)

type fakeResult int64

func (f fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (f fakeResult) RowsAffected() (int64, error) { return int64(f), nil }

type fakeDB struct {
	queries []string
	nargs   []int
	err     error
}

func (f *fakeDB) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, q)
	f.nargs = append(f.nargs, len(args))
	if f.err != nil {
		return nil, f.err
	}
	return fakeResult(len(args) / (storage.NumMeta + feedback.NumColumns)), nil
}

func (f *fakeDB) Close() error { return nil }

func TestMssqlTableIdent(t *testing.T) {
	tests := map[string]string{
		"feedback":     "[feedback]",
		"dbo.feedback": "[dbo].[feedback]",
		"we]ird":       "[we]]ird]",
	}
	for in, want := range tests {
		if got := mssqlTableIdent(in); got != want {
			t.Errorf("mssqlTableIdent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	q := buildCreateTableSQL("dbo.feedback")
	for _, want := range []string{
		"IF OBJECT_ID(N'dbo.feedback', N'U') IS NULL",
		"[row_hash] NVARCHAR(64) NOT NULL PRIMARY KEY",
		"[satisfaccion_diseño] NVARCHAR(255)",
		"[comentarios] NVARCHAR(600)",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("DDL missing %q:\n%s", want, q)
		}
	}
}

func TestBuildInsertNotExistsSQL(t *testing.T) {
	q, args := buildInsertNotExistsSQL("feedback", []string{"row_hash", "x"}, [][]any{{"h1", 1}, {"h2", 2}})
	want := "INSERT INTO [feedback] ([row_hash], [x]) SELECT v.[row_hash], v.[x] FROM (VALUES (@p1, @p2), (@p3, @p4)) AS v([row_hash], [x]) WHERE NOT EXISTS (SELECT 1 FROM [feedback] t WHERE t.[row_hash] = v.[row_hash])"
	if q != want {
		t.Fatalf("sql =\n%s\nwant\n%s", q, want)
	}
	if len(args) != 4 || args[2] != "h2" {
		t.Fatalf("args = %v", args)
	}
}

func TestInsertRows_ChunksUnderParamLimit(t *testing.T) {
	db := &fakeDB{}
	r := &Repo{db: db, table: "feedback", now: time.Now}

	recs := make([]feedback.Record, 400)
	for i := range recs {
		recs[i].Set(feedback.NombreProfesional, "P"+strings.Repeat("x", i))
	}
	n, err := r.InsertRows(context.Background(), "run", recs)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 400 {
		t.Fatalf("n = %d", n)
	}
	if len(db.queries) < 2 {
		t.Fatalf("expected several statements, got %d", len(db.queries))
	}
	for _, na := range db.nargs {
		if na > 2100 {
			t.Fatalf("statement with %d params", na)
		}
	}
}

func TestInsertRows_DedupesWithinBatch(t *testing.T) {
	db := &fakeDB{}
	r := &Repo{db: db, table: "feedback", now: time.Now}

	var a feedback.Record
	a.Set(feedback.NombreProfesional, "Ana")
	if _, err := r.InsertRows(context.Background(), "run", []feedback.Record{a, a, a}); err != nil {
		t.Fatal(err)
	}
	if db.nargs[0] != storage.NumMeta+feedback.NumColumns {
		t.Fatalf("args = %d, want one row", db.nargs[0])
	}
}

func TestInsertRows_Error(t *testing.T) {
	boom := errors.New("boom")
	r := &Repo{db: &fakeDB{err: boom}, table: "feedback", now: time.Now}
	var a feedback.Record
	if _, err := r.InsertRows(context.Background(), "run", []feedback.Record{a}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
