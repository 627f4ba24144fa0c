package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/storage"
)

// SQL Server rejects statements with more than 2100 parameters.
const maxParams = 2000

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Idempotence uses INSERT ... SELECT ... WHERE NOT EXISTS on row_hash. Unlike
// Postgres ON CONFLICT, that does not collapse duplicates inside the VALUES
// source, so rows are deduped per batch by storage.BuildRows first.
type Repo struct {
	db    dbConn
	table string
	now   func() time.Time
}

func init() {
	storage.Register("mssql", New)
}

// New opens the "sqlserver" driver and validates connectivity with
// PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, storage.ErrNoTable
	}
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw, table: cfg.Table, now: time.Now}, nil
}

func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

func (r *Repo) EnsureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, buildCreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, runID string, recs []feedback.Record) (int64, error) {
	rows := storage.BuildRows(runID, r.now().UTC(), recs)
	var total int64
	for _, part := range storage.Chunks(rows, maxParams) {
		q, args := buildInsertNotExistsSQL(r.table, storage.Columns(), part)
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// buildCreateTableSQL wraps CREATE TABLE in an OBJECT_ID guard so it can run
// on every load.
func buildCreateTableSQL(table string) string {
	defs := make([]string, 0, storage.NumMeta+feedback.NumColumns)
	defs = append(defs,
		mssqlIdent(storage.ColRowHash)+" NVARCHAR(64) NOT NULL PRIMARY KEY",
		mssqlIdent(storage.ColRunID)+" NVARCHAR(64) NOT NULL",
		mssqlIdent(storage.ColLoadedAt)+" DATETIME2 NOT NULL",
	)
	for _, c := range feedback.Columns {
		width := "NVARCHAR(255)"
		if feedback.IsFreeText(feedback.Index(c)) {
			width = "NVARCHAR(600)"
		}
		defs = append(defs, mssqlIdent(c)+" "+width+" NOT NULL DEFAULT N''")
	}
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(table, "'", "''"),
		mssqlTableIdent(table),
		strings.Join(defs, ", "),
	)
}

// buildInsertNotExistsSQL materializes the chunk as a derived table V and
// inserts only rows whose row_hash is not already present.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeIdentList(&b, "", columns)
	b.WriteString(") SELECT ")
	writeIdentList(&b, "v.", columns)
	b.WriteString(" FROM (VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(") AS v(")
	writeIdentList(&b, "", columns)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE t.")
	b.WriteString(mssqlIdent(storage.ColRowHash))
	b.WriteString(" = v.")
	b.WriteString(mssqlIdent(storage.ColRowHash))
	b.WriteString(")")

	return b.String(), args
}

func writeIdentList(b *strings.Builder, prefix string, columns []string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(mssqlIdent(c))
	}
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent quotes each part of a schema-qualified name:
//
//	"dbo.feedback" -> [dbo].[feedback]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// dbConn is the part of *sql.DB this package needs, so tests can capture
// statements without a server.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

var _ dbConn = (*sql.DB)(nil)
