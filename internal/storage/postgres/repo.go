package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/storage"
)

// Postgres caps bind parameters at 65535 per statement.
const maxParams = 65000

func init() {
	storage.Register("postgres", New)
}

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
}

// New creates a pool and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, storage.ErrNoTable
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool, table: cfg.Table, now: time.Now}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (when qualified) and the table.
func (r *Repo) EnsureTable(ctx context.Context) error {
	schemaSQL, tableSQL := buildCreateSQL(r.table)
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", r.table, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// InsertRows loads all chunks in one transaction. ON CONFLICT (row_hash) DO
// NOTHING makes reloading the same unified file a no-op.
func (r *Repo) InsertRows(ctx context.Context, runID string, recs []feedback.Record) (int64, error) {
	rows := storage.BuildRows(runID, r.now().UTC(), recs)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for _, part := range storage.Chunks(rows, maxParams) {
		q, args := buildInsertSQL(r.table, storage.Columns(), part)
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		total += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// splitQualifiedName only handles a single dot; anything else is treated as
// unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func buildCreateSQL(name string) (schemaSQL, tableSQL string) {
	if schema, _ := splitQualifiedName(name); schema != "" {
		schemaSQL = "CREATE SCHEMA IF NOT EXISTS " + pgIdent(schema) + ";"
	}

	defs := make([]string, 0, storage.NumMeta+feedback.NumColumns)
	defs = append(defs,
		pgIdent(storage.ColRowHash)+" TEXT PRIMARY KEY",
		pgIdent(storage.ColRunID)+" UUID NOT NULL",
		pgIdent(storage.ColLoadedAt)+" TIMESTAMPTZ NOT NULL",
	)
	for _, c := range feedback.Columns {
		defs = append(defs, pgIdent(c)+" TEXT NOT NULL DEFAULT ''")
	}
	tableSQL = "CREATE TABLE IF NOT EXISTS " + tableIdent(name) + " (" + strings.Join(defs, ", ") + ");"
	return schemaSQL, tableSQL
}

// buildInsertSQL is pure so placeholder numbering and the conflict clause can
// be tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

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
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(pgIdent(storage.ColRowHash))
	b.WriteString(") DO NOTHING;")
	return b.String(), args
}
