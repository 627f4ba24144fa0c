package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"feedbacketl/internal/feedback"
	"feedbacketl/internal/storage"
)

// maxParams stays well under SQLITE_MAX_VARIABLE_NUMBER on older builds.
const maxParams = 999

// Repo implements storage.Repository for SQLite.
//
// SQLite has no native timestamp type, so loaded_at is stored as an
// RFC3339Nano string for reliable round-trips and easy debugging.
type Repo struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, storage.ErrNoTable
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.Table, now: time.Now}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, buildCreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// InsertRows relies on the row_hash primary key: INSERT OR IGNORE skips rows
// that are already present. All chunks run in one transaction.
func (r *Repo) InsertRows(ctx context.Context, runID string, recs []feedback.Record) (int64, error) {
	rows := storage.BuildRows(runID, r.now(), recs)
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if ts, ok := row[2].(time.Time); ok {
			row[2] = formatSQLiteTime(ts)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, part := range storage.Chunks(rows, maxParams) {
		q, args := buildInsertSQL(r.table, storage.Columns(), part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", r.table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// sqlIdent double-quotes an identifier, escaping embedded quotes.
func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateTableSQL(table string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(sqlIdent(storage.ColRowHash) + " TEXT NOT NULL PRIMARY KEY, ")
	b.WriteString(sqlIdent(storage.ColRunID) + " TEXT NOT NULL, ")
	b.WriteString(sqlIdent(storage.ColLoadedAt) + " TEXT NOT NULL")
	for _, c := range feedback.Columns {
		b.WriteString(", ")
		b.WriteString(sqlIdent(c))
		b.WriteString(" TEXT NOT NULL DEFAULT ''")
	}
	b.WriteString(")")
	return b.String()
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	row := "(" + strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
		args = append(args, r[:len(columns)]...)
	}
	return b.String(), args
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime parses loaded_at values, including the space-separated
// layouts other SQLite tools write.
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

// LoadedRuns returns the distinct run ids with their first load time, oldest
// first.
func (r *Repo) LoadedRuns(ctx context.Context) (map[string]time.Time, error) {
	q := fmt.Sprintf("SELECT %s, MIN(%s) FROM %s GROUP BY %s",
		sqlIdent(storage.ColRunID), sqlIdent(storage.ColLoadedAt), sqlIdent(r.table), sqlIdent(storage.ColRunID))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]time.Time{}
	for rows.Next() {
		var id, at string
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		ts, err := parseSQLiteTime(at)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
		out[id] = ts
	}
	return out, rows.Err()
}
