package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"feedbacketl/internal/feedback"
)

var (
	ErrNoKind          = errors.New("storage: missing kind")
	ErrUnsupportedKind = errors.New("storage: unsupported kind")
	ErrNoTable         = errors.New("storage: missing table name")
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//   - An empty Table falls back to DefaultTable.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "feedback_respuestas"

// Repository loads unified feedback rows into a database table.
//
// Each backend implements idempotence on row_hash in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS), so loading
// the same unified file twice inserts nothing the second time.
type Repository interface {
	// EnsureTable creates the target table if it does not exist.
	EnsureTable(ctx context.Context) error

	// InsertRows inserts rows tagged with runID and returns how many were
	// actually inserted.
	InsertRows(ctx context.Context, runID string, rows []feedback.Record) (int64, error)

	// Close releases backend resources. Call once.
	Close()
}

// Factory opens a backend for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
// Backends call it from init.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open constructs a Repository using the registered backend factory.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, ErrNoKind
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, cfg.Kind)
	}
	return f(ctx, cfg)
}
