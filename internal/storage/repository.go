// Package storage contains storage-agnostic contracts for the ingestion
// pipeline: the Repository interface every backend implements, a factory
// registry keyed by storage kind, and the batched loader.
//
// Backends (Postgres, SQLite, MySQL) register their factories and DDL
// replacers at init time; callers construct repositories through New and
// never import a concrete backend directly.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tripingest/internal/schema"
)

// Repository is the narrow sink interface the pipeline writes through. The
// core depends on exactly two database operations: replacing a table to match
// a schema (issued via Exec by the registered DDL replacer) and appending
// rows (CopyFrom).
type Repository interface {
	// CopyFrom appends rows, aligned to columns order, using the backend's
	// most efficient bulk primitive. It returns the number of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec executes an arbitrary SQL statement (typically DDL).
	Exec(ctx context.Context, sql string) error

	// Close releases the underlying connection or pool.
	Close()
}

// Config carries the backend-agnostic connection settings used to open a
// Repository.
type Config struct {
	// Kind selects the registered backend ("postgres", "sqlite", "mysql").
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Table is the destination table name, optionally schema-qualified.
	Table string

	// Columns enumerates the destination columns in append order.
	Columns []string
}

// Factory constructs a Repository for one storage kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// DDLReplacer destructively replaces the destination table so its structure
// matches the declared schema: prior contents are discarded. Implementations
// issue dialect-specific DROP/CREATE statements via repo.Exec.
type DDLReplacer func(ctx context.Context, repo Repository, table string, sc schema.Schema) error

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
	replacers = map[string]DDLReplacer{}
)

// Register registers (or replaces) the factory for the given storage kind.
// It is typically called from backend packages' init() functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// RegisterDDL registers (or replaces) the DDL replacer for the given kind.
func RegisterDDL(kind string, fn DDLReplacer) {
	regMu.Lock()
	defer regMu.Unlock()
	replacers[kind] = fn
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ReplaceTable locates the DDL replacer for the kind and invokes it. Callers
// stay backend-agnostic; they pass only the table name and the declared
// schema.
func ReplaceTable(ctx context.Context, kind string, repo Repository, table string, sc schema.Schema) error {
	regMu.RLock()
	fn, ok := replacers[kind]
	regMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL replacer registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, table, sc)
}

// ListKinds returns a sorted snapshot of the registered storage kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
