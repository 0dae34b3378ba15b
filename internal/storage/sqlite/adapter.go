// Package sqlite wires the SQLite backend into the storage factory.
// Registration happens in init; callers go through storage.New.
package sqlite

import (
	"context"
	"fmt"

	"tripingest/internal/schema"
	"tripingest/internal/storage"
	"tripingest/internal/storage/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *sqlite.Repository to the storage.Repository interface,
// adding a Close method that calls the cleanup function returned by
// NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies the interface at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// MapType maps a declared column type onto SQLite column types. Timestamps
// are stored as TEXT in the dataset layout; SQLite has no native timestamp
// storage class.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("sqlite",
		func(ctx context.Context, repo storage.Repository, table string, sc schema.Schema) error {
			def := ddl.FromSchema(table, sc, MapType)
			create, err := ddl.BuildCreateTableSQL(def, quoteIdent)
			if err != nil {
				return fmt.Errorf("render DDL: %w", err)
			}
			if err := repo.Exec(ctx, ddl.BuildDropTableSQL(def, quoteIdent)); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
			if err := repo.Exec(ctx, create); err != nil {
				return fmt.Errorf("create table: %w", err)
			}
			return nil
		})
}
