// This adapter wires the Postgres backend into the storage-agnostic factory
// by registering a constructor and a DDL replacer at init time. The CLI and
// the pipeline obtain a Repository via storage.New(...) without importing
// this package directly.
package postgres

import (
	"context"
	"fmt"

	"tripingest/internal/schema"
	"tripingest/internal/storage"
	"tripingest/internal/storage/ddl"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// MapType maps a declared column type onto the Postgres SQL type used in
// generated DDL.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE PRECISION"
	case schema.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	// Destructive replace: drop the table if present, then create it to match
	// the declared schema. Identifiers are quoted so mixed-case TLC column
	// names ("VendorID") survive and line up with the quoted COPY targets.
	storage.RegisterDDL("postgres",
		func(ctx context.Context, repo storage.Repository, table string, sc schema.Schema) error {
			def := ddl.FromSchema(table, sc, MapType)
			create, err := ddl.BuildCreateTableSQL(def, pgIdent)
			if err != nil {
				return fmt.Errorf("render DDL: %w", err)
			}
			if err := repo.Exec(ctx, ddl.BuildDropTableSQL(def, pgIdent)); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
			if err := repo.Exec(ctx, create); err != nil {
				return fmt.Errorf("create table: %w", err)
			}
			return nil
		})
}
