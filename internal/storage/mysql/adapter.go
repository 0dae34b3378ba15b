package mysql

import (
	"context"
	"fmt"

	"tripingest/internal/schema"
	"tripingest/internal/storage"
	"tripingest/internal/storage/ddl"
)

// newRepository allows tests to substitute the constructor.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// MapType maps a schema type to a MySQL column type.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE"
	case schema.TypeTimestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		repo, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: repo, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("mysql", func(ctx context.Context, repo storage.Repository, table string, sc schema.Schema) error {
		def := ddl.FromSchema(table, sc, MapType)
		create, err := ddl.BuildCreateTableSQL(def, quoteIdent)
		if err != nil {
			return fmt.Errorf("render DDL: %w", err)
		}
		if err := repo.Exec(ctx, ddl.BuildDropTableSQL(def, quoteIdent)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
		if err := repo.Exec(ctx, create); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		return nil
	})
}
