// Package mysql implements a MySQL-backed storage.Repository using
// database/sql and the go-sql-driver. Like the SQLite backend, each CopyFrom
// call runs inside one transaction so a batch commits whole or not at all.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tripingest/internal/storage/ddl"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// Config holds MySQL repository configuration.
type Config struct {
	// DSN is a go-sql-driver connection string, e.g.
	// "user:pass@tcp(localhost:3306)/trips?parseTime=true".
	DSN string

	// Table is the target table name for inserts.
	Table string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a MySQL connection pool and returns a Repository plus
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts the given rows using a multi-row INSERT inside a single
// transaction. MySQL has LOAD DATA for files, but the pipeline streams rows
// from memory, so a bounded multi-row VALUES list is the practical bulk path.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	prefix := insertPrefix(r.cfg.Table, columns)
	placeholderRow := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}

	// Cap the VALUES list so the statement stays well under
	// max_allowed_packet even for wide rows.
	const maxRowsPerStmt = 1000

	var inserted int64
	for start := 0; start < len(rows); start += maxRowsPerStmt {
		end := start + maxRowsPerStmt
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				_ = tx.Rollback()
				return 0, fmt.Errorf("mysql: CopyFrom: row %d length %d != columns length %d", start+i, len(row), len(columns))
			}
			values[i] = placeholderRow
			args = append(args, row...)
		}

		stmtSQL := prefix + strings.Join(values, ", ")
		if _, err := tx.ExecContext(ctx, stmtSQL, args...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		inserted += int64(len(chunk))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return inserted, nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// insertPrefix renders the head of the multi-row INSERT. The table name is
// quoted per dot segment so a schema-qualified name targets the object the
// DDL replacer created.
func insertPrefix(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES ", ddl.QuoteFQN(table, quoteIdent), strings.Join(quoted, ", "))
}

// quoteIdent quotes a single identifier segment with backticks.
func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
