package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newRepo(tb testing.TB) *Repository {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "trips.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, Table: "trips"})
	if err != nil {
		tb.Fatalf("NewRepository: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func mustExec(tb testing.TB, r *Repository, sqlStmt string) {
	tb.Helper()
	if err := r.Exec(context.Background(), sqlStmt); err != nil {
		tb.Fatalf("exec %q: %v", sqlStmt, err)
	}
}

// TestNewRepository_EmptyDSN verifies opening without a DSN fails fast.
func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{Table: "trips"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

// TestCopyFrom checks rows land in the configured table inside one
// transaction and the returned count matches.
func TestCopyFrom(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	mustExec(t, r, `CREATE TABLE "trips" (id INTEGER, note TEXT)`)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := r.CopyFrom(ctx, []string{"id", "note"}, rows)
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != int64(len(rows)) {
		t.Fatalf("CopyFrom returned %d, want %d", n, len(rows))
	}

	var count int
	if err := r.DB().QueryRow(`SELECT COUNT(*) FROM "trips"`).Scan(&count); err != nil {
		t.Fatalf("verify count: %v", err)
	}
	if count != len(rows) {
		t.Fatalf("row count = %d, want %d", count, len(rows))
	}
}

// TestCopyFrom_RowWidthMismatch ensures a short row rolls back the whole
// batch: nothing from it may remain.
func TestCopyFrom_RowWidthMismatch(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	mustExec(t, r, `CREATE TABLE "trips" (id INTEGER, note TEXT)`)

	rows := [][]any{{1, "x"}, {2}}
	if _, err := r.CopyFrom(ctx, []string{"id", "note"}, rows); err == nil {
		t.Fatal("expected error for mismatched row width")
	}

	var count int
	if err := r.DB().QueryRow(`SELECT COUNT(*) FROM "trips"`).Scan(&count); err != nil {
		t.Fatalf("verify count: %v", err)
	}
	if count != 0 {
		t.Fatalf("row count after rollback = %d, want 0", count)
	}
}

// TestCopyFrom_EmptyInput short-circuits without touching the database.
func TestCopyFrom_EmptyInput(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	n, err := r.CopyFrom(context.Background(), []string{"id"}, nil)
	if err != nil {
		t.Fatalf("CopyFrom empty: %v", err)
	}
	if n != 0 {
		t.Fatalf("CopyFrom empty returned %d, want 0", n)
	}
	if _, err := r.CopyFrom(context.Background(), nil, [][]any{{1}}); err == nil {
		t.Fatal("expected error for empty columns")
	}
}

// TestCopyFrom_TimestampFormatting verifies time.Time values are stored in
// the dataset layout so text reads compare equal.
func TestCopyFrom_TimestampFormatting(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	mustExec(t, r, `CREATE TABLE "trips" (pickup_ts TEXT)`)

	ts := time.Date(2021, 1, 15, 8, 30, 0, 0, time.UTC)
	if _, err := r.CopyFrom(ctx, []string{"pickup_ts"}, [][]any{{ts}}); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}

	var got string
	if err := r.DB().QueryRow(`SELECT pickup_ts FROM "trips"`).Scan(&got); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got != "2021-01-15 08:30:00" {
		t.Fatalf("stored timestamp = %q, want 2021-01-15 08:30:00", got)
	}
}

// TestCopyFrom_NilCells ensures nil cells store as SQL NULL.
func TestCopyFrom_NilCells(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	mustExec(t, r, `CREATE TABLE "trips" (id INTEGER, note TEXT)`)

	if _, err := r.CopyFrom(ctx, []string{"id", "note"}, [][]any{{1, nil}}); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	var nulls int
	if err := r.DB().QueryRow(`SELECT COUNT(*) FROM "trips" WHERE note IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("verify NULL: %v", err)
	}
	if nulls != 1 {
		t.Fatalf("NULL note rows = %d, want 1", nulls)
	}
}

// TestExec_Blank checks blank statements are a no-op, not an error.
func TestExec_Blank(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	if err := r.Exec(context.Background(), "  \n"); err != nil {
		t.Fatalf("blank Exec: %v", err)
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	if got := quoteIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("quoteIdent = %q", got)
	}
	if got := quoteIdent("trips"); got != `"trips"` {
		t.Fatalf("quoteIdent = %q", got)
	}
}

// BenchmarkCopyFrom measures the transaction + prepared statement path.
func BenchmarkCopyFrom(b *testing.B) {
	r := newRepo(b)
	ctx := context.Background()
	mustExec(b, r, `CREATE TABLE "trips" (id INTEGER, note TEXT)`)

	const batch = 256
	rows := make([][]any, batch)
	for i := 0; i < batch; i++ {
		rows[i] = []any{i, fmt.Sprintf("note_%d", i%16)}
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := r.CopyFrom(ctx, []string{"id", "note"}, rows); err != nil {
			b.Fatal(err)
		}
	}
}
