// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render the DROP/CREATE statement pair that destructively replaces a
// destination table.
//
// The package stays generic: identifier quoting and type mapping are supplied
// by the backend, because the three dialects disagree on both. Backends adapt
// a declared schema.Schema into a TableDef with their own type mapper, then
// render SQL through these helpers.
package ddl

import (
	"fmt"
	"strings"

	"tripingest/internal/schema"
)

// ColumnDef describes a single column of a table definition.
type ColumnDef struct {
	// Name is the logical column name; quoting happens at render time.
	Name string
	// SQLType is the dialect-mapped SQL type (e.g. TEXT, BIGINT, TIMESTAMP).
	SQLType string
}

// TableDef holds the destination table name (optionally dot-qualified) and an
// ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromSchema adapts a declared schema into a TableDef using the backend's
// type mapper. Column order is preserved.
func FromSchema(table string, sc schema.Schema, mapType func(schema.Type) string) TableDef {
	cols := make([]ColumnDef, len(sc.Columns))
	for i, c := range sc.Columns {
		cols[i] = ColumnDef{Name: c.Name, SQLType: mapType(c.Type)}
	}
	return TableDef{FQN: table, Columns: cols}
}

// QuoteFn quotes a single identifier segment for a dialect.
type QuoteFn func(string) string

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
// Every identifier (including each dot-separated segment of the FQN) is
// passed through quote. All columns are nullable: the source model treats an
// empty cell as NULL in any column.
func BuildCreateTableSQL(t TableDef, quote QuoteFn) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		cols = append(cols, quote(name)+" "+typ)
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		QuoteFQN(t.FQN, quote),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL renders the DROP TABLE IF EXISTS statement that precedes
// the CREATE in a destructive replace.
func BuildDropTableSQL(t TableDef, quote QuoteFn) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", QuoteFQN(t.FQN, quote))
}

// QuoteFQN quotes a possibly dot-qualified name like "public.trips" segment
// by segment.
func QuoteFQN(fqn string, quote QuoteFn) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}
