// Package schema defines the declared column model for an ingestion run.
//
// A Schema is fixed before reading begins and is invariant across all batches
// of one run: every row the reader produces is aligned to the schema's column
// order, and every cell is coerced to the column's declared type. Columns that
// the source does not carry, or source columns the schema does not declare
// order differently, are configuration errors surfaced when the reader opens
// the source, not per-row errors.
package schema

import (
	"fmt"
	"strings"
)

// Type is the declared logical type of a column. The set is intentionally
// small; backend DDL packages map these onto dialect-specific SQL types.
type Type string

const (
	// TypeInteger is a nullable 64-bit signed integer.
	TypeInteger Type = "integer"
	// TypeFloat is a 64-bit floating point number.
	TypeFloat Type = "float"
	// TypeText is free-form text.
	TypeText Type = "text"
	// TypeTimestamp is a point in time, parsed from the dataset's layouts.
	TypeTimestamp Type = "timestamp"
)

// ParseType normalizes a loosely-specified type name into a Type.
// Recognized spellings:
//
//	"int"/"integer"/"bigint"          -> TypeInteger
//	"float"/"real"/"double"           -> TypeFloat
//	"text"/"string"/"varchar"         -> TypeText
//	"timestamp"/"datetime"/"date"     -> TypeTimestamp
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer", "bigint":
		return TypeInteger, nil
	case "float", "real", "double":
		return TypeFloat, nil
	case "text", "string", "varchar":
		return TypeText, nil
	case "timestamp", "datetime", "date":
		return TypeTimestamp, nil
	default:
		return "", fmt.Errorf("schema: unknown column type %q", s)
	}
}

// Column is one declared column: a name as it appears in the source resource
// and a logical type.
type Column struct {
	Name string
	Type Type
}

// Schema is the ordered, declared column set for one ingestion run.
type Schema struct {
	Columns []Column
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the declared column with the given name. Matching is
// case-insensitive so that CSV headers and parquet field names, which differ
// only in capitalization, resolve to the same declaration.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// TimestampColumns returns the names of all columns declared TypeTimestamp.
func (s Schema) TimestampColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Type == TypeTimestamp {
			out = append(out, c.Name)
		}
	}
	return out
}

// Validate checks the schema for structural problems: it must be non-empty,
// names must be non-blank and unique (case-insensitively), and every type must
// be one of the declared Type constants.
func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema: at least one column is required")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("schema: column %d has an empty name", i)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("schema: duplicate column name %q", c.Name)
		}
		seen[key] = struct{}{}
		switch c.Type {
		case TypeInteger, TypeFloat, TypeText, TypeTimestamp:
		default:
			return fmt.Errorf("schema: column %q has unknown type %q", c.Name, c.Type)
		}
	}
	return nil
}
