package reader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tripingest/internal/schema"
)

// timestampLayouts are tried in order when parsing declared timestamp
// columns. The TLC exports use the first layout; RFC3339 and bare dates keep
// hand-built fixtures and other exports working.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// CoerceError reports a cell that could not be converted to its declared
// column type. It aborts the whole run; there is no per-row quarantine.
type CoerceError struct {
	// Line is the 1-based line (CSV) or data-row ordinal (parquet) of the
	// offending row in the source resource.
	Line int
	// Column is the declared column name.
	Column string
	// Value is the raw cell content.
	Value string
	// Type is the declared column type the value failed to satisfy.
	Type schema.Type
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("row %d: column %q: cannot coerce %q to %s", e.Line, e.Column, e.Value, e.Type)
}

// coerceCell converts a raw CSV cell into the typed value for col. Empty
// cells become nil (NULL) regardless of type.
func coerceCell(raw string, col schema.Column, line int) (any, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	switch col.Type {
	case schema.TypeText:
		return raw, nil
	case schema.TypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
		// Exports round-tripped through floating point carry values like
		// "1.0" in integer columns; accept them when they are integral.
		if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
			return int64(f), nil
		}
	case schema.TypeFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
	case schema.TypeTimestamp:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
	}
	return nil, &CoerceError{Line: line, Column: col.Name, Value: raw, Type: col.Type}
}
