package reader

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	pq "github.com/xitongsys/parquet-go/reader"

	"tripingest/internal/datasource"
	"tripingest/internal/schema"
)

// parquetRows decodes a parquet resource into coerced rows. Parquet is not
// streamable without a seekable file, so the resource is fetched fully into
// memory first (the original monthly files are a few hundred MB at most);
// rows are then decoded chunk by chunk as the cursor pulls them.
type parquetRows struct {
	pr      *pq.ParquetReader
	sc      schema.Schema
	fieldIx []int // fieldIx[target] = struct field index in decoded rows
	pending []any // decoded but not yet returned source rows
	read    int64 // rows handed out so far
	total   int64
	closed  bool
}

// parquetChunk is how many source rows are decoded per ReadByNumber call.
const parquetChunk = 8192

// openParquetRows fetches the resource, opens a parquet reader over the
// buffered bytes, and resolves the declared schema columns against the
// parquet field names (case-insensitively; parquet-go capitalizes the first
// letter of each field).
func openParquetRows(ctx context.Context, src datasource.Source, sc schema.Schema) (*parquetRows, error) {
	body, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	cerr := body.Close()
	if err != nil {
		return nil, fmt.Errorf("read parquet source: %w", err)
	}
	if cerr != nil {
		return nil, cerr
	}

	pf := buffer.NewBufferFileFromBytes(data)
	pr, err := pq.NewParquetReader(pf, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}

	p := &parquetRows{pr: pr, sc: sc, total: pr.GetNumRows()}

	// Resolve schema columns to struct field indexes using a probe row. An
	// empty file cannot be probed; it trivially satisfies any schema.
	if p.total > 0 {
		probe, err := pr.ReadByNumber(1)
		if err != nil {
			pr.ReadStop()
			return nil, fmt.Errorf("read parquet row: %w", err)
		}
		if len(probe) == 0 {
			pr.ReadStop()
			return nil, fmt.Errorf("read parquet row: empty result for non-empty file")
		}
		typ := reflect.TypeOf(probe[0])
		p.fieldIx = make([]int, len(sc.Columns))
		for t, col := range sc.Columns {
			p.fieldIx[t] = -1
			for i := 0; i < typ.NumField(); i++ {
				if strings.EqualFold(typ.Field(i).Name, col.Name) {
					p.fieldIx[t] = i
					break
				}
			}
			if p.fieldIx[t] == -1 {
				pr.ReadStop()
				return nil, fmt.Errorf("parquet source is missing declared column %q", col.Name)
			}
		}
		p.pending = probe
	}

	return p, nil
}

func (p *parquetRows) next(ctx context.Context) ([]any, error) {
	if len(p.pending) == 0 {
		if p.read >= p.total {
			return nil, io.EOF
		}
		n := parquetChunk
		if rest := p.total - p.read; rest < int64(n) {
			n = int(rest)
		}
		rows, err := p.pr.ReadByNumber(n)
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if len(rows) == 0 {
			return nil, io.EOF
		}
		p.pending = rows
	}

	raw := p.pending[0]
	p.pending = p.pending[1:]
	p.read++

	v := reflect.ValueOf(raw)
	row := make([]any, len(p.sc.Columns))
	for t, fi := range p.fieldIx {
		val, err := coerceParquet(v.Field(fi).Interface(), p.sc.Columns[t], int(p.read))
		if err != nil {
			return nil, err
		}
		row[t] = val
	}
	return row, nil
}

func (p *parquetRows) Close() error {
	if !p.closed {
		p.closed = true
		p.pr.ReadStop()
	}
	return nil
}

// coerceParquet converts a decoded parquet value into the typed value for
// col. Optional parquet fields decode as typed pointers; nil pointers become
// NULL.
func coerceParquet(v any, col schema.Column, row int) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		v = rv.Elem().Interface()
	}

	switch col.Type {
	case schema.TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.TypeInteger:
		switch n := v.(type) {
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case float32:
			if float64(n) == float64(int64(n)) {
				return int64(n), nil
			}
		}
	case schema.TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case schema.TypeTimestamp:
		switch n := v.(type) {
		case time.Time:
			return n, nil
		case int64:
			return epochToTime(n), nil
		case string:
			for _, layout := range timestampLayouts {
				if t, err := time.Parse(layout, n); err == nil {
					return t, nil
				}
			}
		}
	}
	return nil, &CoerceError{Line: row, Column: col.Name, Value: fmt.Sprint(v), Type: col.Type}
}

// epochToTime interprets an int64 parquet timestamp by magnitude: the TLC
// files use TIMESTAMP(MICROS); millisecond and second encodings are accepted
// for other producers.
func epochToTime(n int64) time.Time {
	switch {
	case n >= 1e15 || n <= -1e15: // microseconds
		return time.UnixMicro(n).UTC()
	case n >= 1e12 || n <= -1e12: // milliseconds
		return time.UnixMilli(n).UTC()
	default: // seconds
		return time.Unix(n, 0).UTC()
	}
}
