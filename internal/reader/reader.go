// Package reader turns a byte source into a lazy, restartable sequence of
// fixed-size row batches, decoding gzip-compressed delimited text or parquet
// and coercing every cell to its declared schema type.
//
// The sequence contract mirrors an exhaustible cursor: Batches returns a
// fresh single-pass *Cursor each call, and an exhausted cursor never yields
// rows again. Restarting means calling Batches again, which re-opens (and for
// remote sources re-fetches) the resource; there is no silent replay.
//
// Coercion is strict: a cell that cannot be converted to its declared type
// fails the whole run with a *CoerceError naming the line and column. There
// are no per-row skip or quarantine semantics.
package reader

import (
	"context"
	"fmt"
	"io"

	"tripingest/internal/dataset"
	"tripingest/internal/datasource"
	"tripingest/internal/schema"
)

// Batch is one ordered group of rows. Rows are aligned to the reader's schema
// column order and are not retained by the reader after being returned.
type Batch struct {
	// Index is the 0-based position of the batch in the sequence.
	Index int
	// Rows holds one []any per source row, in source order.
	Rows [][]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// rowSource produces one coerced row at a time, aligned to the schema column
// order. next returns io.EOF when the underlying resource is exhausted.
type rowSource interface {
	next(ctx context.Context) ([]any, error)
	Close() error
}

// Reader produces batch cursors over a source. It holds only configuration;
// all per-pass state lives in the Cursor, so a Reader can hand out any number
// of fresh cursors.
type Reader struct {
	src       datasource.Source
	sc        schema.Schema
	format    dataset.Format
	batchSize int
}

// New validates the configuration and returns a Reader.
func New(src datasource.Source, sc schema.Schema, format dataset.Format, batchSize int) (*Reader, error) {
	if src == nil {
		return nil, fmt.Errorf("reader: source must not be nil")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("reader: batch size must be > 0, got %d", batchSize)
	}
	switch format {
	case dataset.FormatCSV, dataset.FormatParquet:
	default:
		return nil, fmt.Errorf("reader: unsupported format %q", format)
	}
	return &Reader{src: src, sc: sc, format: format, batchSize: batchSize}, nil
}

// Columns returns the schema column names in batch row order.
func (r *Reader) Columns() []string { return r.sc.Names() }

// Schema returns the declared column schema.
func (r *Reader) Schema() schema.Schema { return r.sc }

// BatchSize returns the configured batch size.
func (r *Reader) BatchSize() int { return r.batchSize }

// Batches opens the source and returns a fresh single-pass cursor over its
// batches. Opening validates the source header against the declared schema,
// so a missing or unrecognized column fails here, before any row is decoded.
func (r *Reader) Batches(ctx context.Context) (*Cursor, error) {
	var (
		rows rowSource
		err  error
	)
	switch r.format {
	case dataset.FormatParquet:
		rows, err = openParquetRows(ctx, r.src, r.sc)
	default:
		rows, err = openCSVRows(ctx, r.src, r.sc)
	}
	if err != nil {
		return nil, err
	}
	return &Cursor{rows: rows, batchSize: r.batchSize}, nil
}

// Cursor is a single-pass iterator over batches. It is not safe for
// concurrent use and must not be reused after Next returns io.EOF or an
// error; request a new cursor from Reader.Batches instead.
type Cursor struct {
	rows      rowSource
	batchSize int
	index     int
	done      bool
	err       error
}

// Next returns the next batch in source order. The final batch may hold fewer
// rows than the batch size; after it, Next returns io.EOF on every call. Any
// decode or coercion error is terminal: the cursor closes its source and
// keeps returning the same error.
func (c *Cursor) Next(ctx context.Context) (*Batch, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, io.EOF
	}

	batch := &Batch{Index: c.index, Rows: make([][]any, 0, c.batchSize)}
	for len(batch.Rows) < c.batchSize {
		if err := ctx.Err(); err != nil {
			c.fail(err)
			return nil, err
		}
		row, err := c.rows.next(ctx)
		if err == io.EOF {
			c.done = true
			_ = c.rows.Close()
			break
		}
		if err != nil {
			c.fail(err)
			return nil, err
		}
		batch.Rows = append(batch.Rows, row)
	}

	if batch.Len() == 0 {
		return nil, io.EOF
	}
	c.index++
	return batch, nil
}

// Close releases the underlying source stream. It is safe to call Close on an
// already-exhausted or failed cursor.
func (c *Cursor) Close() error {
	if c.done || c.err != nil {
		return nil
	}
	c.done = true
	return c.rows.Close()
}

func (c *Cursor) fail(err error) {
	c.err = err
	_ = c.rows.Close()
}
