package reader

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"tripingest/internal/datasource"
	"tripingest/internal/schema"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// csvRows decodes (optionally gzip-compressed) delimited text into coerced
// rows aligned to the schema column order.
type csvRows struct {
	rc    io.Closer
	cr    *csv.Reader
	sc    schema.Schema
	colIx []int // colIx[target] = source column index
	width int   // field count declared by the header
	line  int   // 1-based line of the last record read
}

// openCSVRows opens the source, transparently unwraps gzip, reads the header,
// and resolves every declared schema column to a source column index. A
// declared column absent from the header is a configuration error.
func openCSVRows(ctx context.Context, src datasource.Source, sc schema.Schema) (*csvRows, error) {
	body, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}

	r, closer, err := maybeGunzip(body)
	if err != nil {
		_ = body.Close()
		return nil, fmt.Errorf("decompress source: %w", err)
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1 // width is enforced against the header below

	hdr, err := cr.Read()
	if err == io.EOF {
		_ = closer.Close()
		return nil, fmt.Errorf("read csv header: source is empty")
	}
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	names := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		names[i] = h
	}

	colIx := make([]int, len(sc.Columns))
	for t, col := range sc.Columns {
		colIx[t] = -1
		for si, name := range names {
			if strings.EqualFold(name, col.Name) {
				colIx[t] = si
				break
			}
		}
		if colIx[t] == -1 {
			_ = closer.Close()
			return nil, fmt.Errorf("source is missing declared column %q (header: %s)",
				col.Name, strings.Join(names, ","))
		}
	}

	return &csvRows{rc: closer, cr: cr, sc: sc, colIx: colIx, width: len(hdr), line: 1}, nil
}

func (c *csvRows) next(ctx context.Context) ([]any, error) {
	rec, err := c.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	c.line++
	if err != nil {
		return nil, fmt.Errorf("csv read line %d: %w", c.line, err)
	}
	if len(rec) != c.width {
		return nil, fmt.Errorf("csv line %d: field count %d does not match header width %d",
			c.line, len(rec), c.width)
	}

	row := make([]any, len(c.colIx))
	for t, si := range c.colIx {
		v, err := coerceCell(rec[si], c.sc.Columns[t], c.line)
		if err != nil {
			return nil, err
		}
		row[t] = v
	}
	return row, nil
}

func (c *csvRows) Close() error { return c.rc.Close() }

// gzipMagic is the two-byte header of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// maybeGunzip sniffs the stream and wraps it in a gzip reader when the magic
// bytes match; plain text passes through untouched. The returned closer
// closes both the gzip layer (when present) and the underlying body.
func maybeGunzip(body io.ReadCloser) (io.Reader, io.Closer, error) {
	br := bufio.NewReaderSize(body, 64*1024)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if len(head) == 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, &stackedCloser{first: zr, second: body}, nil
	}
	return br, body, nil
}

// stackedCloser closes the gzip layer before the underlying body.
type stackedCloser struct {
	first  io.Closer
	second io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.first.Close()
	if cerr := s.second.Close(); err == nil {
		err = cerr
	}
	return err
}
