// Package probe samples the first bytes of a trip-data file and infers a
// column schema from them. It prefers HTTP Range requests but also
// defensively limits reads client-side, so it works even when Range is
// ignored. Gzip-compressed samples are decompressed as far as the truncated
// stream allows.
//
// The output is advisory: it suggests the schema declaration for a dataset
// that is not built in, or checks a published file against the declared
// schema before a full ingestion run.
package probe

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tripingest/internal/datasource/file"
	"tripingest/internal/datasource/httpds"
	"tripingest/internal/schema"
)

// Options control sampling behavior.
type Options struct {
	// URL to fetch. file:// URLs read from the local filesystem.
	URL string

	// MaxBytes to sample from the start of the file. Defaults to 64 KiB.
	MaxBytes int

	// AllowInsecureTLS, when true, skips TLS certificate verification
	// (useful for self-signed / internal endpoints).
	AllowInsecureTLS bool
}

// Report is the inferred shape of a sampled file.
type Report struct {
	// Headers holds the original header row (not normalized).
	Headers []string

	// Normalized holds SQL-safe column names aligned with Headers.
	Normalized []string

	// Types holds one inferred type per column.
	Types []schema.Type

	// Rows is the number of complete data rows the inference saw.
	Rows int
}

// Schema assembles the report into a schema declaration using the
// normalized column names.
func (r Report) Schema() schema.Schema {
	cols := make([]schema.Column, len(r.Normalized))
	for i, name := range r.Normalized {
		cols[i] = schema.Column{Name: name, Type: r.Types[i]}
	}
	return schema.Schema{Columns: cols}
}

// RenderCSV returns one "header,normalized,type" line per column.
func (r Report) RenderCSV() []byte {
	var buf bytes.Buffer
	for i, h := range r.Headers {
		fmt.Fprintf(&buf, "%s,%s,%s\n", h, r.Normalized[i], r.Types[i])
	}
	return buf.Bytes()
}

// httpPeekFn is a small overridable seam that the probe package uses to
// fetch the first N bytes from a URL. In production it is backed by the
// httpds.Client for HTTP/HTTPS URLs, and file.NewLocal for file:// URLs.
// Tests can replace it to avoid real I/O.
var httpPeekFn = func(ctx context.Context, url string, n int, insecure bool) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("peek: n must be > 0")
	}

	if strings.HasPrefix(url, "file://") {
		path := strings.TrimPrefix(url, "file://")

		src := file.NewLocal(path)
		rc, err := src.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		lr := &io.LimitedReader{R: rc, N: int64(n)}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, lr); err != nil && err != io.EOF {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	client := httpds.NewClient(httpds.Config{
		InsecureSkipVerify: insecure,
	})
	return client.FetchFirstBytes(ctx, url, n)
}

// Probe samples the file at opt.URL and infers its column schema.
func Probe(ctx context.Context, opt Options) (Report, error) {
	if opt.MaxBytes <= 0 {
		opt.MaxBytes = 64 * 1024
	}

	data, err := httpPeekFn(ctx, opt.URL, opt.MaxBytes, opt.AllowInsecureTLS)
	if err != nil {
		return Report{}, fmt.Errorf("fetch sample: %w", err)
	}

	data = gunzipSample(data)

	// Cut to last newline boundary to avoid a partial record at the end.
	if i := bytes.LastIndexByte(data, '\n'); i > 0 {
		data = data[:i+1]
	}

	headers, rows, err := readCSVSample(data)
	if err != nil {
		return Report{}, err
	}
	if len(headers) == 0 {
		return Report{}, fmt.Errorf("sample from %s contains no header row", opt.URL)
	}

	types := inferTypes(headers, rows)
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = schema.TruncateIdent(schema.NormalizeIdent(h))
	}

	return Report{
		Headers:    headers,
		Normalized: normalized,
		Types:      types,
		Rows:       len(rows),
	}, nil
}

// gunzipSample decompresses the sample when it carries the gzip magic bytes.
// A truncated stream is expected (we only fetched a prefix), so whatever
// decompressed cleanly is kept and the trailing error ignored.
func gunzipSample(data []byte) []byte {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(zr) // best-effort: the stream is cut mid-block
	if buf.Len() == 0 {
		return data
	}
	return buf.Bytes()
}

// readCSVSample parses CSV data and returns headers and complete data rows.
// It is tolerant of trimmed samples and malformed lines: records that fail to
// parse or whose field count differs from the header are skipped so type
// inference stays accurate.
func readCSVSample(data []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1 // allow variable fields; width is enforced below

	// Read header: skip malformed/empty lines until a usable one or EOF.
	var headers []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return []string{}, [][]string{}, nil
		}
		if err != nil || len(rec) == 0 {
			continue
		}
		headers = stripUTF8BOM(rec)
		break
	}

	rows := make([][]string, 0, 1024)
	want := len(headers)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) != want {
			continue // skip malformed or misaligned row
		}
		row := make([]string, want)
		copy(row, rec)
		rows = append(rows, row)
	}

	return headers, rows, nil
}

// stripUTF8BOM removes a UTF-8 BOM from the first header field if present.
func stripUTF8BOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	return headers
}

// inferTypes returns one inferred type per header based on the sampled rows.
func inferTypes(headers []string, rows [][]string) []schema.Type {
	n := len(headers)
	cols := make([][]string, n)
	for _, row := range rows {
		for i := 0; i < n && i < len(row); i++ {
			cols[i] = append(cols[i], row[i])
		}
	}
	types := make([]schema.Type, n)
	for i := 0; i < n; i++ {
		types[i] = inferTypeForColumn(cols[i])
	}
	return types
}

// inferTypeForColumn guesses the narrowest type every non-empty sample value
// satisfies. Columns with no non-empty samples default to text.
func inferTypeForColumn(values []string) schema.Type {
	nonEmpty := nonEmptyTrimmed(values)
	if len(nonEmpty) == 0 {
		return schema.TypeText
	}
	if allMatch(nonEmpty, isInt) {
		return schema.TypeInteger
	}
	if allMatch(nonEmpty, isFloat) {
		return schema.TypeFloat
	}
	if allMatch(nonEmpty, isTimestamp) {
		return schema.TypeTimestamp
	}
	return schema.TypeText
}

// nonEmptyTrimmed returns the non-empty, trimmed values.
func nonEmptyTrimmed(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// allMatch reports whether every value satisfies fn.
func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// isInt requires a signed base-10 integer that fits in int64.
func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// isFloat accepts decimal or scientific notation floats.
// If s parses as int, we treat it as NOT float (to keep ints as integer).
func isFloat(s string) bool {
	if isInt(s) {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// probeLayouts are the layouts a value must match to infer timestamp. They
// mirror the layouts the reader coerces with, so an inferred schema round-
// trips through ingestion.
var probeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func isTimestamp(s string) bool {
	st := strings.TrimSpace(s)
	for _, layout := range probeLayouts {
		if _, err := time.Parse(layout, st); err == nil {
			return true
		}
	}
	return false
}
