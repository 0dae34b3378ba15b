package reader

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/writer"

	"tripingest/internal/dataset"
	"tripingest/internal/schema"
)

// parquetTrip is the row shape written by the test fixtures. Field names line
// up with testSchema so the reader can resolve them case-insensitively.
type parquetTrip struct {
	Id       int64   `parquet:"name=id, type=INT64"`
	Fare     float64 `parquet:"name=fare, type=DOUBLE"`
	Note     *string `parquet:"name=note, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	PickupTs int64   `parquet:"name=pickup_ts, type=INT64, convertedtype=TIMESTAMP_MICROS"`
}

// writeParquet renders rows into an in-memory parquet file.
func writeParquet(t *testing.T, rows []parquetTrip) []byte {
	t.Helper()

	bf := buffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(bf, new(parquetTrip), 1)
	if err != nil {
		t.Fatalf("NewParquetWriter: %v", err)
	}
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			t.Fatalf("parquet write: %v", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		t.Fatalf("parquet WriteStop: %v", err)
	}
	if err := bf.Close(); err != nil {
		t.Fatalf("buffer close: %v", err)
	}
	return bf.Bytes()
}

func strPtr(s string) *string { return &s }

// TestParquet_RoundTrip writes a small parquet file and reads it back through
// the batch cursor, checking types, NULL handling, and batch boundaries.
func TestParquet_RoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2021, 1, 15, 8, 30, 0, 0, time.UTC)
	rows := []parquetTrip{
		{Id: 1, Fare: 9.5, Note: strPtr("first"), PickupTs: ts.UnixMicro()},
		{Id: 2, Fare: 11.25, Note: nil, PickupTs: ts.Add(time.Hour).UnixMicro()},
		{Id: 3, Fare: 4.0, Note: strPtr("third"), PickupTs: ts.Add(2 * time.Hour).UnixMicro()},
	}
	src := &memSource{data: writeParquet(t, rows)}

	r, err := New(src, testSchema(), dataset.FormatParquet, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cur, err := r.Batches(context.Background())
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	batches := drain(t, cur)
	if len(batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(batches))
	}
	if batches[0].Len() != 2 || batches[1].Len() != 1 {
		t.Fatalf("batch sizes = %d/%d, want 2/1", batches[0].Len(), batches[1].Len())
	}

	first := batches[0].Rows[0]
	if first[0].(int64) != 1 || first[1].(float64) != 9.5 || first[2].(string) != "first" {
		t.Fatalf("row 1 = %v", first)
	}
	if got := first[3].(time.Time); !got.Equal(ts) {
		t.Fatalf("row 1 pickup_ts = %v, want %v", got, ts)
	}

	// Optional field decoded from a nil pointer becomes NULL.
	if batches[0].Rows[1][2] != nil {
		t.Fatalf("row 2 note = %v, want nil", batches[0].Rows[1][2])
	}
}

// TestParquet_MissingColumn fails at open, before any batch is produced.
func TestParquet_MissingColumn(t *testing.T) {
	t.Parallel()

	src := &memSource{data: writeParquet(t, []parquetTrip{{Id: 1}})}
	sc := schema.Schema{Columns: []schema.Column{
		{Name: "id", Type: schema.TypeInteger},
		{Name: "dropoff_ts", Type: schema.TypeTimestamp},
	}}

	r, err := New(src, sc, dataset.FormatParquet, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = r.Batches(context.Background())
	if err == nil || !strings.Contains(err.Error(), `missing declared column "dropoff_ts"`) {
		t.Fatalf("Batches = %v, want missing declared column", err)
	}
}

// TestParquet_EmptyFile yields an immediately exhausted cursor.
func TestParquet_EmptyFile(t *testing.T) {
	t.Parallel()

	src := &memSource{data: writeParquet(t, nil)}
	r, err := New(src, testSchema(), dataset.FormatParquet, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cur, err := r.Batches(context.Background())
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if _, err := cur.Next(context.Background()); err != io.EOF {
		t.Fatalf("Next = %v, want io.EOF", err)
	}
}
