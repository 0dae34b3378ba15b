package probe

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tripingest/internal/schema"
)

// withFakePeek replaces the HTTP peek seam for the duration of a test.
func withFakePeek(t *testing.T, data []byte, err error) {
	t.Helper()
	orig := httpPeekFn
	httpPeekFn = func(ctx context.Context, url string, n int, insecure bool) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		if n < len(data) {
			return data[:n], nil
		}
		return data, nil
	}
	t.Cleanup(func() { httpPeekFn = orig })
}

func TestProbe_InfersTypes(t *testing.T) {
	sample := strings.Join([]string{
		"VendorID,lpep_pickup_datetime,Trip Distance,store_and_fwd_flag",
		"1,2021-01-01 00:15:56,2.53,N",
		"2,2021-01-01 00:25:59,1.00,N",
		"1,2021-01-01 00:45:57,10.1,Y",
		"",
	}, "\n")
	withFakePeek(t, []byte(sample), nil)

	rep, err := Probe(context.Background(), Options{URL: "https://example.com/green.csv"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	wantNorm := []string{"vendorid", "lpep_pickup_datetime", "trip_distance", "store_and_fwd_flag"}
	wantTypes := []schema.Type{schema.TypeInteger, schema.TypeTimestamp, schema.TypeFloat, schema.TypeText}

	if len(rep.Normalized) != len(wantNorm) {
		t.Fatalf("Normalized = %v, want %v", rep.Normalized, wantNorm)
	}
	for i := range wantNorm {
		if rep.Normalized[i] != wantNorm[i] {
			t.Fatalf("Normalized[%d] = %q, want %q", i, rep.Normalized[i], wantNorm[i])
		}
		if rep.Types[i] != wantTypes[i] {
			t.Fatalf("Types[%d] = %s, want %s", i, rep.Types[i], wantTypes[i])
		}
	}
	if rep.Rows != 3 {
		t.Fatalf("Rows = %d, want 3", rep.Rows)
	}
}

func TestProbe_GzipSample(t *testing.T) {
	var plain bytes.Buffer
	plain.WriteString("id,amount\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&plain, "%d,%d.25\n", i, i)
	}

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(plain.Bytes()); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	withFakePeek(t, gz.Bytes(), nil)

	rep, err := Probe(context.Background(), Options{URL: "https://example.com/data.csv.gz"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(rep.Headers) != 2 || rep.Headers[0] != "id" {
		t.Fatalf("Headers = %v, want [id amount]", rep.Headers)
	}
	if rep.Types[0] != schema.TypeInteger || rep.Types[1] != schema.TypeFloat {
		t.Fatalf("Types = %v, want [integer float]", rep.Types)
	}
}

// A gzip stream cut mid-block must still yield the rows that decompressed
// cleanly before the cut.
func TestProbe_TruncatedGzipSample(t *testing.T) {
	var plain bytes.Buffer
	plain.WriteString("id,name\n")
	for i := 0; i < 5000; i++ {
		fmt.Fprintf(&plain, "%d,row%d\n", i, i)
	}

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(plain.Bytes()); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	cut := gz.Bytes()[:gz.Len()/2]
	withFakePeek(t, cut, nil)

	rep, err := Probe(context.Background(), Options{URL: "https://example.com/data.csv.gz"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if rep.Rows == 0 {
		t.Fatal("Rows = 0, want partial rows from the truncated stream")
	}
}

func TestProbe_BOMAndMalformedRows(t *testing.T) {
	sample := "\uFEFFid,name\n" +
		"1,a\n" +
		"2,b,extra-field\n" + // misaligned: skipped
		"3,c\n"
	withFakePeek(t, []byte(sample), nil)

	rep, err := Probe(context.Background(), Options{URL: "https://example.com/x.csv"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if rep.Headers[0] != "id" {
		t.Fatalf("Headers[0] = %q, want id (BOM stripped)", rep.Headers[0])
	}
	if rep.Rows != 2 {
		t.Fatalf("Rows = %d, want 2 (misaligned row skipped)", rep.Rows)
	}
}

func TestProbe_FileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.csv")
	body := "LocationID,Borough,Zone\n1,EWR,Newark Airport\n2,Queens,Jamaica Bay\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	rep, err := Probe(context.Background(), Options{URL: "file://" + path})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if rep.Normalized[0] != "locationid" {
		t.Fatalf("Normalized[0] = %q, want locationid", rep.Normalized[0])
	}
	if rep.Types[0] != schema.TypeInteger {
		t.Fatalf("Types[0] = %s, want integer", rep.Types[0])
	}
}

func TestProbe_EmptySample(t *testing.T) {
	withFakePeek(t, nil, nil)

	if _, err := Probe(context.Background(), Options{URL: "https://example.com/empty.csv"}); err == nil {
		t.Fatal("Probe() error = nil, want error for empty sample")
	}
}

func TestReport_SchemaAndRenderCSV(t *testing.T) {
	rep := Report{
		Headers:    []string{"VendorID", "Trip Distance"},
		Normalized: []string{"vendorid", "trip_distance"},
		Types:      []schema.Type{schema.TypeInteger, schema.TypeFloat},
		Rows:       10,
	}

	sc := rep.Schema()
	if err := sc.Validate(); err != nil {
		t.Fatalf("suggested schema invalid: %v", err)
	}
	if sc.Columns[1].Name != "trip_distance" || sc.Columns[1].Type != schema.TypeFloat {
		t.Fatalf("Columns[1] = %+v, want trip_distance/float", sc.Columns[1])
	}

	got := string(rep.RenderCSV())
	want := "VendorID,vendorid,integer\nTrip Distance,trip_distance,float\n"
	if got != want {
		t.Fatalf("RenderCSV() = %q, want %q", got, want)
	}
}
