// Command csvprobe samples the first bytes of one or more trip-data files and
// prints header names with inferred column types. One month probes a single
// file; a month range probes every month concurrently so schema drift across
// a year surfaces in one run.
//
// Examples:
//
//	csvprobe -url="https://example.com/test.csv" -bytes=8192
//	csvprobe -dataset=green -year=2021 -months=1-6
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"tripingest/internal/dataset"
	"tripingest/internal/probe"
)

var (
	flagURL      = flag.String("url", "", "URL of the file to sample (overrides dataset/year/months)")
	flagBytes    = flag.Int("bytes", 64*1024, "Number of bytes to sample from the start of the file")
	flagDataset  = flag.String("dataset", "green", "dataset to probe (green, yellow, zones)")
	flagYear     = flag.Int("year", 2021, "year of the monthly files")
	flagMonths   = flag.String("months", "1", "month or month range to probe, e.g. 3 or 1-12")
	flagFormat   = flag.String("format", "csv", "source format (csv, parquet)")
	flagInsecure = flag.Bool("insecure", false, "skip TLS certificate verification")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	if *flagURL != "" {
		rep, err := probe.Probe(ctx, probe.Options{
			URL:              *flagURL,
			MaxBytes:         *flagBytes,
			AllowInsecureTLS: *flagInsecure,
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Print(string(rep.RenderCSV()))
		return
	}

	ds, err := dataset.Lookup(*flagDataset)
	if err != nil {
		fatalf("%v", err)
	}
	format, err := dataset.ParseFormat(*flagFormat)
	if err != nil {
		fatalf("%v", err)
	}
	first, last, err := parseMonths(*flagMonths)
	if err != nil {
		fatalf("%v", err)
	}

	type result struct {
		month int
		url   string
		rep   probe.Report
	}

	var (
		mu      sync.Mutex
		results = make(map[int]result)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for month := first; month <= last; month++ {
		month := month
		g.Go(func() error {
			url := ds.URL(*flagYear, month, format)
			rep, err := probe.Probe(gctx, probe.Options{
				URL:              url,
				MaxBytes:         *flagBytes,
				AllowInsecureTLS: *flagInsecure,
			})
			if err != nil {
				return fmt.Errorf("month %d: %w", month, err)
			}
			mu.Lock()
			results[month] = result{month: month, url: url, rep: rep}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("%v", err)
	}

	for month := first; month <= last; month++ {
		r := results[month]
		fmt.Printf("# %s %04d-%02d (%s, %d sampled rows)\n",
			ds.Name, *flagYear, month, r.url, r.rep.Rows)
		fmt.Print(string(r.rep.RenderCSV()))
	}
}

// parseMonths accepts "3" or "1-12" and returns the inclusive range.
func parseMonths(s string) (int, int, error) {
	parse := func(v string) (int, error) {
		m, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || m < 1 || m > 12 {
			return 0, fmt.Errorf("invalid month %q", v)
		}
		return m, nil
	}

	if i := strings.IndexByte(s, '-'); i >= 0 {
		first, err := parse(s[:i])
		if err != nil {
			return 0, 0, err
		}
		last, err := parse(s[i+1:])
		if err != nil {
			return 0, 0, err
		}
		if last < first {
			return 0, 0, fmt.Errorf("month range %q is reversed", s)
		}
		return first, last, nil
	}

	m, err := parse(s)
	if err != nil {
		return 0, 0, err
	}
	return m, m, nil
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
