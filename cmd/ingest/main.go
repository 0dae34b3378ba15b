package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripingest/internal/config"
	"tripingest/internal/dataset"
	"tripingest/internal/datasource"
	"tripingest/internal/datasource/file"
	"tripingest/internal/datasource/httpds"
	"tripingest/internal/metrics"
	"tripingest/internal/metrics/datadog"
	"tripingest/internal/metrics/prompush"
	"tripingest/internal/pipeline"
	"tripingest/internal/reader"
	"tripingest/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "tripingest/internal/storage/all"
)

// main is the entry point for the ingest binary. It assembles the run config
// from an optional JSON file plus flag overrides, optionally initializes a
// metrics backend, and executes the run.
func main() {
	var (
		cfgPath  string
		run      config.Run
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "", "run config JSON path (flags override its fields)")
	flag.StringVar(&run.Job, "job", "", "job name for logs and metrics (default: target table)")
	flag.StringVar(&run.Source.Dataset, "dataset", "", "dataset to ingest (green, yellow, zones; default green)")
	flag.IntVar(&run.Source.Year, "year", 0, "year of the monthly file")
	flag.IntVar(&run.Source.Month, "month", 0, "month of the monthly file (1-12)")
	flag.StringVar(&run.Source.Format, "format", "", "source format (csv, parquet)")
	flag.StringVar(&run.Source.URL, "url", "", "explicit download URL (overrides dataset/year/month)")
	flag.StringVar(&run.Source.Path, "path", "", "local file to ingest instead of downloading")
	flag.IntVar(&run.Load.ChunkSize, "chunksize", 0, "rows per batch")
	flag.StringVar(&run.Storage.Kind, "storage", "", "storage backend (postgres, mysql, sqlite)")
	flag.StringVar(&run.Storage.Table, "target-table", "", "destination table (default: dataset table)")
	flag.StringVar(&run.Storage.DSN, "dsn", "", "explicit connection string (required for sqlite)")
	flag.StringVar(&run.Storage.DB.Host, "db-host", "", "database host")
	flag.IntVar(&run.Storage.DB.Port, "db-port", 0, "database port")
	flag.StringVar(&run.Storage.DB.User, "db-user", "", "database user")
	flag.StringVar(&run.Storage.DB.Password, "db-password", "", "database password")
	flag.StringVar(&run.Storage.DB.Name, "db-name", "", "database name")
	flag.StringVar(&run.Metrics.Backend, "metrics-backend", "", "metrics backend (none, prometheus, datadog)")
	flag.StringVar(&run.Metrics.PushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&run.Metrics.StatsdAddr, "statsd-addr", "", "DogStatsD address, e.g. 127.0.0.1:8125")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if cfgPath != "" {
		base, err := config.Load(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
		run = mergeFlags(base, run)
	}
	if run.Metrics.PushgatewayURL == "" {
		run.Metrics.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")
	}
	if run.Storage.DB.Password == "" {
		run.Storage.DB.Password = os.Getenv("DB_PASSWORD")
	}
	if run.Source.Dataset == "" {
		run.Source.Dataset = "green"
	}
	run.ApplyDefaults()

	// Validate run config.
	issues := config.ValidateRun(run)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	ds, err := dataset.Lookup(run.Source.Dataset)
	if err != nil {
		fatalf("%v", err)
	}
	format, err := dataset.ParseFormat(run.Source.Format)
	if err != nil {
		fatalf("%v", err)
	}
	table := run.Storage.Table
	if table == "" {
		table = ds.DefaultTable
	}
	job := run.Job
	if job == "" {
		job = table
	}

	setupMetrics(run.Metrics, job, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	// Assemble the source: local path beats explicit URL beats the
	// dataset's published location.
	var src datasource.Source
	switch {
	case run.Source.Path != "":
		src = file.NewLocal(run.Source.Path)
	case run.Source.URL != "":
		src = httpds.NewRemote(nil, run.Source.URL)
	default:
		src = httpds.NewRemote(nil, ds.URL(run.Source.Year, run.Source.Month, format))
	}

	rd, err := reader.New(src, ds.Schema, format, run.Load.ChunkSize)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := storage.New(ctx, storage.Config{
		Kind:    run.Storage.Kind,
		DSN:     run.DSN(),
		Table:   table,
		Columns: ds.Schema.Names(),
	})
	if err != nil {
		fatalf("open storage: %v", err)
	}
	defer repo.Close()

	p, err := pipeline.New(job, rd, repo, run.Storage.Kind, table)
	if err != nil {
		fatalf("%v", err)
	}

	if *verbose {
		log.Printf("pipeline: dataset=%s format=%s storage=%s table=%s chunk_size=%d",
			ds.Name, format, run.Storage.Kind, table, run.Load.ChunkSize)
	}

	start := time.Now()
	sum, err := p.Execute(ctx)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s: batches=%d rows=%d",
			time.Since(start).Truncate(time.Millisecond), sum.Batches, sum.Rows)
	}
}

// mergeFlags overlays non-zero flag values onto a config loaded from file.
func mergeFlags(base, flags config.Run) config.Run {
	out := base
	if flags.Job != "" {
		out.Job = flags.Job
	}
	if flags.Source.Dataset != "" {
		out.Source.Dataset = flags.Source.Dataset
	}
	if flags.Source.Year != 0 {
		out.Source.Year = flags.Source.Year
	}
	if flags.Source.Month != 0 {
		out.Source.Month = flags.Source.Month
	}
	if flags.Source.Format != "" {
		out.Source.Format = flags.Source.Format
	}
	if flags.Source.URL != "" {
		out.Source.URL = flags.Source.URL
	}
	if flags.Source.Path != "" {
		out.Source.Path = flags.Source.Path
	}
	if flags.Load.ChunkSize != 0 {
		out.Load.ChunkSize = flags.Load.ChunkSize
	}
	if flags.Storage.Kind != "" {
		out.Storage.Kind = flags.Storage.Kind
	}
	if flags.Storage.Table != "" {
		out.Storage.Table = flags.Storage.Table
	}
	if flags.Storage.DSN != "" {
		out.Storage.DSN = flags.Storage.DSN
	}
	if flags.Storage.DB.Host != "" {
		out.Storage.DB.Host = flags.Storage.DB.Host
	}
	if flags.Storage.DB.Port != 0 {
		out.Storage.DB.Port = flags.Storage.DB.Port
	}
	if flags.Storage.DB.User != "" {
		out.Storage.DB.User = flags.Storage.DB.User
	}
	if flags.Storage.DB.Password != "" {
		out.Storage.DB.Password = flags.Storage.DB.Password
	}
	if flags.Storage.DB.Name != "" {
		out.Storage.DB.Name = flags.Storage.DB.Name
	}
	if flags.Metrics.Backend != "" {
		out.Metrics.Backend = flags.Metrics.Backend
	}
	if flags.Metrics.PushgatewayURL != "" {
		out.Metrics.PushgatewayURL = flags.Metrics.PushgatewayURL
	}
	if flags.Metrics.StatsdAddr != "" {
		out.Metrics.StatsdAddr = flags.Metrics.StatsdAddr
	}
	return out
}

// setupMetrics installs the configured metrics backend; failures downgrade to
// the nop backend so a broken gateway never blocks an ingestion.
func setupMetrics(cfg config.MetricsConfig, job string, verbose bool) {
	switch cfg.Backend {
	case "prometheus":
		b, err := prompush.NewBackend(job, cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=prometheus, job_name=%v", cfg.PushgatewayURL, job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: cfg.StatsdAddr, Namespace: "ingest."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=datadog, job_name=%v", cfg.StatsdAddr, job)
		metrics.SetBackend(b)

	case "", "none":
		// metrics disabled; nop backend remains
		if verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.Backend)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
