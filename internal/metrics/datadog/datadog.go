// Package datadog implements a DogStatsD backend for the metrics package.
//
// It forwards the pipeline's ingestion counters and histograms (e.g.
// "ingest_rows_total" with a kind label, or "ingest_stage_duration_seconds"
// with stage/status labels) to a Datadog agent, translating metric labels
// into Datadog tags such as "stage:batch-append". The rest of the project
// only sees metrics.Backend and can swap this for the Pushgateway backend
// without other changes.
package datadog

import (
	"fmt"
	"sort"

	"tripingest/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds DogStatsD backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket".
	Addr string

	// Namespace is an optional prefix added to every metric name,
	// e.g. "tripingest.".
	Namespace string

	// GlobalTags are applied to every metric emitted by this backend,
	// e.g. []string{"env:prod", "service:tripingest"}.
	GlobalTags []string
}

// Backend emits pipeline metrics over DogStatsD. Install one instance as the
// process-wide backend via metrics.SetBackend.
type Backend struct {
	client *statsd.Client
}

// NewBackend dials the DogStatsD agent at cfg.Addr. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter forwards a counter increment as a DogStatsD Count. DogStatsD
// counts are integral, so fractional deltas are truncated; the pipeline only
// emits whole-number deltas (stages, rows, batches).
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram forwards an observation, typically a stage duration in
// seconds, as a DogStatsD Histogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush closes the client, which flushes any buffered datagrams. The run
// calls this once at shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// labelsToTags renders labels as sorted "key:value" Datadog tags, e.g.
// {stage: fetch, status: failure} -> ["stage:fetch", "status:failure"].
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
