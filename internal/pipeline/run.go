// Package pipeline orchestrates a full ingestion run: open the source,
// replace the destination table, then stream batches into it.
//
// A run moves through a fixed sequence of states:
//
//	INIT -> SCHEMA_CREATED -> LOADING -> DONE
//
// with FAILED as the terminal state for any error. No state is ever skipped;
// in particular the destination table is always replaced before the first
// batch is appended, so a failed run still leaves a table whose structure
// matches the declared schema.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tripingest/internal/metrics"
	"tripingest/internal/reader"
	"tripingest/internal/storage"
)

// State is the lifecycle state of a run.
type State string

const (
	StateInit          State = "INIT"
	StateSchemaCreated State = "SCHEMA_CREATED"
	StateLoading       State = "LOADING"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)

// Stage identifies which phase of a run an error belongs to.
type Stage string

const (
	// StageFetch covers opening the source and decoding rows from it,
	// including mid-load decode and coercion failures.
	StageFetch Stage = "fetch"

	// StageSchemaCreate covers the destructive table replacement.
	StageSchemaCreate Stage = "schema-create"

	// StageBatchAppend covers writes of individual batches.
	StageBatchAppend Stage = "batch-append"
)

// StageError tags an error with the run stage it occurred in. For
// batch-append failures Batch carries the 1-based number of the batch that
// could not be written.
type StageError struct {
	Stage Stage
	Batch int
	Err   error
}

func (e *StageError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("stage=%s batch=%d: %v", e.Stage, e.Batch, e.Err)
	}
	return fmt.Sprintf("stage=%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Summary reports what a completed run did.
type Summary struct {
	// Batches is the number of batches appended.
	Batches int64

	// Rows is the total number of rows written.
	Rows int64

	// Duration is the wall-clock time of the whole run.
	Duration time.Duration
}

// Run executes one ingestion: it owns a configured reader and an open
// repository and drives them through the run lifecycle. A Run is single-use;
// create a new one for each execution.
type Run struct {
	job    string
	reader *reader.Reader
	repo   storage.Repository
	kind   string
	table  string

	// OnProgress, when non-nil, receives a callback after every appended
	// batch.
	OnProgress storage.ProgressFn

	state State
}

// New assembles a Run. kind selects the registered DDL dialect and must match
// the backend repo was opened with. table is the destination table that will
// be dropped and recreated.
func New(job string, r *reader.Reader, repo storage.Repository, kind, table string) (*Run, error) {
	if r == nil {
		return nil, fmt.Errorf("pipeline: reader must not be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("pipeline: repository must not be nil")
	}
	if table == "" {
		return nil, fmt.Errorf("pipeline: table must not be empty")
	}
	if job == "" {
		job = table
	}
	return &Run{
		job:    job,
		reader: r,
		repo:   repo,
		kind:   kind,
		table:  table,
		state:  StateInit,
	}, nil
}

// State returns the current lifecycle state.
func (p *Run) State() State { return p.state }

// Execute performs the run: open the source, replace the table, stream
// batches. On error the returned Summary still reflects whatever was written
// before the failure, and the error is a *StageError identifying the phase.
func (p *Run) Execute(ctx context.Context) (Summary, error) {
	var sum Summary
	start := time.Now()

	p.state = StateInit
	log.Printf("run %s: starting, table=%s chunk_size=%d", p.job, p.table, p.reader.BatchSize())

	// Open the source first. This validates the header (or parquet footer)
	// against the declared schema, so an unreachable or malformed source
	// fails the run before the destination table is touched.
	fetchStart := time.Now()
	cur, err := p.reader.Batches(ctx)
	metrics.RecordStage(p.job, string(StageFetch), err, time.Since(fetchStart))
	if err != nil {
		p.state = StateFailed
		return sum, &StageError{Stage: StageFetch, Err: err}
	}
	defer cur.Close()

	// Destructive replace: drop whatever is there and create the table from
	// the declared schema. Re-running an ingestion never appends to stale
	// contents.
	ddlStart := time.Now()
	err = storage.ReplaceTable(ctx, p.kind, p.repo, p.table, p.reader.Schema())
	metrics.RecordStage(p.job, string(StageSchemaCreate), err, time.Since(ddlStart))
	if err != nil {
		p.state = StateFailed
		return sum, &StageError{Stage: StageSchemaCreate, Err: err}
	}
	p.state = StateSchemaCreated
	log.Printf("run %s: table %s replaced, %d columns", p.job, p.table, len(p.reader.Columns()))

	p.state = StateLoading
	next := func(ctx context.Context) ([][]any, error) {
		b, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		return b.Rows, nil
	}

	loadStart := time.Now()
	total, batches, err := storage.LoadBatches(ctx, p.reader.Columns(), next, p.repo.CopyFrom, p.OnProgress)
	sum.Rows = total
	sum.Batches = batches
	sum.Duration = time.Since(start)

	metrics.RecordRows(p.job, "inserted", total)
	metrics.RecordBatches(p.job, batches)
	metrics.RecordStage(p.job, string(StageBatchAppend), err, time.Since(loadStart))

	if err != nil {
		p.state = StateFailed
		var ae *storage.AppendError
		if errors.As(err, &ae) {
			return sum, &StageError{Stage: StageBatchAppend, Batch: ae.Batch, Err: err}
		}
		// Errors surfaced by the cursor belong to the fetch/decode side:
		// coercion failures, truncated input, cancellation.
		return sum, &StageError{Stage: StageFetch, Err: err}
	}

	p.state = StateDone
	log.Printf("run %s: done, batches=%d rows=%d elapsed=%s",
		p.job, sum.Batches, sum.Rows, sum.Duration.Truncate(time.Millisecond))
	return sum, nil
}
