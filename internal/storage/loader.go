// This file implements the sequential batch loader: it pulls row batches from
// a source function one at a time and invokes a provided bulk-insert function
// (CopyFn) per batch. The pull never runs ahead: decoding of batch N+1 does
// not start until batch N has been written.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zeebo/xxh3"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations should
// insert the provided rows (aligned to 'columns' order) and return the number
// of rows reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// NextFn produces the next batch of rows in source order, returning io.EOF
// when the sequence is exhausted. Any other error is terminal.
type NextFn func(ctx context.Context) ([][]any, error)

// Progress describes one completed batch. It is observational only; handlers
// must not affect control flow.
type Progress struct {
	// Batch is the 1-based index of the completed batch.
	Batch int
	// Rows is the row count of this batch.
	Rows int
	// Total is the running row total including this batch.
	Total int64
	// Fingerprint is an xxh3 digest of the batch contents, useful for
	// correlating a committed batch with its source rows in diagnostics.
	Fingerprint uint64
}

// ProgressFn receives one Progress event per committed batch.
type ProgressFn func(Progress)

// AppendError marks a write failure while appending a specific batch. Rows of
// earlier batches stay durably committed; the failed batch's partial state is
// backend-defined.
type AppendError struct {
	// Batch is the 1-based index of the batch that failed to append.
	Batch int
	Err   error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append batch %d: %v", e.Batch, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// LoadBatches drains batches from next, strictly one at a time, and calls
// copyFn for each non-empty batch. It returns the total rows and batches
// written and the first error encountered. copyFn failures are wrapped in
// *AppendError; errors from next are returned as-is (they belong to the
// fetch/decode stage, not the write stage).
//
// Progress is logged on each successful flush and forwarded to onProgress
// when non-nil. Cancellation returns (totals, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	columns []string,
	next NextFn,
	copyFn CopyFn,
	onProgress ProgressFn,
) (int64, int64, error) {
	if next == nil {
		return 0, 0, fmt.Errorf("next must not be nil")
	}
	if copyFn == nil {
		return 0, 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		start       = time.Now()
		lastFlushTS = start
	)

	for {
		if err := ctx.Err(); err != nil {
			return total, batches, err
		}

		rows, err := next(ctx)
		if err == io.EOF {
			log.Printf("loader: source exhausted, batches=%d total_inserted=%d elapsed=%s",
				batches, total, time.Since(start).Truncate(time.Millisecond))
			return total, batches, nil
		}
		if err != nil {
			return total, batches, err
		}
		if len(rows) == 0 {
			continue
		}

		n, err := copyFn(ctx, columns, rows)
		total += n
		if err != nil {
			log.Printf("loader: append failed batch=%d after=%d total=%d err=%v", batches+1, n, total, err)
			return total, batches, &AppendError{Batch: int(batches) + 1, Err: err}
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		fp := fingerprint(rows)
		log.Printf(
			"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s fp=%016x",
			batches,
			rps,
			n,
			total,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
			fp,
		)
		lastFlushTS = now

		if onProgress != nil {
			onProgress(Progress{
				Batch:       int(batches),
				Rows:        len(rows),
				Total:       total,
				Fingerprint: fp,
			})
		}
	}
}

// fingerprint digests every cell of the batch with xxh3, separating cells
// with a unit separator so that shifted values do not collide.
func fingerprint(rows [][]any) uint64 {
	h := xxh3.New()
	for _, row := range rows {
		for _, cell := range row {
			fmt.Fprintf(h, "%v\x1f", cell)
		}
		h.Write([]byte{'\n'})
	}
	return h.Sum64()
}
