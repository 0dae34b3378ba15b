// Package datasource defines the minimal contract for byte sources feeding
// the ingestion reader. A Source can be opened repeatedly; each Open returns
// a fresh stream positioned at the start of the resource, which is what makes
// the reader's batch sequence restartable.
package datasource

import (
	"context"
	"io"
)

type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
