package httpds

import (
	"context"
	"fmt"
	"io"

	"tripingest/internal/datasource"
)

// Remote adapts a Client and a URL to the datasource.Source interface. Each
// Open issues a fresh GET, so the resource is re-fetched from the start; the
// response body is never cached locally across opens.
type Remote struct {
	client *Client
	url    string
}

// NewRemote returns a Remote source for the given URL. A nil client gets a
// default one with no retries: a failed fetch aborts the ingestion run, so
// the run-level policy is fail-fast rather than retry.
func NewRemote(client *Client, url string) *Remote {
	if client == nil {
		client = NewClient(Config{})
		// Whole-file streaming; drop the client deadline a large month would
		// trip over and rely on context cancellation instead.
		client.httpClient.Timeout = 0
	}
	return &Remote{client: client, url: url}
}

// URL returns the resource locator this source fetches.
func (r *Remote) URL() string { return r.url }

// Open performs the GET and returns the response body. A non-2xx status is
// reported as an error and the body is closed before returning.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", r.url, resp.Status)
	}
	return resp.Body, nil
}

var _ datasource.Source = (*Remote)(nil)
