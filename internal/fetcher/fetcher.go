// Package fetcher downloads remote documents over HTTP with per-host rate
// limiting.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
