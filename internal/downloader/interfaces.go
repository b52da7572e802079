package downloader

import (
	"context"
	"io"
)

// Fetcher retrieves media bytes from an origin CDN.
type Fetcher interface {
	// Fetch issues a single GET for url. On success the caller owns Body and must close it.
	// Non-success upstream statuses are returned as *domain.ProxyError with KindUpstreamFailure.
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Response is a successful upstream response.
type Response struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	StatusCode    int
}
