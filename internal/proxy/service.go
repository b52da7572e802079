// Package proxy implements the validated media fetch proxy: it accepts a media URL,
// checks it against the CDN allow-list, fetches it from the origin and hands back a
// stream together with the origin's true content type.
package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/downloader"
	"github.com/xinstan/xinstan/internal/validator"
)

// GenericContentType is the outer content type of every proxied response. The true type
// travels in the X-Original-Content-Type header because some transports between the proxy
// and its callers rewrite non-text payloads (video in particular) when given the real type.
const GenericContentType = "application/octet-stream"

// OriginalContentTypeHeader carries the upstream's declared content type.
const OriginalContentTypeHeader = "X-Original-Content-Type"

// sniffLen is how many bytes are peeked before the response is committed.
const sniffLen = 3072

// Request is one proxy invocation.
type Request struct {
	MediaURL string `json:"mediaUrl"`
}

// Result is a successful proxy invocation. The caller must close Body.
type Result struct {
	Body                io.ReadCloser
	OriginalContentType string
	Extension           string
	Filename            string
	ContentLength       int64
}

// Service is stateless; one instance serves all requests concurrently.
type Service struct {
	fetcher downloader.Fetcher
	logger  *slog.Logger
}

// NewService creates a new proxy service.
func NewService(fetcher downloader.Fetcher, logger *slog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  logger.With("component", "proxy"),
	}
}

// Fetch validates req and opens the upstream stream. It either returns a Result whose
// first bytes have already been read successfully, or a *domain.ProxyError.
func (s *Service) Fetch(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.MediaURL) == "" {
		return nil, domain.NewProxyError(domain.KindInvalidInput, 400, "Valid media URL is required")
	}
	if !validator.IsValidMediaURL(req.MediaURL) {
		s.logger.Warn("invalid media URL rejected", "url", truncate(req.MediaURL, 100))
		return nil, domain.NewProxyError(domain.KindInvalidInput, 400,
			"Invalid media URL. Only Instagram CDN URLs are allowed.")
	}

	s.logger.Info("proxying media URL", "url", truncate(req.MediaURL, 100))

	resp, err := s.fetcher.Fetch(ctx, req.MediaURL)
	if err != nil {
		var pe *domain.ProxyError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, domain.WrapProxyError(domain.KindProxyInternal, err)
	}

	// Peek before committing: a body that fails immediately still becomes a clean error.
	br := bufio.NewReaderSize(resp.Body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		resp.Body.Close()
		return nil, domain.WrapProxyError(domain.KindProxyInternal, fmt.Errorf("read upstream body: %w", err))
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = sniffContentType(head)
	}
	ext := ExtensionFor(contentType)

	s.logger.Info("streaming media", "content_type", contentType, "content_length", resp.ContentLength)

	return &Result{
		Body:                &bufferedBody{Reader: br, closer: resp.Body},
		OriginalContentType: contentType,
		Extension:           ext,
		Filename:            FilenameFor(ext),
		ContentLength:       resp.ContentLength,
	}, nil
}

// ExtensionFor derives a file extension from a content type by substring.
func ExtensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "mp4"):
		return "mp4"
	case strings.Contains(contentType, "jpeg"):
		return "jpg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return "bin"
	}
}

// FilenameFor returns the suggested download filename for ext.
func FilenameFor(ext string) string {
	return "instagram-media." + ext
}

func sniffContentType(head []byte) string {
	if len(head) == 0 {
		return GenericContentType
	}
	detected := mimetype.Detect(head)
	if detected == nil || detected.Is("application/octet-stream") {
		return GenericContentType
	}
	return detected.String()
}

type bufferedBody struct {
	*bufio.Reader
	closer io.Closer
}

func (b *bufferedBody) Close() error {
	return b.closer.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
