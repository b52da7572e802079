package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xinstan/xinstan/internal/config"
	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/validator"
)

// ErrRedirectBlocked is returned when the CDN redirects to a host outside the allow-list.
var ErrRedirectBlocked = errors.New("redirect to non allow-listed host blocked")

// ErrTooManyRedirects is returned when the redirect chain exceeds the configured limit.
var ErrTooManyRedirects = errors.New("too many redirects")

// ErrStalled is returned by the body reader when no data arrived within the read timeout.
var ErrStalled = errors.New("download stalled")

// HTTPDownloader implements Fetcher using HTTP requests with browser-like headers.
type HTTPDownloader struct {
	// client has no overall timeout: bodies are streamed and guarded by a stall watchdog
	client *http.Client
	cfg    config.ProxyConfig
	logger *slog.Logger

	allowRedirect func(*url.URL) bool
}

// NewHTTPDownloader creates a new HTTP-based media fetcher.
func NewHTTPDownloader(cfg config.ProxyConfig) *HTTPDownloader {
	d := &HTTPDownloader{
		cfg:    cfg,
		logger: slog.Default(),
		allowRedirect: func(u *url.URL) bool {
			return validator.IsValidMediaURL(u.String())
		},
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
		// Media is passed through as-is, never transparently decoded.
		DisableCompression:  true,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}

	d.client = &http.Client{
		Transport:     transport,
		CheckRedirect: d.checkRedirect,
	}
	return d
}

// SetLogger sets the logger for download progress reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *HTTPDownloader) checkRedirect(req *http.Request, via []*http.Request) error {
	if d.cfg.MaxRedirects == 0 {
		return http.ErrUseLastResponse
	}
	if len(via) > d.cfg.MaxRedirects {
		return ErrTooManyRedirects
	}
	if !d.allowRedirect(req.URL) {
		return ErrRedirectBlocked
	}
	return nil
}

// Fetch issues one GET for url. There is no retry: retrying is the caller's decision.
func (d *HTTPDownloader) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	reqCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, domain.WrapProxyError(domain.KindProxyInternal, fmt.Errorf("create request: %w", err))
	}

	// The CDN rejects requests that do not look like they come from a browser on the site.
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Referer", d.cfg.Referer)

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, ErrRedirectBlocked) || errors.Is(err, ErrTooManyRedirects) {
			return nil, domain.WrapProxyError(domain.KindInvalidInput, err)
		}
		return nil, domain.WrapProxyError(domain.KindProxyInternal, fmt.Errorf("send request: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, domain.NewProxyError(domain.KindUpstreamFailure, resp.StatusCode,
			fmt.Sprintf("Failed to fetch media: %d", resp.StatusCode))
	}

	body := newProgressReader(resp.Body, resp.ContentLength, d.cfg.ReadTimeout, cancel, d.logger, rawURL)
	return &Response{
		Body:          body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		StatusCode:    resp.StatusCode,
	}, nil
}

// progressReader wraps the upstream body to log progress and abort the request
// when no data arrives for readTimeout.
type progressReader struct {
	reader     io.ReadCloser
	total      int64
	downloaded int64
	lastLog    time.Time
	logger     *slog.Logger
	url        string
	cancel     context.CancelFunc
	timeout    time.Duration

	mu       sync.Mutex
	watchdog *time.Timer
	stalled  bool
	closed   bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, cancel context.CancelFunc, logger *slog.Logger, rawURL string) *progressReader {
	p := &progressReader{
		reader:  r,
		total:   total,
		lastLog: time.Now(),
		logger:  logger,
		url:     truncate(rawURL, 100),
		cancel:  cancel,
		timeout: readTimeout,
	}
	if readTimeout > 0 {
		p.watchdog = time.AfterFunc(readTimeout, p.stall)
	}
	return p
}

func (p *progressReader) stall() {
	p.mu.Lock()
	p.stalled = true
	p.mu.Unlock()
	p.cancel()
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stalled {
		return n, ErrStalled
	}

	if n > 0 {
		p.downloaded += int64(n)
		if p.watchdog != nil {
			p.watchdog.Reset(p.timeout)
		}

		// Log progress every 30 seconds
		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.watchdog != nil {
		p.watchdog.Stop()
	}
	p.mu.Unlock()

	err := p.reader.Close()
	p.cancel()
	return err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("proxy progress",
			"url", p.url,
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
			"total", humanize.Bytes(uint64(p.total)),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("proxy progress",
			"url", p.url,
			"downloaded", humanize.Bytes(uint64(p.downloaded)),
		)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
