// Package rapidapi is a client for the RapidAPI Instagram converter that turns a
// post URL into a list of downloadable media descriptors.
package rapidapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/xinstan/xinstan/internal/config"
	"github.com/xinstan/xinstan/internal/downloader"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("API key not configured")

// maxBodySize bounds the converter response read into memory.
const maxBodySize = 8 << 20

// Client converts post URLs through the RapidAPI converter.
type Client interface {
	// Configured reports whether an API key is available.
	Configured() bool
	// Convert calls the converter once per attempt. Any HTTP response, successful or not,
	// is returned as a Response; only transport failures are returned as errors.
	Convert(ctx context.Context, postURL string) (*Response, error)
}

// Response is the converter's answer.
type Response struct {
	StatusCode int
	// Data is the upstream JSON body, or {"raw": "<text>"} when the body was not JSON.
	Data json.RawMessage
	// Message is the upstream "message" field, if any.
	Message string
}

// OK reports whether the upstream answered with a success status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// QuotaExceeded reports whether the failure means the plan's usage cap was hit.
func (r *Response) QuotaExceeded() bool {
	if r.OK() {
		return false
	}
	return r.StatusCode == http.StatusTooManyRequests ||
		strings.Contains(strings.ToLower(r.Message), "monthly quota")
}

// HTTPClient implements Client using HTTP requests to RapidAPI.
type HTTPClient struct {
	apiKey     string
	host       string
	baseURL    string
	httpClient *http.Client
	retry      downloader.RetryConfig
	logger     *slog.Logger
}

// NewClient creates a new RapidAPI converter client.
func NewClient(cfg config.ResolverConfig, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		host:    cfg.Host,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: downloader.RetryConfig{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.RetryDelay,
			MaxDelay:      cfg.MaxRetryDelay,
			BackoffFactor: 2.0,
		},
		logger: logger.With("component", "rapidapi"),
	}
}

// Configured reports whether an API key is set.
func (c *HTTPClient) Configured() bool {
	return c.apiKey != ""
}

// Convert resolves postURL. Transport errors are retried with backoff; HTTP
// responses are never retried.
func (c *HTTPClient) Convert(ctx context.Context, postURL string) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.baseURL + "/convert?url=" + url.QueryEscape(postURL)

	return downloader.RetryWithCheck(ctx, c.retry, func() (*Response, error) {
		return c.convertOnce(ctx, endpoint)
	}, func(err error) bool {
		retry := isTransportError(ctx, err)
		if retry {
			c.logger.Warn("converter request failed, retrying", "error", err)
		}
		return retry
	})
}

func (c *HTTPClient) convertOnce(ctx context.Context, endpoint string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Data:       normalizeBody(raw),
		Message:    extractMessage(raw),
	}, nil
}

// normalizeBody returns raw when it is valid JSON and wraps it as {"raw": ...} otherwise.
func normalizeBody(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return wrapped
}

func extractMessage(raw []byte) string {
	var body struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	msg, _ := body.Message.(string)
	return msg
}

// isTransportError reports whether err is a network-level failure worth retrying.
// A canceled or expired caller context is never retried.
func isTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
