// Package client talks to the xinstan server: it resolves post URLs into media
// descriptors and pulls media bytes through the proxy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/xinstan/xinstan/internal/config"
	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/objectstore"
	"github.com/xinstan/xinstan/internal/validator"
)

const (
	resolvePath = "/api/v1/resolve"
	proxyPath   = "/api/v1/proxy"

	quotaCode = "QUOTA_EXCEEDED"
)

// maxPayloadSize bounds a single media item held in memory.
const maxPayloadSize = 1 << 30

// ErrPayloadTooLarge is returned when a response body exceeds the client's limit.
var ErrPayloadTooLarge = errors.New("response body exceeds size limit")

// Client communicates with the xinstan server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxBody    int64
}

// New creates a new server client.
func New(cfg config.ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:  logger.With("component", "client"),
		maxBody: maxPayloadSize,
	}
}

// Media is a successful proxy response.
type Media struct {
	// Payload is objectstore.Blob when the server declared the original type, raw
	// []byte when it did not, or a keyed byte-indexed map when an intermediary
	// re-encoded the body as JSON.
	Payload             any
	OriginalContentType string
	Filename            string
}

// ErrorResponse is the error body returned by the server.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Code    string          `json:"code,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// resolveResponse accepts both list field names the converter has used.
type resolveResponse struct {
	Status string                   `json:"status,omitempty"`
	Media  []domain.MediaDescriptor `json:"media"`
	Result []domain.MediaDescriptor `json:"result"`
	ErrorResponse
}

// Resolve turns a post URL into its media descriptors. The URL is validated locally
// first; an invalid URL never reaches the network.
func (c *Client) Resolve(ctx context.Context, postURL string) ([]domain.MediaDescriptor, error) {
	postURL = strings.TrimSpace(postURL)
	if !validator.IsValidPostURL(postURL) {
		return nil, domain.NewProxyError(domain.KindInvalidInput, 0, domain.MessageInvalidPost)
	}

	body, err := json.Marshal(map[string]string{"url": postURL})
	if err != nil {
		return nil, domain.WrapProxyError(domain.KindProxyInternal, fmt.Errorf("marshal request: %w", err))
	}

	status, respBody, _, err := c.doRequest(ctx, resolvePath, body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	var resp resolveResponse
	if err := json.Unmarshal(respBody, &resp); err != nil && status < 400 {
		return nil, domain.WrapProxyError(domain.KindUpstreamFailure, fmt.Errorf("decode response: %w", err))
	}

	if resp.Code == quotaCode {
		return nil, domain.NewProxyError(domain.KindQuotaExceeded, status, domain.MessageQuotaExceeded)
	}
	if status >= 400 {
		return nil, classifyStatus(status, resp.ErrorResponse, respBody)
	}
	if resp.Error != "" && len(resp.Media) == 0 && len(resp.Result) == 0 {
		return nil, classifyMessage(status, resp.Error)
	}

	items := resp.Media
	if len(items) == 0 {
		items = resp.Result
	}
	if len(items) == 0 {
		return nil, domain.WrapProxyError(domain.KindUpstreamFailure, domain.ErrNoMedia)
	}

	descriptors := make([]domain.MediaDescriptor, 0, len(items))
	for _, item := range items {
		if item.SourceURL == "" {
			continue
		}
		item.Kind = domain.NormalizeKind(string(item.Kind))
		descriptors = append(descriptors, item)
	}
	if len(descriptors) == 0 {
		return nil, domain.WrapProxyError(domain.KindUpstreamFailure, domain.ErrNoMedia)
	}

	c.logger.Info("resolved media", "count", len(descriptors))
	return descriptors, nil
}

// FetchMedia pulls one media item through the proxy.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) (*Media, error) {
	body, err := json.Marshal(map[string]string{"mediaUrl": mediaURL})
	if err != nil {
		return nil, domain.WrapProxyError(domain.KindProxyInternal, fmt.Errorf("marshal request: %w", err))
	}

	status, respBody, header, err := c.doRequest(ctx, proxyPath, body)
	if err != nil {
		return nil, domain.WrapProxyError(domain.KindProxyInternal, err)
	}

	if status >= 400 {
		var errResp ErrorResponse
		json.Unmarshal(respBody, &errResp)
		return nil, proxyStatusError(status, errResp, respBody)
	}

	original := header.Get("X-Original-Content-Type")
	media := &Media{
		OriginalContentType: original,
		Filename:            filenameFrom(header.Get("Content-Disposition")),
	}

	mediaType, _, _ := mime.ParseMediaType(header.Get("Content-Type"))
	switch {
	case mediaType == "application/json":
		var keyed map[string]any
		if err := json.Unmarshal(respBody, &keyed); err != nil {
			return nil, domain.WrapProxyError(domain.KindProxyInternal, fmt.Errorf("decode payload: %w", err))
		}
		media.Payload = keyed
	case original != "":
		media.Payload = objectstore.NewBlob(respBody, original)
	default:
		media.Payload = respBody
	}
	return media, nil
}

func (c *Client) doRequest(ctx context.Context, path string, body []byte) (int, []byte, http.Header, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(respBody)) > c.maxBody {
		return 0, nil, nil, fmt.Errorf("%w: more than %d bytes from %s", ErrPayloadTooLarge, c.maxBody, path)
	}

	return resp.StatusCode, respBody, resp.Header, nil
}

// classifyTransport maps a failure that produced no HTTP response. Network errors
// carry addresses in their text, so only non-network errors are classified by message.
func classifyTransport(err error) error {
	if errors.Is(err, ErrPayloadTooLarge) {
		return domain.WrapProxyError(domain.KindProxyInternal, err)
	}
	var netErr net.Error
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return domain.WrapProxyError(domain.KindUpstreamFailure, err)
	}
	return classifyMessage(0, err.Error())
}

// classifyStatus maps a non-success resolve response.
func classifyStatus(status int, errResp ErrorResponse, raw []byte) error {
	msg := errResp.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if len(errResp.Details) > 0 {
		msg += ": " + string(errResp.Details)
	}

	if status == http.StatusBadRequest {
		return domain.NewProxyError(domain.KindInvalidInput, status, msg)
	}
	if status == http.StatusTooManyRequests {
		if strings.Contains(strings.ToLower(msg), "quota") {
			return domain.NewProxyError(domain.KindQuotaExceeded, status, domain.MessageQuotaExceeded)
		}
		return domain.NewProxyError(domain.KindRateLimited, status, domain.MessageRateLimited)
	}
	return classifyMessage(status, msg)
}

// classifyMessage discriminates quota, rate limit and generic failures by text.
func classifyMessage(status int, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "quota"):
		return domain.NewProxyError(domain.KindQuotaExceeded, status, domain.MessageQuotaExceeded)
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return domain.NewProxyError(domain.KindRateLimited, status, domain.MessageRateLimited)
	default:
		return domain.NewProxyError(domain.KindUpstreamFailure, status, msg)
	}
}

func proxyStatusError(status int, errResp ErrorResponse, raw []byte) error {
	msg := errResp.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	switch {
	case status == http.StatusBadRequest:
		return domain.NewProxyError(domain.KindInvalidInput, status, msg)
	case status == http.StatusInternalServerError:
		return domain.NewProxyError(domain.KindProxyInternal, status, msg)
	default:
		return domain.NewProxyError(domain.KindUpstreamFailure, status, msg)
	}
}

func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
