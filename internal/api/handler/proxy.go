package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/metrics"
	"github.com/xinstan/xinstan/internal/proxy"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 << 10

// copyBufferSize is the chunk size flushed to the caller while streaming.
const copyBufferSize = 32 << 10

// MediaProxy fetches validated media from the CDN.
type MediaProxy interface {
	Fetch(ctx context.Context, req proxy.Request) (*proxy.Result, error)
}

// ProxyHandler serves POST /api/v1/proxy.
type ProxyHandler struct {
	svc         MediaProxy
	cacheMaxAge time.Duration
	logger      *slog.Logger
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(svc MediaProxy, cacheMaxAge time.Duration, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		svc:         svc,
		cacheMaxAge: cacheMaxAge,
		logger:      logger,
	}
}

// Proxy handles POST /api/v1/proxy.
func (h *ProxyHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	mediaURL, ok := decodeStringField(r, "mediaUrl")
	if !ok {
		metrics.RecordProxy(string(domain.KindInvalidInput), "", 0)
		writeError(w, http.StatusBadRequest, "Valid media URL is required")
		return
	}

	res, err := h.svc.Fetch(r.Context(), proxy.Request{MediaURL: mediaURL})
	if err != nil {
		h.logger.Error("proxy error", "error", err)
		metrics.RecordProxy(string(domain.KindOf(err)), "", 0)
		writeProxyError(w, err)
		return
	}
	defer res.Body.Close()

	header := w.Header()
	header.Set("Content-Type", proxy.GenericContentType)
	header.Set(proxy.OriginalContentTypeHeader, res.OriginalContentType)
	header.Set("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	header.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(h.cacheMaxAge.Seconds())))
	if res.ContentLength >= 0 {
		header.Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.CopyBuffer(&flushWriter{w: w, rc: http.NewResponseController(w)}, res.Body, make([]byte, copyBufferSize))
	if err != nil {
		// Headers are committed; the caller sees a truncated body.
		h.logger.Warn("media stream interrupted",
			"error", err,
			"bytes", n,
			"content_type", res.OriginalContentType,
		)
		metrics.RecordProxy("stream_interrupted", res.Extension, n)
		return
	}
	metrics.RecordProxy("ok", res.Extension, n)
}

// flushWriter pushes every chunk to the client as soon as it is written.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}

// writeProxyError renders a ProxyError with the status its kind maps to.
func writeProxyError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		status = http.StatusBadRequest
	case domain.KindUpstreamFailure:
		if s := domain.StatusOf(err); s >= 400 && s <= 599 {
			status = s
		} else {
			status = http.StatusBadGateway
		}
	}

	msg := err.Error()
	var pe *domain.ProxyError
	if errors.As(err, &pe) && pe.Message != "" {
		msg = pe.Message
	}
	writeError(w, status, msg)
}

// decodeStringField reads a JSON object body and returns the named field when it is a
// non-empty string.
func decodeStringField(r *http.Request, field string) (string, bool) {
	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body); err != nil {
		return "", false
	}
	s, ok := body[field].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
