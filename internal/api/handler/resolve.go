package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/xinstan/xinstan/internal/domain"
	"github.com/xinstan/xinstan/internal/metrics"
	"github.com/xinstan/xinstan/internal/validator"
	"github.com/xinstan/xinstan/pkg/rapidapi"
)

// QuotaExceededCode marks a resolve response whose provider usage cap was hit.
const QuotaExceededCode = "QUOTA_EXCEEDED"

// QuotaResponse is returned with HTTP 200 when the converter quota is exhausted, so
// browser runtimes do not surface a 429 to the user.
type QuotaResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// UpstreamErrorResponse is returned when the converter answered with a failure.
type UpstreamErrorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// ResolveHandler serves POST /api/v1/resolve.
type ResolveHandler struct {
	converter rapidapi.Client
	logger    *slog.Logger
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(converter rapidapi.Client, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{
		converter: converter,
		logger:    logger,
	}
}

// Resolve handles POST /api/v1/resolve.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	postURL, ok := decodeStringField(r, "url")
	if !ok {
		metrics.RecordResolve(string(domain.KindInvalidInput), 0)
		writeError(w, http.StatusBadRequest, "Valid Instagram URL is required")
		return
	}

	if !validator.IsValidPostURL(postURL) {
		h.logger.Warn("invalid Instagram URL rejected", "url", truncate(postURL, 100))
		metrics.RecordResolve(string(domain.KindInvalidInput), 0)
		writeError(w, http.StatusBadRequest,
			"Invalid Instagram URL format. Please provide a valid Instagram post, reel, or story URL.")
		return
	}

	if !h.converter.Configured() {
		h.logger.Error("RAPIDAPI_KEY not configured")
		metrics.RecordResolve("not_configured", 0)
		writeError(w, http.StatusInternalServerError, rapidapi.ErrNotConfigured.Error())
		return
	}

	h.logger.Info("processing Instagram URL", "url", truncate(postURL, 100))

	start := time.Now()
	resp, err := h.converter.Convert(r.Context(), postURL)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		h.logger.Error("converter request failed", "error", err)
		metrics.RecordResolve(string(domain.KindProxyInternal), elapsed)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !resp.OK() {
		if resp.QuotaExceeded() {
			h.logger.Warn("RapidAPI quota exceeded", "status", resp.StatusCode)
			metrics.RecordResolve(string(domain.KindQuotaExceeded), elapsed)
			writeJSON(w, http.StatusOK, QuotaResponse{
				Error: domain.MessageQuotaExceeded,
				Code:  QuotaExceededCode,
			})
			return
		}

		h.logger.Warn("converter returned failure", "status", resp.StatusCode)
		metrics.RecordResolve(string(domain.KindUpstreamFailure), elapsed)
		writeJSON(w, resp.StatusCode, UpstreamErrorResponse{
			Error:   "Failed to fetch from Instagram",
			Details: resp.Data,
		})
		return
	}

	metrics.RecordResolve("ok", elapsed)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
