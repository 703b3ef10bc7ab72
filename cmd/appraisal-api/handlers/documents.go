// Package handlers provides HTTP handlers for the Appraisal Engine API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
	"github.com/spherical-ai/appraisal/internal/pipeline"
)

// Submitter runs a document through the pipeline.
type Submitter interface {
	Submit(ctx context.Context, doc domain.RawDocument, mode domain.Mode, opts ...pipeline.RunOption) (*pipeline.Result, error)
}

// DocumentHandler handles document uploads and chat messages.
type DocumentHandler struct {
	logger       *observability.Logger
	submitter    Submitter
	maxBodyBytes int64
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(logger *observability.Logger, submitter Submitter, maxBodyBytes int64) *DocumentHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 << 20
	}
	return &DocumentHandler{
		logger:       observability.OrNop(logger).WithComponent("api"),
		submitter:    submitter,
		maxBodyBytes: maxBodyBytes,
	}
}

// ChatRequestDTO is the body of POST /api/v1/chat.
type ChatRequestDTO struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
	Persist *bool  `json:"persist,omitempty"`
}

// Upload handles POST /api/v1/documents?mode=predict|train&persist=bool.
// The body is the raw document text.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid mode", err.Error())
		return
	}

	var opts []pipeline.RunOption
	if v := r.URL.Query().Get("persist"); v != "" {
		persist, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid persist flag", err.Error())
			return
		}
		opts = append(opts, pipeline.WithPersist(persist))
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "document too large", err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	label := r.Header.Get("X-Source-Label")
	if label == "" {
		label = "upload"
	}
	h.run(w, r, domain.NewRawDocument(label, string(body)), mode, opts...)
}

// Chat handles POST /api/v1/chat. The message is processed like a document.
func (h *DocumentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequestDTO
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid mode", err.Error())
		return
	}

	var opts []pipeline.RunOption
	if req.Persist != nil {
		opts = append(opts, pipeline.WithPersist(*req.Persist))
	}
	h.run(w, r, domain.NewRawDocument("chat", req.Message), mode, opts...)
}

func (h *DocumentHandler) run(w http.ResponseWriter, r *http.Request, doc domain.RawDocument, mode domain.Mode, opts ...pipeline.RunOption) {
	if strings.TrimSpace(doc.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "document is empty", "")
		return
	}

	ctx := observability.ContextWithTraceID(r.Context(), traceID(r))
	h.logger.WithContext(ctx).Info().
		Str("document_id", doc.ID.String()).
		Str("source", doc.SourceLabel).
		Str("mode", string(mode)).
		Int("chars", len(doc.Text)).
		Msg("Document received")

	result, err := h.submitter.Submit(ctx, doc, mode, opts...)
	if err != nil {
		if r.Context().Err() != nil {
			// The timeout middleware or the departed client owns the reply.
			h.logger.WithContext(ctx).Warn().Err(err).Msg("Request ended before the pipeline replied")
			return
		}
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.writeError(w, status, "pipeline unavailable", err.Error())
		return
	}

	writeJSON(w, StatusCode(result), result)
}

// StatusCode maps a pipeline result to the HTTP status of its reply.
func StatusCode(r *pipeline.Result) int {
	switch r.Status {
	case pipeline.StatusOK, pipeline.StatusTrained:
		return http.StatusOK
	case pipeline.StatusInsufficientData, pipeline.StatusNoRows:
		return http.StatusUnprocessableEntity
	case pipeline.StatusUpstreamFailure:
		return http.StatusBadGateway
	}
	if r.Error != nil {
		switch r.Error.Kind {
		case domain.ErrorTypeInvalidArgument:
			return http.StatusBadRequest
		case domain.ErrorTypeModelUnavailable:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}

func traceID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return r.Header.Get("X-Trace-Id")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *DocumentHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
