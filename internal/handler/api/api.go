// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API handlers of the content service.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/middleware"
	"github.com/olegiv/ocms-pages/internal/service"
	"github.com/olegiv/ocms-pages/internal/store"
)

// maxJSONBody limits JSON request bodies.
const maxJSONBody = 1 << 20

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	svc    *service.ContentService
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *service.ContentService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total      int64  `json:"total,omitempty"`
	Page       int    `json:"page,omitempty"`
	PerPage    int    `json:"per_page,omitempty"`
	Pages      int    `json:"pages,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// writeServiceError maps a service error onto the API error envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		violation  *content.InvariantViolation
		transition *content.IllegalTransitionError
		invalid    *content.ValidationError
	)
	switch {
	case errors.As(err, &violation):
		WriteError(w, http.StatusUnprocessableEntity, "invariant_violation", err.Error(),
			map[string]string{"rule": violation.Rule})
	case errors.As(err, &transition):
		WriteError(w, http.StatusConflict, "illegal_transition", err.Error(),
			map[string]string{"from": transition.From, "to": transition.To})
	case errors.Is(err, content.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, content.ErrDuplicateSlug):
		WriteError(w, http.StatusConflict, "duplicate_slug", err.Error(), nil)
	case errors.Is(err, content.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &invalid):
		var details map[string]string
		if invalid.Field != "" {
			details = map[string]string{invalid.Field: invalid.Message}
		}
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error(), details)
	default:
		h.logger.Error("api request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		WriteInternalError(w, "Internal server error")
	}
}

// actor returns the caller resolved by middleware.RequireActor.
func actor(r *http.Request) service.Actor {
	a, _ := middleware.GetActor(r)
	return a
}

// parseIDParam parses a positive integer URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, content.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// parseIntQuery parses an optional integer query parameter.
func parseIntQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, content.Invalid(name, "must be an integer")
	}
	return n, nil
}

// decodeJSON decodes a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return content.Invalid("body", "invalid JSON: %v", err)
	}
	return nil
}

// parseIfUnmodifiedSince reads the If-Unmodified-Since header, accepting an
// HTTP-date or RFC 3339 timestamp. It returns nil when the header is absent.
func parseIfUnmodifiedSince(r *http.Request) (*time.Time, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Unmodified-Since"))
	if raw == "" {
		return nil, nil
	}
	if t, err := http.ParseTime(raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	return nil, content.Invalid("If-Unmodified-Since", "must be an HTTP date or RFC 3339 timestamp")
}

// encodeCursor renders a version cursor as an opaque token.
func encodeCursor(c *store.VersionCursor) string {
	if c == nil {
		return ""
	}
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses a token produced by encodeCursor.
func decodeCursor(token string) (*store.VersionCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, content.Invalid("cursor", "is malformed")
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, content.Invalid("cursor", "is malformed")
	}
	n, err1 := strconv.ParseInt(nanos, 10, 64)
	i, err2 := strconv.ParseInt(id, 10, 64)
	if err1 != nil || err2 != nil {
		return nil, content.Invalid("cursor", "is malformed")
	}
	return &store.VersionCursor{CreatedAt: time.Unix(0, n).UTC(), ID: i}, nil
}

// pageCount returns the number of pages needed for total items.
func pageCount(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
