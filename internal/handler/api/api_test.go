// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/testutil"
)

// assertStatusCode checks that the response has the expected status code.
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, w.Code, w.Body.String())
	}
}

// assertErrorResponse unmarshals and validates an error response.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error.Code != expectedCode {
		t.Errorf("expected code '%s', got %s", expectedCode, resp.Error.Code)
	}
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

	assertStatusCode(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %s", ct)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["key"] != "value" {
		t.Errorf("expected key 'value', got %s", resp["key"])
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"name": "test"}, &Meta{Total: 100, Page: 1, PerPage: 20, Pages: 5})

	assertStatusCode(t, w, http.StatusOK)

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Meta == nil {
		t.Fatal("expected meta to be present")
	}
	if resp.Meta.Total != 100 || resp.Meta.Pages != 5 {
		t.Errorf("unexpected meta %+v", resp.Meta)
	}
}

func TestWriteServiceError(t *testing.T) {
	h := NewHandler(nil, testutil.TestLoggerSilent())

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"invariant", &content.InvariantViolation{Rule: content.RulePageEmpty, Detail: "no sections"}, http.StatusUnprocessableEntity, "invariant_violation"},
		{"transition", &content.IllegalTransitionError{From: "published", To: "published", Edge: content.EdgePublish}, http.StatusConflict, "illegal_transition"},
		{"conflict", content.ErrConflict, http.StatusConflict, "conflict"},
		{"duplicate slug", content.ErrDuplicateSlug, http.StatusConflict, "duplicate_slug"},
		{"not found", content.NotFound("page", 9), http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("page 3: %w", content.NotFound("page", 3)), http.StatusNotFound, "not_found"},
		{"validation", content.Invalid("title", "is required"), http.StatusBadRequest, "validation_error"},
		{"no changes", content.ErrNoChanges, http.StatusBadRequest, "validation_error"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assertStatusCode(t, w, tt.wantCode)
			resp := assertErrorResponse(t, w, tt.wantErr)
			if tt.wantCode == http.StatusInternalServerError && resp.Error.Message == tt.err.Error() {
				t.Error("internal errors must not leak their message")
			}
		})
	}
}

func TestInvariantErrorCarriesRule(t *testing.T) {
	h := NewHandler(nil, testutil.TestLoggerSilent())
	w := httptest.NewRecorder()
	h.writeServiceError(w, httptest.NewRequest(http.MethodPost, "/", nil),
		&content.InvariantViolation{Rule: content.RuleSectionEmpty, Detail: "section 4 has no blocks"})

	resp := assertErrorResponse(t, w, "invariant_violation")
	if resp.Error.Details["rule"] != content.RuleSectionEmpty {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestParseIfUnmodifiedSince(t *testing.T) {
	want := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		header  string
		want    *time.Time
		wantErr bool
	}{
		{"absent", "", nil, false},
		{"http date", "Thu, 02 Apr 2026 10:30:00 GMT", &want, false},
		{"rfc3339", "2026-04-02T10:30:00Z", &want, false},
		{"rfc3339 offset", "2026-04-02T12:30:00+02:00", &want, false},
		{"garbage", "yesterday", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/", nil)
			if tt.header != "" {
				r.Header.Set("If-Unmodified-Since", tt.header)
			}
			got, err := parseIfUnmodifiedSince(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("got %v, want nil", got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersionCursorToken(t *testing.T) {
	c := &store.VersionCursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 678, time.UTC), ID: 42}

	got, err := decodeCursor(encodeCursor(c))
	if err != nil {
		t.Fatalf("decodeCursor() error = %v", err)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) || got.ID != c.ID {
		t.Errorf("decodeCursor() = %+v, want %+v", got, c)
	}

	if encodeCursor(nil) != "" {
		t.Error("encodeCursor(nil) should be empty")
	}
	if c, err := decodeCursor(""); c != nil || err != nil {
		t.Errorf("decodeCursor(\"\") = %v, %v", c, err)
	}
	for _, bad := range []string{"!!!", "bm9kb3Q", "YS5i"} {
		if _, err := decodeCursor(bad); err == nil {
			t.Errorf("decodeCursor(%q) should fail", bad)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := pageCount(tt.total, tt.perPage); got != tt.want {
			t.Errorf("pageCount(%d, %d) = %d, want %d", tt.total, tt.perPage, got, tt.want)
		}
	}
}
