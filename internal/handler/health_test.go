// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olegiv/ocms-pages/internal/testutil"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	db := testutil.TestDB(t)

	tests := []struct {
		name       string
		cache      Pinger
		wantCode   int
		wantStatus string
		wantChecks int
	}{
		{"database only", nil, http.StatusOK, "healthy", 1},
		{"healthy cache", pingerFunc(func(context.Context) error { return nil }), http.StatusOK, "healthy", 2},
		{"failing cache", pingerFunc(func(context.Context) error { return errors.New("connection refused") }), http.StatusServiceUnavailable, "degraded", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(db, tt.cache, "test")
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantCode)
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != tt.wantChecks {
				t.Errorf("checks = %v", status.Checks)
			}
			if status.Version != "test" {
				t.Errorf("version = %q", status.Version)
			}
			if status.System != nil {
				t.Error("system info should only be present in verbose mode")
			}
		})
	}
}

func TestHealthVerbose(t *testing.T) {
	h := NewHealthHandler(testutil.TestDB(t), nil, "test")
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil))

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.System == nil || status.System.GoVersion == "" {
		t.Errorf("System = %+v, want runtime details", status.System)
	}
}

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(nil, nil, "test")
	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
