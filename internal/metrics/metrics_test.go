// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if c := pb.GetCounter(); c != nil {
		return c.GetValue()
	}
	return pb.GetGauge().GetValue()
}

func TestNew_HandlerServesCollectors(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"http_inflight_requests", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("metric %q not found in /metrics output", name)
		}
	}
}

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("publish_page", nil, 10*time.Millisecond)
	m.ObserveOperation("publish_page", nil, 10*time.Millisecond)
	m.ObserveOperation("publish_page", errors.New("boom"), time.Millisecond)

	if got := value(t, m.opsTotal.WithLabelValues("publish_page", ResultOK)); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := value(t, m.opsTotal.WithLabelValues("publish_page", ResultError)); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncVersion("published")
	m.IncMediaCleanup(errors.New("gone"))
	m.IncCacheLookup(true)
	m.IncCacheLookup(false)
	m.IncWebhookEvent("page.published")

	checks := []struct {
		name string
		got  float64
	}{
		{"versions", value(t, m.versions.WithLabelValues("published"))},
		{"media cleanup errors", value(t, m.mediaCleanup.WithLabelValues(ResultError))},
		{"cache hits", value(t, m.cacheLookups.WithLabelValues("hit"))},
		{"cache misses", value(t, m.cacheLookups.WithLabelValues("miss"))},
		{"webhooks", value(t, m.webhooks.WithLabelValues("page.published"))},
	}
	for _, c := range checks {
		if c.got != 1 {
			t.Errorf("%s = %v, want 1", c.name, c.got)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *ServerMetrics

	m.ObserveOperation("x", nil, time.Second)
	m.IncVersion("published")
	m.IncMediaCleanup(nil)
	m.IncCacheLookup(true)
	m.IncWebhookEvent("page.deleted")

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/pages/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, path := range []string{"/pages/1", "/pages/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := value(t, m.reqTotal.WithLabelValues(http.MethodGet, "/pages/{id}", "500")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := value(t, m.errsTotal.WithLabelValues(http.MethodGet, "/pages/{id}")); got != 2 {
		t.Errorf("errors = %v, want 2", got)
	}
	if got := value(t, m.inflight); got != 0 {
		t.Errorf("inflight = %v, want 0", got)
	}
}
