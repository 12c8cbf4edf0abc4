// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes Prometheus metrics for the HTTP API and content operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ServerMetrics owns a private registry with Go and process collectors.
// All methods are safe to call on a nil receiver.
type ServerMetrics struct {
	reg       *prometheus.Registry
	handler   http.Handler
	inflight  prometheus.Gauge
	reqTotal  *prometheus.CounterVec
	reqDur    *prometheus.HistogramVec
	errsTotal *prometheus.CounterVec

	opsTotal     *prometheus.CounterVec
	opDur        *prometheus.HistogramVec
	versions     *prometheus.CounterVec
	mediaCleanup *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	webhooks     *prometheus.CounterVec
}

// New returns a fresh registry with standard collectors and content metrics.
// Labels are limited to bounded values (method, route, operation, result).
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		errsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route",
		}, []string{"method", "route"}),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_operations_total",
			Help: "Content operations by operation and result",
		}, []string{"operation", "result"}),
		opDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "content_operation_duration_seconds",
			Help:    "Content operation latency including the transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		versions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_page_versions_created_total",
			Help: "Page versions created by version status",
		}, []string{"status"}),
		mediaCleanup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_media_cleanup_total",
			Help: "Post-commit and compensating media deletions by result",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_published_cache_lookups_total",
			Help: "Published snapshot cache lookups by result (hit, miss)",
		}, []string{"result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_webhook_events_total",
			Help: "Lifecycle events handed to the webhook dispatcher by type",
		}, []string{"event"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.errsTotal,
		m.opsTotal,
		m.opDur,
		m.versions,
		m.mediaCleanup,
		m.cacheLookups,
		m.webhooks,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *ServerMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *ServerMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// ObserveOperation records one content operation.
func (m *ServerMetrics) ObserveOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.opsTotal.WithLabelValues(operation, result).Inc()
	m.opDur.WithLabelValues(operation).Observe(d.Seconds())
}

// IncVersion counts a created page version.
func (m *ServerMetrics) IncVersion(status string) {
	if m == nil {
		return
	}
	m.versions.WithLabelValues(status).Inc()
}

// IncMediaCleanup counts a media deletion attempt.
func (m *ServerMetrics) IncMediaCleanup(err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.mediaCleanup.WithLabelValues(result).Inc()
}

// IncCacheLookup counts a published cache lookup.
func (m *ServerMetrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// IncWebhookEvent counts a dispatched lifecycle event.
func (m *ServerMetrics) IncWebhookEvent(event string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(event).Inc()
}
