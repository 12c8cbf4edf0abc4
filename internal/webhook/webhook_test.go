// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGenerateSignature(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		secret   string
		expected string
	}{
		{
			name:     "empty payload",
			payload:  []byte{},
			secret:   "secret",
			expected: "f9e66e179b6747ae54108f82f8ade8b3c25d76fd30afde6c395822c530196169",
		},
		{
			name:     "simple payload",
			payload:  []byte(`{"event":"test"}`),
			secret:   "mysecret",
			expected: "7d073b7b9f70c7f5e2e1fcb74c7e9f76f6e16c47e0d7e22f0b39c2a5c0e55f78",
		},
		{
			name:     "complex payload",
			payload:  []byte(`{"type":"page.created","timestamp":"2024-01-01T00:00:00Z","data":{"id":123,"title":"Test Page"}}`),
			secret:   "webhook-secret-key",
			expected: "0c9d3cde9d5c6b5c5a3e5c1c3b1e0a8f9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b",
		},
		{
			name:     "empty secret",
			payload:  []byte(`test`),
			secret:   "",
			expected: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSignature(tt.payload, tt.secret)
			// Verify it's a valid hex string of 64 characters (SHA256 = 256 bits = 32 bytes = 64 hex chars)
			if len(result) != 64 {
				t.Errorf("GenerateSignature() returned signature with length %d, expected 64", len(result))
			}

			// Verify consistency - same input should always produce same output
			result2 := GenerateSignature(tt.payload, tt.secret)
			if result != result2 {
				t.Errorf("GenerateSignature() not consistent: %s != %s", result, result2)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		secret    string
		wantValid bool
	}{
		{
			name:      "valid signature",
			payload:   []byte(`{"event":"test"}`),
			secret:    "mysecret",
			wantValid: true,
		},
		{
			name:      "empty payload valid signature",
			payload:   []byte{},
			secret:    "secret",
			wantValid: true,
		},
		{
			name:      "valid with unicode payload",
			payload:   []byte(`{"title":"Тест","content":"日本語"}`),
			secret:    "unicode-secret-ключ",
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Generate signature with secret
			signature := GenerateSignature(tt.payload, tt.secret)

			// Verify with correct secret
			if valid := VerifySignature(tt.payload, signature, tt.secret); valid != tt.wantValid {
				t.Errorf("VerifySignature() = %v, want %v", valid, tt.wantValid)
			}

			// Verify fails with wrong secret
			if tt.wantValid {
				wrongSig := VerifySignature(tt.payload, signature, "wrong-secret")
				if wrongSig {
					t.Error("VerifySignature() should return false with wrong secret")
				}
			}
		})
	}
}

func TestVerifySignature_InvalidSignature(t *testing.T) {
	payload := []byte(`{"test":"data"}`)
	secret := "mysecret"

	tests := []struct {
		name      string
		signature string
	}{
		{"empty signature", ""},
		{"invalid hex", "not-a-valid-hex-string"},
		{"wrong length", "abc123"},
		{"tampered signature", "0000000000000000000000000000000000000000000000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if VerifySignature(payload, tt.signature, secret) {
				t.Error("VerifySignature() should return false for invalid signature")
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int64
		expected time.Duration
	}{
		{"attempt 0", 0, 2 * time.Second}, // Treated as attempt 1
		{"attempt 1", 1, 2 * time.Second},
		{"attempt 2", 2, 4 * time.Second},
		{"attempt 3", 3, 8 * time.Second},
		{"attempt 5", 5, 32 * time.Second},
		{"attempt 10", 10, MaxBackoff}, // 1024s, capped
		{"attempt 40", 40, MaxBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calculateBackoff(InitialBackoff, tt.attempt)
			if result != tt.expected {
				t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestCalculateBackoff_NeverExceedsMax(t *testing.T) {
	for attempt := int64(1); attempt <= 100; attempt++ {
		if result := calculateBackoff(InitialBackoff, attempt); result > MaxBackoff {
			t.Errorf("calculateBackoff(%d) = %v, exceeds MaxBackoff %v", attempt, result, MaxBackoff)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		private bool
	}{
		{"loopback", "127.0.0.1", true},
		{"10.x.x.x", "10.0.0.1", true},
		{"172.16.x.x", "172.16.0.1", true},
		{"192.168.x.x", "192.168.1.1", true},
		{"link-local", "169.254.1.1", true},
		{"CGNAT", "100.64.0.1", true},
		{"multicast", "224.0.0.1", true},
		{"public cloudflare", "1.1.1.1", false},
		{"172.32.x.x public", "172.32.0.1", false},
		{"ipv6 loopback", "::1", true},
		{"ipv6 unique-local", "fd00::1", true},
		{"ipv6 public", "2001:db8::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
				t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}

	if !IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) should return true (deny by default)")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		allowPrivate bool
		errMsg       string // empty = valid
	}{
		{"valid https", "https://example.com/webhook", false, ""},
		{"valid with port", "http://example.com:8443/hook?token=abc", false, ""},
		{"ftp scheme", "ftp://example.com/file", false, "http or https"},
		{"javascript scheme", "javascript:alert(1)", false, "http or https"},
		{"no host", "https:///path", false, "hostname"},
		{"localhost", "http://localhost:8080/hook", false, "localhost"},
		{"sub localhost", "http://api.localhost/hook", false, "localhost"},
		{"private ip", "http://10.1.2.3/hook", false, "private"},
		{"loopback ip", "http://127.0.0.1/hook", false, "private"},
		{"loopback allowed", "http://127.0.0.1/hook", true, ""},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxURLLength), false, "maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url, tt.allowPrivate)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateURL(%q) = %v, want error containing %q", tt.url, err, tt.errMsg)
			}
		})
	}
}

func TestSSRFSafeDialContext(t *testing.T) {
	dialFn := ssrfSafeDialContext(&net.Dialer{})

	for _, addr := range []string{"127.0.0.1:80", "10.0.0.1:80", "[::1]:80"} {
		_, err := dialFn(t.Context(), "tcp", addr)
		if err == nil || !strings.Contains(err.Error(), "private IP") {
			t.Errorf("dial %s: expected 'private IP' error, got %v", addr, err)
		}
	}
}

func TestNewDispatcherRejectsPrivateURL(t *testing.T) {
	_, err := NewDispatcher(nil, Config{URLs: []string{"http://127.0.0.1:9/hook"}})
	if err == nil {
		t.Error("expected error for private webhook URL")
	}
}

type receivedDelivery struct {
	header http.Header
	body   []byte
}

func newTestDispatcher(t *testing.T, cfg Config) *Dispatcher {
	t.Helper()
	cfg.AllowPrivate = true
	d, err := NewDispatcher(nil, cfg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	d.Start(t.Context())
	t.Cleanup(d.Stop)
	return d
}

func TestDispatcherDeliversSignedEvent(t *testing.T) {
	received := make(chan receivedDelivery, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- receivedDelivery{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{URLs: []string{srv.URL}, Secret: "s3cret", Workers: 1})

	data := PageEventData{TenantID: "t1", PageID: 7, Slug: "home", Status: "published", Version: 3, ActorID: "u1"}
	if err := d.DispatchEvent(context.Background(), EventPagePublished, data); err != nil {
		t.Fatalf("DispatchEvent: %v", err)
	}

	select {
	case got := <-received:
		if !VerifySignature(got.body, got.header.Get("X-Webhook-Signature"), "s3cret") {
			t.Error("signature does not verify")
		}
		if got.header.Get("X-Webhook-Event") != EventPagePublished {
			t.Errorf("event header = %q", got.header.Get("X-Webhook-Event"))
		}
		if got.header.Get("X-Webhook-Delivery-ID") == "" {
			t.Error("missing delivery ID header")
		}

		var ev struct {
			ID   string        `json:"id"`
			Type string        `json:"type"`
			Data PageEventData `json:"data"`
		}
		if err := json.Unmarshal(got.body, &ev); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		if ev.ID == "" || ev.Type != EventPagePublished || ev.Data != data {
			t.Errorf("payload = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delivery not received")
	}
}

func TestDispatcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		once.Do(func() { close(done) })
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{
		URLs:           []string{srv.URL},
		Workers:        1,
		InitialBackoff: time.Millisecond,
	})
	_ = d.DispatchEvent(context.Background(), EventPageDeleted, PageEventData{PageID: 1})

	select {
	case <-done:
		if n := calls.Load(); n != 3 {
			t.Errorf("calls = %d, want 3", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("delivery never succeeded, calls = %d", calls.Load())
	}
}

func TestDispatcherDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, Config{
		URLs:           []string{srv.URL},
		Workers:        1,
		InitialBackoff: time.Millisecond,
	})

	result := d.attemptDelivery(context.Background(), &QueuedDelivery{
		DeliveryID: "d1", Event: EventPageUnpublished, Payload: []byte("{}"), URL: srv.URL,
	})
	if result.Success || result.ShouldRetry || result.StatusCode != http.StatusBadRequest {
		t.Errorf("result = %+v", result)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestDispatchWhenStoppedIsNoop(t *testing.T) {
	d, err := NewDispatcher(nil, Config{URLs: []string{"https://example.com/hook"}})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d.DispatchEvent(context.Background(), EventPageDeleted, nil); err != nil {
		t.Errorf("Dispatch on stopped dispatcher = %v", err)
	}
	if len(d.queue) != 0 {
		t.Errorf("queue length = %d, want 0", len(d.queue))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Workers != 3 {
		t.Errorf("DefaultConfig().Workers = %d, want 3", cfg.Workers)
	}
	if cfg.MaxAttempts != MaxAttempts {
		t.Errorf("DefaultConfig().MaxAttempts = %d, want %d", cfg.MaxAttempts, MaxAttempts)
	}
}
