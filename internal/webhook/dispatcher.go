// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Dispatcher queues events and delivers them to every configured endpoint.
type Dispatcher struct {
	urls        []string
	secret      string
	logger      *slog.Logger
	client      *http.Client
	limiter     *rate.Limiter
	queue       chan *QueuedDelivery
	workers     int
	maxAttempts int
	backoff     time.Duration
	wg          sync.WaitGroup
	done        chan struct{}
	mu          sync.RWMutex
	running     bool
}

// QueuedDelivery represents a delivery queued for processing.
type QueuedDelivery struct {
	DeliveryID string
	Event      string
	Payload    []byte
	URL        string
}

// Config holds dispatcher configuration.
type Config struct {
	URLs    []string
	Secret  string
	Workers int     // Number of concurrent delivery workers
	Rate    float64 // Deliveries per second across all workers (0 = unlimited)

	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration

	// AllowPrivate permits loopback and private endpoints.
	AllowPrivate bool
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		Rate:           10,
		QueueSize:      100,
		MaxAttempts:    MaxAttempts,
		InitialBackoff: InitialBackoff,
	}
}

// NewDispatcher validates the endpoint URLs and creates a dispatcher.
func NewDispatcher(logger *slog.Logger, cfg Config) (*Dispatcher, error) {
	defaults := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaults.InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, u := range cfg.URLs {
		if err := ValidateURL(u, cfg.AllowPrivate); err != nil {
			return nil, fmt.Errorf("webhook URL %q: %w", u, err)
		}
	}

	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	return &Dispatcher{
		urls:        cfg.URLs,
		secret:      cfg.Secret,
		logger:      logger,
		client:      newHTTPClient(cfg.AllowPrivate),
		limiter:     rate.NewLimiter(limit, 1),
		queue:       make(chan *QueuedDelivery, cfg.QueueSize),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.InitialBackoff,
		done:        make(chan struct{}),
	}, nil
}

func newHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext:         ssrfSafeDialContext(dialer),
	}
	if allowPrivate {
		transport.DialContext = dialer.DialContext
	}
	return &http.Client{
		Timeout:   RequestTimeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.workers, "endpoints", len(d.urls))

	for i := range d.workers {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the dispatcher and waits for workers to finish.
// Deliveries still queued are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// Dispatch queues event for every endpoint. It never blocks: a full queue
// drops the delivery with a warning.
func (d *Dispatcher) Dispatch(_ context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, cannot dispatch event",
			"event_type", event.Type, "category", "webhook")
		return nil
	}
	if len(d.urls) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling webhook event: %w", err)
	}

	for _, u := range d.urls {
		qd := &QueuedDelivery{
			DeliveryID: uuid.NewString(),
			Event:      event.Type,
			Payload:    payload,
			URL:        u,
		}

		select {
		case d.queue <- qd:
			d.logger.Debug("delivery queued", "delivery_id", qd.DeliveryID, "event", event.Type)
		default:
			d.logger.Warn("delivery queue full, dropping delivery",
				"delivery_id", qd.DeliveryID, "event", event.Type, "category", "webhook")
		}
	}

	return nil
}

// DispatchEvent is a convenience method to dispatch an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expectedSig := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
