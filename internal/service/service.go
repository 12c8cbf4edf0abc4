// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the content operations on tenant pages.
// Every mutation runs in one database transaction that ends with an audit
// record; media cleanup, cache invalidation and webhooks run after commit.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/olegiv/ocms-pages/internal/cache"
	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/media"
	"github.com/olegiv/ocms-pages/internal/metrics"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/webhook"
)

// Actor identifies the tenant and user a call is made for.
type Actor struct {
	TenantID string
	ActorID  string
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.TenantID) == "" {
		return content.Invalid("tenant_id", "is required")
	}
	if strings.TrimSpace(a.ActorID) == "" {
		return content.Invalid("actor_id", "is required")
	}
	return nil
}

// Notifier receives page lifecycle events once their transaction committed.
// *webhook.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, event *webhook.Event) error
}

// Options holds the optional collaborators of a ContentService.
type Options struct {
	Media     media.Store
	Published *cache.PublishedCache
	Notifier  Notifier
	Metrics   *metrics.ServerMetrics
	Logger    *slog.Logger
}

// ContentService runs page, section, block and lifecycle operations.
type ContentService struct {
	db        *sql.DB
	queries   *store.Queries
	media     media.Store
	published *cache.PublishedCache
	notifier  Notifier
	metrics   *metrics.ServerMetrics
	logger    *slog.Logger
	tracer    trace.Tracer
	locks     *pageLocks
	now       func() time.Time
}

// NewContentService creates a ContentService. queries must be built for db
// and carry its dialect.
func NewContentService(db *sql.DB, queries *store.Queries, opts Options) *ContentService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService{
		db:        db,
		queries:   queries,
		media:     opts.Media,
		published: opts.Published,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		logger:    logger,
		tracer:    otel.Tracer("ocms-pages/service"),
		locks:     newPageLocks(),
		now:       time.Now,
	}
}

// effects collects the work that must wait for the transaction outcome.
type effects struct {
	tenantID string
	// saved are media URLs written before the transaction; deleted on failure.
	saved []string
	// released are media URLs a committed change stopped using.
	released []string
	slugs    []string
	versions []model.VersionStatus
	events   []*webhook.Event
}

func (f *effects) release(urls ...string) {
	for _, u := range urls {
		if u != "" {
			f.released = append(f.released, u)
		}
	}
}

// run executes fn in a transaction and applies fx according to the outcome.
func (s *ContentService) run(ctx context.Context, op string, fx *effects, fn func(ctx context.Context, q *store.Queries) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "content."+op, trace.WithAttributes(
		attribute.String("tenant.id", fx.tenantID),
	))
	defer span.End()

	err := s.withTx(ctx, func(q *store.Queries) error {
		return fn(ctx, q)
	})
	s.metrics.ObserveOperation(op, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.compensate(ctx, fx.saved)
		return err
	}

	s.afterCommit(ctx, fx)
	return nil
}

// withTx runs fn against queries bound to a new transaction and commits
// when fn succeeds.
func (s *ContentService) withTx(ctx context.Context, fn func(q *store.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// compensate deletes files saved for a transaction that did not commit.
func (s *ContentService) compensate(ctx context.Context, urls []string) {
	if s.media == nil {
		return
	}
	for _, url := range urls {
		if _, err := s.media.Delete(context.WithoutCancel(ctx), url); err != nil {
			s.logger.Warn("failed to delete uploaded media after rollback",
				"category", model.EventCategoryMedia, "url", url, "error", err)
		}
	}
}

func (s *ContentService) afterCommit(ctx context.Context, fx *effects) {
	ctx = context.WithoutCancel(ctx)

	for _, status := range fx.versions {
		s.metrics.IncVersion(string(status))
	}

	s.cleanupMedia(ctx, fx.released)

	if s.published != nil && len(fx.slugs) > 0 {
		if err := s.published.Invalidate(ctx, fx.tenantID, fx.slugs...); err != nil {
			s.logger.Warn("failed to invalidate published cache",
				"category", model.EventCategoryCache, "tenant_id", fx.tenantID, "error", err)
		}
	}

	if s.notifier != nil {
		for _, ev := range fx.events {
			if err := s.notifier.Dispatch(ctx, ev); err != nil {
				s.logger.Warn("failed to queue webhook event",
					"category", model.EventCategoryWebhook, "event", ev.Type, "error", err)
				continue
			}
			s.metrics.IncWebhookEvent(ev.Type)
		}
	}
}

// cleanupMedia deletes released files that no live block and no version
// refers to any more. Failures are logged and never returned.
func (s *ContentService) cleanupMedia(ctx context.Context, urls []string) {
	if s.media == nil {
		return
	}
	for _, url := range dedupe(urls) {
		n, err := s.queries.CountMediaReferences(ctx, url)
		if err != nil {
			s.logger.Warn("failed to count media references",
				"category", model.EventCategoryMedia, "url", url, "error", err)
			continue
		}
		if n > 0 {
			continue
		}
		_, err = s.media.Delete(ctx, url)
		s.metrics.IncMediaCleanup(err)
		if err != nil {
			s.logger.Warn("failed to delete orphaned media",
				"category", model.EventCategoryMedia, "url", url, "error", err)
		}
	}
}

// audit appends the audit record of an operation. It is the last statement
// of every mutating transaction.
func (s *ContentService) audit(ctx context.Context, q *store.Queries, actor Actor, action, entityType, entityID string, payload any, at time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}
	_, err = q.CreateAuditLog(ctx, store.CreateAuditLogParams{
		TenantID:   actor.TenantID,
		ActorID:    actor.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    data,
		CreatedAt:  at,
	})
	if err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// loadTree loads the live sections and blocks of page.
func loadTree(ctx context.Context, q *store.Queries, page model.Page) (*model.Page, error) {
	sections, err := q.ListSectionsByPage(ctx, page.TenantID, page.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sections: %w", err)
	}
	blocks, err := q.ListBlocksByPage(ctx, page.TenantID, page.ID)
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}

	bySection := make(map[int64][]model.Block, len(sections))
	for _, b := range blocks {
		bySection[b.SectionID] = append(bySection[b.SectionID], b)
	}
	for i := range sections {
		sections[i].Blocks = bySection[sections[i].ID]
	}
	page.Sections = sections
	return &page, nil
}

// validateTree reloads the page tree and checks it in the given mode.
func validateTree(ctx context.Context, q *store.Queries, page model.Page, mode content.Mode) (*model.Page, error) {
	tree, err := loadTree(ctx, q, page)
	if err != nil {
		return nil, err
	}
	if err := content.Validate(tree, mode); err != nil {
		return nil, err
	}
	return tree, nil
}

// insertVersion stores the snapshot of tree as the next version of the page
// and records the media files it refers to.
func (s *ContentService) insertVersion(ctx context.Context, q *store.Queries, actor Actor, tree *model.Page, status model.VersionStatus, at time.Time, fx *effects) (model.PageVersion, error) {
	snap := content.BuildSnapshot(tree)
	data, err := snap.Encode()
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("encoding snapshot: %w", err)
	}

	latest, err := q.MaxVersion(ctx, actor.TenantID, tree.ID)
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("reading version number: %w", err)
	}

	v, err := q.CreatePageVersion(ctx, store.CreatePageVersionParams{
		TenantID:  actor.TenantID,
		PageID:    tree.ID,
		Version:   latest + 1,
		Status:    status,
		Snapshot:  data,
		CreatedBy: actor.ActorID,
		CreatedAt: at,
	})
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("creating version: %w", err)
	}

	for _, url := range dedupe(snap.MediaURLs()) {
		if err := q.AddVersionMedia(ctx, v.ID, url); err != nil {
			return model.PageVersion{}, fmt.Errorf("recording version media: %w", err)
		}
	}

	fx.versions = append(fx.versions, status)
	return v, nil
}

func pageEvent(eventType string, actor Actor, page model.Page, version int64) *webhook.Event {
	return webhook.NewEvent(eventType, webhook.PageEventData{
		TenantID: actor.TenantID,
		PageID:   page.ID,
		Title:    page.Title,
		Slug:     page.Slug,
		Status:   string(page.Status),
		Version:  version,
		ActorID:  actor.ActorID,
	})
}

// missing maps sql.ErrNoRows to a NotFound error for entity.
func missing(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return content.NotFound(entity, id)
	}
	return err
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func dedupe[T comparable](items []T) []T {
	seen := make(map[T]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

// jsonObjectArg checks that raw is absent or a JSON object.
func jsonObjectArg(field string, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, content.Invalid(field, "must be a JSON object")
	}
	return raw, nil
}

// sameJSON reports whether two JSON documents are semantically equal.
func sameJSON(a, b json.RawMessage) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return string(a) == string(b)
	}
	ea, _ := json.Marshal(va)
	eb, _ := json.Marshal(vb)
	return string(ea) == string(eb)
}
