// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/util"
	"github.com/olegiv/ocms-pages/internal/webhook"
)

// MaxTitleLength is the longest accepted page title.
const MaxTitleLength = 255

// Pagination defaults for ListPages.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// CreatePageInput holds the fields of a new page.
type CreatePageInput struct {
	Title string          `json:"title"`
	Slug  string          `json:"slug"`
	SEO   json.RawMessage `json:"seo"`
}

// UpdatePageInput holds the editable page fields. Nil fields are left unchanged.
type UpdatePageInput struct {
	Title *string         `json:"title"`
	Slug  *string         `json:"slug"`
	SEO   json.RawMessage `json:"seo"`

	// IfUnmodifiedSince is the client's last-known updated_at.
	IfUnmodifiedSince *time.Time `json:"-"`
}

// ListPagesInput filters and paginates ListPages.
type ListPagesInput struct {
	Status  string
	Page    int
	PerPage int
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", content.Invalid("title", "is required")
	}
	if len(title) > MaxTitleLength {
		return "", content.Invalid("title", "must be at most %d characters", MaxTitleLength)
	}
	return title, nil
}

func checkSlug(slug string) error {
	if !util.IsValidSlug(slug) {
		return content.Invalid("slug", "must contain only lowercase letters, digits and single hyphens")
	}
	return nil
}

// uniqueSlug maps a unique constraint violation to ErrDuplicateSlug.
func uniqueSlug(err error) error {
	if store.IsUniqueViolation(err) {
		return content.ErrDuplicateSlug
	}
	return err
}

// CreatePage creates a draft page. An empty slug is derived from the title.
func (s *ContentService) CreatePage(ctx context.Context, actor Actor, in CreatePageInput) (*model.Page, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = util.Slugify(title)
	}
	if err := checkSlug(slug); err != nil {
		return nil, err
	}
	seo, err := jsonObjectArg("seo", in.SEO)
	if err != nil {
		return nil, err
	}

	var page model.Page
	fx := &effects{tenantID: actor.TenantID}
	err = s.run(ctx, "create_page", fx, func(ctx context.Context, q *store.Queries) error {
		now := s.now().UTC()
		page, err = q.CreatePage(ctx, store.CreatePageParams{
			TenantID:  actor.TenantID,
			Title:     title,
			Slug:      slug,
			Status:    model.PageStatusDraft,
			SEO:       seo,
			CreatedAt: now,
			UpdatedAt: now,
			UpdatedBy: actor.ActorID,
		})
		if err != nil {
			return uniqueSlug(err)
		}
		return s.audit(ctx, q, actor, model.ActionPageCreate, model.EntityPage, idString(page.ID),
			map[string]any{"title": title, "slug": slug}, now)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePage changes title, slug or seo of a page. Status is never written here.
func (s *ContentService) UpdatePage(ctx context.Context, actor Actor, id int64, in UpdatePageInput) (*model.Page, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		in.Title = &title
	}
	if in.Slug != nil {
		slug := strings.TrimSpace(*in.Slug)
		if err := checkSlug(slug); err != nil {
			return nil, err
		}
		in.Slug = &slug
	}
	var seo json.RawMessage
	if in.SEO != nil {
		var err error
		if seo, err = jsonObjectArg("seo", in.SEO); err != nil {
			return nil, err
		}
	}

	var page model.Page
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "update_page", fx, func(ctx context.Context, q *store.Queries) error {
		current, err := q.GetPage(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntityPage, id)
		}
		if err := content.CheckFreshness(current.UpdatedAt, in.IfUnmodifiedSince); err != nil {
			return err
		}

		next := current
		var changed []string
		if in.Title != nil && *in.Title != current.Title {
			next.Title = *in.Title
			changed = append(changed, "title")
		}
		if in.Slug != nil && *in.Slug != current.Slug {
			next.Slug = *in.Slug
			changed = append(changed, "slug")
		}
		if seo != nil && !sameJSON(seo, current.SEO) {
			next.SEO = seo
			changed = append(changed, "seo")
		}
		if len(changed) == 0 {
			return content.ErrNoChanges
		}

		now := s.now().UTC()
		err = q.UpdatePage(ctx, store.UpdatePageParams{
			ID:        id,
			TenantID:  actor.TenantID,
			Title:     next.Title,
			Slug:      next.Slug,
			SEO:       next.SEO,
			UpdatedAt: now,
			UpdatedBy: actor.ActorID,
		})
		if err != nil {
			return uniqueSlug(err)
		}
		fx.slugs = append(fx.slugs, current.Slug, next.Slug)

		if page, err = q.GetPage(ctx, actor.TenantID, id); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, model.ActionPageUpdate, model.EntityPage, idString(id),
			map[string]any{"fields": changed}, now)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// DeletePage soft-deletes a page with its sections and blocks. Versions,
// drafts and audit records are kept and the slug becomes free again.
func (s *ContentService) DeletePage(ctx context.Context, actor Actor, id int64) error {
	if err := actor.validate(); err != nil {
		return err
	}

	fx := &effects{tenantID: actor.TenantID}
	return s.run(ctx, "delete_page", fx, func(ctx context.Context, q *store.Queries) error {
		page, err := q.GetPage(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntityPage, id)
		}
		tree, err := loadTree(ctx, q, page)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := q.SoftDeleteBlocksByPage(ctx, actor.TenantID, id, now); err != nil {
			return fmt.Errorf("deleting blocks: %w", err)
		}
		if err := q.SoftDeleteSectionsByPage(ctx, actor.TenantID, id, now); err != nil {
			return fmt.Errorf("deleting sections: %w", err)
		}
		if err := q.SoftDeletePage(ctx, actor.TenantID, id, now); err != nil {
			return fmt.Errorf("deleting page: %w", err)
		}

		blocks := 0
		for _, sec := range tree.Sections {
			blocks += len(sec.Blocks)
		}
		fx.release(tree.MediaURLs()...)
		fx.slugs = append(fx.slugs, page.Slug)
		fx.events = append(fx.events, pageEvent(webhook.EventPageDeleted, actor, page, 0))

		return s.audit(ctx, q, actor, model.ActionPageDelete, model.EntityPage, idString(id),
			map[string]any{"slug": page.Slug, "sections": len(tree.Sections), "blocks": blocks}, now)
	})
}

// GetPage returns a page with its live sections and blocks.
func (s *ContentService) GetPage(ctx context.Context, actor Actor, id int64) (*model.Page, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	page, err := s.queries.GetPage(ctx, actor.TenantID, id)
	if err != nil {
		return nil, missing(err, model.EntityPage, id)
	}
	return loadTree(ctx, s.queries, page)
}

// ListPages returns one page of a tenant's pages and the total count.
func (s *ContentService) ListPages(ctx context.Context, actor Actor, in ListPagesInput) ([]model.Page, int64, error) {
	if err := actor.validate(); err != nil {
		return nil, 0, err
	}
	if in.Status != "" && !model.PageStatus(in.Status).Valid() {
		return nil, 0, content.Invalid("status", "must be draft or published")
	}
	perPage := in.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	page := in.Page
	if page < 1 {
		page = 1
	}

	total, err := s.queries.CountPages(ctx, actor.TenantID, in.Status)
	if err != nil {
		return nil, 0, fmt.Errorf("counting pages: %w", err)
	}
	pages, err := s.queries.ListPages(ctx, store.ListPagesParams{
		TenantID: actor.TenantID,
		Status:   in.Status,
		Limit:    int64(perPage),
		Offset:   int64((page - 1) * perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing pages: %w", err)
	}
	if pages == nil {
		pages = []model.Page{}
	}
	return pages, total, nil
}

// GetPublishedPage returns the latest published snapshot of a page by slug.
// Draft pages are reported as not found.
func (s *ContentService) GetPublishedPage(ctx context.Context, actor Actor, slug string) (content.Snapshot, error) {
	if strings.TrimSpace(actor.TenantID) == "" {
		return content.Snapshot{}, content.Invalid("tenant_id", "is required")
	}
	if s.published == nil {
		return s.loadPublished(ctx, actor.TenantID, slug)
	}
	snap, hit, err := s.published.Get(ctx, actor.TenantID, slug, s.loadPublished)
	if err != nil {
		return content.Snapshot{}, err
	}
	s.metrics.IncCacheLookup(hit)
	return snap, nil
}

func (s *ContentService) loadPublished(ctx context.Context, tenantID, slug string) (content.Snapshot, error) {
	page, err := s.queries.GetPageBySlug(ctx, tenantID, slug)
	if err != nil {
		return content.Snapshot{}, missing(err, model.EntityPage, slug)
	}
	if !page.IsPublished() {
		return content.Snapshot{}, content.NotFound(model.EntityPage, slug)
	}
	v, err := s.queries.GetLatestVersionByStatus(ctx, tenantID, page.ID, model.VersionStatusPublished)
	if err != nil {
		return content.Snapshot{}, missing(err, model.EntityPage, slug)
	}
	snap, err := content.DecodeSnapshot(v.Snapshot)
	if err != nil {
		return content.Snapshot{}, fmt.Errorf("decoding version %d: %w", v.Version, err)
	}
	return snap, nil
}
