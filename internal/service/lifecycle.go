// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/webhook"
)

// BulkAction is the operation applied by BulkPublish.
type BulkAction string

// Bulk actions
const (
	BulkPublish   BulkAction = "publish"
	BulkUnpublish BulkAction = "unpublish"
)

// MaxBulkPages is the largest batch BulkPublish accepts.
const MaxBulkPages = 100

// lifecycleStep describes one status change of the page lifecycle.
type lifecycleStep struct {
	edge    content.Edge
	to      model.PageStatus
	mode    content.Mode
	version model.VersionStatus
	action  string
	event   string
}

var (
	publishStep = lifecycleStep{
		edge:    content.EdgePublish,
		to:      model.PageStatusPublished,
		mode:    content.ModePublish,
		version: model.VersionStatusPublished,
		action:  model.ActionPagePublish,
		event:   webhook.EventPagePublished,
	}
	unpublishStep = lifecycleStep{
		edge:    content.EdgeUnpublish,
		to:      model.PageStatusDraft,
		mode:    content.ModeEdit,
		version: model.VersionStatusUnpublished,
		action:  model.ActionPageUnpublish,
		event:   webhook.EventPageUnpublished,
	}
)

// PublishPage validates a draft page for publication, marks it published and
// stores the new published version.
func (s *ContentService) PublishPage(ctx context.Context, actor Actor, id int64) (*model.PageVersion, error) {
	return s.changeStatus(ctx, actor, id, "publish_page", publishStep)
}

// UnpublishPage returns a published page to draft and records an
// unpublished version.
func (s *ContentService) UnpublishPage(ctx context.Context, actor Actor, id int64) (*model.PageVersion, error) {
	return s.changeStatus(ctx, actor, id, "unpublish_page", unpublishStep)
}

func (s *ContentService) changeStatus(ctx context.Context, actor Actor, id int64, op string, step lifecycleStep) (*model.PageVersion, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(actor.TenantID, id)
	defer unlock()

	var version model.PageVersion
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, op, fx, func(ctx context.Context, q *store.Queries) error {
		now := s.now().UTC()
		v, err := s.applyStep(ctx, q, actor, id, step, now, fx)
		if err != nil {
			return err
		}
		version = v
		return s.audit(ctx, q, actor, step.action, model.EntityPage, idString(id),
			map[string]any{"version": v.Version}, now)
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// applyStep locks one page, moves it along step and stores the resulting version.
func (s *ContentService) applyStep(ctx context.Context, q *store.Queries, actor Actor, id int64, step lifecycleStep, now time.Time, fx *effects) (model.PageVersion, error) {
	page, err := q.LockPage(ctx, actor.TenantID, id)
	if err != nil {
		return model.PageVersion{}, missing(err, model.EntityPage, id)
	}
	if err := content.Transition(page.Status, step.to, step.edge); err != nil {
		return model.PageVersion{}, err
	}

	err = q.UpdatePageStatus(ctx, store.UpdatePageStatusParams{
		ID:        id,
		TenantID:  actor.TenantID,
		Status:    step.to,
		UpdatedAt: now,
		UpdatedBy: actor.ActorID,
	})
	if err != nil {
		return model.PageVersion{}, fmt.Errorf("updating page status: %w", err)
	}
	page.Status = step.to
	page.UpdatedAt = now

	tree, err := validateTree(ctx, q, page, step.mode)
	if err != nil {
		return model.PageVersion{}, err
	}
	v, err := s.insertVersion(ctx, q, actor, tree, step.version, now, fx)
	if err != nil {
		return model.PageVersion{}, err
	}

	fx.slugs = append(fx.slugs, page.Slug)
	fx.events = append(fx.events, pageEvent(step.event, actor, page, v.Version))
	return v, nil
}

// RollbackPage restores the content of a stored version as the page's live
// tree. Only a published page can be rolled back. It becomes a draft and a
// rollback version is appended, so version numbers keep moving forward.
func (s *ContentService) RollbackPage(ctx context.Context, actor Actor, id, target int64) (*model.PageVersion, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(actor.TenantID, id)
	defer unlock()

	var version model.PageVersion
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "rollback_page", fx, func(ctx context.Context, q *store.Queries) error {
		page, err := q.LockPage(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntityPage, id)
		}
		stored, err := q.GetPageVersion(ctx, actor.TenantID, id, target)
		if err != nil {
			return missing(err, "version", target)
		}
		snap, err := content.DecodeSnapshot(stored.Snapshot)
		if err != nil {
			return fmt.Errorf("decoding version %d: %w", target, err)
		}
		snap = snap.Compacted()

		if err := content.Transition(page.Status, model.PageStatusDraft, content.EdgeRollback); err != nil {
			return err
		}

		old, err := loadTree(ctx, q, page)
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

		err = q.UpdatePage(ctx, store.UpdatePageParams{
			ID:        id,
			TenantID:  actor.TenantID,
			Title:     snap.Page.Title,
			Slug:      snap.Page.Slug,
			SEO:       snap.Page.SEO,
			UpdatedAt: now,
			UpdatedBy: actor.ActorID,
		})
		if err != nil {
			return uniqueSlug(err)
		}
		err = q.UpdatePageStatus(ctx, store.UpdatePageStatusParams{
			ID:        id,
			TenantID:  actor.TenantID,
			Status:    model.PageStatusDraft,
			UpdatedAt: now,
			UpdatedBy: actor.ActorID,
		})
		if err != nil {
			return fmt.Errorf("updating page status: %w", err)
		}

		if err := restoreSnapshot(ctx, q, actor.TenantID, id, snap, now); err != nil {
			return err
		}

		restored, err := q.GetPage(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		tree, err := validateTree(ctx, q, restored, content.ModeEdit)
		if err != nil {
			return err
		}
		if version, err = s.insertVersion(ctx, q, actor, tree, model.VersionStatusRollback, now, fx); err != nil {
			return err
		}

		fx.release(old.MediaURLs()...)
		fx.slugs = append(fx.slugs, page.Slug, restored.Slug)
		fx.events = append(fx.events, pageEvent(webhook.EventPageRolledBack, actor, restored, version.Version))

		return s.audit(ctx, q, actor, model.ActionPageRollback, model.EntityPage, idString(id),
			map[string]any{"target_version": target, "version": version.Version, "previous_status": page.Status}, now)
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// restoreSnapshot recreates the sections and blocks of snap as new rows.
func restoreSnapshot(ctx context.Context, q *store.Queries, tenantID string, pageID int64, snap content.Snapshot, at time.Time) error {
	for _, ss := range snap.Sections {
		section, err := q.CreateSection(ctx, store.CreateSectionParams{
			TenantID:  tenantID,
			PageID:    pageID,
			Type:      model.SectionType(ss.Type),
			Order:     ss.Order,
			Settings:  ss.Settings,
			CreatedAt: at,
			UpdatedAt: at,
		})
		if err != nil {
			return fmt.Errorf("restoring section %d: %w", ss.ID, err)
		}
		for _, sb := range ss.Blocks {
			_, err := q.CreateBlock(ctx, store.CreateBlockParams{
				TenantID:  tenantID,
				SectionID: section.ID,
				Type:      model.BlockType(sb.Type),
				Order:     sb.Order,
				Content:   sb.Content,
				MediaURL:  sb.MediaURL,
				CreatedAt: at,
				UpdatedAt: at,
			})
			if err != nil {
				return fmt.Errorf("restoring block %d: %w", sb.ID, err)
			}
		}
	}
	return nil
}

// AutosavePage stores the current content tree of a page as its draft,
// replacing any earlier autosave.
func (s *ContentService) AutosavePage(ctx context.Context, actor Actor, id int64) (*model.PageDraft, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var draft model.PageDraft
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "autosave_page", fx, func(ctx context.Context, q *store.Queries) error {
		page, err := q.GetPage(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntityPage, id)
		}
		tree, err := loadTree(ctx, q, page)
		if err != nil {
			return err
		}
		data, err := content.BuildSnapshot(tree).Encode()
		if err != nil {
			return fmt.Errorf("encoding snapshot: %w", err)
		}

		now := s.now().UTC()
		draft, err = q.UpsertPageDraft(ctx, store.UpsertPageDraftParams{
			TenantID:  actor.TenantID,
			PageID:    id,
			Snapshot:  data,
			UpdatedAt: now,
			UpdatedBy: actor.ActorID,
		})
		if err != nil {
			return fmt.Errorf("saving draft: %w", err)
		}
		return s.audit(ctx, q, actor, model.ActionPageAutosave, model.EntityPage, idString(id),
			map[string]any{"sections": len(tree.Sections)}, now)
	})
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// GetDraft returns the autosave draft of a page.
func (s *ContentService) GetDraft(ctx context.Context, actor Actor, id int64) (*model.PageDraft, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if _, err := s.queries.GetPage(ctx, actor.TenantID, id); err != nil {
		return nil, missing(err, model.EntityPage, id)
	}
	draft, err := s.queries.GetPageDraft(ctx, actor.TenantID, id)
	if err != nil {
		return nil, missing(err, "draft", id)
	}
	return &draft, nil
}

// BulkPublish publishes or unpublishes a batch of pages in one transaction.
// Pages are locked in ascending id order and any failure aborts the batch.
func (s *ContentService) BulkPublish(ctx context.Context, actor Actor, ids []int64, action BulkAction) ([]model.PageVersion, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var step lifecycleStep
	var auditAction string
	switch action {
	case BulkPublish:
		step, auditAction = publishStep, model.ActionPageBulkPublish
	case BulkUnpublish:
		step, auditAction = unpublishStep, model.ActionPageBulkUnpub
	default:
		return nil, content.Invalid("action", "must be publish or unpublish")
	}

	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)
	if len(ordered) == 0 {
		return nil, content.Invalid("page_ids", "at least one page id is required")
	}
	if len(ordered) > MaxBulkPages {
		return nil, content.Invalid("page_ids", "at most %d pages per batch", MaxBulkPages)
	}

	unlock := s.locks.lock(actor.TenantID, ordered...)
	defer unlock()

	var versions []model.PageVersion
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "bulk_"+string(action), fx, func(ctx context.Context, q *store.Queries) error {
		now := s.now().UTC()
		versions = make([]model.PageVersion, 0, len(ordered))
		for _, id := range ordered {
			v, err := s.applyStep(ctx, q, actor, id, step, now, fx)
			if err != nil {
				return fmt.Errorf("page %d: %w", id, err)
			}
			versions = append(versions, v)
		}
		return s.audit(ctx, q, actor, auditAction, model.EntityPage, "*",
			map[string]any{"count": len(ordered), "page_ids": ordered}, now)
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}
