// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/render"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Upload is a media file sent along with a block.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// CreateBlockInput holds the fields of a new block. File takes precedence
// over MediaURL.
type CreateBlockInput struct {
	Type     model.BlockType `json:"type"`
	Content  json.RawMessage `json:"content"`
	MediaURL string          `json:"media_url"`
	File     *Upload         `json:"-"`
}

// UpdateBlockInput holds the editable block fields. Nil fields are left
// unchanged. ClearMedia removes the media URL, for example when an image
// block becomes a text block.
type UpdateBlockInput struct {
	Type       *model.BlockType `json:"type"`
	Content    json.RawMessage  `json:"content"`
	MediaURL   *string          `json:"media_url"`
	ClearMedia bool             `json:"clear_media"`
	File       *Upload          `json:"-"`

	IfUnmodifiedSince *time.Time `json:"-"`
}

func checkBlockType(t model.BlockType) error {
	if !t.Valid() {
		return content.Invalid("type", "unknown block type %q", t)
	}
	return nil
}

// saveUpload stores an uploaded file before the transaction starts and
// registers it for deletion if the transaction fails.
func (s *ContentService) saveUpload(ctx context.Context, up *Upload, fx *effects) (string, error) {
	if s.media == nil {
		return "", content.Invalid("file", "media uploads are not configured")
	}
	url, err := s.media.Save(ctx, up.Filename, up.Reader)
	if err != nil {
		return "", err
	}
	fx.saved = append(fx.saved, url)
	return url, nil
}

// CreateBlock appends a block to the end of a section.
func (s *ContentService) CreateBlock(ctx context.Context, actor Actor, sectionID int64, in CreateBlockInput) (*model.Block, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := checkBlockType(in.Type); err != nil {
		return nil, err
	}
	body, err := render.NormalizeContent(in.Type, in.Content)
	if err != nil {
		return nil, err
	}

	fx := &effects{tenantID: actor.TenantID}
	mediaURL := in.MediaURL
	if in.File != nil {
		if mediaURL, err = s.saveUpload(ctx, in.File, fx); err != nil {
			return nil, err
		}
	}

	var block model.Block
	err = s.run(ctx, "create_block", fx, func(ctx context.Context, q *store.Queries) error {
		_, page, err := lockSection(ctx, q, actor.TenantID, sectionID)
		if err != nil {
			return err
		}
		if err := content.CheckBlockMedia(in.Type, mediaURL); err != nil {
			return err
		}
		last, err := q.MaxBlockOrder(ctx, actor.TenantID, sectionID)
		if err != nil {
			return fmt.Errorf("reading block order: %w", err)
		}

		now := s.now().UTC()
		block, err = q.CreateBlock(ctx, store.CreateBlockParams{
			TenantID:  actor.TenantID,
			SectionID: sectionID,
			Type:      in.Type,
			Order:     last + 1,
			Content:   body,
			MediaURL:  mediaURL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("creating block: %w", err)
		}
		if err := q.TouchPage(ctx, actor.TenantID, page.ID, now, actor.ActorID); err != nil {
			return err
		}
		if _, err := validateTree(ctx, q, page, content.ModeEdit); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, model.ActionBlockCreate, model.EntityBlock, idString(block.ID),
			map[string]any{"section_id": sectionID, "type": in.Type, "order": block.Order, "media_url": mediaURL}, now)
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// UpdateBlock changes the type, content or media of a block. A replaced
// media file is deleted after commit once nothing refers to it.
func (s *ContentService) UpdateBlock(ctx context.Context, actor Actor, id int64, in UpdateBlockInput) (*model.Block, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Type != nil {
		if err := checkBlockType(*in.Type); err != nil {
			return nil, err
		}
	}
	if in.ClearMedia && (in.File != nil || in.MediaURL != nil) {
		return nil, content.Invalid("clear_media", "cannot be combined with new media")
	}

	fx := &effects{tenantID: actor.TenantID}
	var uploaded string
	if in.File != nil {
		var err error
		if uploaded, err = s.saveUpload(ctx, in.File, fx); err != nil {
			return nil, err
		}
	}

	var block model.Block
	err := s.run(ctx, "update_block", fx, func(ctx context.Context, q *store.Queries) error {
		current, err := q.GetBlock(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntityBlock, id)
		}
		if err := content.CheckFreshness(current.UpdatedAt, in.IfUnmodifiedSince); err != nil {
			return err
		}
		section, err := q.GetSection(ctx, actor.TenantID, current.SectionID)
		if err != nil {
			return missing(err, model.EntitySection, current.SectionID)
		}
		page, err := q.GetPage(ctx, actor.TenantID, section.PageID)
		if err != nil {
			return missing(err, model.EntityPage, section.PageID)
		}

		next := current
		var changed []string
		if in.Type != nil && *in.Type != current.Type {
			next.Type = *in.Type
			changed = append(changed, "type")
		}
		if in.Content != nil {
			body, err := render.NormalizeContent(next.Type, in.Content)
			if err != nil {
				return err
			}
			if !sameJSON(body, current.Content) {
				next.Content = body
				changed = append(changed, "content")
			}
		}
		switch {
		case in.File != nil:
			next.MediaURL = uploaded
		case in.MediaURL != nil:
			next.MediaURL = *in.MediaURL
		case in.ClearMedia:
			next.MediaURL = ""
		}
		if next.MediaURL != current.MediaURL {
			changed = append(changed, "media_url")
		}
		if len(changed) == 0 {
			return content.ErrNoChanges
		}

		now := s.now().UTC()
		err = q.UpdateBlock(ctx, store.UpdateBlockParams{
			ID:        id,
			TenantID:  actor.TenantID,
			Type:      next.Type,
			Content:   next.Content,
			MediaURL:  next.MediaURL,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("updating block: %w", err)
		}
		if err := q.TouchPage(ctx, actor.TenantID, page.ID, now, actor.ActorID); err != nil {
			return err
		}
		if _, err := validateTree(ctx, q, page, content.ModeEdit); err != nil {
			return err
		}
		if block, err = q.GetBlock(ctx, actor.TenantID, id); err != nil {
			return err
		}

		if current.MediaURL != next.MediaURL {
			fx.release(current.MediaURL)
		}
		return s.audit(ctx, q, actor, model.ActionBlockUpdate, model.EntityBlock, idString(id),
			map[string]any{"section_id": current.SectionID, "fields": changed}, now)
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// DeleteBlock soft-deletes a block and closes the gap in its section's
// block order. A section may be left without blocks; publish rejects it.
func (s *ContentService) DeleteBlock(ctx context.Context, actor Actor, id int64) error {
	if err := actor.validate(); err != nil {
		return err
	}

	fx := &effects{tenantID: actor.TenantID}
	return s.run(ctx, "delete_block", fx, func(ctx context.Context, q *store.Queries) error {
		block, err := q.GetBlock(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntityBlock, id)
		}
		section, page, err := lockSection(ctx, q, actor.TenantID, block.SectionID)
		if err != nil {
			return err
		}
		if block, err = q.GetBlock(ctx, actor.TenantID, id); err != nil {
			return missing(err, model.EntityBlock, id)
		}

		now := s.now().UTC()
		if err := q.SoftDeleteBlock(ctx, actor.TenantID, id, now); err != nil {
			return fmt.Errorf("deleting block: %w", err)
		}
		if _, err := s.compactBlocks(ctx, q, actor.TenantID, section.ID, nil, content.Window{}, now); err != nil {
			return err
		}
		if err := q.TouchPage(ctx, actor.TenantID, page.ID, now, actor.ActorID); err != nil {
			return err
		}
		if _, err := validateTree(ctx, q, page, content.ModeEdit); err != nil {
			return err
		}

		fx.release(block.MediaURL)
		return s.audit(ctx, q, actor, model.ActionBlockDelete, model.EntityBlock, idString(id),
			map[string]any{"section_id": section.ID, "order": block.Order}, now)
	})
}

// ReorderBlocks applies requested positions to the blocks of a section and
// renumbers all of them to 1..M.
func (s *ContentService) ReorderBlocks(ctx context.Context, actor Actor, sectionID int64, in ReorderInput) ([]model.Block, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var blocks []model.Block
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "reorder_blocks", fx, func(ctx context.Context, q *store.Queries) error {
		_, page, err := lockSection(ctx, q, actor.TenantID, sectionID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		changed, err := s.compactBlocks(ctx, q, actor.TenantID, sectionID, in.Items, in.Window, now)
		if err != nil {
			return err
		}
		if err := q.TouchPage(ctx, actor.TenantID, page.ID, now, actor.ActorID); err != nil {
			return err
		}
		if _, err := validateTree(ctx, q, page, content.ModeEdit); err != nil {
			return err
		}
		if blocks, err = q.ListBlocksBySection(ctx, actor.TenantID, sectionID); err != nil {
			return fmt.Errorf("listing blocks: %w", err)
		}
		return s.audit(ctx, q, actor, model.ActionBlockReorder, model.EntitySection, idString(sectionID),
			map[string]any{"requested": len(in.Items), "changed": changed}, now)
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}
