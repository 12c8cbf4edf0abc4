// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// CreateSectionInput holds the fields of a new section.
type CreateSectionInput struct {
	Type     model.SectionType `json:"type"`
	Settings json.RawMessage   `json:"settings"`
}

// UpdateSectionInput holds the editable section fields. Nil fields are left unchanged.
type UpdateSectionInput struct {
	Type     *model.SectionType `json:"type"`
	Settings json.RawMessage    `json:"settings"`

	IfUnmodifiedSince *time.Time `json:"-"`
}

// ReorderInput is a batch of requested positions, optionally limited to one
// page of siblings.
type ReorderInput struct {
	Items  []content.Move `json:"items"`
	Window content.Window `json:"window"`
}

func (in ReorderInput) validate() error {
	if len(in.Items) == 0 {
		return content.Invalid("items", "at least one item is required")
	}
	for _, m := range in.Items {
		if m.Order < 1 {
			return content.Invalid("items", "order of %d must be positive", m.ID)
		}
	}
	if in.Window.Page < 0 || in.Window.PerPage < 0 {
		return content.Invalid("window", "page and per_page must not be negative")
	}
	return nil
}

func checkSectionType(t model.SectionType) error {
	if !t.Valid() {
		return content.Invalid("type", "unknown section type %q", t)
	}
	return nil
}

// CreateSection appends a section to the end of a page.
func (s *ContentService) CreateSection(ctx context.Context, actor Actor, pageID int64, in CreateSectionInput) (*model.Section, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := checkSectionType(in.Type); err != nil {
		return nil, err
	}
	settings, err := jsonObjectArg("settings", in.Settings)
	if err != nil {
		return nil, err
	}

	var section model.Section
	fx := &effects{tenantID: actor.TenantID}
	err = s.run(ctx, "create_section", fx, func(ctx context.Context, q *store.Queries) error {
		page, err := q.LockPage(ctx, actor.TenantID, pageID)
		if err != nil {
			return missing(err, model.EntityPage, pageID)
		}
		last, err := q.MaxSectionOrder(ctx, actor.TenantID, pageID)
		if err != nil {
			return fmt.Errorf("reading section order: %w", err)
		}

		now := s.now().UTC()
		section, err = q.CreateSection(ctx, store.CreateSectionParams{
			TenantID:  actor.TenantID,
			PageID:    pageID,
			Type:      in.Type,
			Order:     last + 1,
			Settings:  settings,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("creating section: %w", err)
		}
		if err := q.TouchPage(ctx, actor.TenantID, pageID, now, actor.ActorID); err != nil {
			return err
		}
		if _, err := validateTree(ctx, q, page, content.ModeEdit); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, model.ActionSectionCreate, model.EntitySection, idString(section.ID),
			map[string]any{"page_id": pageID, "type": in.Type, "order": section.Order}, now)
	})
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// UpdateSection changes the type or settings of a section.
func (s *ContentService) UpdateSection(ctx context.Context, actor Actor, id int64, in UpdateSectionInput) (*model.Section, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Type != nil {
		if err := checkSectionType(*in.Type); err != nil {
			return nil, err
		}
	}
	var settings json.RawMessage
	if in.Settings != nil {
		var err error
		if settings, err = jsonObjectArg("settings", in.Settings); err != nil {
			return nil, err
		}
	}

	var section model.Section
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "update_section", fx, func(ctx context.Context, q *store.Queries) error {
		current, err := q.GetSection(ctx, actor.TenantID, id)
		if err != nil {
			return missing(err, model.EntitySection, id)
		}
		if err := content.CheckFreshness(current.UpdatedAt, in.IfUnmodifiedSince); err != nil {
			return err
		}

		next := current
		var changed []string
		if in.Type != nil && *in.Type != current.Type {
			next.Type = *in.Type
			changed = append(changed, "type")
		}
		if settings != nil && !sameJSON(settings, current.Settings) {
			next.Settings = settings
			changed = append(changed, "settings")
		}
		if len(changed) == 0 {
			return content.ErrNoChanges
		}

		now := s.now().UTC()
		err = q.UpdateSection(ctx, store.UpdateSectionParams{
			ID:        id,
			TenantID:  actor.TenantID,
			Type:      next.Type,
			Settings:  next.Settings,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("updating section: %w", err)
		}
		if err := q.TouchPage(ctx, actor.TenantID, current.PageID, now, actor.ActorID); err != nil {
			return err
		}
		if section, err = q.GetSection(ctx, actor.TenantID, id); err != nil {
			return err
		}
		return s.audit(ctx, q, actor, model.ActionSectionUpdate, model.EntitySection, idString(id),
			map[string]any{"page_id": current.PageID, "fields": changed}, now)
	})
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// DeleteSection soft-deletes a section and its blocks and closes the gap
// in the page's section order.
func (s *ContentService) DeleteSection(ctx context.Context, actor Actor, id int64) error {
	if err := actor.validate(); err != nil {
		return err
	}

	fx := &effects{tenantID: actor.TenantID}
	return s.run(ctx, "delete_section", fx, func(ctx context.Context, q *store.Queries) error {
		_, page, err := lockSection(ctx, q, actor.TenantID, id)
		if err != nil {
			return err
		}
		blocks, err := q.ListBlocksBySection(ctx, actor.TenantID, id)
		if err != nil {
			return fmt.Errorf("listing blocks: %w", err)
		}

		now := s.now().UTC()
		if err := q.SoftDeleteBlocksBySection(ctx, actor.TenantID, id, now); err != nil {
			return fmt.Errorf("deleting blocks: %w", err)
		}
		if err := q.SoftDeleteSection(ctx, actor.TenantID, id, now); err != nil {
			return fmt.Errorf("deleting section: %w", err)
		}
		if _, err := s.compactSections(ctx, q, actor.TenantID, page.ID, nil, content.Window{}, now); err != nil {
			return err
		}
		if err := q.TouchPage(ctx, actor.TenantID, page.ID, now, actor.ActorID); err != nil {
			return err
		}
		if _, err := validateTree(ctx, q, page, content.ModeEdit); err != nil {
			return err
		}

		for _, b := range blocks {
			fx.release(b.MediaURL)
		}
		return s.audit(ctx, q, actor, model.ActionSectionDelete, model.EntitySection, idString(id),
			map[string]any{"page_id": page.ID, "blocks": len(blocks)}, now)
	})
}

// ReorderSections applies requested positions to the sections of a page and
// renumbers all of them to 1..N.
func (s *ContentService) ReorderSections(ctx context.Context, actor Actor, pageID int64, in ReorderInput) ([]model.Section, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var sections []model.Section
	fx := &effects{tenantID: actor.TenantID}
	err := s.run(ctx, "reorder_sections", fx, func(ctx context.Context, q *store.Queries) error {
		page, err := q.LockPage(ctx, actor.TenantID, pageID)
		if err != nil {
			return missing(err, model.EntityPage, pageID)
		}

		now := s.now().UTC()
		changed, err := s.compactSections(ctx, q, actor.TenantID, pageID, in.Items, in.Window, now)
		if err != nil {
			return err
		}
		if err := q.TouchPage(ctx, actor.TenantID, pageID, now, actor.ActorID); err != nil {
			return err
		}
		tree, err := validateTree(ctx, q, page, content.ModeEdit)
		if err != nil {
			return err
		}
		sections = tree.Sections
		return s.audit(ctx, q, actor, model.ActionSectionReorder, model.EntityPage, idString(pageID),
			map[string]any{"requested": len(in.Items), "changed": changed}, now)
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// lockSection locks the page owning a section and re-reads the section
// under that lock.
func lockSection(ctx context.Context, q *store.Queries, tenantID string, id int64) (model.Section, model.Page, error) {
	section, err := q.GetSection(ctx, tenantID, id)
	if err != nil {
		return model.Section{}, model.Page{}, missing(err, model.EntitySection, id)
	}
	page, err := q.LockPage(ctx, tenantID, section.PageID)
	if err != nil {
		return model.Section{}, model.Page{}, missing(err, model.EntityPage, section.PageID)
	}
	if section, err = q.GetSection(ctx, tenantID, id); err != nil {
		return model.Section{}, model.Page{}, missing(err, model.EntitySection, id)
	}
	return section, page, nil
}

// compactSections applies moves inside window to the live sections of a page,
// renumbers them to 1..N and writes the rows whose order changed. It returns
// the number of rows written.
func (s *ContentService) compactSections(ctx context.Context, q *store.Queries, tenantID string, pageID int64, moves []content.Move, window content.Window, at time.Time) (int, error) {
	sections, err := q.ListSectionsByPage(ctx, tenantID, pageID)
	if err != nil {
		return 0, fmt.Errorf("listing sections: %w", err)
	}
	current := make([]content.Position, len(sections))
	for i, sec := range sections {
		current[i] = content.Position{ID: sec.ID, Order: sec.Order}
	}

	changed := content.Changed(current, content.ApplyReorder(current, moves, window))
	for _, p := range changed {
		if err := q.UpdateSectionOrder(ctx, tenantID, p.ID, p.Order, at); err != nil {
			return 0, fmt.Errorf("updating section order: %w", err)
		}
	}
	return len(changed), nil
}

// compactBlocks is compactSections for the blocks of one section.
func (s *ContentService) compactBlocks(ctx context.Context, q *store.Queries, tenantID string, sectionID int64, moves []content.Move, window content.Window, at time.Time) (int, error) {
	blocks, err := q.ListBlocksBySection(ctx, tenantID, sectionID)
	if err != nil {
		return 0, fmt.Errorf("listing blocks: %w", err)
	}
	current := make([]content.Position, len(blocks))
	for i, b := range blocks {
		current[i] = content.Position{ID: b.ID, Order: b.Order}
	}

	changed := content.Changed(current, content.ApplyReorder(current, moves, window))
	for _, p := range changed {
		if err := q.UpdateBlockOrder(ctx, tenantID, p.ID, p.Order, at); err != nil {
			return 0, fmt.Errorf("updating block order: %w", err)
		}
	}
	return len(changed), nil
}
