// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
)

// Version listing limits.
const (
	DefaultVersionLimit = 20
	MaxVersionLimit     = 50
)

// VersionPage is one page of version metadata. Next is nil on the last page.
type VersionPage struct {
	Versions []model.PageVersion
	Next     *store.VersionCursor
}

// ListVersions returns version metadata of a page, newest first, starting
// after cursor.
func (s *ContentService) ListVersions(ctx context.Context, actor Actor, pageID int64, cursor *store.VersionCursor, limit int) (*VersionPage, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultVersionLimit
	}
	if limit > MaxVersionLimit {
		limit = MaxVersionLimit
	}
	if _, err := s.queries.GetPage(ctx, actor.TenantID, pageID); err != nil {
		return nil, missing(err, model.EntityPage, pageID)
	}

	items, err := s.queries.ListPageVersions(ctx, store.ListPageVersionsParams{
		TenantID: actor.TenantID,
		PageID:   pageID,
		Cursor:   cursor,
		Limit:    int64(limit + 1),
	})
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	out := &VersionPage{Versions: items}
	if len(items) > limit {
		out.Versions = items[:limit]
		last := out.Versions[limit-1]
		out.Next = &store.VersionCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	if out.Versions == nil {
		out.Versions = []model.PageVersion{}
	}
	return out, nil
}

// GetVersion returns one stored version of a page with its decoded snapshot.
func (s *ContentService) GetVersion(ctx context.Context, actor Actor, pageID, version int64) (*model.PageVersion, content.Snapshot, error) {
	if err := actor.validate(); err != nil {
		return nil, content.Snapshot{}, err
	}
	v, err := s.queries.GetPageVersion(ctx, actor.TenantID, pageID, version)
	if err != nil {
		return nil, content.Snapshot{}, missing(err, "version", version)
	}
	snap, err := content.DecodeSnapshot(v.Snapshot)
	if err != nil {
		return nil, content.Snapshot{}, fmt.Errorf("decoding version %d: %w", version, err)
	}
	return &v, snap, nil
}
