// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// UpsertPageDraftParams holds an autosaved snapshot.
type UpsertPageDraftParams struct {
	TenantID  string
	PageID    int64
	Snapshot  json.RawMessage
	UpdatedAt time.Time
	UpdatedBy string
}

// UpsertPageDraft stores the autosave snapshot of a page, replacing any previous one.
func (q *Queries) UpsertPageDraft(ctx context.Context, arg UpsertPageDraftParams) (model.PageDraft, error) {
	_, err := q.exec(ctx, `
INSERT INTO page_drafts (tenant_id, page_id, snapshot, updated_at, updated_by)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (page_id) DO UPDATE SET
    snapshot = excluded.snapshot,
    updated_at = excluded.updated_at,
    updated_by = excluded.updated_by`,
		arg.TenantID, arg.PageID, string(arg.Snapshot), arg.UpdatedAt, arg.UpdatedBy,
	)
	if err != nil {
		return model.PageDraft{}, err
	}
	return q.GetPageDraft(ctx, arg.TenantID, arg.PageID)
}

// GetPageDraft returns the autosave draft of a page.
func (q *Queries) GetPageDraft(ctx context.Context, tenantID string, pageID int64) (model.PageDraft, error) {
	var d model.PageDraft
	err := q.queryRow(ctx, `
SELECT id, tenant_id, page_id, snapshot, updated_at, updated_by FROM page_drafts
WHERE tenant_id = ? AND page_id = ?`,
		tenantID, pageID,
	).Scan(&d.ID, &d.TenantID, &d.PageID, jsonColumn{&d.Snapshot}, &d.UpdatedAt, &d.UpdatedBy)
	return d, err
}

// DeleteDraftsOlderThan removes autosave drafts not updated since before.
func (q *Queries) DeleteDraftsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM page_drafts WHERE updated_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
