// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

const blockColumns = `b.id, b.tenant_id, b.section_id, b.type, b.sort_order, b.content, b.media_url, b.created_at, b.updated_at, b.deleted_at`

func scanBlock(row rowScanner) (model.Block, error) {
	var b model.Block
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.SectionID,
		&b.Type,
		&b.Order,
		jsonColumn{&b.Content},
		&b.MediaURL,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.DeletedAt,
	)
	return b, err
}

func scanBlocks(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]model.Block, error) {
	var items []model.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// CreateBlockParams holds the fields of a new block.
type CreateBlockParams struct {
	TenantID  string
	SectionID int64
	Type      model.BlockType
	Order     int
	Content   json.RawMessage
	MediaURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateBlock inserts a block and returns it.
func (q *Queries) CreateBlock(ctx context.Context, arg CreateBlockParams) (model.Block, error) {
	var id int64
	err := q.queryRow(ctx, `
INSERT INTO blocks (tenant_id, section_id, type, sort_order, content, media_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		arg.TenantID, arg.SectionID, arg.Type, arg.Order, jsonText(arg.Content), arg.MediaURL,
		arg.CreatedAt, arg.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return model.Block{}, err
	}
	return q.GetBlock(ctx, arg.TenantID, id)
}

// GetBlock returns a live block of the tenant.
func (q *Queries) GetBlock(ctx context.Context, tenantID string, id int64) (model.Block, error) {
	row := q.queryRow(ctx, `
SELECT `+blockColumns+` FROM blocks b
WHERE b.tenant_id = ? AND b.id = ? AND b.deleted_at IS NULL`,
		tenantID, id,
	)
	return scanBlock(row)
}

// ListBlocksBySection returns the live blocks of a section ordered by position.
func (q *Queries) ListBlocksBySection(ctx context.Context, tenantID string, sectionID int64) ([]model.Block, error) {
	rows, err := q.query(ctx, `
SELECT `+blockColumns+` FROM blocks b
WHERE b.tenant_id = ? AND b.section_id = ? AND b.deleted_at IS NULL
ORDER BY b.sort_order, b.id`,
		tenantID, sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBlocks(rows)
}

// ListBlocksByPage returns the live blocks of every live section of a page.
func (q *Queries) ListBlocksByPage(ctx context.Context, tenantID string, pageID int64) ([]model.Block, error) {
	rows, err := q.query(ctx, `
SELECT `+blockColumns+` FROM blocks b
JOIN sections s ON s.id = b.section_id
WHERE b.tenant_id = ? AND s.page_id = ? AND s.deleted_at IS NULL AND b.deleted_at IS NULL
ORDER BY b.section_id, b.sort_order, b.id`,
		tenantID, pageID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBlocks(rows)
}

// MaxBlockOrder returns the highest live order in a section, or 0.
func (q *Queries) MaxBlockOrder(ctx context.Context, tenantID string, sectionID int64) (int, error) {
	var n int
	err := q.queryRow(ctx, `
SELECT COALESCE(MAX(sort_order), 0) FROM blocks
WHERE tenant_id = ? AND section_id = ? AND deleted_at IS NULL`,
		tenantID, sectionID,
	).Scan(&n)
	return n, err
}

// UpdateBlockParams holds the editable fields of a block.
type UpdateBlockParams struct {
	ID        int64
	TenantID  string
	Type      model.BlockType
	Content   json.RawMessage
	MediaURL  string
	UpdatedAt time.Time
}

// UpdateBlock writes type, content and media of a live block.
func (q *Queries) UpdateBlock(ctx context.Context, arg UpdateBlockParams) error {
	_, err := q.exec(ctx, `
UPDATE blocks SET type = ?, content = ?, media_url = ?, updated_at = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		arg.Type, jsonText(arg.Content), arg.MediaURL, arg.UpdatedAt, arg.TenantID, arg.ID,
	)
	return err
}

// UpdateBlockOrder moves a block to a new position.
func (q *Queries) UpdateBlockOrder(ctx context.Context, tenantID string, id int64, order int, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE blocks SET sort_order = ?, updated_at = ?
WHERE tenant_id = ? AND id = ?`,
		order, at, tenantID, id,
	)
	return err
}

// SoftDeleteBlock marks a block deleted.
func (q *Queries) SoftDeleteBlock(ctx context.Context, tenantID string, id int64, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE blocks SET deleted_at = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		at, tenantID, id,
	)
	return err
}

// SoftDeleteBlocksBySection marks every live block of a section deleted.
func (q *Queries) SoftDeleteBlocksBySection(ctx context.Context, tenantID string, sectionID int64, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE blocks SET deleted_at = ?
WHERE tenant_id = ? AND section_id = ? AND deleted_at IS NULL`,
		at, tenantID, sectionID,
	)
	return err
}

// SoftDeleteBlocksByPage marks every live block below a page deleted.
func (q *Queries) SoftDeleteBlocksByPage(ctx context.Context, tenantID string, pageID int64, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE blocks SET deleted_at = ?
WHERE tenant_id = ? AND deleted_at IS NULL
  AND section_id IN (SELECT id FROM sections WHERE page_id = ?)`,
		at, tenantID, pageID,
	)
	return err
}

// CountMediaReferences counts live blocks and page versions referring to url.
func (q *Queries) CountMediaReferences(ctx context.Context, url string) (int64, error) {
	var n int64
	err := q.queryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM blocks WHERE media_url = ? AND deleted_at IS NULL) +
  (SELECT COUNT(*) FROM version_media WHERE media_url = ?)`,
		url, url,
	).Scan(&n)
	return n, err
}
