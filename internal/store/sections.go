// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

const sectionColumns = `id, tenant_id, page_id, type, sort_order, settings, created_at, updated_at, deleted_at`

func scanSection(row rowScanner) (model.Section, error) {
	var s model.Section
	err := row.Scan(
		&s.ID,
		&s.TenantID,
		&s.PageID,
		&s.Type,
		&s.Order,
		jsonColumn{&s.Settings},
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.DeletedAt,
	)
	return s, err
}

// CreateSectionParams holds the fields of a new section.
type CreateSectionParams struct {
	TenantID  string
	PageID    int64
	Type      model.SectionType
	Order     int
	Settings  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateSection inserts a section and returns it.
func (q *Queries) CreateSection(ctx context.Context, arg CreateSectionParams) (model.Section, error) {
	var id int64
	err := q.queryRow(ctx, `
INSERT INTO sections (tenant_id, page_id, type, sort_order, settings, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		arg.TenantID, arg.PageID, arg.Type, arg.Order, jsonText(arg.Settings), arg.CreatedAt, arg.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return model.Section{}, err
	}
	return q.GetSection(ctx, arg.TenantID, id)
}

// GetSection returns a live section of the tenant.
func (q *Queries) GetSection(ctx context.Context, tenantID string, id int64) (model.Section, error) {
	row := q.queryRow(ctx, `
SELECT `+sectionColumns+` FROM sections
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		tenantID, id,
	)
	return scanSection(row)
}

// ListSectionsByPage returns the live sections of a page ordered by position.
func (q *Queries) ListSectionsByPage(ctx context.Context, tenantID string, pageID int64) ([]model.Section, error) {
	rows, err := q.query(ctx, `
SELECT `+sectionColumns+` FROM sections
WHERE tenant_id = ? AND page_id = ? AND deleted_at IS NULL
ORDER BY sort_order, id`,
		tenantID, pageID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// MaxSectionOrder returns the highest live order on a page, or 0.
func (q *Queries) MaxSectionOrder(ctx context.Context, tenantID string, pageID int64) (int, error) {
	var n int
	err := q.queryRow(ctx, `
SELECT COALESCE(MAX(sort_order), 0) FROM sections
WHERE tenant_id = ? AND page_id = ? AND deleted_at IS NULL`,
		tenantID, pageID,
	).Scan(&n)
	return n, err
}

// UpdateSectionParams holds the editable fields of a section.
type UpdateSectionParams struct {
	ID        int64
	TenantID  string
	Type      model.SectionType
	Settings  json.RawMessage
	UpdatedAt time.Time
}

// UpdateSection writes type and settings of a live section.
func (q *Queries) UpdateSection(ctx context.Context, arg UpdateSectionParams) error {
	_, err := q.exec(ctx, `
UPDATE sections SET type = ?, settings = ?, updated_at = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		arg.Type, jsonText(arg.Settings), arg.UpdatedAt, arg.TenantID, arg.ID,
	)
	return err
}

// UpdateSectionOrder moves a section to a new position.
func (q *Queries) UpdateSectionOrder(ctx context.Context, tenantID string, id int64, order int, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE sections SET sort_order = ?, updated_at = ?
WHERE tenant_id = ? AND id = ?`,
		order, at, tenantID, id,
	)
	return err
}

// SoftDeleteSection marks a section deleted.
func (q *Queries) SoftDeleteSection(ctx context.Context, tenantID string, id int64, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE sections SET deleted_at = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		at, tenantID, id,
	)
	return err
}

// SoftDeleteSectionsByPage marks every live section of a page deleted.
func (q *Queries) SoftDeleteSectionsByPage(ctx context.Context, tenantID string, pageID int64, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE sections SET deleted_at = ?
WHERE tenant_id = ? AND page_id = ? AND deleted_at IS NULL`,
		at, tenantID, pageID,
	)
	return err
}
