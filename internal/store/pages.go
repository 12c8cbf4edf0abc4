// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

const pageColumns = `id, tenant_id, title, slug, status, seo, created_at, updated_at, updated_by, deleted_at`

func scanPage(row rowScanner) (model.Page, error) {
	var p model.Page
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Title,
		&p.Slug,
		&p.Status,
		jsonColumn{&p.SEO},
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.UpdatedBy,
		&p.DeletedAt,
	)
	return p, err
}

// CreatePageParams holds the fields of a new page.
type CreatePageParams struct {
	TenantID  string
	Title     string
	Slug      string
	Status    model.PageStatus
	SEO       json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
}

// CreatePage inserts a page and returns it.
func (q *Queries) CreatePage(ctx context.Context, arg CreatePageParams) (model.Page, error) {
	var id int64
	err := q.queryRow(ctx, `
INSERT INTO pages (tenant_id, title, slug, status, seo, created_at, updated_at, updated_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		arg.TenantID, arg.Title, arg.Slug, arg.Status, jsonText(arg.SEO),
		arg.CreatedAt, arg.UpdatedAt, arg.UpdatedBy,
	).Scan(&id)
	if err != nil {
		return model.Page{}, err
	}
	return q.GetPage(ctx, arg.TenantID, id)
}

// GetPage returns a live page of the tenant.
func (q *Queries) GetPage(ctx context.Context, tenantID string, id int64) (model.Page, error) {
	row := q.queryRow(ctx, `
SELECT `+pageColumns+` FROM pages
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		tenantID, id,
	)
	return scanPage(row)
}

// GetPageBySlug returns the live page with the given slug.
func (q *Queries) GetPageBySlug(ctx context.Context, tenantID, slug string) (model.Page, error) {
	row := q.queryRow(ctx, `
SELECT `+pageColumns+` FROM pages
WHERE tenant_id = ? AND slug = ? AND deleted_at IS NULL`,
		tenantID, slug,
	)
	return scanPage(row)
}

// LockPage returns a live page holding an exclusive lock on its row for the
// rest of the transaction. PostgreSQL uses a row lock; SQLite takes the
// database write lock with a no-op update.
func (q *Queries) LockPage(ctx context.Context, tenantID string, id int64) (model.Page, error) {
	if q.dialect == DialectPostgres {
		row := q.queryRow(ctx, `
SELECT `+pageColumns+` FROM pages
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL
FOR UPDATE`,
			tenantID, id,
		)
		return scanPage(row)
	}

	if _, err := q.exec(ctx, `UPDATE pages SET id = id WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
		return model.Page{}, err
	}
	return q.GetPage(ctx, tenantID, id)
}

// ListPagesParams filters and paginates ListPages.
type ListPagesParams struct {
	TenantID string
	Status   string
	Limit    int64
	Offset   int64
}

// ListPages returns live pages of a tenant, most recently updated first.
// An empty Status matches every status.
func (q *Queries) ListPages(ctx context.Context, arg ListPagesParams) ([]model.Page, error) {
	rows, err := q.query(ctx, `
SELECT `+pageColumns+` FROM pages
WHERE tenant_id = ? AND deleted_at IS NULL AND (CAST(? AS TEXT) = '' OR status = ?)
ORDER BY updated_at DESC, id DESC
LIMIT ? OFFSET ?`,
		arg.TenantID, arg.Status, arg.Status, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// CountPages counts live pages of a tenant. An empty status matches every status.
func (q *Queries) CountPages(ctx context.Context, tenantID, status string) (int64, error) {
	var n int64
	err := q.queryRow(ctx, `
SELECT COUNT(*) FROM pages
WHERE tenant_id = ? AND deleted_at IS NULL AND (CAST(? AS TEXT) = '' OR status = ?)`,
		tenantID, status, status,
	).Scan(&n)
	return n, err
}

// UpdatePageParams holds the editable fields of a page.
type UpdatePageParams struct {
	ID        int64
	TenantID  string
	Title     string
	Slug      string
	SEO       json.RawMessage
	UpdatedAt time.Time
	UpdatedBy string
}

// UpdatePage writes title, slug and seo of a live page.
func (q *Queries) UpdatePage(ctx context.Context, arg UpdatePageParams) error {
	_, err := q.exec(ctx, `
UPDATE pages SET title = ?, slug = ?, seo = ?, updated_at = ?, updated_by = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		arg.Title, arg.Slug, jsonText(arg.SEO), arg.UpdatedAt, arg.UpdatedBy, arg.TenantID, arg.ID,
	)
	return err
}

// UpdatePageStatusParams holds a status change.
type UpdatePageStatusParams struct {
	ID        int64
	TenantID  string
	Status    model.PageStatus
	UpdatedAt time.Time
	UpdatedBy string
}

// UpdatePageStatus writes the status of a live page.
func (q *Queries) UpdatePageStatus(ctx context.Context, arg UpdatePageStatusParams) error {
	_, err := q.exec(ctx, `
UPDATE pages SET status = ?, updated_at = ?, updated_by = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		arg.Status, arg.UpdatedAt, arg.UpdatedBy, arg.TenantID, arg.ID,
	)
	return err
}

// TouchPage bumps updated_at of a page after a structural change below it.
func (q *Queries) TouchPage(ctx context.Context, tenantID string, id int64, at time.Time, by string) error {
	_, err := q.exec(ctx, `
UPDATE pages SET updated_at = ?, updated_by = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		at, by, tenantID, id,
	)
	return err
}

// SoftDeletePage marks a page deleted.
func (q *Queries) SoftDeletePage(ctx context.Context, tenantID string, id int64, at time.Time) error {
	_, err := q.exec(ctx, `
UPDATE pages SET deleted_at = ?, updated_at = ?
WHERE tenant_id = ? AND id = ? AND deleted_at IS NULL`,
		at, at, tenantID, id,
	)
	return err
}
