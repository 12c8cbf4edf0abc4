// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

const versionColumns = `id, tenant_id, page_id, version, status, snapshot, created_by, created_at`

func scanVersion(row rowScanner) (model.PageVersion, error) {
	var v model.PageVersion
	err := row.Scan(
		&v.ID,
		&v.TenantID,
		&v.PageID,
		&v.Version,
		&v.Status,
		jsonColumn{&v.Snapshot},
		&v.CreatedBy,
		&v.CreatedAt,
	)
	return v, err
}

// MaxVersion returns the highest version number of a page, or 0.
func (q *Queries) MaxVersion(ctx context.Context, tenantID string, pageID int64) (int64, error) {
	var n int64
	err := q.queryRow(ctx, `
SELECT COALESCE(MAX(version), 0) FROM page_versions
WHERE tenant_id = ? AND page_id = ?`,
		tenantID, pageID,
	).Scan(&n)
	return n, err
}

// CreatePageVersionParams holds the fields of a new version.
type CreatePageVersionParams struct {
	TenantID  string
	PageID    int64
	Version   int64
	Status    model.VersionStatus
	Snapshot  json.RawMessage
	CreatedBy string
	CreatedAt time.Time
}

// CreatePageVersion inserts an immutable page version.
func (q *Queries) CreatePageVersion(ctx context.Context, arg CreatePageVersionParams) (model.PageVersion, error) {
	var id int64
	err := q.queryRow(ctx, `
INSERT INTO page_versions (tenant_id, page_id, version, status, snapshot, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		arg.TenantID, arg.PageID, arg.Version, arg.Status, string(arg.Snapshot), arg.CreatedBy, arg.CreatedAt,
	).Scan(&id)
	if err != nil {
		return model.PageVersion{}, err
	}
	return q.GetPageVersion(ctx, arg.TenantID, arg.PageID, arg.Version)
}

// AddVersionMedia records that a version references a media URL.
func (q *Queries) AddVersionMedia(ctx context.Context, versionID int64, url string) error {
	_, err := q.exec(ctx, `
INSERT INTO version_media (version_id, media_url) VALUES (?, ?)
ON CONFLICT (version_id, media_url) DO NOTHING`,
		versionID, url,
	)
	return err
}

// GetPageVersion returns one version of a page.
func (q *Queries) GetPageVersion(ctx context.Context, tenantID string, pageID, version int64) (model.PageVersion, error) {
	row := q.queryRow(ctx, `
SELECT `+versionColumns+` FROM page_versions
WHERE tenant_id = ? AND page_id = ? AND version = ?`,
		tenantID, pageID, version,
	)
	return scanVersion(row)
}

// GetLatestVersionByStatus returns the newest version of a page with the given status.
func (q *Queries) GetLatestVersionByStatus(ctx context.Context, tenantID string, pageID int64, status model.VersionStatus) (model.PageVersion, error) {
	row := q.queryRow(ctx, `
SELECT `+versionColumns+` FROM page_versions
WHERE tenant_id = ? AND page_id = ? AND status = ?
ORDER BY version DESC
LIMIT 1`,
		tenantID, pageID, status,
	)
	return scanVersion(row)
}

// VersionCursor is the keyset position of the last version already returned.
type VersionCursor struct {
	CreatedAt time.Time
	ID        int64
}

// ListPageVersionsParams paginates ListPageVersions.
type ListPageVersionsParams struct {
	TenantID string
	PageID   int64
	Cursor   *VersionCursor
	Limit    int64
}

// ListPageVersions returns version metadata newest first, without snapshots.
func (q *Queries) ListPageVersions(ctx context.Context, arg ListPageVersionsParams) ([]model.PageVersion, error) {
	query := `
SELECT id, tenant_id, page_id, version, status, created_by, created_at FROM page_versions
WHERE tenant_id = ? AND page_id = ?`
	args := []any{arg.TenantID, arg.PageID}
	if arg.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, arg.Cursor.CreatedAt, arg.Cursor.CreatedAt, arg.Cursor.ID)
	}
	query += `
ORDER BY created_at DESC, id DESC
LIMIT ?`
	args = append(args, arg.Limit)

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.PageVersion
	for rows.Next() {
		var v model.PageVersion
		if err := rows.Scan(&v.ID, &v.TenantID, &v.PageID, &v.Version, &v.Status, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// UpdatePageVersionSnapshot tries to rewrite a stored snapshot. Versions are
// append-only, so this always fails with ErrAuditImmutable once the row exists.
func (q *Queries) UpdatePageVersionSnapshot(ctx context.Context, id int64, snapshot json.RawMessage) error {
	_, err := q.exec(ctx, `UPDATE page_versions SET snapshot = ? WHERE id = ?`, string(snapshot), id)
	if isAppendOnlyViolation(err) {
		return ErrAuditImmutable
	}
	return err
}
