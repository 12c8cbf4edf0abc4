// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// VersionStatus records which lifecycle operation produced a version.
type VersionStatus string

// Version statuses
const (
	VersionStatusPublished   VersionStatus = "published"
	VersionStatusUnpublished VersionStatus = "unpublished"
	VersionStatusRollback    VersionStatus = "rollback"
)

// PageVersion is an immutable snapshot of a page taken by publish,
// unpublish or rollback.
type PageVersion struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	PageID    int64           `json:"page_id"`
	Version   int64           `json:"version"`
	Status    VersionStatus   `json:"status"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// PageDraft holds the latest autosaved snapshot of a page. There is at most one per page.
type PageDraft struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	PageID    int64           `json:"page_id"`
	Snapshot  json.RawMessage `json:"snapshot"`
	UpdatedAt time.Time       `json:"updated_at"`
	UpdatedBy string          `json:"updated_by"`
}
