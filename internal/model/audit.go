// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// Audited entity types
const (
	EntityPage    = "page"
	EntitySection = "section"
	EntityBlock   = "block"
)

// Audit actions
const (
	ActionPageCreate      = "page.create"
	ActionPageUpdate      = "page.update"
	ActionPageDelete      = "page.delete"
	ActionPagePublish     = "page.publish"
	ActionPageUnpublish   = "page.unpublish"
	ActionPageRollback    = "page.rollback"
	ActionPageAutosave    = "page.autosave"
	ActionPageBulkPublish = "page.bulk_publish"
	ActionPageBulkUnpub   = "page.bulk_unpublish"
	ActionSectionCreate   = "section.create"
	ActionSectionUpdate   = "section.update"
	ActionSectionDelete   = "section.delete"
	ActionSectionReorder  = "section.reorder"
	ActionBlockCreate     = "block.create"
	ActionBlockUpdate     = "block.update"
	ActionBlockDelete     = "block.delete"
	ActionBlockReorder    = "block.reorder"
)

// AuditLog is an append-only record of a committed mutation.
type AuditLog struct {
	ID         int64           `json:"id"`
	TenantID   string          `json:"tenant_id"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
