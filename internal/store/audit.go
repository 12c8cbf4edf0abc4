// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// CreateAuditLogParams holds the fields of an audit record.
type CreateAuditLogParams struct {
	TenantID   string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Payload    json.RawMessage
	CreatedAt  time.Time
}

// CreateAuditLog appends an audit record.
func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) (int64, error) {
	var id int64
	err := q.queryRow(ctx, `
INSERT INTO audit_logs (tenant_id, actor_id, action, entity_type, entity_id, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`,
		arg.TenantID, arg.ActorID, arg.Action, arg.EntityType, arg.EntityID, jsonText(arg.Payload), arg.CreatedAt,
	).Scan(&id)
	return id, err
}

// ListAuditLogsForEntity returns the audit trail of one entity, oldest first.
func (q *Queries) ListAuditLogsForEntity(ctx context.Context, tenantID, entityType, entityID string) ([]model.AuditLog, error) {
	rows, err := q.query(ctx, `
SELECT id, tenant_id, actor_id, action, entity_type, entity_id, payload, created_at FROM audit_logs
WHERE tenant_id = ? AND entity_type = ? AND entity_id = ?
ORDER BY id`,
		tenantID, entityType, entityID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.AuditLog
	for rows.Next() {
		var a model.AuditLog
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ActorID, &a.Action, &a.EntityType, &a.EntityID, jsonColumn{&a.Payload}, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// UpdateAuditLog attempts to rewrite an audit payload. The table is
// append-only, so this returns ErrAuditImmutable.
func (q *Queries) UpdateAuditLog(ctx context.Context, id int64, payload json.RawMessage) error {
	_, err := q.exec(ctx, `UPDATE audit_logs SET payload = ? WHERE id = ?`, jsonText(payload), id)
	if isAppendOnlyViolation(err) {
		return ErrAuditImmutable
	}
	return err
}

// DeleteAuditLog attempts to remove an audit record. The table is
// append-only, so this returns ErrAuditImmutable.
func (q *Queries) DeleteAuditLog(ctx context.Context, id int64) error {
	_, err := q.exec(ctx, `DELETE FROM audit_logs WHERE id = ?`, id)
	if isAppendOnlyViolation(err) {
		return ErrAuditImmutable
	}
	return err
}
