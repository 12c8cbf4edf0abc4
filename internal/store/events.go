// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

// CreateEventParams holds the fields of a system event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent writes a system event log entry.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (int64, error) {
	metadata := arg.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	var id int64
	err := q.queryRow(ctx, `
INSERT INTO events (level, category, message, metadata, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`,
		arg.Level, arg.Category, arg.Message, metadata, arg.CreatedAt,
	).Scan(&id)
	return id, err
}

// ListEvents returns the most recent events.
func (q *Queries) ListEvents(ctx context.Context, limit int64) ([]model.Event, error) {
	rows, err := q.query(ctx, `
SELECT id, level, category, message, metadata, created_at FROM events
ORDER BY created_at DESC, id DESC
LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []model.Event
	for rows.Next() {
		var e model.Event
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Metadata = string(metadata)
		items = append(items, e)
	}
	return items, rows.Err()
}

// DeleteEventsOlderThan removes events created before the cutoff.
func (q *Queries) DeleteEventsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM events WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
