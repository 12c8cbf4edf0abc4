// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers page lifecycle events to configured HTTP endpoints.
package webhook

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the content service.
const (
	EventPagePublished   = "page.published"
	EventPageUnpublished = "page.unpublished"
	EventPageRolledBack  = "page.rolled_back"
	EventPageDeleted     = "page.deleted"
)

// Event represents a webhook event to be dispatched.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new webhook event with a random ID.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// PageEventData contains data for page lifecycle events.
type PageEventData struct {
	TenantID string `json:"tenant_id"`
	PageID   int64  `json:"page_id"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	Status   string `json:"status"`
	Version  int64  `json:"version,omitempty"`
	ActorID  string `json:"actor_id"`
}
