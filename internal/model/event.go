// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"
)

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryContent   = "content"
	EventCategoryMedia     = "media"
	EventCategoryCache     = "cache"
	EventCategoryWebhook   = "webhook"
	EventCategoryScheduler = "scheduler"
	EventCategorySystem    = "system"
)

// Event represents a system event log entry. Events are operational records
// written by the logger; business history lives in AuditLog.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	Metadata  string // JSON string
	CreatedAt time.Time
}
