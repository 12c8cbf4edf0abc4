// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// PageStatus is the lifecycle state of a page.
type PageStatus string

// Page statuses
const (
	PageStatusDraft     PageStatus = "draft"
	PageStatusPublished PageStatus = "published"
)

// Valid reports whether s is a known page status.
func (s PageStatus) Valid() bool {
	return s == PageStatusDraft || s == PageStatusPublished
}

// Page represents a tenant-scoped CMS page and, when loaded as a tree,
// its live sections ordered by position.
type Page struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Status    PageStatus      `json:"status"`
	SEO       json.RawMessage `json:"seo"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	UpdatedBy string          `json:"updated_by,omitempty"`
	DeletedAt sql.NullTime    `json:"-"`

	Sections []Section `json:"sections,omitempty"`
}

// IsPublished returns true if the page is published.
func (p *Page) IsPublished() bool {
	return p.Status == PageStatusPublished
}

// IsDraft returns true if the page is a draft.
func (p *Page) IsDraft() bool {
	return p.Status == PageStatusDraft
}

// LiveSections returns the sections that are not soft-deleted.
func (p *Page) LiveSections() []Section {
	live := make([]Section, 0, len(p.Sections))
	for _, s := range p.Sections {
		if IsLive(s.DeletedAt) {
			live = append(live, s)
		}
	}
	return live
}

// MediaURLs returns every media URL referenced by live blocks of the page.
func (p *Page) MediaURLs() []string {
	var urls []string
	for _, s := range p.LiveSections() {
		for _, b := range s.LiveBlocks() {
			if b.MediaURL != "" {
				urls = append(urls, b.MediaURL)
			}
		}
	}
	return urls
}

// IsLive reports whether a row with the given deleted_at value is still live.
func IsLive(deletedAt sql.NullTime) bool {
	return !deletedAt.Valid
}

// SoftDelete marks deletedAt with now. Already deleted rows keep their original timestamp.
func SoftDelete(deletedAt *sql.NullTime, now time.Time) {
	if deletedAt.Valid {
		return
	}
	*deletedAt = sql.NullTime{Time: now, Valid: true}
}
