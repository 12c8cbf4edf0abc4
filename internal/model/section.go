// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SectionType identifies the layout of a section.
type SectionType string

// Section types
const (
	SectionTypeHero     SectionType = "hero"
	SectionTypeFeatures SectionType = "features"
	SectionTypeGallery  SectionType = "gallery"
	SectionTypeContent  SectionType = "content"
)

// SectionTypes lists every allowed section type.
var SectionTypes = []SectionType{
	SectionTypeHero,
	SectionTypeFeatures,
	SectionTypeGallery,
	SectionTypeContent,
}

// Valid reports whether t is an allowed section type.
func (t SectionType) Valid() bool {
	for _, st := range SectionTypes {
		if t == st {
			return true
		}
	}
	return false
}

// Section is an ordered child of a page holding ordered blocks.
type Section struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	PageID    int64           `json:"page_id"`
	Type      SectionType     `json:"type"`
	Order     int             `json:"order"`
	Settings  json.RawMessage `json:"settings"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt sql.NullTime    `json:"-"`

	Blocks []Block `json:"blocks,omitempty"`
}

// LiveBlocks returns the blocks that are not soft-deleted.
func (s *Section) LiveBlocks() []Block {
	live := make([]Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if IsLive(b.DeletedAt) {
			live = append(live, b)
		}
	}
	return live
}
