// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// BlockType identifies the kind of content a block carries.
type BlockType string

// Block types
const (
	BlockTypeText   BlockType = "text"
	BlockTypeImage  BlockType = "image"
	BlockTypeVideo  BlockType = "video"
	BlockTypeButton BlockType = "button"
)

// BlockTypes lists every allowed block type.
var BlockTypes = []BlockType{
	BlockTypeText,
	BlockTypeImage,
	BlockTypeVideo,
	BlockTypeButton,
}

// Valid reports whether t is an allowed block type.
func (t BlockType) Valid() bool {
	for _, bt := range BlockTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// RequiresMedia reports whether blocks of this type must reference a media file.
func (t BlockType) RequiresMedia() bool {
	return t == BlockTypeImage || t == BlockTypeVideo
}

// Block is the leaf content unit of a section.
type Block struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	SectionID int64           `json:"section_id"`
	Type      BlockType       `json:"type"`
	Order     int             `json:"order"`
	Content   json.RawMessage `json:"content"`
	MediaURL  string          `json:"media_url,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt sql.NullTime    `json:"-"`
}
