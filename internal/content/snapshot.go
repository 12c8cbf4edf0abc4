// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/olegiv/ocms-pages/internal/model"
)

// SnapshotSchemaVersion is the schema version written by BuildSnapshot.
const SnapshotSchemaVersion = 1

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

const snapshotSchemaURL = "snapshot.schema.json"

var snapshotSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(snapshotSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(snapshotSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding snapshot schema: %w", err)
	}
	return c.Compile(snapshotSchemaURL)
})

// Snapshot is the complete serialized state of a page's live content tree.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Page          SnapshotPage      `json:"page"`
	Sections      []SnapshotSection `json:"sections"`
}

// SnapshotPage holds the page fields captured in a snapshot.
type SnapshotPage struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Slug   string          `json:"slug"`
	SEO    json.RawMessage `json:"seo"`
	Status string          `json:"status"`
}

// SnapshotSection is one section of a snapshot.
type SnapshotSection struct {
	ID       int64           `json:"id"`
	Type     string          `json:"type"`
	Order    int             `json:"order"`
	Settings json.RawMessage `json:"settings"`
	Blocks   []SnapshotBlock `json:"blocks"`
}

// SnapshotBlock is one block of a snapshot section.
type SnapshotBlock struct {
	ID       int64           `json:"id"`
	Type     string          `json:"type"`
	Order    int             `json:"order"`
	Content  json.RawMessage `json:"content"`
	MediaURL string          `json:"media_url,omitempty"`
}

// BuildSnapshot captures the live sections and blocks of page ordered by position.
func BuildSnapshot(page *model.Page) Snapshot {
	snap := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Page: SnapshotPage{
			ID:     page.ID,
			Title:  page.Title,
			Slug:   page.Slug,
			SEO:    jsonObject(page.SEO),
			Status: string(page.Status),
		},
		Sections: []SnapshotSection{},
	}

	sections := page.LiveSections()
	sort.SliceStable(sections, func(i, j int) bool {
		return lessByOrder(sections[i].Order, sections[i].ID, sections[j].Order, sections[j].ID)
	})

	for _, s := range sections {
		blocks := s.LiveBlocks()
		sort.SliceStable(blocks, func(i, j int) bool {
			return lessByOrder(blocks[i].Order, blocks[i].ID, blocks[j].Order, blocks[j].ID)
		})

		ss := SnapshotSection{
			ID:       s.ID,
			Type:     string(s.Type),
			Order:    s.Order,
			Settings: jsonObject(s.Settings),
			Blocks:   make([]SnapshotBlock, 0, len(blocks)),
		}
		for _, b := range blocks {
			ss.Blocks = append(ss.Blocks, SnapshotBlock{
				ID:       b.ID,
				Type:     string(b.Type),
				Order:    b.Order,
				Content:  jsonObject(b.Content),
				MediaURL: b.MediaURL,
			})
		}
		snap.Sections = append(snap.Sections, ss)
	}

	return snap
}

// Encode marshals the snapshot to JSON.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot validates data against the snapshot schema and decodes it.
// Snapshots without schema_version are treated as version 1.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	schema, err := snapshotSchema()
	if err != nil {
		return Snapshot{}, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing snapshot: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = SnapshotSchemaVersion
	}
	if snap.Sections == nil {
		snap.Sections = []SnapshotSection{}
	}
	return snap, nil
}

// Compacted returns a copy with section and block orders renumbered to 1..N.
func (s Snapshot) Compacted() Snapshot {
	out := s
	out.Sections = make([]SnapshotSection, len(s.Sections))
	copy(out.Sections, s.Sections)

	sort.SliceStable(out.Sections, func(i, j int) bool {
		return lessByOrder(out.Sections[i].Order, out.Sections[i].ID, out.Sections[j].Order, out.Sections[j].ID)
	})
	for i := range out.Sections {
		out.Sections[i].Order = i + 1

		blocks := make([]SnapshotBlock, len(out.Sections[i].Blocks))
		copy(blocks, out.Sections[i].Blocks)
		sort.SliceStable(blocks, func(a, b int) bool {
			return lessByOrder(blocks[a].Order, blocks[a].ID, blocks[b].Order, blocks[b].ID)
		})
		for j := range blocks {
			blocks[j].Order = j + 1
		}
		out.Sections[i].Blocks = blocks
	}
	return out
}

// MediaURLs returns every media URL referenced by the snapshot.
func (s Snapshot) MediaURLs() []string {
	var urls []string
	for _, sec := range s.Sections {
		for _, b := range sec.Blocks {
			if b.MediaURL != "" {
				urls = append(urls, b.MediaURL)
			}
		}
	}
	return urls
}

// SameContent reports whether two snapshots describe the same content,
// ignoring row ids and page status.
func SameContent(a, b Snapshot) bool {
	if a.Page.Title != b.Page.Title || a.Page.Slug != b.Page.Slug || !jsonEqual(a.Page.SEO, b.Page.SEO) {
		return false
	}
	if len(a.Sections) != len(b.Sections) {
		return false
	}
	for i := range a.Sections {
		sa, sb := a.Sections[i], b.Sections[i]
		if sa.Type != sb.Type || sa.Order != sb.Order || !jsonEqual(sa.Settings, sb.Settings) {
			return false
		}
		if len(sa.Blocks) != len(sb.Blocks) {
			return false
		}
		for j := range sa.Blocks {
			ba, bb := sa.Blocks[j], sb.Blocks[j]
			if ba.Type != bb.Type || ba.Order != bb.Order || ba.MediaURL != bb.MediaURL || !jsonEqual(ba.Content, bb.Content) {
				return false
			}
		}
	}
	return true
}

func lessByOrder(orderA int, idA int64, orderB int, idB int64) bool {
	if orderA != orderB {
		return orderA < orderB
	}
	return idA < idB
}

func jsonObject(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return json.RawMessage("{}")
	}
	return raw
}

func jsonEqual(a, b json.RawMessage) bool {
	var va, vb any
	if err := json.Unmarshal(jsonObject(a), &va); err != nil {
		return false
	}
	if err := json.Unmarshal(jsonObject(b), &vb); err != nil {
		return false
	}
	ea, _ := json.Marshal(va)
	eb, _ := json.Marshal(vb)
	return bytes.Equal(ea, eb)
}
