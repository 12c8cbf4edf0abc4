// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
)

func TestSectionOrdersStayContiguous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Home")
	s1 := h.section(t, p.ID)
	s2 := h.section(t, p.ID)
	s3 := h.section(t, p.ID)
	s4 := h.section(t, p.ID)
	assert.Equal(t, []int{1, 2, 3, 4}, sectionOrders(h.tree(t, p.ID)))

	require.NoError(t, h.svc.DeleteSection(ctx, editor, s2.ID))
	tree := h.tree(t, p.ID)
	assert.Equal(t, []int{1, 2, 3}, sectionOrders(tree))
	assert.Equal(t, []int64{s1.ID, s3.ID, s4.ID}, []int64{tree.Sections[0].ID, tree.Sections[1].ID, tree.Sections[2].ID})

	sections, err := h.svc.ReorderSections(ctx, editor, p.ID, ReorderInput{
		Items: []content.Move{{ID: s4.ID, Order: 1}, {ID: s1.ID, Order: 3}},
	})
	require.NoError(t, err)
	require.Len(t, sections, 3)
	// s3 keeps order 2 between the moved sections.
	assert.Equal(t, []int64{s4.ID, s3.ID, s1.ID}, []int64{sections[0].ID, sections[1].ID, sections[2].ID})
	assert.Equal(t, []int{1, 2, 3}, sectionOrders(h.tree(t, p.ID)))

	next := h.section(t, p.ID)
	assert.Equal(t, 4, next.Order, "new sections go last")
}

func TestReorderSectionsIgnoresUnknownAndOutOfWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Gallery")
	var ids []int64
	for range 4 {
		ids = append(ids, h.section(t, p.ID).ID)
	}

	// Window page 2 of size 2 covers the third and fourth sections only.
	sections, err := h.svc.ReorderSections(ctx, editor, p.ID, ReorderInput{
		Items: []content.Move{
			{ID: ids[0], Order: 99},
			{ID: ids[3], Order: 3},
			{ID: ids[2], Order: 4},
			{ID: 424242, Order: 1},
		},
		Window: content.Window{Page: 2, PerPage: 2},
	})
	require.NoError(t, err)
	got := make([]int64, len(sections))
	for i, s := range sections {
		got[i] = s.ID
	}
	assert.Equal(t, []int64{ids[0], ids[1], ids[3], ids[2]}, got)
	assert.Equal(t, []int{1, 2, 3, 4}, sectionOrders(h.tree(t, p.ID)))
}

func TestReorderValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.page(t, "Docs")

	tests := []struct {
		name string
		in   ReorderInput
	}{
		{"no items", ReorderInput{}},
		{"zero order", ReorderInput{Items: []content.Move{{ID: 1, Order: 0}}}},
		{"negative window", ReorderInput{Items: []content.Move{{ID: 1, Order: 1}}, Window: content.Window{Page: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.ReorderSections(ctx, editor, p.ID, tt.in)
			var v *content.ValidationError
			assert.True(t, errors.As(err, &v), "got %v", err)
		})
	}
}

func TestDeleteMiddleBlockCompacts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Story")
	s := h.section(t, p.ID)
	b1 := h.textBlock(t, s.ID, "one")
	b2 := h.textBlock(t, s.ID, "two")
	b3 := h.textBlock(t, s.ID, "three")
	assert.Equal(t, []int{1, 2, 3}, blockOrders(h.tree(t, p.ID).Sections[0]))

	require.NoError(t, h.svc.DeleteBlock(ctx, editor, b2.ID))

	sec := h.tree(t, p.ID).Sections[0]
	assert.Equal(t, []int{1, 2}, blockOrders(sec))
	assert.Equal(t, b1.ID, sec.Blocks[0].ID)
	assert.Equal(t, b3.ID, sec.Blocks[1].ID)
}

func TestReorderBlocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Steps")
	s := h.section(t, p.ID)
	b1 := h.textBlock(t, s.ID, "one")
	b2 := h.textBlock(t, s.ID, "two")
	b3 := h.textBlock(t, s.ID, "three")

	blocks, err := h.svc.ReorderBlocks(ctx, editor, s.ID, ReorderInput{
		Items: []content.Move{{ID: b3.ID, Order: 1}, {ID: b1.ID, Order: 2}, {ID: b2.ID, Order: 3}},
	})
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, []int64{b3.ID, b1.ID, b2.ID}, []int64{blocks[0].ID, blocks[1].ID, blocks[2].ID})
	assert.Equal(t, []int{1, 2, 3}, blockOrders(h.tree(t, p.ID).Sections[0]))

	logs, err := h.queries.ListAuditLogsForEntity(ctx, editor.TenantID, model.EntitySection, idString(s.ID))
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, model.ActionBlockReorder, last.Action)
	assert.JSONEq(t, `{"requested":3,"changed":3}`, string(last.Payload))
}

func TestDeleteSectionCompactsAndRemovesBlocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Features")
	s1 := h.section(t, p.ID)
	h.textBlock(t, s1.ID, "a")
	s2 := h.section(t, p.ID)
	b := h.textBlock(t, s2.ID, "b")

	require.NoError(t, h.svc.DeleteSection(ctx, editor, s1.ID))

	tree := h.tree(t, p.ID)
	require.Len(t, tree.Sections, 1)
	assert.Equal(t, s2.ID, tree.Sections[0].ID)
	assert.Equal(t, 1, tree.Sections[0].Order)
	assert.Equal(t, b.ID, tree.Sections[0].Blocks[0].ID)

	assert.ErrorIs(t, h.svc.DeleteSection(ctx, editor, s1.ID), content.ErrNotFound)
}

func TestCreateSectionValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.page(t, "Home")

	_, err := h.svc.CreateSection(ctx, editor, p.ID, CreateSectionInput{Type: "carousel"})
	var v *content.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "type", v.Field)

	_, err = h.svc.CreateSection(ctx, editor, p.ID, CreateSectionInput{Type: model.SectionTypeHero, Settings: []byte(`"x"`)})
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "settings", v.Field)

	_, err = h.svc.CreateSection(ctx, editor, 404, CreateSectionInput{Type: model.SectionTypeHero})
	assert.ErrorIs(t, err, content.ErrNotFound)

	s, err := h.svc.CreateSection(ctx, editor, p.ID, CreateSectionInput{Type: model.SectionTypeHero, Settings: []byte(`{"bg":"dark"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bg":"dark"}`, string(s.Settings))
}

func TestUpdateSectionNoChanges(t *testing.T) {
	h := newHarness(t)
	p := h.page(t, "Home")
	s := h.section(t, p.ID)

	_, err := h.svc.UpdateSection(context.Background(), editor, s.ID, UpdateSectionInput{Settings: []byte(`{}`)})
	assert.ErrorIs(t, err, content.ErrNoChanges)
}

func TestCreateBlockNormalizesContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Notes")
	s := h.section(t, p.ID)

	b, err := h.svc.CreateBlock(ctx, editor, s.ID, CreateBlockInput{
		Type:    model.BlockTypeText,
		Content: []byte(`{"markdown":"**bold** <script>alert(1)</script>"}`),
	})
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal(b.Content, &body))
	assert.Contains(t, body["html"], "<strong>bold</strong>")
	assert.NotContains(t, body["html"], "<script>")
	assert.Equal(t, 1, b.Order)
}

func TestBlockMediaRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.page(t, "Media")
	s := h.section(t, p.ID)

	_, err := h.svc.CreateBlock(ctx, editor, s.ID, CreateBlockInput{Type: model.BlockTypeImage})
	requireViolation(t, err, content.RuleBlockMedia)

	_, err = h.svc.CreateBlock(ctx, editor, s.ID, CreateBlockInput{Type: model.BlockTypeButton, MediaURL: "/uploads/x.png"})
	requireViolation(t, err, content.RuleBlockMedia)

	_, err = h.svc.CreateBlock(ctx, editor, s.ID, CreateBlockInput{Type: "quote"})
	var v *content.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "type", v.Field)

	img := h.imageBlock(t, s.ID, "photo.png")
	assert.NotEmpty(t, img.MediaURL)

	text := model.BlockTypeText
	_, err = h.svc.UpdateBlock(ctx, editor, img.ID, UpdateBlockInput{Type: &text})
	requireViolation(t, err, content.RuleBlockMedia)

	retyped, err := h.svc.UpdateBlock(ctx, editor, img.ID, UpdateBlockInput{Type: &text, ClearMedia: true})
	require.NoError(t, err)
	assert.Equal(t, model.BlockTypeText, retyped.Type)
	assert.Empty(t, retyped.MediaURL)
	assert.False(t, h.media.has(img.MediaURL), "cleared media is removed after commit")

	_, err = h.svc.UpdateBlock(ctx, editor, img.ID, UpdateBlockInput{ClearMedia: true, MediaURL: strPtr("/x.png")})
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "clear_media", v.Field)
}
