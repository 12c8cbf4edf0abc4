// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/ocms-pages/internal/model"
)

func block(id int64, order int, t model.BlockType, media string) model.Block {
	return model.Block{ID: id, Order: order, Type: t, MediaURL: media}
}

func section(id int64, order int, blocks ...model.Block) model.Section {
	return model.Section{ID: id, Order: order, Type: model.SectionTypeContent, Blocks: blocks}
}

func deleted() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}

func TestValidate(t *testing.T) {
	deletedSection := section(9, 1, block(90, 1, model.BlockTypeText, ""))
	deletedSection.DeletedAt = deleted()
	deletedBlock := block(11, 1, model.BlockTypeText, "")
	deletedBlock.DeletedAt = deleted()

	tests := []struct {
		name     string
		sections []model.Section
		mode     Mode
		wantRule string
	}{
		{
			name:     "valid tree",
			sections: []model.Section{section(1, 1, block(10, 1, model.BlockTypeText, "")), section(2, 2, block(20, 1, model.BlockTypeImage, "/a.png"))},
			mode:     ModePublish,
		},
		{
			name:     "gap in section orders",
			sections: []model.Section{section(1, 1), section(2, 3)},
			mode:     ModeEdit,
			wantRule: RuleSectionOrder,
		},
		{
			name:     "duplicate section orders",
			sections: []model.Section{section(1, 1), section(2, 1)},
			mode:     ModeEdit,
			wantRule: RuleSectionOrder,
		},
		{
			name:     "deleted sections are ignored",
			sections: []model.Section{deletedSection, section(2, 1, block(20, 1, model.BlockTypeText, ""))},
			mode:     ModePublish,
		},
		{
			name:     "gap in block orders",
			sections: []model.Section{section(1, 1, block(10, 1, model.BlockTypeText, ""), block(11, 3, model.BlockTypeText, ""))},
			mode:     ModeEdit,
			wantRule: RuleBlockOrder,
		},
		{
			name:     "deleted blocks are ignored",
			sections: []model.Section{section(1, 1, deletedBlock, block(12, 1, model.BlockTypeText, ""))},
			mode:     ModeEdit,
		},
		{
			name:     "empty section allowed while editing",
			sections: []model.Section{section(1, 1)},
			mode:     ModeEdit,
		},
		{
			name:     "empty section rejected at publish",
			sections: []model.Section{section(1, 1)},
			mode:     ModePublish,
			wantRule: RuleSectionEmpty,
		},
		{
			name:     "empty page allowed while editing",
			mode:     ModeEdit,
		},
		{
			name:     "empty page rejected at publish",
			mode:     ModePublish,
			wantRule: RulePageEmpty,
		},
		{
			name:     "image without media",
			sections: []model.Section{section(1, 1, block(10, 1, model.BlockTypeImage, ""))},
			mode:     ModeEdit,
			wantRule: RuleBlockMedia,
		},
		{
			name:     "text with media",
			sections: []model.Section{section(1, 1, block(10, 1, model.BlockTypeText, "/a.png"))},
			mode:     ModeEdit,
			wantRule: RuleBlockMedia,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &model.Page{ID: 1, Sections: tt.sections}
			err := Validate(page, tt.mode)

			if tt.wantRule == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}

			var v *InvariantViolation
			if !errors.As(err, &v) {
				t.Fatalf("Validate() = %v, want *InvariantViolation", err)
			}
			if v.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", v.Rule, tt.wantRule)
			}
		})
	}
}

func TestIsContiguous(t *testing.T) {
	tests := []struct {
		orders []int
		want   bool
	}{
		{nil, true},
		{[]int{1}, true},
		{[]int{3, 1, 2}, true},
		{[]int{0, 1}, false},
		{[]int{1, 1}, false},
		{[]int{1, 3}, false},
	}

	for _, tt := range tests {
		if got := IsContiguous(tt.orders); got != tt.want {
			t.Errorf("IsContiguous(%v) = %v, want %v", tt.orders, got, tt.want)
		}
	}
}
