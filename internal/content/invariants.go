// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"fmt"

	"github.com/olegiv/ocms-pages/internal/model"
)

// Mode selects which invariant rules Validate enforces.
type Mode int

// Validation modes
const (
	// ModeEdit checks ordering and media consistency after structural edits.
	ModeEdit Mode = iota
	// ModePublish additionally requires non-empty pages and sections.
	ModePublish
)

// Invariant rule names.
const (
	RuleSectionOrder = "section_order"
	RuleBlockOrder   = "block_order"
	RuleSectionEmpty = "section_empty"
	RuleBlockMedia   = "block_media"
	RulePageEmpty    = "page_empty"
)

// Validate checks the live content tree of page and returns the first
// *InvariantViolation found, or nil.
func Validate(page *model.Page, mode Mode) error {
	sections := page.LiveSections()

	if mode == ModePublish && len(sections) == 0 {
		return &InvariantViolation{
			Rule:   RulePageEmpty,
			Detail: fmt.Sprintf("page %d has no sections", page.ID),
		}
	}

	orders := make([]int, len(sections))
	for i, s := range sections {
		orders[i] = s.Order
	}
	if !IsContiguous(orders) {
		return &InvariantViolation{
			Rule:   RuleSectionOrder,
			Detail: fmt.Sprintf("page %d section orders %v are not 1..%d", page.ID, SortedCopy(orders), len(orders)),
		}
	}

	for _, s := range sections {
		blocks := s.LiveBlocks()

		if mode == ModePublish && len(blocks) == 0 {
			return &InvariantViolation{
				Rule:   RuleSectionEmpty,
				Detail: fmt.Sprintf("section %d has no blocks", s.ID),
			}
		}

		blockOrders := make([]int, len(blocks))
		for i, b := range blocks {
			blockOrders[i] = b.Order
		}
		if !IsContiguous(blockOrders) {
			return &InvariantViolation{
				Rule:   RuleBlockOrder,
				Detail: fmt.Sprintf("section %d block orders %v are not 1..%d", s.ID, SortedCopy(blockOrders), len(blockOrders)),
			}
		}

		for _, b := range blocks {
			if err := CheckBlockMedia(b.Type, b.MediaURL); err != nil {
				v := err.(*InvariantViolation)
				v.Detail = fmt.Sprintf("block %d: %s", b.ID, v.Detail)
				return v
			}
		}
	}

	return nil
}

// CheckBlockMedia enforces that image and video blocks carry a media URL
// and that other block types carry none.
func CheckBlockMedia(t model.BlockType, mediaURL string) error {
	if t.RequiresMedia() && mediaURL == "" {
		return &InvariantViolation{Rule: RuleBlockMedia, Detail: fmt.Sprintf("%s block requires media_url", t)}
	}
	if !t.RequiresMedia() && mediaURL != "" {
		return &InvariantViolation{Rule: RuleBlockMedia, Detail: fmt.Sprintf("%s block must not carry media_url", t)}
	}
	return nil
}

// IsContiguous reports whether orders is a permutation of 1..len(orders).
func IsContiguous(orders []int) bool {
	seen := make([]bool, len(orders)+1)
	for _, o := range orders {
		if o < 1 || o > len(orders) || seen[o] {
			return false
		}
		seen[o] = true
	}
	return true
}
