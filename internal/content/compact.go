// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"slices"
	"sort"
)

// Position is the order of one sibling row.
type Position struct {
	ID    int64
	Order int
}

// Move is a requested order for one sibling.
type Move struct {
	ID    int64 `json:"id"`
	Order int   `json:"order"`
}

// Window restricts a reorder to one page of siblings sorted by current order.
// A zero Window covers every sibling.
type Window struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// bounds returns the half-open index range the window covers in a list of n siblings.
func (w Window) bounds(n int) (int, int) {
	if w.PerPage <= 0 {
		return 0, n
	}
	page := w.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * w.PerPage
	if start > n {
		start = n
	}
	end := start + w.PerPage
	if end > n {
		end = n
	}
	return start, end
}

func sortPositions(p []Position) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Order != p[j].Order {
			return p[i].Order < p[j].Order
		}
		return p[i].ID < p[j].ID
	})
}

// Compact renumbers siblings to 1..N by ascending order, ties broken by
// ascending id. The input slice is not modified.
func Compact(siblings []Position) []Position {
	out := slices.Clone(siblings)
	sortPositions(out)
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// ApplyReorder applies moves to the siblings inside window and compacts the
// full set. Moves naming unknown ids or ids outside the window are ignored.
func ApplyReorder(siblings []Position, moves []Move, window Window) []Position {
	ordered := slices.Clone(siblings)
	sortPositions(ordered)

	start, end := window.bounds(len(ordered))
	inWindow := make(map[int64]int, end-start)
	for i := start; i < end; i++ {
		inWindow[ordered[i].ID] = i
	}

	for _, m := range moves {
		if i, ok := inWindow[m.ID]; ok {
			ordered[i].Order = m.Order
		}
	}

	return Compact(ordered)
}

// Changed returns the positions in next whose order differs from prev.
func Changed(prev, next []Position) []Position {
	before := make(map[int64]int, len(prev))
	for _, p := range prev {
		before[p.ID] = p.Order
	}
	var out []Position
	for _, p := range next {
		if before[p.ID] != p.Order {
			out = append(out, p)
		}
	}
	return out
}

// SortedCopy returns a sorted copy of orders.
func SortedCopy(orders []int) []int {
	out := slices.Clone(orders)
	slices.Sort(out)
	return out
}
