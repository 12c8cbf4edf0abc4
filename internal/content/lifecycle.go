// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import "github.com/olegiv/ocms-pages/internal/model"

// Edge names the operation requesting a status change.
type Edge string

// Lifecycle edges
const (
	EdgePublish   Edge = "publish"
	EdgeUnpublish Edge = "unpublish"
	EdgeRollback  Edge = "rollback"
)

type transition struct {
	from model.PageStatus
	to   model.PageStatus
}

var legalEdges = map[Edge][]transition{
	EdgePublish: {
		{model.PageStatusDraft, model.PageStatusPublished},
	},
	EdgeUnpublish: {
		{model.PageStatusPublished, model.PageStatusDraft},
	},
	EdgeRollback: {
		{model.PageStatusPublished, model.PageStatusDraft},
	},
}

// Transition checks that moving a page from one status to another is legal
// for the given edge.
func Transition(from, to model.PageStatus, edge Edge) error {
	for _, t := range legalEdges[edge] {
		if t.from == from && t.to == to {
			return nil
		}
	}
	return &IllegalTransitionError{From: string(from), To: string(to), Edge: edge}
}
