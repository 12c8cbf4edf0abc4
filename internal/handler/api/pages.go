// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/service"
)

// BulkRequest is the body of POST /pages/bulk.
type BulkRequest struct {
	Action  service.BulkAction `json:"action"`
	PageIDs []int64            `json:"page_ids"`
}

// VersionResponse is a stored version with its decoded snapshot.
type VersionResponse struct {
	Version  *model.PageVersion `json:"version"`
	Snapshot content.Snapshot   `json:"snapshot"`
}

// CreatePage handles POST /api/v1/pages
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var in service.CreatePageInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	page, err := h.svc.CreatePage(r.Context(), actor(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, page)
}

// ListPages handles GET /api/v1/pages
// Query: status, page, per_page.
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pageNum, err := parseIntQuery(r, "page")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	perPage, err := parseIntQuery(r, "per_page")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if pageNum < 1 {
		pageNum = 1
	}
	if perPage < 1 {
		perPage = service.DefaultPerPage
	}
	perPage = min(perPage, service.MaxPerPage)

	pages, total, err := h.svc.ListPages(r.Context(), actor(r), service.ListPagesInput{
		Status:  r.URL.Query().Get("status"),
		Page:    pageNum,
		PerPage: perPage,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(w, pages, &Meta{
		Total:   total,
		Page:    pageNum,
		PerPage: perPage,
		Pages:   pageCount(total, perPage),
	})
}

// GetPage handles GET /api/v1/pages/{id}
// Returns the page with its live sections and blocks.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	page, err := h.svc.GetPage(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page, nil)
}

// GetPublishedPage handles GET /api/v1/pages/slug/{slug}
func (h *Handler) GetPublishedPage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GetPublishedPage(r.Context(), actor(r), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, snap, nil)
}

// UpdatePage handles PUT /api/v1/pages/{id}
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in service.UpdatePageInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if in.IfUnmodifiedSince, err = parseIfUnmodifiedSince(r); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	page, err := h.svc.UpdatePage(r.Context(), actor(r), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page, nil)
}

// DeletePage handles DELETE /api/v1/pages/{id}
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.DeletePage(r.Context(), actor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// PublishPage handles POST /api/v1/pages/{id}/publish
func (h *Handler) PublishPage(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.PublishPage)
}

// UnpublishPage handles POST /api/v1/pages/{id}/unpublish
func (h *Handler) UnpublishPage(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.UnpublishPage)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, a service.Actor, id int64) (*model.PageVersion, error)) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	v, err := op(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, v)
}

// RollbackPage handles POST /api/v1/pages/{id}/rollback/{version}
func (h *Handler) RollbackPage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	version, err := parseIDParam(r, "version")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	v, err := h.svc.RollbackPage(r.Context(), actor(r), id, version)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, v)
}

// ListVersions handles GET /api/v1/pages/{id}/versions
// Query: limit, cursor (from meta.next_cursor).
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	limit, err := parseIntQuery(r, "limit")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	cursor, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	page, err := h.svc.ListVersions(r.Context(), actor(r), id, cursor, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var meta *Meta
	if page.Next != nil {
		meta = &Meta{NextCursor: encodeCursor(page.Next)}
	}
	WriteSuccess(w, page.Versions, meta)
}

// GetVersion handles GET /api/v1/pages/{id}/versions/{version}
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	version, err := parseIDParam(r, "version")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	v, snap, err := h.svc.GetVersion(r.Context(), actor(r), id, version)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	v.Snapshot = nil
	WriteSuccess(w, VersionResponse{Version: v, Snapshot: snap}, nil)
}

// AutosavePage handles POST /api/v1/pages/{id}/autosave
func (h *Handler) AutosavePage(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	draft, err := h.svc.AutosavePage(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, draft, nil)
}

// GetDraft handles GET /api/v1/pages/{id}/draft
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	draft, err := h.svc.GetDraft(r.Context(), actor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, draft, nil)
}

// BulkPublish handles POST /api/v1/pages/bulk
// Body: {"action": "publish"|"unpublish", "page_ids": [...]}.
func (h *Handler) BulkPublish(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	versions, err := h.svc.BulkPublish(r.Context(), actor(r), req.PageIDs, req.Action)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, versions, &Meta{Total: int64(len(versions))})
}
