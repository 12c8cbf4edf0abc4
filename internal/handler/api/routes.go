// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/ocms-pages/internal/middleware"
)

// Routes returns the router mounted at /api/v1. Every route requires the
// tenant and actor headers; extra middleware runs after they are resolved.
func (h *Handler) Routes(mws ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireActor)
	r.Use(mws...)

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", h.ListPages)
		r.Post("/", h.CreatePage)
		r.Post("/bulk", h.BulkPublish)
		r.Get("/slug/{slug}", h.GetPublishedPage)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPage)
			r.Put("/", h.UpdatePage)
			r.Delete("/", h.DeletePage)

			r.Post("/publish", h.PublishPage)
			r.Post("/unpublish", h.UnpublishPage)
			r.Post("/rollback/{version}", h.RollbackPage)
			r.Get("/versions", h.ListVersions)
			r.Get("/versions/{version}", h.GetVersion)
			r.Post("/autosave", h.AutosavePage)
			r.Get("/draft", h.GetDraft)

			r.Post("/sections", h.CreateSection)
			r.Post("/sections/reorder", h.ReorderSections)
		})
	})

	r.Route("/sections/{id}", func(r chi.Router) {
		r.Put("/", h.UpdateSection)
		r.Delete("/", h.DeleteSection)
		r.Post("/blocks", h.CreateBlock)
		r.Post("/blocks/reorder", h.ReorderBlocks)
	})

	r.Route("/blocks/{id}", func(r chi.Router) {
		r.Put("/", h.UpdateBlock)
		r.Delete("/", h.DeleteBlock)
	})

	return r
}
