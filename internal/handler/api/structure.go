// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/media"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/service"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

// CreateSection handles POST /api/v1/pages/{id}/sections
func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	pageID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in service.CreateSectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	section, err := h.svc.CreateSection(r.Context(), actor(r), pageID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, section)
}

// ReorderSections handles POST /api/v1/pages/{id}/sections/reorder
func (h *Handler) ReorderSections(w http.ResponseWriter, r *http.Request) {
	pageID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in service.ReorderInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	sections, err := h.svc.ReorderSections(r.Context(), actor(r), pageID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, sections, nil)
}

// UpdateSection handles PUT /api/v1/sections/{id}
func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in service.UpdateSectionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if in.IfUnmodifiedSince, err = parseIfUnmodifiedSince(r); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	section, err := h.svc.UpdateSection(r.Context(), actor(r), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, section, nil)
}

// DeleteSection handles DELETE /api/v1/sections/{id}
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.DeleteSection(r.Context(), actor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// CreateBlock handles POST /api/v1/sections/{id}/blocks
// Accepts JSON or multipart/form-data with fields type, content, media_url
// and an optional file part.
func (h *Handler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	sectionID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var in service.CreateBlockInput
	if isMultipart(r) {
		form, upload, err := parseBlockForm(w, r)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		defer closeUpload(upload)
		in = service.CreateBlockInput{
			Type:     model.BlockType(form.Get("type")),
			Content:  rawOrNil(form.Get("content")),
			MediaURL: form.Get("media_url"),
			File:     upload,
		}
	} else if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	block, err := h.svc.CreateBlock(r.Context(), actor(r), sectionID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, block)
}

// ReorderBlocks handles POST /api/v1/sections/{id}/blocks/reorder
func (h *Handler) ReorderBlocks(w http.ResponseWriter, r *http.Request) {
	sectionID, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var in service.ReorderInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	blocks, err := h.svc.ReorderBlocks(r.Context(), actor(r), sectionID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, blocks, nil)
}

// UpdateBlock handles PUT /api/v1/blocks/{id}
// Accepts JSON or multipart/form-data like CreateBlock, plus clear_media.
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var in service.UpdateBlockInput
	if isMultipart(r) {
		form, upload, err := parseBlockForm(w, r)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		defer closeUpload(upload)
		if in, err = updateFromForm(form); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		in.File = upload
	} else if err := decodeJSON(w, r, &in); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if in.IfUnmodifiedSince, err = parseIfUnmodifiedSince(r); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	block, err := h.svc.UpdateBlock(r.Context(), actor(r), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, block, nil)
}

// DeleteBlock handles DELETE /api/v1/blocks/{id}
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.DeleteBlock(r.Context(), actor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// blockForm is the parsed non-file part of a multipart block request.
type blockForm map[string][]string

func (f blockForm) Get(key string) string {
	if v := f[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (f blockForm) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// parseBlockForm parses a multipart block request. The upload is nil when
// no file part was sent.
func parseBlockForm(w http.ResponseWriter, r *http.Request) (blockForm, *service.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+maxJSONBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, nil, content.Invalid("body", "invalid multipart form: %v", err)
	}
	form := blockForm(r.MultipartForm.Value)

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return form, nil, nil
	case err != nil:
		return nil, nil, content.Invalid("file", "unreadable upload: %v", err)
	}
	return form, &service.Upload{Filename: header.Filename, Reader: file}, nil
}

func closeUpload(u *service.Upload) {
	if u == nil {
		return
	}
	if c, ok := u.Reader.(io.Closer); ok {
		_ = c.Close()
	}
}

func updateFromForm(form blockForm) (service.UpdateBlockInput, error) {
	var in service.UpdateBlockInput
	if form.Has("type") {
		t := model.BlockType(form.Get("type"))
		in.Type = &t
	}
	in.Content = rawOrNil(form.Get("content"))
	if form.Has("media_url") {
		u := form.Get("media_url")
		in.MediaURL = &u
	}
	if form.Has("clear_media") {
		v, err := strconv.ParseBool(form.Get("clear_media"))
		if err != nil {
			return in, content.Invalid("clear_media", "must be a boolean")
		}
		in.ClearMedia = v
	}
	return in, nil
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
