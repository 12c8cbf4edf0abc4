// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render normalizes block content before it is stored: markdown in
// text blocks is rendered to HTML and every HTML field is sanitized.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/model"
)

// htmlSanitizer allows the safe subset of HTML used in user-generated content.
var htmlSanitizer = bluemonday.UGCPolicy()

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Content keys with special handling.
const (
	KeyMarkdown = "markdown"
	KeyHTML     = "html"
)

// NormalizeContent validates that raw is a JSON object and returns it with
// markdown rendered (text blocks only) and HTML sanitized. Empty input
// becomes an empty object.
func NormalizeContent(blockType model.BlockType, raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return json.RawMessage("{}"), nil
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, content.Invalid("content", "must be a JSON object")
	}

	if md, ok := fields[KeyMarkdown]; ok && blockType == model.BlockTypeText {
		src, ok := md.(string)
		if !ok {
			return nil, content.Invalid("content.markdown", "must be a string")
		}
		html, err := Markdown(src)
		if err != nil {
			return nil, err
		}
		fields[KeyHTML] = html
	}

	if h, ok := fields[KeyHTML]; ok {
		src, ok := h.(string)
		if !ok {
			return nil, content.Invalid("content.html", "must be a string")
		}
		fields[KeyHTML] = SanitizeHTML(src)
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding content: %w", err)
	}
	return out, nil
}

// Markdown renders markdown source to sanitized HTML.
func Markdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return SanitizeHTML(buf.String()), nil
}

// SanitizeHTML strips scripts, event handlers and other unsafe markup.
func SanitizeHTML(s string) string {
	return htmlSanitizer.Sanitize(s)
}
