// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package media stores files referenced by image and video blocks.
// Files are opaque: the store only saves bytes and hands back a URL.
package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-pages/internal/content"
)

// MaxUploadSize is the maximum accepted media file size (64MB).
const MaxUploadSize = 64 << 20

// AllowedExtensions lists the file extensions accepted for upload.
var AllowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

// Store saves and deletes media files.
type Store interface {
	// Save stores the contents of r and returns the public URL of the file.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	// Delete removes the file behind url. It returns false when nothing was deleted.
	Delete(ctx context.Context, url string) (bool, error)
}

// objectName validates the extension of filename and returns a fresh
// collision-free name that keeps it.
func objectName(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !AllowedExtensions[ext] {
		return "", content.Invalid("file", "extension %q is not allowed", ext)
	}
	return uuid.New().String() + ext, nil
}

// readLimited reads r fully, failing when it exceeds MaxUploadSize.
func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, content.Invalid("file", "exceeds maximum size of %d bytes", MaxUploadSize)
	}
	return data, nil
}

// joinURL joins a base URL and an object name with a single slash.
func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
