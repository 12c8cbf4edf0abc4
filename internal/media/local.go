// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/olegiv/ocms-pages/internal/content"
)

// DefaultUploadDir is the default directory for uploaded files.
const DefaultUploadDir = "./uploads"

// DefaultBaseURL is the URL prefix under which local uploads are served.
const DefaultBaseURL = "/uploads"

// LocalStore keeps media files in a directory on disk.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		dir = DefaultUploadDir
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes r to a new uniquely named file.
func (s *LocalStore) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	name, err := objectName(filename)
	if err != nil {
		return "", err
	}

	path, err := fileInDir(s.dir, name)
	if err != nil {
		return "", err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(r, MaxUploadSize+1))
	closeErr := out.Close()
	if err == nil && n > MaxUploadSize {
		err = content.Invalid("file", "exceeds maximum size of %d bytes", MaxUploadSize)
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}

	return joinURL(s.baseURL, name), nil
}

// Delete removes the file behind url. URLs outside the store's base URL and
// files that no longer exist are reported as not deleted.
func (s *LocalStore) Delete(_ context.Context, url string) (bool, error) {
	path, ok := s.pathFor(url)
	if !ok {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("deleting file: %w", err)
	}
	return true, nil
}

// pathFor maps a URL produced by Save back to a file path inside the
// upload directory. Only a single plain file name is accepted.
func (s *LocalStore) pathFor(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	path, err := fileInDir(s.dir, strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return path, true
}
