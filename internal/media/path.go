// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// fileInDir resolves a single stored file name inside dir. Names carrying
// directory components, or resolving outside dir, are rejected.
func fileInDir(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid media file name: %q", name)
	}

	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", fmt.Errorf("invalid upload directory: %w", err)
	}
	path := filepath.Join(absDir, name)

	// The separator suffix keeps /uploads-other from matching /uploads.
	if !strings.HasPrefix(path, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("media file %q escapes the upload directory", name)
	}
	return path, nil
}
