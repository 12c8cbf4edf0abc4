// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package version

import "testing"

func TestInfoString(t *testing.T) {
	tests := []struct {
		name      string
		info      Info
		wantShort string
		wantStr   string
	}{
		{
			name:      "injected",
			info:      Info{Version: "v1.0.0", GitCommit: "abc1234", BuildTime: "2025-01-30T12:00:00Z"},
			wantShort: "v1.0.0",
			wantStr:   "ocms-pages v1.0.0 (commit: abc1234, built: 2025-01-30T12:00:00Z)",
		},
		{
			name:      "zero value",
			info:      Info{},
			wantShort: "dev",
			wantStr:   "ocms-pages dev (commit: unknown, built: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.wantShort {
				t.Errorf("Short() = %q, want %q", got, tt.wantShort)
			}
			if got := tt.info.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}
