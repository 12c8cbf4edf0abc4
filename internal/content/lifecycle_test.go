// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"errors"
	"testing"

	"github.com/olegiv/ocms-pages/internal/model"
)

func TestTransition(t *testing.T) {
	draft, published := model.PageStatusDraft, model.PageStatusPublished

	tests := []struct {
		from, to model.PageStatus
		edge     Edge
		legal    bool
	}{
		{draft, published, EdgePublish, true},
		{published, published, EdgePublish, false},
		{published, draft, EdgePublish, false},
		{published, draft, EdgeUnpublish, true},
		{draft, draft, EdgeUnpublish, false},
		{published, draft, EdgeRollback, true},
		{draft, draft, EdgeRollback, false},
		{draft, published, EdgeRollback, false},
		{draft, published, Edge("archive"), false},
	}

	for _, tt := range tests {
		err := Transition(tt.from, tt.to, tt.edge)
		if tt.legal {
			if err != nil {
				t.Errorf("Transition(%s, %s, %s) = %v, want nil", tt.from, tt.to, tt.edge, err)
			}
			continue
		}

		var ite *IllegalTransitionError
		if !errors.As(err, &ite) {
			t.Errorf("Transition(%s, %s, %s) = %v, want *IllegalTransitionError", tt.from, tt.to, tt.edge, err)
			continue
		}
		if ite.From != string(tt.from) || ite.To != string(tt.to) || ite.Edge != tt.edge {
			t.Errorf("error fields = %+v", ite)
		}
	}
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := NotFound("page", 42)
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFound error should match ErrNotFound")
	}
	if err.Error() != "page 42 not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
