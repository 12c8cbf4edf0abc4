// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content holds the rules of the page content tree: structural
// invariants, the page lifecycle, order compaction, snapshots and the
// optimistic concurrency guard. Everything here is pure and storage agnostic.
package content

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrConflict is returned when a write is based on stale state.
	ErrConflict = errors.New("resource was modified by another writer")
	// ErrNotFound matches every *NotFoundError through errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSlug is returned when a live page with the same slug exists in the tenant.
	ErrDuplicateSlug = errors.New("slug already exists")
	// ErrNoChanges is returned by updates that carry no changed field.
	ErrNoChanges = &ValidationError{Message: "no changes supplied"}
)

// InvariantViolation reports a structural rule breach that blocks a commit.
type InvariantViolation struct {
	Rule   string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Rule, e.Detail)
}

// IllegalTransitionError reports a page status change the lifecycle does not allow.
type IllegalTransitionError struct {
	From string
	To   string
	Edge Edge
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition from %s to %s", e.Edge, e.From, e.To)
}

// NotFoundError reports a missing (or soft-deleted) entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is makes every NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a *NotFoundError for the given entity and id.
func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// ValidationError reports a malformed request payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
