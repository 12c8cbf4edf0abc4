// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/ocms-pages/internal/content"
)

func publishedSnapshot(title string) content.Snapshot {
	return content.Snapshot{
		SchemaVersion: content.SnapshotSchemaVersion,
		Page:          content.SnapshotPage{ID: 1, Title: title, Slug: "home", Status: "published"},
		Sections:      []content.SnapshotSection{},
	}
}

func TestPublishedCache_ReadThrough(t *testing.T) {
	mem := newTestMemoryCache(0)
	defer func() { _ = mem.Close() }()
	pc := NewPublishedCache(mem, 0)
	ctx := context.Background()

	loads := 0
	load := func(_ context.Context, tenantID, slug string) (content.Snapshot, error) {
		loads++
		if tenantID != "t1" || slug != "home" {
			t.Errorf("load(%q, %q)", tenantID, slug)
		}
		return publishedSnapshot("Home"), nil
	}

	snap, hit, err := pc.Get(ctx, "t1", "home", load)
	if err != nil || hit {
		t.Fatalf("first Get = hit %v, err %v", hit, err)
	}
	if snap.Page.Title != "Home" {
		t.Errorf("title = %q", snap.Page.Title)
	}

	snap, hit, err = pc.Get(ctx, "t1", "home", load)
	if err != nil || !hit {
		t.Fatalf("second Get = hit %v, err %v", hit, err)
	}
	if snap.Page.Title != "Home" || loads != 1 {
		t.Errorf("title = %q, loads = %d", snap.Page.Title, loads)
	}

	if err := pc.Invalidate(ctx, "t1", "home", "home", ""); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, hit, _ = pc.Get(ctx, "t1", "home", load); hit || loads != 2 {
		t.Errorf("after Invalidate hit = %v, loads = %d", hit, loads)
	}
}

func TestPublishedCache_LoadErrorNotCached(t *testing.T) {
	mem := newTestMemoryCache(0)
	defer func() { _ = mem.Close() }()
	pc := NewPublishedCache(mem, 0)

	notFound := content.NotFound("page", "missing")
	_, _, err := pc.Get(context.Background(), "t1", "missing", func(context.Context, string, string) (content.Snapshot, error) {
		return content.Snapshot{}, notFound
	})
	if !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := mem.Get(context.Background(), PublishedKey("t1", "missing")); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("failed load was cached: %v", err)
	}
}

func TestPublishedCache_CorruptEntryReloads(t *testing.T) {
	mem := newTestMemoryCache(0)
	defer func() { _ = mem.Close() }()
	pc := NewPublishedCache(mem, 0)
	ctx := context.Background()

	_ = mem.Set(ctx, PublishedKey("t1", "home"), []byte(`{"broken":true}`), 0)

	snap, hit, err := pc.Get(ctx, "t1", "home", func(context.Context, string, string) (content.Snapshot, error) {
		return publishedSnapshot("Fresh"), nil
	})
	if err != nil || hit || snap.Page.Title != "Fresh" {
		t.Errorf("Get = %q, hit %v, err %v", snap.Page.Title, hit, err)
	}
}

func TestPublishedCache_InvalidateDuringLoad(t *testing.T) {
	mem := newTestMemoryCache(0)
	defer func() { _ = mem.Close() }()
	pc := NewPublishedCache(mem, time.Hour)
	ctx := context.Background()

	// The page changes while the first reader is still loading.
	_, _, err := pc.Get(ctx, "t1", "home", func(ctx context.Context, _, _ string) (content.Snapshot, error) {
		snap := publishedSnapshot("Old")
		if err := pc.Invalidate(ctx, "t1", "home"); err != nil {
			t.Fatalf("Invalidate: %v", err)
		}
		return snap, nil
	})
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}

	snap, hit, err := pc.Get(ctx, "t1", "home", func(context.Context, string, string) (content.Snapshot, error) {
		return publishedSnapshot("New"), nil
	})
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if hit || snap.Page.Title != "New" {
		t.Errorf("second Get = %q, hit %v; want fresh load", snap.Page.Title, hit)
	}

	if _, hit, _ := pc.Get(ctx, "t1", "home", nil); !hit {
		t.Error("fresh entry should be served from cache")
	}
}

func TestPublishedCache_TenantsIsolated(t *testing.T) {
	mem := newTestMemoryCache(0)
	defer func() { _ = mem.Close() }()
	pc := NewPublishedCache(mem, 0)
	ctx := context.Background()

	for _, tenant := range []string{"t1", "t2"} {
		if _, _, err := pc.Get(ctx, tenant, "a", func(context.Context, string, string) (content.Snapshot, error) {
			return publishedSnapshot(tenant), nil
		}); err != nil {
			t.Fatalf("Get(%s): %v", tenant, err)
		}
	}

	if err := pc.Invalidate(ctx, "t1", "a"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := mem.Get(ctx, PublishedKey("t1", "a")); !errors.Is(err, ErrCacheMiss) {
		t.Error("t1 entry should be gone")
	}
	snap, hit, _ := pc.Get(ctx, "t2", "a", nil)
	if !hit || snap.Page.Title != "t2" {
		t.Errorf("t2 entry should remain, got %q hit %v", snap.Page.Title, hit)
	}
}
