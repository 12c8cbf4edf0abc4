// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/ocms-pages/internal/content"
)

// defaultGenerationTTL applies when the cache runs on the backend's default
// entry TTL.
const defaultGenerationTTL = 48 * time.Hour

// PublishedLoader loads the current published snapshot of a page by slug.
type PublishedLoader func(ctx context.Context, tenantID, slug string) (content.Snapshot, error)

// PublishedCache is a read-through cache of published page snapshots.
// Keys have the form published:{tenant}:{slug}.
//
// Every entry is tagged with the slug's generation, read before the loader
// ran. Invalidate moves the generation on, so an entry stored by a reader
// that loaded before the invalidation is never served.
type PublishedCache struct {
	cache Cache
	ttl   time.Duration
}

// NewPublishedCache wraps c. A zero ttl uses the backend default.
func NewPublishedCache(c Cache, ttl time.Duration) *PublishedCache {
	return &PublishedCache{cache: c, ttl: ttl}
}

// PublishedKey returns the cache key for a tenant's page slug.
func PublishedKey(tenantID, slug string) string {
	return "published:" + tenantID + ":" + slug
}

// GenerationKey returns the key holding the generation of a tenant's slug.
func GenerationKey(tenantID, slug string) string {
	return "published-gen:" + tenantID + ":" + slug
}

// Get returns the cached snapshot or calls load and stores its result.
// Backend failures fall through to load so a broken cache never blocks reads.
func (p *PublishedCache) Get(ctx context.Context, tenantID, slug string, load PublishedLoader) (content.Snapshot, bool, error) {
	key := PublishedKey(tenantID, slug)
	gen, genErr := p.generation(ctx, tenantID, slug)

	if genErr == nil {
		if data, err := p.cache.Get(ctx, key); err == nil {
			entryGen, body, ok := bytes.Cut(data, []byte{'\n'})
			if ok && string(entryGen) == gen {
				if snap, err := content.DecodeSnapshot(body); err == nil {
					return snap, true, nil
				}
			}
			_ = p.cache.Delete(ctx, key)
		}
	}

	snap, err := load(ctx, tenantID, slug)
	if err != nil {
		return content.Snapshot{}, false, err
	}

	if genErr != nil {
		return snap, false, nil
	}
	if data, err := snap.Encode(); err == nil {
		entry := make([]byte, 0, len(gen)+1+len(data))
		entry = append(append(append(entry, gen...), '\n'), data...)
		_ = p.cache.Set(ctx, key, entry, p.ttl)
	}
	return snap, false, nil
}

// generation returns the current generation of a slug; an unset generation
// reads as the empty string.
func (p *PublishedCache) generation(ctx context.Context, tenantID, slug string) (string, error) {
	data, err := p.cache.Get(ctx, GenerationKey(tenantID, slug))
	switch {
	case errors.Is(err, ErrCacheMiss):
		return "", nil
	case err != nil:
		return "", err
	}
	return string(data), nil
}

// Invalidate moves the generation of the given slugs of one tenant on and
// drops their entries.
func (p *PublishedCache) Invalidate(ctx context.Context, tenantID string, slugs ...string) error {
	var errs []error
	seen := make(map[string]bool, len(slugs))
	for _, slug := range slugs {
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		if err := p.cache.Set(ctx, GenerationKey(tenantID, slug), []byte(uuid.NewString()), p.generationTTL()); err != nil {
			errs = append(errs, fmt.Errorf("invalidating %s: %w", slug, err))
			continue
		}
		if err := p.cache.Delete(ctx, PublishedKey(tenantID, slug)); err != nil {
			errs = append(errs, fmt.Errorf("invalidating %s: %w", slug, err))
		}
	}
	return errors.Join(errs...)
}

// generationTTL keeps generations alive longer than the entries they tag.
// An expired generation reads as empty and no longer matches any entry
// tagged after an invalidation.
func (p *PublishedCache) generationTTL() time.Duration {
	if p.ttl <= 0 {
		return defaultGenerationTTL
	}
	return 2 * p.ttl
}
