// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"slices"
	"sync"
)

// pageLocks serializes lifecycle operations on the same page inside one
// process. The database lock taken by LockPage covers other processes.
type pageLocks struct {
	mu    sync.Mutex
	locks map[pageKey]*pageLock
}

type pageKey struct {
	tenantID string
	pageID   int64
}

type pageLock struct {
	mu   sync.Mutex
	refs int
}

func newPageLocks() *pageLocks {
	return &pageLocks{locks: make(map[pageKey]*pageLock)}
}

// lock acquires the locks of every page id in ascending order and returns
// a function releasing them.
func (l *pageLocks) lock(tenantID string, ids ...int64) func() {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]pageKey, 0, len(ordered))
	for _, id := range ordered {
		key := pageKey{tenantID: tenantID, pageID: id}
		l.acquire(key).mu.Lock()
		held = append(held, key)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.release(held[i])
		}
	}
}

func (l *pageLocks) acquire(key pageKey) *pageLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl, ok := l.locks[key]
	if !ok {
		pl = &pageLock{}
		l.locks[key] = pl
	}
	pl.refs++
	return pl
}

func (l *pageLocks) release(key pageKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl := l.locks[key]
	pl.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, key)
	}
}
