// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-pages/internal/cache"
	"github.com/olegiv/ocms-pages/internal/content"
	"github.com/olegiv/ocms-pages/internal/metrics"
	"github.com/olegiv/ocms-pages/internal/model"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/testutil"
	"github.com/olegiv/ocms-pages/internal/webhook"
)

var editor = Actor{TenantID: "tenant-a", ActorID: "editor-1"}

// fakeMedia is an in-memory media.Store.
type fakeMedia struct {
	mu        sync.Mutex
	next      int
	files     map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{files: make(map[string][]byte)}
}

func (m *fakeMedia) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	url := fmt.Sprintf("/uploads/%d-%s", m.next, filename)
	m.files[url] = data
	return url, nil
}

func (m *fakeMedia) Delete(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	m.deleted = append(m.deleted, url)
	_, ok := m.files[url]
	delete(m.files, url)
	return ok, nil
}

func (m *fakeMedia) has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[url]
	return ok
}

// fakeNotifier records dispatched events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []*webhook.Event
}

func (n *fakeNotifier) Dispatch(_ context.Context, ev *webhook.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Type
	}
	return out
}

// clock advances by step (one minute when zero) on every call so
// consecutive writes get distinct timestamps.
type clock struct {
	mu   sync.Mutex
	cur  time.Time
	step time.Duration
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	step := c.step
	if step == 0 {
		step = time.Minute
	}
	c.cur = c.cur.Add(step)
	return c.cur
}

type harness struct {
	svc      *ContentService
	queries  *store.Queries
	media    *fakeMedia
	notifier *fakeNotifier
	cache    cache.Cache
	clock    *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.TestDB(t)
	return newHarnessWithQueries(t, db, store.New(db))
}

func newHarnessWithQueries(t *testing.T, db *sql.DB, queries *store.Queries) *harness {
	t.Helper()

	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = c.Close() })

	h := &harness{
		queries:  queries,
		media:    newFakeMedia(),
		notifier: &fakeNotifier{},
		cache:    c,
	}
	h.svc = NewContentService(db, queries, Options{
		Media:     h.media,
		Published: cache.NewPublishedCache(c, time.Hour),
		Notifier:  h.notifier,
		Metrics:   metrics.New(),
		Logger:    testutil.TestLoggerSilent(),
	})
	h.clock = &clock{cur: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h.svc.now = h.clock.now
	return h
}

func (h *harness) page(t *testing.T, title string) *model.Page {
	t.Helper()
	p, err := h.svc.CreatePage(context.Background(), editor, CreatePageInput{Title: title})
	require.NoError(t, err)
	return p
}

func (h *harness) section(t *testing.T, pageID int64) *model.Section {
	t.Helper()
	s, err := h.svc.CreateSection(context.Background(), editor, pageID, CreateSectionInput{Type: model.SectionTypeContent})
	require.NoError(t, err)
	return s
}

func (h *harness) textBlock(t *testing.T, sectionID int64, text string) *model.Block {
	t.Helper()
	b, err := h.svc.CreateBlock(context.Background(), editor, sectionID, CreateBlockInput{
		Type:    model.BlockTypeText,
		Content: []byte(fmt.Sprintf(`{"html":%q}`, text)),
	})
	require.NoError(t, err)
	return b
}

func (h *harness) imageBlock(t *testing.T, sectionID int64, name string) *model.Block {
	t.Helper()
	b, err := h.svc.CreateBlock(context.Background(), editor, sectionID, CreateBlockInput{
		Type: model.BlockTypeImage,
		File: &Upload{Filename: name, Reader: strings.NewReader("image-bytes")},
	})
	require.NoError(t, err)
	return b
}

// publishable creates a page with one section holding one text block.
func (h *harness) publishable(t *testing.T, title string) (*model.Page, *model.Section) {
	t.Helper()
	p := h.page(t, title)
	s := h.section(t, p.ID)
	h.textBlock(t, s.ID, "<p>"+title+"</p>")
	return p, s
}

func (h *harness) tree(t *testing.T, pageID int64) *model.Page {
	t.Helper()
	p, err := h.svc.GetPage(context.Background(), editor, pageID)
	require.NoError(t, err)
	return p
}

func sectionOrders(p *model.Page) []int {
	out := make([]int, len(p.Sections))
	for i, s := range p.Sections {
		out[i] = s.Order
	}
	return out
}

func blockOrders(s model.Section) []int {
	out := make([]int, len(s.Blocks))
	for i, b := range s.Blocks {
		out[i] = b.Order
	}
	return out
}

func requireViolation(t *testing.T, err error, rule string) {
	t.Helper()
	var v *content.InvariantViolation
	require.True(t, errors.As(err, &v), "expected invariant violation, got %v", err)
	require.Equal(t, rule, v.Rule)
}

func TestActorRequired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor Actor
		field string
	}{
		{"missing tenant", Actor{ActorID: "a"}, "tenant_id"},
		{"missing actor", Actor{TenantID: "t"}, "actor_id"},
		{"blank tenant", Actor{TenantID: "  ", ActorID: "a"}, "tenant_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreatePage(ctx, tt.actor, CreatePageInput{Title: "Home"})
			var v *content.ValidationError
			require.True(t, errors.As(err, &v))
			require.Equal(t, tt.field, v.Field)
		})
	}
}

func TestPageLocksSerializeSamePage(t *testing.T) {
	l := newPageLocks()

	unlock := l.lock("t", 2, 1, 2)
	acquired := make(chan struct{})
	go func() {
		release := l.lock("t", 1)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after release")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Empty(t, l.locks)
}
