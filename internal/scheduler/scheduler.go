// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/ocms-pages/internal/store"
)

// Default schedules and retention periods.
const (
	DefaultDraftPurgeSchedule = "17 3 * * *"
	DefaultDraftRetention     = 30 * 24 * time.Hour
	DefaultEventPurgeSchedule = "47 3 * * *"
	DefaultEventRetention     = 90 * 24 * time.Hour
)

// Job names.
const (
	JobPurgeDrafts = "purge_drafts"
	JobPurgeEvents = "purge_events"
)

// Config holds housekeeping schedules. A zero retention disables the job.
type Config struct {
	DraftPurgeSchedule string
	DraftRetention     time.Duration
	EventPurgeSchedule string
	EventRetention     time.Duration
}

// DefaultConfig returns the default housekeeping configuration.
func DefaultConfig() Config {
	return Config{
		DraftPurgeSchedule: DefaultDraftPurgeSchedule,
		DraftRetention:     DefaultDraftRetention,
		EventPurgeSchedule: DefaultEventPurgeSchedule,
		EventRetention:     DefaultEventRetention,
	}
}

// JobInfo is the public view of a scheduled job.
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	LastRun  time.Time `json:"last_run,omitzero"`
	NextRun  time.Time `json:"next_run,omitzero"`
}

// Scheduler purges stale autosave drafts and old system events.
type Scheduler struct {
	queries *store.Queries
	cron    *cron.Cron
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]cron.EntryID
	lastRun map[string]time.Time
}

// New creates a new scheduler instance. The store dialect is taken from queries.
func New(queries *store.Queries, logger *slog.Logger, cfg Config) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		queries: queries,
		cron:    cron.New(),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]cron.EntryID),
		lastRun: make(map[string]time.Time),
	}
}

// NewWithDB is a convenience constructor for a SQLite database.
func NewWithDB(db *sql.DB, logger *slog.Logger, cfg Config) *Scheduler {
	return New(store.New(db), logger, cfg)
}

// Start registers the enabled jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.cfg.DraftRetention > 0 {
		if err := s.add(JobPurgeDrafts, s.cfg.DraftPurgeSchedule, s.PurgeDrafts); err != nil {
			return err
		}
	}
	if s.cfg.EventRetention > 0 {
		if err := s.add(JobPurgeEvents, s.cfg.EventPurgeSchedule, s.PurgeEvents); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) add(name, schedule string, job func(context.Context) (int64, error)) error {
	if err := ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		n, err := job(ctx)
		s.mu.Lock()
		s.lastRun[name] = s.now()
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err, "category", "scheduler")
			return
		}
		if n > 0 {
			s.logger.Info("scheduled job finished", "job", name, "removed", n)
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	s.mu.Lock()
	s.entries[name] = id
	s.mu.Unlock()
	return nil
}

// PurgeDrafts deletes autosave drafts not updated within the retention period.
func (s *Scheduler) PurgeDrafts(ctx context.Context) (int64, error) {
	return s.queries.DeleteDraftsOlderThan(ctx, s.now().UTC().Add(-s.cfg.DraftRetention))
}

// PurgeEvents deletes system events older than the retention period.
func (s *Scheduler) PurgeEvents(ctx context.Context) (int64, error) {
	return s.queries.DeleteEventsOlderThan(ctx, s.now().UTC().Add(-s.cfg.EventRetention))
}

// Jobs lists the registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]JobInfo, 0, len(s.entries))
	for name, id := range s.entries {
		entry := s.cron.Entry(id)
		info := JobInfo{Name: name, LastRun: s.lastRun[name], NextRun: entry.Next}
		switch name {
		case JobPurgeDrafts:
			info.Schedule = s.cfg.DraftPurgeSchedule
		case JobPurgeEvents:
			info.Schedule = s.cfg.EventPurgeSchedule
		}
		jobs = append(jobs, info)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("cron schedule is required")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}
