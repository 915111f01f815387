package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/microblog/internal/app/metrics"
	"github.com/R3E-Network/microblog/internal/app/storage"
	"github.com/R3E-Network/microblog/internal/app/system"
	"github.com/R3E-Network/microblog/pkg/logger"
)

var _ system.Service = (*Janitor)(nil)

// Janitor periodically deletes uploads that were never attached to a tweet.
type Janitor struct {
	service  *Service
	store    storage.MediaStore
	schedule string
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewJanitor creates a janitor that runs on a cron schedule and removes
// orphans older than ttl.
func NewJanitor(service *Service, store storage.MediaStore, schedule string, ttl time.Duration, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.NewDefault("media-janitor")
	}
	if schedule == "" {
		schedule = "@every 1h"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Janitor{
		service:  service,
		store:    store,
		schedule: schedule,
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the time source.
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

func (j *Janitor) Name() string { return "media-janitor" }

func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.Sweep(runCtx); err != nil {
			j.log.WithError(err).Warn("media janitor sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("parse janitor schedule %q: %w", j.schedule, err)
	}
	c.Start()

	j.cron = c
	j.running = true
	j.log.WithField("schedule", j.schedule).Info("media janitor started")
	return nil
}

func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	c := j.cron
	j.cron = nil
	j.running = false
	j.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	j.log.Info("media janitor stopped")
	return nil
}

// Sweep removes orphaned media older than the ttl and returns how many were
// deleted.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.ttl)
	orphans, err := j.store.ListOrphanMedia(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list orphan media: %w", err)
	}

	removed := 0
	for _, m := range orphans {
		err := j.store.DeleteOrphanMedia(ctx, m.ID, cutoff)
		if errors.Is(err, storage.ErrNotFound) {
			// attached or removed since listing
			continue
		}
		if err != nil {
			j.log.WithError(err).WithField("media_id", m.ID).Warn("delete orphan media failed")
			continue
		}
		if j.service != nil {
			j.service.RemoveFiles([]string{m.URL})
		}
		removed++
	}

	metrics.RecordJanitorRemovals(removed)
	if removed > 0 {
		j.log.WithField("removed", removed).Info("orphan media removed")
	}
	return removed, nil
}
