package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically purges attempts that no policy window can still see.
type Janitor struct {
	store     *Store
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewJanitor schedules purges on a standard five-field cron spec or a descriptor
// such as "@every 10m". Retention must cover the longest policy window.
func NewJanitor(store *Store, schedule string, retention time.Duration, logger *slog.Logger) (*Janitor, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		store:     store,
		retention: retention,
		timeout:   30 * time.Second,
		logger:    logger,
		cron:      cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, err
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running purge until ctx is done.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.Purge(ctx)
}

// Purge deletes attempts older than the retention once.
func (j *Janitor) Purge(ctx context.Context) {
	removed, err := j.store.DeleteBefore(ctx, j.store.now().Add(-j.retention))
	if err != nil {
		j.logger.WarnContext(ctx, "rate limit purge failed", "error", err)
		return
	}
	j.logger.InfoContext(ctx, "rate limit attempts purged", "removed", removed)
}
