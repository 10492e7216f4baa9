package scenes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Scheduler refreshes a Cache on a cron schedule. It only ever goes through
// Cache.Refresh, so a failed scheduled fetch keeps the previous list.
type Scheduler struct {
	cache   *Cache
	fetch   FetchFunc
	timeout time.Duration
	cron    *rcron.Cron
}

// NewScheduler validates spec (standard 5-field cron or descriptors such as
// "@every 5m") and returns a stopped scheduler.
func NewScheduler(cache *Cache, spec string, fetch FetchFunc, timeout time.Duration) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Scheduler{
		cache:   cache,
		fetch:   fetch,
		timeout: timeout,
		cron:    rcron.New(),
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid scene refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	names := s.cache.Refresh(ctx, s.fetch)
	slog.Debug("scheduled scene refresh", slog.Int("scenes", len(names)), slog.String("component", "scene_cache"))
}

// Start runs the schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	slog.Info("scene refresh schedule started", slog.String("component", "scene_cache"))
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}
