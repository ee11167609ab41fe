package portal

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zulandar/bikereg/internal/config"
	"github.com/zulandar/bikereg/internal/registry"
)

// startHousekeeping schedules the periodic cleanup jobs: pruning read
// notifications past retention, and reaping abandoned scan sessions.
func startHousekeeping(reg *registry.Registry, sessions *SessionManager, cfg config.HousekeepingConfig) (*cron.Cron, error) {
	c := cron.New()
	if cfg.PruneSchedule != "" {
		if _, err := c.AddFunc(cfg.PruneSchedule, func() { pruneNotifications(reg, cfg.Retention()) }); err != nil {
			return nil, fmt.Errorf("portal: schedule prune %q: %w", cfg.PruneSchedule, err)
		}
	}
	if cfg.ReapSchedule != "" {
		if _, err := c.AddFunc(cfg.ReapSchedule, func() { reapSessions(sessions, cfg.SessionIdle()) }); err != nil {
			return nil, fmt.Errorf("portal: schedule reap %q: %w", cfg.ReapSchedule, err)
		}
	}
	c.Start()
	return c, nil
}

func pruneNotifications(reg *registry.Registry, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := reg.PruneRead(ctx, retention)
	if err != nil {
		log.Printf("portal: prune notifications: %v", err)
		return
	}
	if n > 0 {
		log.Printf("portal: pruned %d read notifications", n)
	}
}

func reapSessions(sessions *SessionManager, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	sessions.ReapIdle(maxIdle)
}
