package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiredOTPPurger removes codes whose expiry has passed.
type ExpiredOTPPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler runs background maintenance on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(), timeout: 30 * time.Second}
}

// AddOTPSweep registers a purge of expired codes on spec ("@every 1m", "*/5 * * * *").
func (s *Scheduler) AddOTPSweep(spec string, purger ExpiredOTPPurger) error {
	if _, err := s.cron.AddFunc(spec, func() { s.sweep(purger, time.Now()) }); err != nil {
		return fmt.Errorf("schedule otp sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) sweep(purger ExpiredOTPPurger, now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := purger.PurgeExpired(ctx, now)
	if err != nil {
		slog.Warn("otp sweep failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("purged expired otp codes", "count", n)
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
