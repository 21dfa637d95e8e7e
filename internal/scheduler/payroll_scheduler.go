// Package scheduler wakes the payroll sweep during its configured weekly
// windows. All idempotency lives in the batch layer; the scheduler may fire
// as often as it likes inside a window without double-paying anyone.
package scheduler

import (
	"context"
	"time"

	"github.com/towlink/dispatch-backend/internal/config"
	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/models"
)

// PayrollRunner executes one payroll window.
type PayrollRunner interface {
	RunWindow(ctx context.Context, windowStart, windowEnd time.Time) (*models.PayoutBatch, error)
}

// PayrollScheduler polls the clock and triggers the sweep while the current
// time falls inside a payout window.
type PayrollScheduler struct {
	runner   PayrollRunner
	windows  []config.PayrollWindow
	location *time.Location
	interval time.Duration
}

// NewPayrollScheduler creates the scheduler.
func NewPayrollScheduler(runner PayrollRunner, windows []config.PayrollWindow, location *time.Location, interval time.Duration) *PayrollScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if location == nil {
		location = time.UTC
	}
	return &PayrollScheduler{
		runner:   runner,
		windows:  windows,
		location: location,
		interval: interval,
	}
}

// Run polls until the context is cancelled. Intended for a goroutine.
func (s *PayrollScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Fire once at startup so a restart inside a window still sweeps it.
	s.tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *PayrollScheduler) tick(ctx context.Context, now time.Time) {
	start, end, ok := s.currentWindow(now)
	if !ok {
		return
	}

	if _, err := s.runner.RunWindow(ctx, start, end); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"window_start": start,
			"error":        err.Error(),
		}).Error("scheduler: payroll window run failed")
	}
}

// currentWindow reports the window containing now, if any. The window
// boundary is evaluated in the configured payroll timezone, so the same
// configuration means the same local sweep time across DST changes.
func (s *PayrollScheduler) currentWindow(now time.Time) (time.Time, time.Time, bool) {
	local := now.In(s.location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)

	for _, w := range s.windows {
		if local.Weekday() != w.Weekday {
			continue
		}
		start := midnight.Add(w.Start)
		end := midnight.Add(w.End)
		if !local.Before(start) && local.Before(end) {
			return start, end, true
		}
	}

	return time.Time{}, time.Time{}, false
}
