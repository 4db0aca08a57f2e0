package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
)

// Option is a functional option for configuring the Scheduler.
type Option func(*Scheduler)

// WithSchedule sets when the next periodic run of a source starts,
// computed from the completion time of the previous one.
// Default: every hour
func WithSchedule(schedule cron.Schedule) Option {
	return func(s *Scheduler) {
		if schedule != nil {
			s.schedule = schedule
		}
	}
}

// WithGuard shares a guard between schedulers.
func WithGuard(g *Guard) Option {
	return func(s *Scheduler) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithMetrics records skipped triggers.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithClock replaces time.Now when computing the next run.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// ParseSchedule returns the cron schedule for spec. An empty spec means a
// fixed delay of interval. Standard five-field specs and descriptors such
// as "@every 30m" or "@daily" are accepted.
func ParseSchedule(spec string, interval time.Duration) (cron.Schedule, error) {
	if spec == "" {
		if interval <= 0 {
			interval = DefaultInterval
		}
		return cron.Every(interval), nil
	}
	return cron.ParseStandard(spec)
}
