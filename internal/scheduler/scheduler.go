// Package scheduler triggers crawl runs periodically and on demand while
// keeping at most one run in flight per source.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/pipeline"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// DefaultInterval is the delay between periodic runs of a source.
const DefaultInterval = time.Hour

var (
	// ErrAlreadyRunning is returned when a trigger finds its source Running.
	ErrAlreadyRunning = errors.New("crawl already running for source")
	// ErrStopped is returned for triggers after Stop.
	ErrStopped = errors.New("scheduler stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Runner runs one crawl of a source.
type Runner interface {
	Run(ctx context.Context, sourceID string) (*pipeline.Result, error)
}

// Scheduler drives a Runner for every registered source.
type Scheduler struct {
	runner   Runner
	registry *sources.Registry
	guard    *Guard
	schedule cron.Schedule
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New creates a Scheduler. Runs started through it live until Stop.
func New(runner Runner, registry *sources.Registry, log logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:   runner,
		registry: registry,
		guard:    NewGuard(),
		schedule: cron.Every(DefaultInterval),
		log:      log.With(logger.Component("scheduler")),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Guard exposes the per-source run state.
func (s *Scheduler) Guard() *Guard {
	return s.guard
}

// Start launches one periodic loop per source. Each loop runs immediately,
// then waits for the schedule relative to the end of the previous run.
// Cancelling ctx has the same effect as Stop without the wait.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	context.AfterFunc(ctx, s.cancel)

	ids := s.registry.IDs()
	s.log.Info("Starting scheduler", logger.Strings("sources", ids))

	for _, id := range ids {
		s.wg.Add(1)
		go s.loop(id)
	}

	return nil
}

// Stop cancels every loop and in-flight run and waits for them to return.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")

	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.log.Info("Scheduler stopped")
}

// Trigger runs sourceID synchronously. ctx is combined with the scheduler
// lifetime so Stop also cancels the run.
func (s *Scheduler) Trigger(ctx context.Context, sourceID string) (*pipeline.Result, error) {
	release, err := s.acquire(sourceID, false)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	return s.runner.Run(runCtx, sourceID)
}

// TriggerAsync starts a background run of sourceID and returns once the
// source has been marked Running.
func (s *Scheduler) TriggerAsync(sourceID string) error {
	release, err := s.acquire(sourceID, true)
	if err != nil {
		return err
	}

	go func() {
		defer s.wg.Done()
		defer release()
		s.run(s.ctx, sourceID, "manual")
	}()

	return nil
}

// acquire validates sourceID and moves it to Running. Caller must release.
// With track set, the caller's goroutine is added to the wait group and
// must call wg.Done.
func (s *Scheduler) acquire(sourceID string, track bool) (func(), error) {
	if _, err := s.registry.Get(sourceID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nil, ErrStopped
	}

	release, ok := s.guard.TryAcquire(sourceID)
	if !ok {
		s.metrics.TriggerSkipped(sourceID)
		s.log.Info("Trigger skipped, source already running", logger.String("source_id", sourceID))
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, sourceID)
	}
	if track {
		s.wg.Add(1)
	}

	return release, nil
}

func (s *Scheduler) loop(sourceID string) {
	defer s.wg.Done()

	for {
		if release, err := s.acquire(sourceID, false); err == nil {
			s.run(s.ctx, sourceID, "periodic")
			release()
		}

		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		s.log.Debug("Next periodic run scheduled",
			logger.String("source_id", sourceID),
			logger.Time("next_run", next),
		)

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// run executes one crawl. A panicking runner is recovered so the source
// returns to Idle and the loop keeps going.
func (s *Scheduler) run(ctx context.Context, sourceID, trigger string) {
	log := s.log.With(logger.String("source_id", sourceID), logger.String("trigger", trigger))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Crawl run panicked", logger.Any("panic", r))
		}
	}()

	res, err := s.runner.Run(ctx, sourceID)
	switch {
	case err != nil:
		log.Warn("Crawl run failed", logger.Error(err))
	case res.Failed():
		log.Warn("Crawl run produced no items", logger.Error(res.ListErr))
	default:
		log.Info("Crawl run completed", logger.Int("items", len(res.Items)))
	}
}
