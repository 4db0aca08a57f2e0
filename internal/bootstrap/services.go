package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/dedup"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/extract"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/listing"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/ocr"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/pipeline"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/scheduler"
)

// ServiceComponents holds the wired crawl services.
type ServiceComponents struct {
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Pipeline  *pipeline.Pipeline
	Dedup     *dedup.Deduplicator
	Scheduler *scheduler.Scheduler

	closers []func() error
	log     logger.Logger
}

// SetupServices wires fetcher, pipeline stages, dedup store, sinks and the
// scheduler. Call Close when done.
func SetupServices(ctx context.Context, deps *CommandDeps) (*ServiceComponents, error) {
	cfg := deps.Config
	log := deps.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := &ServiceComponents{Registry: reg, Metrics: m, log: log}

	store, closeStore, err := SetupDedupStore(cfg, log)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, closeStore)

	out, sinkClosers, err := SetupSinks(ctx, cfg, log)
	svc.closers = append(svc.closers, sinkClosers...)
	if err != nil {
		svc.Close()
		return nil, err
	}

	f := fetcher.New(fetcher.Config{
		UserAgent:      cfg.Crawl.UserAgent,
		RequestTimeout: cfg.Crawl.RequestTimeout,
		MaxRetries:     cfg.Crawl.MaxRetries,
	}, log, fetcher.WithMetrics(m))
	limiters := fetcher.NewLimiters()

	var engine ocr.Engine
	if cfg.OCR.Enabled {
		engine = ocr.NewTesseractEngine(cfg.OCR.TesseractCmd, cfg.OCR.TessdataDir, cfg.OCR.Languages)
	}
	resolver := ocr.NewResolver(f, limiters, engine, ocr.Config{
		Enabled:  cfg.OCR.Enabled,
		MaxBytes: cfg.OCR.MaxBytes,
	}, log, m)

	svc.Dedup = dedup.New(store, log, m)

	opts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.Crawl.Concurrency),
		pipeline.WithMetrics(m),
	}
	if out != nil {
		opts = append(opts, pipeline.WithSink(out))
	}
	svc.Pipeline = pipeline.New(
		deps.Registry,
		listing.New(f, limiters, log),
		extract.New(f, limiters, log),
		resolver,
		svc.Dedup,
		log,
		opts...,
	)

	schedule, err := scheduler.ParseSchedule(cfg.Crawl.Schedule, cfg.Crawl.Interval)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("parse crawl schedule %q: %w", cfg.Crawl.Schedule, err)
	}
	svc.Scheduler = scheduler.New(svc.Pipeline, deps.Registry, log,
		scheduler.WithSchedule(schedule),
		scheduler.WithMetrics(m),
	)

	return svc, nil
}

// Close stops the scheduler and releases store and sink connections.
func (s *ServiceComponents) Close() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.log.Warn("Failed to close resource", logger.Error(err))
		}
	}
	s.closers = nil
}
