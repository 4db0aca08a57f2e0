// Package bootstrap handles application initialization and lifecycle management
// for the notice crawler.
//
// The bootstrap process follows these phases:
//   - Phase 1: Config & Logger - Load configuration, sources and create logger
//   - Phase 2: Services - Create fetcher, pipeline stages, dedup store, sinks and scheduler
//   - Phase 3: Server - Create and start the HTTP trigger API
//   - Phase 4: Scheduler - Start periodic crawls (if auto_crawl is enabled)
//   - Phase 5: Run - Wait for interrupt signal or error
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/pipeline"
)

// Start initializes and starts the crawler service. It blocks until the
// process is interrupted or the server fails.
func Start(opts Options) error {
	ctx := context.Background()

	// Phase 1: Initialize config, sources and logger
	deps, err := NewCommandDeps(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()

	// Phase 2: Setup services
	svc, err := SetupServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("failed to setup services: %w", err)
	}
	defer svc.Close()

	// Phase 3: Setup HTTP server
	server := SetupHTTPServer(deps, svc, opts.Version)

	// Phase 4: Periodic crawls
	if deps.Config.Crawl.AutoCrawl {
		if startErr := svc.Scheduler.Start(ctx); startErr != nil {
			return fmt.Errorf("failed to start scheduler: %w", startErr)
		}
	} else {
		deps.Logger.Info("Periodic crawling disabled")
	}

	// Phase 5: Run until interrupt or error
	return RunUntilInterrupt(deps.Logger, server.Server, svc.Scheduler, server.ErrorChan)
}

// RunOnce crawls one source without starting the server or the periodic
// loops. Output sinks and the dedup store are the configured ones.
func RunOnce(ctx context.Context, opts Options, sourceID string) (*pipeline.Result, error) {
	deps, err := NewCommandDeps(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Logger.Sync() }()

	svc, err := SetupServices(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to setup services: %w", err)
	}
	defer svc.Close()

	deps.Logger.Info("Running one-shot crawl", logger.String("source_id", sourceID))

	return svc.Scheduler.Trigger(ctx, sourceID)
}
