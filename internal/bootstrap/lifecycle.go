package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/api"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/scheduler"
)

const signalChannelBufferSize = 1

// RunUntilInterrupt runs the server until interrupted by signal or error.
func RunUntilInterrupt(
	log logger.Logger,
	server *api.Server,
	sched *scheduler.Scheduler,
	errChan <-chan error,
) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case serverErr, ok := <-errChan:
		sched.Stop()
		if !ok {
			return nil
		}
		log.Error("Server error", logger.Error(serverErr))
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		return Shutdown(log, server, sched, sig)
	}
}

// Shutdown stops the scheduler first so no new run starts, then the server.
// In-flight runs are cancelled and awaited.
func Shutdown(log logger.Logger, server *api.Server, sched *scheduler.Scheduler, sig os.Signal) error {
	log.Info("Shutdown signal received", logger.String("signal", sig.String()))

	log.Info("Stopping scheduler")
	sched.Stop()

	log.Info("Stopping HTTP server")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("Failed to stop server", logger.Error(err))
		return fmt.Errorf("failed to stop server: %w", err)
	}

	log.Info("Server stopped successfully")
	return nil
}
