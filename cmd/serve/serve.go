// Package serve implements the serve command, which runs the trigger API
// and the periodic crawl scheduler.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/bootstrap"
)

// Command returns the serve command.
func Command(options func() bootstrap.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP trigger API and periodic crawls",
		Long: `Starts the HTTP API (POST /api/crawl, DELETE /api/dedup, /health, /metrics)
and, when crawl.auto_crawl is set, crawls every source on its schedule.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap.Start(options())
		},
	}
}
