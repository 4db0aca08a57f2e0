// Package sources implements the sources command and its list and
// validate subcommands.
package sources

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/bootstrap"
	internalsources "github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// Command returns the sources command.
func Command(options func() bootstrap.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newListCommand(options),
		newValidateCommand(options),
	)

	return cmd
}

func newListCommand(options func() bootstrap.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := load(options())
			if err != nil {
				return err
			}
			RenderTable(cmd.OutOrStdout(), registry)
			return nil
		},
	}
}

func newValidateCommand(options func() bootstrap.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the sources file and every selector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, path, err := load(options())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sources valid\n", path, registry.Len())
			return nil
		},
	}
}

func load(opts bootstrap.Options) (*internalsources.Registry, string, error) {
	cfg, err := bootstrap.LoadConfig(opts)
	if err != nil {
		return nil, "", err
	}

	registry, err := bootstrap.LoadSources(cfg)
	if err != nil {
		return nil, cfg.Crawl.SourcesPath, err
	}

	return registry, cfg.Crawl.SourcesPath, nil
}

// RenderTable prints the sources in configuration order.
func RenderTable(w io.Writer, registry *internalsources.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "List URL", "Max Pages", "Rate Limit"})

	for _, src := range registry.All() {
		rate := "-"
		if src.RateLimit > 0 {
			rate = fmt.Sprintf("%g/s", src.RateLimit)
		}
		t.AppendRow(table.Row{src.ID, src.Name, src.ListURL, src.MaxPages, rate})
	}

	t.Render()
}
