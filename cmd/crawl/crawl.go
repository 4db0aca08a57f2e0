// Package crawl implements the one-shot crawl command.
package crawl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/pipeline"
)

const maxTitleWidth = 48

// Command returns the crawl command.
func Command(options func() bootstrap.Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "crawl <source-id>",
		Short: "Crawl one source once and print the items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := bootstrap.RunOnce(ctx, options(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return WriteJSON(out, res)
			}
			RenderTable(out, res)

			if res.Failed() {
				return fmt.Errorf("crawl %s produced no items: %w", args[0], res.ListErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print items as JSON")

	return cmd
}

// WriteJSON prints the items in the trigger API envelope.
func WriteJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(map[string]any{"code": "200", "data": res.Items})
}

// RenderTable prints one row per item followed by a run summary.
func RenderTable(w io.Writer, res *pipeline.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Published", "Title", "Attachments", "URL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: maxTitleWidth},
	})

	for _, item := range res.Items {
		t.AppendRow(table.Row{
			item.PublishTime.Format(time.DateOnly),
			item.Title,
			len(item.Attachments),
			item.URL,
		})
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("%d items", len(res.Items)), "", ""})
	t.Render()

	fmt.Fprintf(w, "source=%s run=%s stubs=%d suppressed=%d dropped=%d duration=%s\n",
		res.SourceID, res.RunID, res.Stubs, res.Suppressed, res.Dropped,
		res.FinishedAt.Sub(res.StartedAt).Truncate(time.Millisecond))
	if res.ListErr != nil {
		fmt.Fprintf(w, "list error: %v\n", res.ListErr)
	}
}
