package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"pokewatch/internal/services/scraping"
)

var errRunFailed = errors.New("run failed")

func init() {
	onceCmd.Flags().Bool("links", false, "also print sample links for each target")
	rootCmd.AddCommand(onceCmd)
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Runs a single pass and prints a summary.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		showLinks, _ := cmd.Flags().GetBool("links")

		application, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		summary := application.RunOnce(cmd.Context())
		if err := application.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
		}

		renderSummary(os.Stdout, summary, showLinks)
		if !summary.Success {
			return fmt.Errorf("%w: %s", errRunFailed, summary.Error)
		}
		return nil
	},
}

func renderSummary(w io.Writer, summary scraping.Summary, showLinks bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Run %s (%s)", summary.RunID, time.Duration(summary.DurationMS)*time.Millisecond))
	t.AppendHeader(table.Row{"Target", "Source", "Links", "New", "Persisted", "Debug", "Error"})

	for _, res := range summary.Targets {
		t.AppendRow(table.Row{res.Target, res.Source, res.TotalLinks, res.NewLinks, res.Persisted, res.DebugHTML, res.Error})
		if showLinks {
			for _, link := range res.Samples {
				t.AppendRow(table.Row{"", link})
			}
		}
	}
	t.AppendFooter(table.Row{"Total", "", summary.TotalLinks, summary.NewLinks})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
