package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"camperwatch/internal/alert"
	"camperwatch/internal/models"
	"camperwatch/internal/orchestrate"
	"camperwatch/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full scrape cycle: scrape the roster, analyze, dispatch alerts",
	RunE:  runCycle,
}

func init() {
	runCmd.Flags().Bool("summary", false, "Also send the daily digest to all channels")
	runCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(runCmd)
}

func runCycle(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	sendSummary, _ := cmd.Flags().GetBool("summary")
	format, _ := cmd.Flags().GetString("format")

	spin := ui.NewSpinner()
	spin.Start(fmt.Sprintf("Scraping %d competitors...", len(app.roster)))
	report := app.orchestrator.RunCycle(cmd.Context(), app.analyzer, app.dispatcher)
	spin.StopWith(fmt.Sprintf("Cycle done: %d live, %d fallback, %d alert(s) sent",
		report.LiveCount, report.FallbackUsed, report.AlertsSent))

	if sendSummary {
		app.dispatcher.SendDailySummary(cmd.Context(), buildSummary(cmd.Context(), app, report))
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	default:
		printCycleTable(report)
	}

	// Fallbacks are degraded service, not failure; only startup errors exit non-zero
	return nil
}

func buildSummary(ctx context.Context, app *app, report orchestrate.CycleReport) alert.Summary {
	s := alert.Summary{
		Date:             models.DateOf(time.Now()),
		CompaniesScraped: len(report.Results),
		FallbacksUsed:    report.FallbackUsed,
	}
	for _, r := range report.Results {
		s.ObservationsStored += r.Inserted
	}
	if agg, err := app.store.AggregateWindow(ctx, "", 24*time.Hour); err == nil && agg.Count > 0 {
		s.MarketAvg = agg.Avg
	}
	for _, r := range report.Results {
		if r.Source != models.SourceLive {
			s.Highlights = append(s.Highlights, fmt.Sprintf("%s served from %s", r.Company, r.Source))
		}
	}
	return s
}
