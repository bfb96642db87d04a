package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"camperwatch/internal/models"
	"camperwatch/internal/orchestrate"
	"camperwatch/internal/ui"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [competitor]",
	Short: "Scrape one competitor (or the whole roster) without alerting",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().String("format", "json", "Output format: json, table")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	format, _ := cmd.Flags().GetString("format")
	spin := ui.NewSpinner()

	var results []orchestrate.ScrapeResult
	if len(args) == 1 {
		comp, ok := findCompetitor(app.roster, args[0])
		if !ok {
			return fmt.Errorf("competitor %q not in roster %s", args[0], app.cfg.RosterPath)
		}
		spin.Start(fmt.Sprintf("Scraping %s...", comp.Name))
		results = append(results, app.orchestrator.ScrapeOne(cmd.Context(), comp))
		spin.Stop()
	} else {
		spin.Start(fmt.Sprintf("Scraping %d competitors...", len(app.roster)))
		results = app.orchestrator.ScrapeAll(cmd.Context())
		spin.Stop()
	}

	switch format {
	case "table":
		printResultsTable(results)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(results)
	}
	return nil
}

func findCompetitor(roster []models.Competitor, name string) (models.Competitor, bool) {
	for _, c := range roster {
		if c.Name == name {
			return c, true
		}
	}
	return models.Competitor{}, false
}
