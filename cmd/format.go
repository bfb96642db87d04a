package cmd

import (
	"fmt"
	"os"
	"strings"

	"camperwatch/internal/analyze"
	"camperwatch/internal/models"
	"camperwatch/internal/orchestrate"
)

// printCycleTable prints a run report in a human-friendly layout.
func printCycleTable(report orchestrate.CycleReport) {
	printResultsTable(report.Results)
	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, " Live: %d  Fallback: %d  Alerts sent: %d  Suppressed: %d\n",
		report.LiveCount, report.FallbackUsed, report.AlertsSent, report.Suppressed)
}

// printResultsTable prints per-competitor scrape outcomes as cards.
func printResultsTable(results []orchestrate.ScrapeResult) {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		tag := string(r.Source)
		if r.Source == models.SourceLive {
			tag = fmt.Sprintf("live via %s", r.Strategy)
		}
		fmt.Fprintf(os.Stdout, " %d. %s (%s)\n", i+1, r.Company, tag)

		for _, o := range r.Observations {
			line := fmt.Sprintf("    %.2f %s on %s", o.BaseNightlyRate, o.Currency, o.ScrapeDate)
			if o.Location != "" {
				line += " @ " + o.Location
			}
			if o.IsEstimated {
				line += " [estimate]"
			}
			fmt.Fprintln(os.Stdout, line)
		}
		if r.Inserted > 0 {
			fmt.Fprintf(os.Stdout, "    Stored: %d new row(s)\n", r.Inserted)
		}
		for _, f := range r.Failures {
			fmt.Fprintf(os.Stdout, "    Failed: %s (%s) %s\n", f.Strategy, f.Kind, truncate(f.Detail, 80))
		}
		if r.Notes != "" {
			fmt.Fprintf(os.Stdout, "    %s\n", r.Notes)
		}
	}
}

func printTrendsTable(trends []analyze.TrendReport) {
	for i, t := range trends {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		fmt.Fprintf(os.Stdout, " %d. %s: %s\n", i+1, t.Company, t.Direction)
		fmt.Fprintf(os.Stdout, "    Velocity: %+.2f/day  |  Volatility: %.2f  |  Points: %d\n",
			t.Velocity, t.Volatility, t.Points)
		if len(t.Patterns) > 0 {
			var tags []string
			for _, p := range t.Patterns {
				tags = append(tags, "["+string(p)+"]")
			}
			fmt.Fprintf(os.Stdout, "    %s\n", strings.Join(tags, " "))
		}
	}
}

func printMarketTable(positions []analyze.MarketPosition) {
	for i, p := range positions {
		fmt.Fprintf(os.Stdout, " %d. %s: avg %.2f (p%.0f, %+.2f vs market)\n",
			i+1, p.Company, p.AvgPrice, p.Percentile, p.GapToMarket)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
