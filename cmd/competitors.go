package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"camperwatch/config"
)

var competitorsCmd = &cobra.Command{
	Use:   "competitors",
	Short: "List the competitor roster with freshness of stored data",
	RunE:  runCompetitors,
}

func init() {
	competitorsCmd.Flags().String("format", "table", "Output format: json, table")
	rootCmd.AddCommand(competitorsCmd)
}

func runCompetitors(cmd *cobra.Command, args []string) error {
	// Roster listing should work even when the store is empty, but a broken
	// roster file is still a startup error.
	roster, err := config.LoadRoster(cfg.RosterPath)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if format == "json" {
		return printJSON(roster)
	}

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	names := make([]string, 0, len(roster))
	for _, c := range roster {
		names = append(names, c.Name)
	}
	fr, err := app.store.Freshness(cmd.Context(), names, app.cfg.StalenessDays)
	if err != nil {
		return err
	}

	for i, c := range roster {
		if i > 0 {
			fmt.Fprintln(os.Stdout)
		}
		fmt.Fprintf(os.Stdout, " %d. %s (priority %d, %s)\n", i+1, c.Name, c.Priority, c.Currency)
		fmt.Fprintf(os.Stdout, "    Strategies: %s\n", strings.Join(c.Strategies, " → "))
		if len(c.SearchLocations) > 0 {
			fmt.Fprintf(os.Stdout, "    Locations: %s\n", strings.Join(c.SearchLocations, ", "))
		}
		age := fr.AgeDays[c.Name]
		if age < 0 {
			fmt.Fprintf(os.Stdout, "    Data: never observed\n")
		} else {
			fmt.Fprintf(os.Stdout, "    Data: %.1f day(s) old\n", age)
		}
		fmt.Fprintf(os.Stdout, "    %s\n", c.BaseURL)
	}
	return nil
}
