package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete observations and cache entries past their retention windows",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().Int("retention-days", 0, "Override RETENTION_DAYS for this run")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	days := app.cfg.RetentionDays
	if v, _ := cmd.Flags().GetInt("retention-days"); v > 0 {
		days = v
	}

	removed, err := app.store.Cleanup(cmd.Context(), days)
	if err != nil {
		return err
	}
	cacheRemoved, err := app.cache.Cleanup(cmd.Context(), app.cfg.CacheMaxAgeDays)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Removed %d observation(s) older than %d days, %d cache entr(ies)\n",
		removed, days, cacheRemoved)
	return nil
}
