package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	mcpserver "camperwatch/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP stdio server exposing read-only pricing tools",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.close()

	names := make([]string, 0, len(app.roster))
	for _, c := range app.roster {
		names = append(names, c.Name)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting CamperWatch MCP server on stdio...")

	if err := mcpserver.Serve(mcpserver.Deps{
		Store:         app.store,
		Analyzer:      app.analyzer,
		Roster:        names,
		StalenessDays: app.cfg.StalenessDays,
	}); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
	return nil
}
