package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"camperwatch/internal/analyze"
	"camperwatch/internal/store"
)

// Deps are the read-only collaborators the tools query. The MCP surface never
// triggers scraping; it only reads what the pipeline has stored.
type Deps struct {
	Store         *store.Store
	Analyzer      *analyze.Analyzer
	Roster        []string
	StalenessDays int
}

// Serve starts the MCP stdio server with all tools registered.
func Serve(deps Deps) error {
	s := server.NewMCPServer(
		"camperwatch",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	registerTools(s, deps)

	return server.ServeStdio(s)
}
