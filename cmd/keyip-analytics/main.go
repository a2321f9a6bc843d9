// Command keyip-analytics answers patent analytics questions from the command
// line and serves the same tools over HTTP and MCP stdio.
package main

import (
	"os"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
	config.Version = version
}

func main() {
	// Execute has already printed the error.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
