// Package main is the entry point for the shakesearch CLI: the search
// server and an interactive terminal browser.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the shakesearch CLI.
var rootCmd = &cobra.Command{
	Use:   "shakesearch",
	Short: "Full-text search over the complete works of Shakespeare",
	Long: `shakesearch serves a paginated full-text search API, a server-rendered
search page and static assets, and ships a terminal browser that pages
through results of a running server.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
