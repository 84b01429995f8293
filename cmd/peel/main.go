// Command peel is the CLI and server entry point for the fetch-extract-
// distill pipeline: `peel serve` runs the HTTP API, `peel <url>` and its
// sibling subcommands are a thin client against a running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "peel [url]",
		Short: "Fetch, clean, and distill web pages for LLM consumption",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return newFetchCmd().RunE(cmd, args)
		},
	}

	root.AddCommand(
		newServeCmd(),
		newFetchCmd(),
		newBatchCmd(),
		newCrawlCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newUsageCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
