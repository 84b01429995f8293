package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// newMCPCmd execs into the peel-mcp binary, found on PATH, so `peel mcp`
// works as a shorthand for the dedicated MCP server binary without
// duplicating its tool definitions here.
func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "mcp",
		Short:              "Run the Model Context Protocol server (shorthand for peel-mcp)",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := exec.LookPath("peel-mcp")
			if err != nil {
				return fmt.Errorf("peel-mcp not found on PATH: %w", err)
			}
			c := exec.Command(path, args...)
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			return c.Run()
		},
	}
}
