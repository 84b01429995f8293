package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "login <api-key>",
		Short: "Save an API key for talking to a peel server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			cfg.APIKey = args[0]
			if serverURL != "" {
				cfg.ServerURL = serverURL
			}
			if err := saveClientConfig(cfg); err != nil {
				return err
			}
			fmt.Printf("saved API key for %s\n", cfg.ServerURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "peel server base URL (default: keep existing or http://localhost:8080)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			cfg.APIKey = ""
			if err := saveClientConfig(cfg); err != nil {
				return err
			}
			fmt.Println("API key removed")
			return nil
		},
	}
}

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Check the configured server's health and pool status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			var health map[string]any
			if err := client.get("/v1/health", &health); err != nil {
				return err
			}
			return printJSON(health)
		},
	}
}
