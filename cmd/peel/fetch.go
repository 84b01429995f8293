package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/use-agent/peel/models"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newFetchCmd() *cobra.Command {
	var format, mode string
	var render, stealth bool
	var query string
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch and clean a single page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			req := models.PeelRequest{
				URL:       args[0],
				Format:    format,
				Mode:      mode,
				Render:    render,
				Stealth:   stealth,
				Query:     query,
				MaxTokens: maxTokens,
			}

			var result models.PeelResult
			if err := client.post("/v1/fetch", req, &result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("fetch failed: %s", result.Error.Message)
			}
			fmt.Println(result.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, html, text, citations")
	cmd.Flags().StringVar(&mode, "mode", "readability", "extraction mode: readability, pruning, raw, auto")
	cmd.Flags().BoolVar(&render, "render", false, "force browser rendering")
	cmd.Flags().BoolVar(&stealth, "stealth", false, "force the stealth browser rung")
	cmd.Flags().StringVar(&query, "query", "", "BM25 query filter; populates a quick answer")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "cap the returned content to this many estimated tokens")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var format, mode string

	cmd := &cobra.Command{
		Use:   "batch <url> [url...]",
		Short: "Fetch multiple URLs concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			req := models.BatchRequest{
				URLs: args,
				Options: models.BatchOptions{
					Format: format,
					Mode:   mode,
				},
			}

			var resp models.BatchResponse
			if err := client.post("/v1/batch", req, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format applied to every URL")
	cmd.Flags().StringVar(&mode, "mode", "readability", "extraction mode applied to every URL")
	return cmd
}

func newCrawlCmd() *cobra.Command {
	var maxDepth, maxPages int
	var scope string

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a site starting from the given URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			req := models.CrawlRequest{
				URL:      args[0],
				MaxDepth: maxDepth,
				MaxPages: maxPages,
				Scope:    scope,
			}

			var resp models.CrawlResponse
			if err := client.post("/v1/crawl", req, &resp); err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 3, "maximum crawl depth")
	cmd.Flags().IntVar(&maxPages, "max-pages", 100, "maximum pages to crawl")
	cmd.Flags().StringVar(&scope, "scope", "subdomain", "link-following scope: domain, subdomain, page")
	return cmd
}
