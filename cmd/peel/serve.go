package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/peel/api"
	"github.com/use-agent/peel/cache"
	"github.com/use-agent/peel/challenge"
	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/config"
	"github.com/use-agent/peel/dnsresolve"
	"github.com/use-agent/peel/engine"
	"github.com/use-agent/peel/governor"
	"github.com/use-agent/peel/llm"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/youtube"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the peel HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.Load()

	initLogger(cfg.Log)
	slog.Info("peel starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper, cfg.AdaptivePool)
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}
	defer sc.Close()

	if cfg.Engine.EnableMultiEngine {
		// Rod callback: wraps the scraper's DoScrapeRod (bypasses the dispatcher).
		// This closure avoids a circular import (engine/ never imports scraper/).
		rodFetch := func(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
			headers := make(map[string]string, len(req.Headers))
			for k, v := range req.Headers {
				headers[k] = v
			}
			peelReq := &models.PeelRequest{
				URL:                req.URL,
				Timeout:            int(req.Timeout.Seconds()),
				Stealth:            req.Stealth,
				Headers:            headers,
				Proxies:            req.Proxies,
				Screenshot:         req.Screenshot,
				ScreenshotFullPage: req.ScreenshotFullPage,
			}
			peelReq.Defaults()

			result, err := sc.DoScrapeRod(ctx, peelReq)
			if err != nil {
				return nil, err
			}
			return &engine.FetchResult{
				HTML:       result.RawHTML,
				Title:      result.Title,
				StatusCode: result.StatusCode,
				FinalURL:   result.FinalURL,
				EngineName: result.EngineUsed,
				Screenshot: result.Screenshot,
			}, nil
		}

		resolver := dnsresolve.New(cfg.DNS.Resolvers, cfg.DNS.CacheTTL)
		httpEngine := engine.NewHTTPEngine(resolver)
		rodEngine := engine.NewRodEngine(rodFetch, false)
		rodStealthEngine := engine.NewRodEngine(rodFetch, true)

		engines := []engine.Engine{httpEngine, rodEngine, rodStealthEngine}
		memory := engine.NewDomainMemory(24 * time.Hour)
		dispatcher := engine.NewDispatcher(engines, memory, challenge.New())

		sc.SetDispatcher(dispatcher)
		slog.Info("multi-engine dispatcher enabled", "engines", len(engines))
	}

	cl := cleaner.NewCleaner()
	llmClient := llm.NewClient(nil)
	g := governor.New(cfg.Governor.RequestsPerSecond, cfg.Governor.Burst, cfg.Governor.WaitTimeout)
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxBytes, cfg.Cache.TTL)
	yt := youtube.NewExtractor(sc.FetchYouTubeCaptions)

	startTime := time.Now()
	router := api.NewRouter(sc, cl, llmClient, g, cfg, cc, yt, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("peel stopped")
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
