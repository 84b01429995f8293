package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/peel/api/handler"
	"github.com/use-agent/peel/api/middleware"
	"github.com/use-agent/peel/cache"
	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/config"
	"github.com/use-agent/peel/governor"
	"github.com/use-agent/peel/llm"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/youtube"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → Governor (per-host outbound politeness)
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, cl *cleaner.Cleaner, llmClient *llm.Client, g *governor.Governor, cfg *config.Config, cc *cache.Cache, yt *youtube.Extractor, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group — auth + per-host governor.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.Governor(g))

	// Fetch — the single-page fetch-extract-distill pipeline.
	protected.POST("/fetch", handler.Fetch(sc, cl, cc, yt))

	// Extract — BYOK LLM schema-guided extraction on top of the same pipeline.
	protected.POST("/extract", handler.Extract(sc, cl, llmClient, yt))

	// Batch — concurrent multi-URL fetch.
	protected.POST("/batch", handler.PostBatch(sc, cl, yt))
	protected.GET("/batch/:id", handler.GetBatch())

	// Crawl — colly-driven depth-limited site crawl.
	protected.POST("/crawl", handler.PostCrawl(sc, cl))
	protected.GET("/crawl/:id", handler.GetCrawl())

	// Map — sitemap + robots.txt + homepage-link site discovery.
	protected.POST("/map", handler.PostMap(sc, cl))

	return r
}
