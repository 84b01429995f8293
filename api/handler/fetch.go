package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/peel/bm25"
	"github.com/use-agent/peel/cache"
	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/distill"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/youtube"
)

// Fetch returns a handler for POST /v1/fetch: the single-page
// fetch-extract-distill pipeline at the heart of the service.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (MaxAge > 0).
//  3. Scraper.DoScrape → raw HTML (records navigation_ms).
//  4. Cleaner.Clean    → Markdown/HTML/text/citations (records cleaning_ms).
//  5. Optional BM25 query filter → QuickAnswer + RelevantChunks.
//  6. Optional token-budget distillation (MaxTokens).
//  7. Cache store + respond.
func Fetch(sc *scraper.Scraper, cl *cleaner.Cleaner, cc *cache.Cache, yt *youtube.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.PeelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.PeelResult{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		if c.GetHeader("Accept") == "text/event-stream" {
			handleFetchSSE(c, sc, cl, cc, yt, &req)
			return
		}

		if cc != nil && req.MaxAge > 0 {
			cacheKey := cache.Key(req.URL, req.Format, req.Mode)
			if cached, hit := cc.Get(cacheKey, req.MaxAge*1000); hit {
				cached.CacheStatus = "hit"
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		result, timing, err := runFetch(c.Request.Context(), sc, cl, yt, &req)
		if err != nil {
			respondError(c, err, timing)
			return
		}

		applyQueryAndBudget(result, &req)

		if cc != nil && req.MaxAge > 0 {
			cacheKey := cache.Key(req.URL, req.Format, req.Mode)
			cc.Set(cacheKey, result)
			result.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, result)
	}
}

// applyQueryAndBudget runs the optional BM25 query filter and token-budget
// distillation stages in place on result.
func applyQueryAndBudget(result *models.PeelResult, req *models.PeelRequest) {
	if req.Query != "" {
		answer, confidence, chunks := bm25.Answer(result.Content, req.Query)
		result.QuickAnswer = answer
		result.QuickAnswerConfidence = confidence
		result.RelevantChunks = chunks
	}

	budget := req.MaxTokens
	if budget == 0 && req.Model != "" {
		budget = distill.ContextBudget(req.Model)
	}
	if budget > 0 {
		distilled, truncated := distill.Fit(result.Content, budget)
		if truncated {
			result.Content = distilled
			result.Tokens.CleanedEstimate = cleaner.EstimateTokens(distilled)
			result.Tokens.Truncated = true
		}
	}
}

// handleFetchSSE processes a fetch request and streams SSE progress events.
func handleFetchSSE(c *gin.Context, sc *scraper.Scraper, cl *cleaner.Cleaner, cc *cache.Cache, yt *youtube.Extractor, req *models.PeelRequest) {
	totalStart := time.Now()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writeSSE(c, "fetch.started", map[string]any{"url": req.URL})

	if cc != nil && req.MaxAge > 0 {
		cacheKey := cache.Key(req.URL, req.Format, req.Mode)
		if cached, hit := cc.Get(cacheKey, req.MaxAge*1000); hit {
			cached.CacheStatus = "hit"
			writeSSE(c, "fetch.completed", cached)
			return
		}
	}

	result, timing, err := runFetch(c.Request.Context(), sc, cl, yt, req)
	if err != nil {
		writeSSE(c, "fetch.error", map[string]any{"error": err.Error()})
		return
	}

	writeSSE(c, "fetch.navigated", map[string]any{
		"status_code":   result.StatusCode,
		"final_url":     result.FinalURL,
		"engine_used":   result.EngineUsed,
		"navigation_ms": timing.NavigationMs,
	})

	applyQueryAndBudget(result, req)

	if cc != nil && req.MaxAge > 0 {
		cacheKey := cache.Key(req.URL, req.Format, req.Mode)
		cc.Set(cacheKey, result)
		result.CacheStatus = "miss"
	}

	result.Timing.TotalMs = time.Since(totalStart).Milliseconds()
	writeSSE(c, "fetch.completed", result)
}

// writeSSE writes a single SSE event to the response.
func writeSSE(c *gin.Context, event string, data any) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, jsonData)
	c.Writer.Flush()
}
