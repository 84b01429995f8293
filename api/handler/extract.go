package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/llm"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/youtube"
)

// Extract returns a handler for POST /v1/extract.
//
// It is a thin wrapper around the shared fetch+clean pipeline: the request
// body is a PeelRequest whose Extract field carries the BYOK LLM schema.
// Flow:
//  1. Parse & validate PeelRequest, apply defaults. Extract is required.
//  2. runFetch → scrape + clean, same as /v1/fetch.
//  3. LLM Extract the cleaned content against the caller's schema.
//  4. Assemble the PeelResult with Extract populated and LLM timing filled in.
func Extract(sc *scraper.Scraper, cl *cleaner.Cleaner, llmClient *llm.Client, yt *youtube.Extractor) gin.HandlerFunc {
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

		if req.Extract == nil {
			c.JSON(http.StatusBadRequest, models.PeelResult{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: "extract field is required",
				},
			})
			return
		}

		result, timing, err := runFetch(c.Request.Context(), sc, cl, yt, &req)
		if err != nil {
			respondError(c, err, timing)
			return
		}

		extractStart := time.Now()
		llmResult, err := llmClient.Extract(c.Request.Context(), result.Content, req.Extract.Schema, llm.ExtractParams{
			APIKey:  req.Extract.APIKey,
			Model:   req.Extract.Model,
			BaseURL: req.Extract.BaseURL,
		})
		timing.ExtractionMs = time.Since(extractStart).Milliseconds()
		timing.TotalMs += timing.ExtractionMs
		result.Timing = timing

		if err != nil {
			respondError(c, err, timing)
			return
		}

		result.Extract = &models.ExtractResult{
			Data:  llmResult.Data,
			Usage: llmResult.Usage,
		}

		c.JSON(http.StatusOK, result)
	}
}
