package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/contentrouter"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/youtube"
)

// runFetch executes the fetch+clean pipeline shared by every endpoint that
// returns a PeelResult: scrape the page, run it through the cleaner, and
// fill in the parts of the result the cleaner doesn't know about (status
// code, final URL, engine used, title fallback).
//
// Two requests bypass the readability/prune pipeline entirely (§4.5):
// recognised YouTube URLs go straight to the transcript extractor, and
// non-HTML content types (PDF, DOCX, JSON, RSS/Atom, plain text) are routed
// to the matching contentrouter parser instead of the cleaner.
func runFetch(ctx context.Context, sc *scraper.Scraper, cl *cleaner.Cleaner, ytExtractor *youtube.Extractor, req *models.PeelRequest) (*models.PeelResult, models.TimingInfo, error) {
	var timing models.TimingInfo
	totalStart := time.Now()

	if videoID, ok := youtube.MatchURL(req.URL); ok && ytExtractor != nil {
		navStart := time.Now()
		transcript, err := ytExtractor.Extract(ctx, videoID, req.Language)
		timing.NavigationMs = time.Since(navStart).Milliseconds()
		timing.TotalMs = time.Since(totalStart).Milliseconds()
		if err != nil {
			return nil, timing, err
		}
		result := &models.PeelResult{
			Success:    true,
			Content:    transcript.FullText,
			Transcript: transcript,
			Metadata:   models.Metadata{SourceURL: req.URL, Description: transcript.Summary},
			Tokens: models.TokenInfo{
				OriginalEstimate: cleaner.EstimateTokens(transcript.FullText),
				CleanedEstimate:  cleaner.EstimateTokens(transcript.FullText),
			},
			EngineUsed: transcript.Method,
			Quality:    1.0,
			StatusCode: http.StatusOK,
			FinalURL:   req.URL,
			Timing:     timing,
		}
		return result, timing, nil
	}

	navStart := time.Now()
	scraped, err := sc.DoScrape(ctx, req)
	timing.NavigationMs = time.Since(navStart).Milliseconds()
	if err != nil {
		timing.TotalMs = time.Since(totalStart).Milliseconds()
		return nil, timing, err
	}

	if scraped.ContentType != "" && scraped.ContentType != "text/html" {
		routed, handled, err := contentrouter.Route(req.URL, scraped.ContentType, scraped.RawBytes)
		if err != nil {
			timing.TotalMs = time.Since(totalStart).Milliseconds()
			return nil, timing, err
		}
		if handled {
			routed.StatusCode = scraped.StatusCode
			routed.FinalURL = scraped.FinalURL
			routed.EngineUsed = scraped.EngineUsed
			timing.TotalMs = time.Since(totalStart).Milliseconds()
			routed.Timing = timing
			return routed, timing, nil
		}
	}

	cleanStart := time.Now()
	var cleanOpts []cleaner.CleanOptions
	if len(req.IncludeTags) > 0 || len(req.ExcludeTags) > 0 || req.Selector != "" || req.ChangeTracking {
		cleanOpts = append(cleanOpts, cleaner.CleanOptions{
			IncludeTags:    req.IncludeTags,
			ExcludeTags:    req.ExcludeTags,
			Selector:       req.Selector,
			ChangeTracking: req.ChangeTracking,
		})
	}
	result, err := cl.Clean(scraped.RawHTML, req.URL, req.Format, req.Mode, cleanOpts...)
	timing.CleaningMs = time.Since(cleanStart).Milliseconds()
	if err != nil {
		timing.TotalMs = time.Since(totalStart).Milliseconds()
		return nil, timing, err
	}

	if result.Metadata.Title == "" {
		result.Metadata.Title = scraped.Title
	}
	result.Metadata.FetchMethod = scraped.FetchMethod
	result.StatusCode = scraped.StatusCode
	result.FinalURL = scraped.FinalURL
	result.EngineUsed = scraped.EngineUsed
	if len(scraped.Screenshot) > 0 {
		result.Screenshot = base64.StdEncoding.EncodeToString(scraped.Screenshot)
	}
	timing.TotalMs = time.Since(totalStart).Milliseconds()
	result.Timing = timing

	return result, timing, nil
}

// respondError maps a PeelError to the correct HTTP status code and writes a
// structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	peelErr, ok := err.(*models.PeelError)
	if !ok {
		peelErr = models.NewPeelError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(peelErr), models.PeelResult{
		Success: false,
		Error:   peelErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates internal error codes to HTTP status codes.
func mapErrorToStatus(e *models.PeelError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeNetwork:
		return http.StatusBadGateway // 502
	case models.ErrCodeValidation:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited, models.ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized, models.ErrCodeLLMAuthFailure:
		return http.StatusUnauthorized // 401
	case models.ErrCodePaymentNeeded:
		return http.StatusPaymentRequired // 402
	case models.ErrCodeBlocked, models.ErrCodeRobotsBlocked:
		return http.StatusForbidden // 403
	case models.ErrCodeUnsupported:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeLLMFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError // 500
	}
}
