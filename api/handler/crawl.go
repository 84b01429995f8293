package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocolly/colly/v2"

	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/contentrouter"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/simhash"
	"github.com/use-agent/peel/webhook"
)

// crawlDupDistance is the simhash Hamming-distance threshold under which two
// crawled pages are considered near-duplicates (e.g. the same listing page
// reached through two different query-string sort orders) and the second one
// is dropped instead of occupying a result slot.
const crawlDupDistance = 3

// mediaTypeOf strips Content-Type parameters (charset, boundary, ...) so the
// dispatcher can switch on the bare media type.
func mediaTypeOf(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(mediaType))
}

// crawlStore holds all in-flight and completed crawl jobs.
var crawlStore sync.Map

func init() {
	// Background goroutine to expire crawl jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			crawlStore.Range(func(key, value any) bool {
				job := value.(*models.CrawlJob)
				if job.CreatedAt < cutoff {
					crawlStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostCrawl returns a handler for POST /v1/crawl.
func PostCrawl(sc *scraper.Scraper, cl *cleaner.Cleaner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CrawlRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CrawlResponse{
				Status: "failed",
			})
			return
		}

		if req.MaxDepth == 0 {
			req.MaxDepth = 3
		}
		if req.MaxPages == 0 {
			req.MaxPages = 100
		}
		if req.Scope == "" {
			req.Scope = "subdomain"
		}
		if req.Options.Format == "" {
			req.Options.Format = "markdown"
		}
		if req.Options.Mode == "" {
			req.Options.Mode = "readability"
		}

		jobID := "crawl-" + randomID()
		job := &models.CrawlJob{
			ID:            jobID,
			Status:        "processing",
			CreatedAt:     time.Now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}
		crawlStore.Store(jobID, job)

		go runCrawl(cl, job, req)

		c.JSON(http.StatusOK, models.CrawlResponse{
			ID:     jobID,
			Status: "processing",
		})
	}
}

// GetCrawl returns a handler for GET /v1/crawl/:id.
func GetCrawl() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := crawlStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: "crawl job not found",
				},
			})
			return
		}

		job := val.(*models.CrawlJob)
		c.JSON(http.StatusOK, models.CrawlStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Completed: job.Completed,
			Total:     job.Total,
			Results:   job.Results,
		})
	}
}

// runCrawl drives a depth-limited crawl with colly (which owns politeness,
// dedup, and link-following) and runs every visited page's HTML through the
// cleaner pipeline. JS-rendered crawling is intentionally out of scope here —
// /v1/fetch with render=true is the path for single pages that need a browser.
func runCrawl(cl *cleaner.Cleaner, job *models.CrawlJob, req models.CrawlRequest) {
	baseURL, err := url.Parse(req.URL)
	if err != nil {
		job.Status = "failed"
		return
	}

	co := colly.NewCollector(
		colly.MaxDepth(req.MaxDepth),
		colly.Async(true),
	)
	_ = co.Limit(&colly.LimitRule{Parallelism: 4, RandomDelay: 200 * time.Millisecond})

	var mu sync.Mutex
	var results []*models.PeelResult
	var seenFingerprints []uint64
	pageCount := 0

	co.OnResponse(func(r *colly.Response) {
		mu.Lock()
		if pageCount >= req.MaxPages {
			mu.Unlock()
			return
		}
		pageCount++
		mu.Unlock()

		contentType := mediaTypeOf(r.Headers.Get("Content-Type"))
		isHTML := contentType == "" || contentType == "text/html" || contentType == "application/xhtml+xml"

		if isHTML {
			fp := simhash.FingerprintDOM(string(r.Body))
			mu.Lock()
			for _, seen := range seenFingerprints {
				if simhash.Similar(fp, seen, crawlDupDistance) {
					mu.Unlock()
					slog.Debug("crawl: skipping near-duplicate page", "url", r.Request.URL.String())
					return
				}
			}
			seenFingerprints = append(seenFingerprints, fp)
			mu.Unlock()
		}

		var result *models.PeelResult
		var err error
		if !isHTML {
			var handled bool
			result, handled, err = contentrouter.Route(r.Request.URL.String(), contentType, r.Body)
			if err == nil && !handled {
				result, err = cl.Clean(string(r.Body), r.Request.URL.String(), req.Options.Format, req.Options.Mode)
			}
		} else {
			result, err = cl.Clean(string(r.Body), r.Request.URL.String(), req.Options.Format, req.Options.Mode)
		}
		if err != nil {
			peelErr, ok := err.(*models.PeelError)
			if !ok {
				peelErr = models.NewPeelError(models.ErrCodeInternal, err.Error(), err)
			}
			result = &models.PeelResult{Success: false, Error: peelErr.ToDetail(), FinalURL: r.Request.URL.String()}
		} else {
			result.StatusCode = r.StatusCode
			result.FinalURL = r.Request.URL.String()
			result.EngineUsed = "colly"
		}

		mu.Lock()
		results = append(results, result)
		job.Completed = len(results)
		job.Results = results
		mu.Unlock()
	})

	co.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if isExcluded(link, req.ExcludePatterns) {
			return
		}
		if !isInScope(link, baseURL, req.Scope) {
			return
		}
		mu.Lock()
		atLimit := pageCount >= req.MaxPages
		mu.Unlock()
		if atLimit {
			return
		}
		_ = e.Request.Visit(link)
	})

	co.OnError(func(r *colly.Response, err error) {
		slog.Warn("crawl: page failed", "url", r.Request.URL.String(), "error", err)
	})

	_ = co.Visit(req.URL)
	co.Wait()

	mu.Lock()
	job.Total = len(results)
	failedCount := 0
	for _, r := range results {
		if !r.Success {
			failedCount++
		}
	}
	switch {
	case failedCount == len(results) && len(results) > 0:
		job.Status = "failed"
	case failedCount > 0:
		job.Status = "partial"
	default:
		job.Status = "completed"
	}
	mu.Unlock()

	slog.Info("crawl job finished",
		"id", job.ID,
		"status", job.Status,
		"total", job.Total,
	)

	if job.WebhookURL != "" {
		webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
			Type:      "crawl.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      job,
		})
	}
}

// isInScope checks whether a link URL is within the crawl scope relative to the base URL.
func isInScope(linkURL string, baseURL *url.URL, scope string) bool {
	parsed, err := url.Parse(linkURL)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	switch scope {
	case "page":
		return false
	case "domain":
		return strings.EqualFold(parsed.Host, baseURL.Host)
	case "subdomain":
		return sameBaseDomain(parsed.Host, baseURL.Host)
	default:
		return strings.EqualFold(parsed.Host, baseURL.Host)
	}
}

// sameBaseDomain checks if two hosts share the same base domain.
func sameBaseDomain(host1, host2 string) bool {
	return strings.EqualFold(baseDomain(host1), baseDomain(host2))
}

// baseDomain extracts the base domain from a host.
func baseDomain(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// isExcluded checks whether a URL path matches any of the exclude patterns.
func isExcluded(rawURL string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, parsed.Path); matched {
			return true
		}
		if matched, _ := path.Match(pattern, rawURL); matched {
			return true
		}
	}
	return false
}
