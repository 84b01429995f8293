package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	sitemap "github.com/oxffaa/gopher-parse-sitemap"

	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
)

// PostMap returns a handler for POST /v1/map.
// It discovers URLs for a site using sitemaps, robots.txt, and link extraction.
func PostMap(sc *scraper.Scraper, cl *cleaner.Cleaner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.MapResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: err.Error(),
				},
			})
			return
		}

		parsed, err := url.Parse(req.URL)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.MapResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: "invalid URL",
				},
			})
			return
		}

		baseOrigin := parsed.Scheme + "://" + parsed.Host
		allURLs := make(map[string]struct{})

		if !req.IgnoreSitemap {
			for _, u := range fetchSitemap(baseOrigin + "/sitemap.xml") {
				allURLs[u] = struct{}{}
			}

			for _, sitemapURL := range fetchRobotsSitemaps(baseOrigin + "/robots.txt") {
				for _, u := range fetchSitemap(sitemapURL) {
					allURLs[u] = struct{}{}
				}
			}
		}

		for _, u := range scrapeHomeLinks(sc, req.URL) {
			allURLs[u] = struct{}{}
		}

		search := strings.ToLower(req.Search)
		urls := make([]string, 0, len(allURLs))
		for u := range allURLs {
			if search != "" && !strings.Contains(strings.ToLower(u), search) {
				continue
			}
			urls = append(urls, u)
		}
		sort.Strings(urls)
		if req.Limit > 0 && len(urls) > req.Limit {
			urls = urls[:req.Limit]
		}

		c.JSON(http.StatusOK, models.MapResponse{
			Success: true,
			URLs:    urls,
			Total:   len(urls),
		})
	}
}

// fetchSitemap fetches a sitemap URL and parses it as either a regular
// sitemap or a sitemap index, recursing into each sub-sitemap the index
// names.
func fetchSitemap(sitemapURL string) []string {
	var urls []string

	err := sitemap.ParseFromSite(sitemapURL, func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls
	}

	_ = sitemap.ParseIndexFromSite(sitemapURL, func(e sitemap.IndexEntry) error {
		urls = append(urls, fetchSitemap(e.GetLocation())...)
		return nil
	})
	return urls
}

// fetchRobotsSitemaps fetches robots.txt and extracts Sitemap: directives.
func fetchRobotsSitemaps(robotsURL string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024)) // 1MB limit
	if err != nil {
		return nil
	}

	var sitemaps []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			sitemapURL := strings.TrimSpace(line[len("sitemap:"):])
			if sitemapURL != "" {
				sitemaps = append(sitemaps, sitemapURL)
			}
		}
	}

	return sitemaps
}

// scrapeHomeLinks fetches the homepage and returns same-domain links.
func scrapeHomeLinks(sc *scraper.Scraper, homeURL string) []string {
	req := &models.PeelRequest{
		URL:    homeURL,
		Format: "markdown",
		Mode:   "raw",
	}
	req.Defaults()

	result, err := sc.DoScrape(context.Background(), req)
	if err != nil {
		return nil
	}

	links := cleaner.ExtractLinks(result.RawHTML, homeURL)
	sameDomain := make([]string, 0, len(links.Internal))
	for _, l := range links.Internal {
		sameDomain = append(sameDomain, l.URL)
	}

	return sameDomain
}
