package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
)

// healthPoolSaturation is the active/max page ratio above which the pool is
// reported degraded rather than healthy (§4.1's ladder needs spare browser
// capacity to escalate into).
const healthPoolSaturation = 0.8

// Version identifies the running build in GET /v1/health responses.
const Version = "0.1.0"

// Health returns a handler for GET /v1/health.
//
// Reports pool utilisation and degrades status when more than
// healthPoolSaturation of pages are active, since a saturated pool means
// the browser and stealth rungs have no spare capacity to escalate into.
func Health(sc *scraper.Scraper, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*healthPoolSaturation) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
