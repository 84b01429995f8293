package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/use-agent/peel/governor"
	"github.com/use-agent/peel/models"
)

// Governor returns middleware that makes every request wait its turn on the
// shared per-host outbound governor before reaching the handler. It reads
// the target URL from the "url" query parameter or JSON body field that
// every fetch-shaped endpoint accepts; requests without one pass through
// untouched (e.g. GET /v1/batch/:id, GET /v1/crawl/:id).
//
// This replaces the teacher's per-API-key rate limiter: client-facing
// billing/quota enforcement is out of scope for this service, but being
// polite to the sites being fetched is not.
func Governor(g *governor.Governor) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("url")
		if target == "" {
			target = c.PostForm("url")
		}
		if target == "" {
			// ShouldBindBodyWith caches the raw body on the context, so the
			// handler's own ShouldBindJSON still sees the full payload.
			var peek struct {
				URL string `json:"url"`
			}
			if err := c.ShouldBindBodyWith(&peek, binding.JSON); err == nil {
				target = peek.URL
			}
		}
		if target == "" {
			c.Next()
			return
		}

		host := governor.HostOf(target)
		if host == "" {
			c.Next()
			return
		}

		if err := g.Acquire(c.Request.Context(), host); err != nil {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.PeelResult{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limited waiting for a slot on " + host,
				},
			})
			return
		}

		c.Next()
	}
}
