package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/peel/cleaner"
	"github.com/use-agent/peel/models"
	"github.com/use-agent/peel/scraper"
	"github.com/use-agent/peel/webhook"
	"github.com/use-agent/peel/youtube"
)

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /v1/batch.
// It validates the request, creates a batch job, and launches goroutines
// to fetch each URL concurrently.
func PostBatch(sc *scraper.Scraper, cl *cleaner.Cleaner, yt *youtube.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.BatchResponse{
				Status: "failed",
			})
			return
		}

		jobID := "batch-" + randomID()
		job := &models.BatchJob{
			ID:            jobID,
			Status:        "processing",
			Total:         len(req.URLs),
			Completed:     0,
			Results:       make([]*models.PeelResult, len(req.URLs)),
			CreatedAt:     time.Now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}
		batchStore.Store(jobID, job)

		go runBatch(sc, cl, yt, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeValidation,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, models.BatchStatusResponse{
			ID:        job.ID,
			Status:    job.Status,
			Completed: job.Completed,
			Total:     job.Total,
			Results:   job.Results,
		})
	}
}

// runBatch processes all URLs in a batch job with concurrency limited by a semaphore.
func runBatch(sc *scraper.Scraper, cl *cleaner.Cleaner, yt *youtube.Extractor, job *models.BatchJob, req models.BatchRequest) {
	maxConcurrent := sc.Stats().MaxPages
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var completed atomic.Int32
	var failed atomic.Int32

	for i, rawURL := range req.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := fetchOne(sc, cl, yt, targetURL, req.Options)
			job.Results[idx] = result

			if result.Success {
				completed.Add(1)
			} else {
				failed.Add(1)
			}
			job.Completed = int(completed.Load()) + int(failed.Load())
		}(i, rawURL)
	}

	wg.Wait()

	failedCount := int(failed.Load())
	completedCount := int(completed.Load())

	switch {
	case failedCount == job.Total:
		job.Status = "failed"
	case failedCount > 0:
		job.Status = "partial"
	default:
		job.Status = "completed"
	}
	job.Completed = completedCount + failedCount

	slog.Info("batch job finished",
		"id", job.ID,
		"status", job.Status,
		"completed", completedCount,
		"failed", failedCount,
		"total", job.Total,
	)

	if job.WebhookURL != "" {
		webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
			Type:      "batch.completed",
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      job,
		})
	}
}

// fetchOne performs a single fetch+clean for one URL using shared batch options.
func fetchOne(sc *scraper.Scraper, cl *cleaner.Cleaner, yt *youtube.Extractor, targetURL string, opts models.BatchOptions) *models.PeelResult {
	req := &models.PeelRequest{
		URL:                targetURL,
		Format:             opts.Format,
		Mode:               opts.Mode,
		WaitForNetworkIdle: opts.WaitForNetworkIdle,
		Timeout:            opts.Timeout,
		Stealth:            opts.Stealth,
	}
	req.Defaults()

	result, timing, err := runFetch(context.Background(), sc, cl, yt, req)
	if err != nil {
		peelErr, ok := err.(*models.PeelError)
		if !ok {
			peelErr = models.NewPeelError(models.ErrCodeInternal, err.Error(), err)
		}
		return &models.PeelResult{
			Success: false,
			Error:   peelErr.ToDetail(),
			Timing:  timing,
		}
	}

	return result
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
