package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/peel/models"
)

// FetchYouTubeCaptions is youtube transcript extraction's Path B: navigate
// to the watch page and intercept the player's own `**/api/timedtext**`
// request, returning the first response body with non-trivial content.
// Used when the cheap simple-fetch path (youtube.Extractor Path A) fails or
// returns no segments, since some caption URLs are session-scoped and only
// fire from inside a real player.
func (s *Scraper) FetchYouTubeCaptions(ctx context.Context, watchURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	page, handle, acquireErr := s.acquirePage(hostnameOf(watchURL))
	if acquireErr != nil {
		return nil, models.NewPeelError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", acquireErr)
	}
	pageOK := false
	defer func() {
		_ = page.Navigate("about:blank")
		s.releasePage(handle, pageOK)
	}()

	p := page.Context(ctx)

	router := page.HijackRequests()
	defer func() { _ = router.Stop() }()

	result := make(chan []byte, 1)
	_ = router.Add("*api/timedtext*", "", func(hijack *rod.Hijack) {
		// LoadResponse performs the request itself and populates
		// hijack.Response, unlike ContinueRequest which lets the browser
		// fetch it without handing the body back to us.
		if err := hijack.LoadResponse(http.DefaultClient, true); err != nil {
			return
		}
		body := hijack.Response.Body()
		if len(body) > 0 {
			select {
			case result <- []byte(body):
			default:
			}
		}
	})
	go router.Run()

	if err := p.Navigate(watchURL); err != nil {
		return nil, categorizeError(err, "youtube: navigation to watch page failed")
	}

	select {
	case body := <-result:
		pageOK = true
		return body, nil
	case <-ctx.Done():
		return nil, models.NewPeelError(models.ErrCodeTimeout, "youtube: timed out waiting for caption request", ctx.Err())
	}
}
