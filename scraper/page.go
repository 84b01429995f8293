package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/peel/engine"
	"github.com/use-agent/peel/models"
	"github.com/ysmood/gson"
)

// DoScrape is the top-level orchestrator.
//
// If the multi-engine dispatcher is configured AND the request has no Actions
// AND no CDPURL, it delegates to the dispatcher for a faster path (HTTP-first
// with Rod fallback via the escalation ladder). Otherwise it falls through to the
// direct Rod-based scraping path.
func (s *Scraper) DoScrape(ctx context.Context, req *models.PeelRequest) (*ScrapeResult, error) {
	// ── 0. Multi-engine dispatch ────────────────────────────────────
	// If the dispatcher is configured AND the request has no Actions AND
	// no CDPURL, delegate to the multi-engine dispatcher for a faster path.
	if s.dispatcher != nil && len(req.Actions) == 0 && req.CDPURL == "" {
		timeout := time.Duration(req.Timeout) * time.Second
		if timeout > s.scraperCfg.MaxTimeout {
			timeout = s.scraperCfg.MaxTimeout
		}

		cookies := make([]http.Cookie, len(req.Cookies))
		for i, c := range req.Cookies {
			cookies[i] = http.Cookie{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			}
		}

		fetchReq := &engine.FetchRequest{
			URL:                req.URL,
			Headers:            req.Headers,
			Cookies:            cookies,
			Timeout:            timeout,
			Stealth:            req.Stealth,
			Render:             req.Render,
			Proxies:            proxyChain(req),
			Screenshot:         req.Screenshot,
			ScreenshotFullPage: req.ScreenshotFullPage,
		}

		dispatchCtx, dispatchCancel := context.WithTimeout(ctx, timeout)
		defer dispatchCancel()

		result, err := s.dispatcher.Dispatch(dispatchCtx, fetchReq)
		if err == nil {
			return &ScrapeResult{
				RawHTML:     result.HTML,
				Title:       result.Title,
				StatusCode:  result.StatusCode,
				FinalURL:    result.FinalURL,
				EngineUsed:  result.EngineName,
				FetchMethod: result.EngineName,
				Screenshot:  result.Screenshot,
			}, nil
		}
		// Dispatcher failed entirely — fall through to existing rod logic.
		slog.Warn("dispatcher failed, falling back to direct rod scrape",
			"url", req.URL, "error", err)
	}

	// ── 0b. No dispatcher configured: try plain HTTP first ───────────
	// Cheaper than spinning up a browser tab; only escalate to Rod when
	// the fetched body looks like it needs JS rendering. Non-HTML content
	// types (PDF, DOCX, JSON, feeds) never need a browser and are handed
	// straight back with RawBytes set for the content-type dispatcher.
	if s.dispatcher == nil && len(req.Actions) == 0 && req.CDPURL == "" && !req.Render && !req.Stealth && !req.Screenshot {
		if res, err := s.httpFetcher.fetchTyped(ctx, req.URL, req.ProxyURL); err == nil {
			mediaType := mediaTypeOf(res.ContentType)
			if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
				return &ScrapeResult{
					ContentType: mediaType,
					RawBytes:    res.Body,
					StatusCode:  http.StatusOK,
					FinalURL:    req.URL,
					EngineUsed:  "http",
					FetchMethod: "http",
				}, nil
			}
			if !needsBrowser(res.Body) {
				return &ScrapeResult{
					RawHTML:     string(res.Body),
					Title:       extractTitle(res.Body),
					ContentType: "text/html",
					StatusCode:  http.StatusOK,
					FinalURL:    req.URL,
					EngineUsed:  "http",
					FetchMethod: "http",
				}, nil
			}
		}
	}

	return s.doScrapeRod(ctx, req)
}

// DoScrapeRod is the direct rod-based scraping path. It is exported so
// that the engine.RodEngine callback in main.go can call it without
// triggering the dispatcher (avoiding infinite recursion).
func (s *Scraper) DoScrapeRod(ctx context.Context, req *models.PeelRequest) (*ScrapeResult, error) {
	return s.doScrapeRod(ctx, req)
}

// doScrapeRod contains the full rod-based scraping logic (timeout, pool,
// stealth, navigation, extraction). This is the original DoScrape path.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard          – hard deadline on the entire operation
//  2. Acquire page           – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup         – about:blank + return to pool (leak prevention)
//  4. Stealth injection      – mask navigator.webdriver etc. (before navigation!)
//  5. Hijack mount           – block images/CSS/fonts/media (before navigation!)
//  6. Context binding        – propagate timeout to all Rod operations
//  7. Idle listener setup    – not registered (WaitRequestIdle conflicts with hijacking)
//  8. Navigate               – triggers page load
//  9. Wait                   – DOM stable
//  10. Extract               – page.HTML() + document.title
//
// Why this order matters:
//   - Steps 4-5 MUST happen before step 8: stealth JS and resource blocking only
//     take effect for navigations that happen after they are installed.
//   - Step 7 leaves waitIdle nil: a WaitRequestIdle listener would have to be
//     set up before Navigate to see in-flight requests, and it conflicts with
//     the hijack router, so step 9 always falls back to WaitDOMStable.
//   - Step 3's about:blank uses the ORIGINAL page reference (without request
//     context), so cleanup succeeds even if the request context has expired.
func (s *Scraper) doScrapeRod(ctx context.Context, req *models.PeelRequest) (*ScrapeResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 1b. Per-request CDP URL: connect to user's own Chrome ────────
	if req.CDPURL != "" {
		return s.doScrapeWithCDP(ctx, req)
	}

	// ── 1c. Persistent-profile lock: one fetch at a time per profile dir ──
	if req.ProfileDir != "" {
		lock := s.profileLock(req.ProfileDir)
		lock.Lock()
		defer lock.Unlock()
	}

	// ── 2. Acquire page from pool ─────────────────────────────────────
	page, handle, acquireErr := s.acquirePage(hostnameOf(req.URL))
	if acquireErr != nil {
		return nil, models.NewPeelError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// pageOK tracks whether this fetch succeeded, feeding the adaptive
	// pool's health score so pages that keep erroring get retired.
	pageOK := false

	// ── 3. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank",
				"error", navErr,
			)
		}
		s.releasePage(handle, pageOK)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 4b. Build extra headers (custom + Google Referer) ────────────
	extraHeaders := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(extraHeaders),
		}.Call(page)
	}

	// ── 4c. Custom cookies ──────────────────────────────────────────
	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, parseErr := url.Parse(req.URL); parseErr == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}

	// ── 5. Mount hijack router (blocks Image/Stylesheet/Font/Media + ads) ──
	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes, req.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Bind request context to page ───────────────────────────────
	p := page.Context(ctx)

	// ── 7. Network idle waiter (left unset) ───────────────────────────
	// NOTE: WaitRequestIdle uses the Fetch domain which conflicts with
	// HijackRequests on Chromium 145+. Use WaitDOMStable as fallback.
	var waitIdle func()

	// ── 7b. Status code capture ──────────────────────────────────────
	// NOTE: page.EachEvent(NetworkResponseReceived) causes ERR_BLOCKED_BY_CLIENT
	// on Chromium 145+ because it internally enables Network domain interception
	// which conflicts with the Fetch domain used by HijackRequests/WaitRequestIdle.
	// Instead, we capture the status code AFTER navigation from the page's
	// NavigationHistory, which is always available without any event listeners.
	var statusCode int

	// ── 8. Navigate ───────────────────────────────────────────────────
	var navErr error
	if navErr = p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to target URL failed")
	}

	// ── 9. Wait strategy ──────────────────────────────────────────────
	if waitIdle != nil {
		waitIdle()
	} else {
		if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"error", stableErr,
			)
		}
	}

	// ── 9b. Collect status code via JS (best-effort) ────────────────
	// Use performance.getEntriesByType("navigation") to get the HTTP status
	// code without needing CDP event listeners.
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}

	// ── 9c. Remove overlays (cookie banners, popups) ────────────────
	if req.RemoveOverlays {
		removeOverlays(p)
	}

	// ── 9d. Execute browser actions ─────────────────────────────────
	if len(req.Actions) > 0 {
		if err := executeActions(ctx, page, req.Actions); err != nil {
			return nil, err
		}
	}

	// ── 10. Extract rendered HTML ─────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	// ── 10b. Screenshot (best-effort, never fails the fetch) ─────────
	var screenshot []byte
	if req.Screenshot || req.ScreenshotFullPage {
		if shot, shotErr := p.Screenshot(req.ScreenshotFullPage, nil); shotErr == nil {
			screenshot = shot
		} else {
			slog.Warn("screenshot capture failed", "url", req.URL, "error", shotErr)
		}
	}

	// ── 11. Extract title and final URL (best-effort) ────────────────
	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	pageOK = true
	return &ScrapeResult{
		RawHTML:     rawHTML,
		Title:       title,
		StatusCode:  statusCode,
		FinalURL:    finalURL,
		FetchMethod: "browser",
		Screenshot:  screenshot,
	}, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// proxyChain builds the ordered proxy list the engine advances through on a
// blocked outcome (§4.1 "Proxy chain"). Proxies takes precedence; ProxyURL is
// kept only as a single-entry convenience for callers that haven't migrated.
func proxyChain(req *models.PeelRequest) []string {
	if len(req.Proxies) > 0 {
		return req.Proxies
	}
	if req.ProxyURL != "" {
		return []string{req.ProxyURL}
	}
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// doScrapeWithCDP connects to a user-provided CDP endpoint, creates a
// temporary page, scrapes it, and disconnects (without killing the browser).
func (s *Scraper) doScrapeWithCDP(ctx context.Context, req *models.PeelRequest) (*ScrapeResult, error) {
	browser := rod.New().ControlURL(req.CDPURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewPeelError(
			models.ErrCodeBrowserCrash,
			"failed to connect to CDP URL",
			err,
		)
	}
	// Disconnect closes the WebSocket but does NOT kill the browser process.
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewPeelError(
			models.ErrCodeBrowserCrash,
			"failed to create page on CDP browser",
			err,
		)
	}
	defer func() {
		_ = page.Close()
	}()

	// Bind context for timeout.
	p := page.Context(ctx)

	// Navigate.
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	// Wait for network idle or DOM stable.
	if req.WaitForNetworkIdle != nil && *req.WaitForNetworkIdle {
		waitIdle := p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
		waitIdle()
	} else {
		_ = p.WaitDOMStable(300*time.Millisecond, 0.1)
	}

	// Remove overlays if requested.
	if req.RemoveOverlays {
		removeOverlays(p)
	}

	// Execute actions if any.
	if len(req.Actions) > 0 {
		if err := executeActions(ctx, page, req.Actions); err != nil {
			return nil, err
		}
	}

	// Extract.
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeError(htmlErr, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	var screenshot []byte
	if req.Screenshot || req.ScreenshotFullPage {
		if shot, shotErr := p.Screenshot(req.ScreenshotFullPage, nil); shotErr == nil {
			screenshot = shot
		}
	}

	return &ScrapeResult{
		RawHTML:    rawHTML,
		Title:      title,
		FinalURL:   finalURL,
		Screenshot: screenshot,
	}, nil
}

// removeOverlays injects JS to remove fixed/sticky positioned elements with
// high z-index, which are typically cookie consent banners and popup overlays.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		const els = document.querySelectorAll('*');
		for (const el of els) {
			const style = window.getComputedStyle(el);
			const pos = style.position;
			if (pos === 'fixed' || pos === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900 || style.zIndex === 'auto') {
					el.remove();
				}
			}
		}
		// Also remove common overlay class patterns.
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || style.position === 'absolute') {
					el.remove();
				}
			});
		}
		// Remove any overflow:hidden on body/html (often set by modals).
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

// categorizeError wraps raw errors into typed PeelErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.PeelError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPeelError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewPeelError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewPeelError(models.ErrCodeNavigation, msg, err)
	}
}
