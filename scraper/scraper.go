package scraper

import (
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/peel/config"
	"github.com/use-agent/peel/engine"
	"github.com/use-agent/peel/models"
)

// Scraper manages the global browser lifecycle and the page pool.
// It is safe for concurrent use.
type Scraper struct {
	browser          *rod.Browser
	pagePool         *engine.AdaptivePool
	pageByID         sync.Map // int64 -> *rod.Page, backing store for pagePool's handles
	nextPageHandleID atomic.Int64
	browserCfg       config.BrowserConfig
	scraperCfg       config.ScraperConfig
	poolCfg          config.AdaptivePoolConfig
	httpFetcher      *httpFetcher
	hardMax          int
	startTime        time.Time
	dispatcher       *engine.Dispatcher

	// profileLocks serializes browser-rung fetches against a shared
	// persistent profile directory (PeelRequest.ProfileDir), one
	// *sync.Mutex per directory, created lazily on first use.
	profileLocks sync.Map // string (profile dir) -> *sync.Mutex
}

// profileLock returns the mutex guarding dir, creating it on first use.
func (s *Scraper) profileLock(dir string) *sync.Mutex {
	v, _ := s.profileLocks.LoadOrStore(dir, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// NewScraper launches a headless browser and initialises the reusable page pool.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, poolCfg config.AdaptivePoolConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPeelError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewPeelError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	s := &Scraper{
		browser:     browser,
		browserCfg:  browserCfg,
		scraperCfg:  scraperCfg,
		poolCfg:     poolCfg,
		httpFetcher: newHTTPFetcher(browserCfg.DefaultProxy),
		startTime:   time.Now(),
	}

	if poolCfg.HardMax <= 0 {
		poolCfg.HardMax = browserCfg.MaxPages
	}
	s.hardMax = poolCfg.HardMax
	pool, err := engine.NewAdaptivePool(poolCfg, s.newPoolPage, s.closePoolPage)
	if err != nil {
		return nil, models.NewPeelError(
			models.ErrCodeBrowserCrash,
			"failed to initialise adaptive page pool",
			err,
		)
	}
	s.pagePool = pool
	slog.Info("adaptive page pool created",
		"minPages", poolCfg.MinPages, "hardMax", poolCfg.HardMax)

	return s, nil
}

// newPoolPage is the engine.PageFactory backing the adaptive pool: it opens a
// new browser tab and stashes it in pageByID, keyed by the handle ID the pool
// hands back to callers.
func (s *Scraper) newPoolPage() (int64, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return 0, err
	}
	handleID := s.nextPageHandleID.Add(1)
	s.pageByID.Store(handleID, page)
	return handleID, nil
}

// hostnameOf extracts a URL's hostname for pool-handle tagging, returning
// the raw string unchanged if it doesn't parse as a URL.
func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// closePoolPage is the engine.PageDestroyer backing the adaptive pool.
func (s *Scraper) closePoolPage(id int64) {
	if v, ok := s.pageByID.LoadAndDelete(id); ok {
		_ = v.(*rod.Page).Close()
	}
}

// acquirePage borrows a page from the adaptive pool, returning both the rod
// page and the handle used to release it back via releasePage. domain is
// recorded on the handle so a later retirement log points at the site that
// wore the tab out, not whatever reused it next.
func (s *Scraper) acquirePage(domain string) (*rod.Page, *engine.PageHandle, error) {
	handle, err := s.pagePool.Get()
	if err != nil {
		return nil, nil, err
	}
	handle.Tag(domain)
	v, ok := s.pageByID.Load(handle.ID)
	if !ok {
		return nil, nil, models.NewPeelError(models.ErrCodeBrowserCrash, "adaptive pool returned an unknown page handle", nil)
	}
	return v.(*rod.Page), handle, nil
}

// releasePage returns a page to the adaptive pool, recording whether the
// fetch that used it succeeded so the pool's health scoring can retire it.
func (s *Scraper) releasePage(handle *engine.PageHandle, success bool) {
	s.pagePool.Put(handle, success)
}

// SetDispatcher sets the multi-engine dispatcher. When set, DoScrape will
// delegate simple requests (no Actions, no CDPURL) to the dispatcher.
func (s *Scraper) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// Stats returns a snapshot of the pool's current state, read directly off
// the adaptive pool rather than a shadow counter so it reflects pages
// checked out for fetches, YouTube caption capture, and anything else that
// borrows from the same pool.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.hardMax,
		ActivePages: s.pagePool.ActiveCount(),
	}
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Stop()
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}
