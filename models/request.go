package models

import "encoding/json"

// Action is a single browser interaction step executed before extraction.
// Type is one of: wait, click, type, scroll, hover, press, execute_js.
type Action struct {
	Type     string `json:"type" binding:"required,oneof=wait click type scroll hover press execute_js"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Key      string `json:"key,omitempty"`
	Value    string `json:"value,omitempty"` // milliseconds for wait, viewport heights for scroll
	Script   string `json:"script,omitempty"`
}

// Cookie is a single cookie to inject before navigation.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// PeelRequest is the payload for POST /v1/fetch (and the body shared by
// /v1/extract, /v1/batch item options, /v1/crawl page options). There is no
// /v1/scrape route.
type PeelRequest struct {
	// URL is the target page. Required.
	URL string `json:"url" binding:"required,url"`

	// Format controls the returned content shape.
	// Allowed: "markdown" (default), "html", "text", "citations".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=markdown html text citations"`

	// Mode controls the content extraction strategy.
	// "readability" (default), "pruning", "raw", "auto".
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=readability pruning raw auto"`

	// Render forces browser rendering even if the simple-HTTP rung would
	// otherwise succeed.
	Render bool `json:"render,omitempty"`

	// Stealth forces the stealth-browser rung, skipping the simple and
	// plain-browser rungs.
	Stealth bool `json:"stealth,omitempty"`

	// WaitForNetworkIdle instructs the browser rungs to wait until the page
	// has settled. Default: true.
	WaitForNetworkIdle *bool `json:"wait_for_network_idle,omitempty"`

	// Timeout is the maximum duration in seconds for the whole fetch.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// ProxyURL overrides the default proxy for this request. Kept for
	// backward compatibility; Proxies is preferred when both are set.
	ProxyURL string `json:"proxy_url,omitempty" binding:"omitempty,url"`

	// Proxies is an ordered proxy chain (§4.1 "Proxy chain"): a blocked
	// outcome on the current proxy advances to the next entry before the
	// rung itself is abandoned.
	Proxies []string `json:"proxies,omitempty"`

	// Screenshot captures a viewport screenshot (base64-encoded PNG) on
	// PeelResult.Screenshot. Requires a browser rung; ignored on the
	// simple-HTTP rung.
	Screenshot bool `json:"screenshot,omitempty"`

	// ScreenshotFullPage captures the full scrollable page instead of just
	// the viewport. Implies Screenshot.
	ScreenshotFullPage bool `json:"screenshot_full_page,omitempty"`

	// AgentMode runs the configured browser action script with looser
	// navigation timeouts and forces the browser rung, for pages that
	// require multi-step interaction before content settles.
	AgentMode bool `json:"agent_mode,omitempty"`

	// ProfileDir, when set, serializes browser-rung fetches that share the
	// same persistent profile directory (cookies/localStorage a site ties
	// to one identity) so two concurrent requests never write to it at
	// once. Empty means no persistent profile; the pooled page is used as
	// normal.
	ProfileDir string `json:"profile_dir,omitempty"`

	// Selector restricts extraction to the matched CSS selector's subtree.
	Selector string `json:"selector,omitempty"`

	// IncludeTags / ExcludeTags filter the DOM before cleaning.
	IncludeTags []string `json:"include_tags,omitempty"`
	ExcludeTags []string `json:"exclude_tags,omitempty"`

	// Actions is an ordered browser action script run before extraction.
	Actions []Action `json:"actions,omitempty" binding:"omitempty,max=50"`

	// Query, when set, runs the BM25 query-focused filter over the
	// extracted content and populates PeelResult.QuickAnswer /
	// PeelResult.RelevantChunks.
	Query string `json:"query,omitempty"`

	// MaxTokens caps the distilled content's estimated token count.
	// 0 means unlimited.
	MaxTokens int `json:"max_tokens,omitempty" binding:"omitempty,min=1"`

	// Model informs the distiller's context-window lookup when MaxTokens
	// is unset (defaults to the model's context size minus headroom).
	Model string `json:"model,omitempty"`

	// ChangeTracking enables the simhash-based structural fingerprint used
	// to detect material content changes across repeated fetches.
	ChangeTracking bool `json:"change_tracking,omitempty"`

	// Extract carries an LLM schema-guided extraction request (BYOK).
	Extract *ExtractSpec `json:"extract,omitempty"`

	// Headers are extra HTTP headers sent with the navigation request.
	Headers map[string]string `json:"headers,omitempty"`

	// Cookies are injected into the browser context before navigation.
	Cookies []Cookie `json:"cookies,omitempty"`

	// CDPURL, when set, connects to a caller-supplied Chrome DevTools
	// Protocol endpoint instead of the pool's managed browser.
	CDPURL string `json:"cdp_url,omitempty"`

	// BlockAds blocks known ad-serving domains during navigation.
	BlockAds bool `json:"block_ads,omitempty"`

	// RemoveOverlays strips cookie-consent banners and popup overlays
	// after the page settles.
	RemoveOverlays bool `json:"remove_overlays,omitempty"`

	// MaxAge is the maximum acceptable cache entry age in seconds.
	// 0 disables caching for this request.
	MaxAge int `json:"max_age,omitempty"`

	// Language is the preferred caption language for YouTube transcript
	// extraction (§4.6). Empty means "any" (manual beats auto-generated).
	Language string `json:"language,omitempty"`
}

// ExtractSpec is the BYOK LLM extraction sub-request attached to a PeelRequest.
type ExtractSpec struct {
	Schema  json.RawMessage `json:"schema" binding:"required"`
	APIKey  string          `json:"api_key" binding:"required"`
	Model   string          `json:"model,omitempty"`
	BaseURL string          `json:"base_url,omitempty"`
	Prompt  string          `json:"prompt,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *PeelRequest) Defaults() {
	if r.WaitForNetworkIdle == nil {
		t := true
		r.WaitForNetworkIdle = &t
	}
	if r.Timeout == 0 {
		r.Timeout = 30
	}
	if r.Format == "" {
		r.Format = "markdown"
	}
	if r.Mode == "" {
		r.Mode = "readability"
	}
	if r.ScreenshotFullPage {
		r.Screenshot = true
	}
	if r.AgentMode {
		r.Render = true
	}
	if r.Extract != nil {
		if r.Extract.Model == "" {
			r.Extract.Model = "gpt-4o-mini"
		}
		if r.Extract.BaseURL == "" {
			r.Extract.BaseURL = "https://api.openai.com/v1"
		}
	}
}
