package engine

import (
	"context"
	"net/http"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod", "rod-stealth").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Cookies []http.Cookie
	Timeout time.Duration

	// Stealth forces the ladder to start at the stealth rung (§4.1).
	Stealth bool

	// Render forces the ladder to start at the browser rung, skipping the
	// simple-HTTP rung even though it might otherwise have succeeded
	// (§3 PeelRequest.render, §4.1 escalation policy).
	Render bool

	// Proxies is an ordered proxy chain (§4.1 "Proxy chain"): a blocked
	// outcome on the current rung advances to the next proxy in the list
	// before the rung itself is abandoned. Empty means no proxy.
	Proxies []string

	// Screenshot and ScreenshotFullPage request a page capture from
	// engines that support it (the browser and stealth rungs).
	Screenshot         bool
	ScreenshotFullPage bool
}

// FetchResult is the output of a successful engine fetch. HTML carries the
// raw response body regardless of its actual content type — the
// contentrouter package decides what to do with it based on ContentType.
type FetchResult struct {
	HTML        string
	Title       string
	StatusCode  int
	FinalURL    string
	EngineName  string
	ContentType string
	Screenshot  []byte
}

// Rung identifies a position on the escalation ladder.
type Rung int

const (
	RungSimple Rung = iota
	RungBrowser
	RungStealth
	RungDone
	RungFailed
)
