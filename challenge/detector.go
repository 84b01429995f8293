// Package challenge scores a fetched page for signs that it is an anti-bot
// challenge rather than the real content: a Cloudflare interstitial, a
// PerimeterX/Akamai/DataDome/Incapsula block page, a generic "access denied"
// response, or a SPA shell rendered with no content because a challenge
// script blocked hydration.
//
// It is seeded by the teacher's needsBrowser() heuristic in
// scraper/httpfetch.go (short-HTML, SPA-empty-shell, noscript, script-heavy
// signals) and extended with named per-vendor detectors, each contributing
// an independent confidence score; the Detector reports the maximum.
package challenge

import (
	"regexp"
	"strings"
)

// Vendor identifies which anti-bot product a detector recognizes.
type Vendor string

const (
	VendorCloudflare   Vendor = "cloudflare"
	VendorPerimeterX   Vendor = "perimeterx"
	VendorAkamai       Vendor = "akamai"
	VendorDataDome     Vendor = "datadome"
	VendorIncapsula    Vendor = "incapsula"
	VendorGenericBlock Vendor = "generic-block"
	VendorEmptyShell   Vendor = "empty-shell"
)

// Signal is one detector's verdict.
type Signal struct {
	Vendor     Vendor
	Confidence float64 // 0.0-1.0
}

// Detector scores HTML bodies for anti-bot challenge signatures.
type Detector struct {
	minBodyLen int
}

// New creates a Detector with default thresholds.
func New() *Detector {
	return &Detector{minBodyLen: 200}
}

// Score returns the highest confidence across all vendor detectors. 1.0
// means certain, 0.0 means no signal detected.
func (d *Detector) Score(html string, statusCode int) float64 {
	best := 0.0
	for _, sig := range d.Detect(html, statusCode) {
		if sig.Confidence > best {
			best = sig.Confidence
		}
	}
	return best
}

// Detect runs every vendor detector and returns every signal with
// confidence > 0, highest first. A 404 response with a "not found"-like
// title is never a challenge, and a page with substantial visible text
// suppresses every detector except emptyShell — a long article that
// happens to mention "CAPTCHA" or "unusual traffic" is not a challenge.
func (d *Detector) Detect(html string, statusCode int) []Signal {
	if statusCode == 404 && reNotFoundTitle.MatchString(extractTitle(html)) {
		return nil
	}

	lower := strings.ToLower(html)
	visible := visibleText(html)
	suppressed := len(visible) > 1500 || (len(visible) > 600 && len(html) > 5000)

	var signals []Signal
	if !suppressed {
		if c := d.cloudflare(lower, statusCode); c > 0 {
			signals = append(signals, Signal{VendorCloudflare, c})
		}
		if c := d.perimeterX(lower); c > 0 {
			signals = append(signals, Signal{VendorPerimeterX, c})
		}
		if c := d.akamai(lower, statusCode); c > 0 {
			signals = append(signals, Signal{VendorAkamai, c})
		}
		if c := d.dataDome(lower); c > 0 {
			signals = append(signals, Signal{VendorDataDome, c})
		}
		if c := d.incapsula(lower); c > 0 {
			signals = append(signals, Signal{VendorIncapsula, c})
		}
		if c := d.genericBlock(lower, statusCode); c > 0 {
			signals = append(signals, Signal{VendorGenericBlock, c})
		}
	}
	if c := d.emptyShell(html, lower); c > 0 {
		signals = append(signals, Signal{VendorEmptyShell, c})
	}

	sortSignalsDesc(signals)
	return signals
}

func (d *Detector) cloudflare(lower string, status int) float64 {
	score := 0.0
	if strings.Contains(lower, "cf-browser-verification") || strings.Contains(lower, "cf_chl_") {
		score = 0.95
	} else if strings.Contains(lower, "checking your browser before accessing") ||
		strings.Contains(lower, "/cdn-cgi/challenge-platform") {
		score = 0.9
	} else if strings.Contains(lower, "attention required! | cloudflare") {
		score = 0.85
	}
	if status == 403 && strings.Contains(lower, "cloudflare") {
		score = max(score, 0.6)
	}
	return score
}

func (d *Detector) perimeterX(lower string) float64 {
	if strings.Contains(lower, "px-captcha") || strings.Contains(lower, "perimeterx") ||
		strings.Contains(lower, "_pxhd") || strings.Contains(lower, "human challenge") {
		return 0.9
	}
	return 0
}

func (d *Detector) akamai(lower string, status int) float64 {
	if strings.Contains(lower, "akamaibmp") || strings.Contains(lower, "ak_bmsc") ||
		strings.Contains(lower, "reference #") && strings.Contains(lower, "access denied") {
		return 0.85
	}
	if status == 403 && strings.Contains(lower, "access denied") {
		return 0.5
	}
	return 0
}

func (d *Detector) dataDome(lower string) float64 {
	if strings.Contains(lower, "datadome") || strings.Contains(lower, "geo.captcha-delivery.com") {
		return 0.9
	}
	return 0
}

func (d *Detector) incapsula(lower string) float64 {
	if strings.Contains(lower, "incapsula") || strings.Contains(lower, "incap_ses") ||
		strings.Contains(lower, "_incap_") {
		return 0.85
	}
	return 0
}

var reNotFoundTitle = regexp.MustCompile(`(?i)\b(404|not found|page (doesn't|does not) exist|page unavailable)\b`)

var reGenericBlockPhrase = regexp.MustCompile(`(are you a human|verify you are (a )?human|unusual traffic|automated (requests|queries)|please (complete|verify) the (captcha|security check))`)

func (d *Detector) genericBlock(lower string, status int) float64 {
	score := 0.0
	if reGenericBlockPhrase.MatchString(lower) {
		score = 0.7
	}
	if status == 429 {
		score = max(score, 0.5)
	}
	if status == 403 && score == 0 {
		score = 0.3
	}
	return score
}

var reNoscriptJSRequired = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// emptyShell flags SPA pages whose rendered body has essentially no visible
// text — the signature of a challenge script intercepting hydration, or a
// client-rendered page fetched without a browser rung.
func (d *Detector) emptyShell(rawHTML, lower string) float64 {
	visible := visibleText(rawHTML)
	if len(visible) < d.minBodyLen {
		if reNoscriptJSRequired.MatchString(lower) {
			return 0.8
		}
		if strings.Contains(lower, `<div id="root"></div>`) ||
			strings.Contains(lower, `<div id="app"></div>`) ||
			strings.Contains(lower, `<div id="__next"></div>`) {
			return 0.75
		}
		scriptCount := strings.Count(lower, "<script")
		if scriptCount > 10 {
			return 0.5
		}
		return 0.3
	}
	return 0
}

func sortSignalsDesc(s []Signal) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Confidence > s[j-1].Confidence; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
