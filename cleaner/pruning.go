package cleaner

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pruneScoreThreshold is the minimum weighted score a block element must reach
// to be retained as main content. Blocks scoring at or below this value are
// discarded as boilerplate (navigation, sidebars, footers, ads, etc.).
const pruneScoreThreshold = 0.35

// Signal weights for the pruning scorer: 0.35 text density + 0.25 inverse
// link density + 0.20 tag importance + 0.10 word-count bonus + 0.10 baseline.
// Every term is normalized to [0,1] before weighting so the combined score
// is itself bounded to roughly [0,1].
const (
	wTextDensity    = 0.35
	wInvLinkDensity = 0.25
	wTagImportance  = 0.20
	wWordBonus      = 0.10
	wBaseline       = 0.10
)

// positiveClassIDPatterns are substrings in class/id attributes that indicate
// main content areas.
var positiveClassIDPatterns = []string{
	"content", "article", "post", "entry", "body", "main", "text",
}

// negativeClassIDPatterns are substrings in class/id attributes that indicate
// non-content areas (boilerplate).
var negativeClassIDPatterns = []string{
	"sidebar", "ad", "widget", "nav", "menu", "comment", "footer",
	"header", "banner", "popup", "modal", "cookie", "social", "share",
	"related", "recommend", "promo",
}

// JunkSelectors is negativeClassIDPatterns expressed as CSS attribute
// selectors plus the semantic tags PruneContent also treats as boilerplate
// (§4.3's scoring pass 1). The fallback DOM pipeline (mode="raw", and
// readability/pruning's own fallback-to-raw-HTML paths) strips these before
// markdown conversion so a failed extraction still sheds the obvious
// boilerplate instead of rendering the whole page (spec's "strip junk
// selectors, same list as §4.3 pass 1").
var JunkSelectors = buildJunkSelectors()

func buildJunkSelectors() []string {
	selectors := []string{"nav", "footer", "aside", "header", "script", "style", "noscript"}
	for _, pattern := range negativeClassIDPatterns {
		selectors = append(selectors,
			`[class*="`+pattern+`"]`,
			`[id*="`+pattern+`"]`,
		)
	}
	return selectors
}

// PruneContent extracts main content from raw HTML using a scoring-based
// approach. Each top-level block element in <body> is scored based on text
// density, link density, semantic tag weight, class/id signals, and text
// length. Only blocks exceeding the threshold are retained.
//
// If no blocks pass the threshold, the full body content is returned as a
// fallback so the pipeline never produces empty output.
func PruneContent(rawHTML, sourceURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML, err
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		// No <body> tag — return raw HTML unchanged.
		return rawHTML, nil
	}

	var retained []string
	body.Children().Each(func(_ int, el *goquery.Selection) {
		score := scoreElement(el)
		if score > pruneScoreThreshold {
			if html, err := goquery.OuterHtml(el); err == nil {
				retained = append(retained, html)
			}
		}
	})

	// Fallback: if nothing passed the threshold, return full body content.
	if len(retained) == 0 {
		html, err := body.Html()
		if err != nil {
			return rawHTML, nil
		}
		return html, nil
	}

	return strings.Join(retained, "\n"), nil
}

// scoreElement computes a weighted score for a DOM element based on multiple
// content signals.
func scoreElement(el *goquery.Selection) float64 {
	fullHTML, err := goquery.OuterHtml(el)
	if err != nil {
		return 0
	}

	text := strings.TrimSpace(el.Text())
	textLen := len(text)
	totalLen := len(fullHTML)

	// --- text_density: ratio of visible text to total element size ---
	textDensity := 0.0
	if totalLen > 0 {
		textDensity = float64(textLen) / float64(totalLen)
	}

	// --- link_density: ratio of anchor text to total text ---
	linkTextLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = float64(linkTextLen) / float64(textLen)
	}

	// --- tag_importance: semantic tag + class/id signal, folded to [0,1] ---
	tagImportance := clamp01(0.5 + 0.5*tagSignal(el) + 0.25*classIDSignal(el))

	// --- word_bonus: log-scale bonus for longer text blocks, folded to [0,1] ---
	wordBonus := clamp01(math.Log10(float64(textLen)+1) / 5.0)

	// --- baseline: flat term so an otherwise-neutral block isn't scored to zero ---
	const baseline = 1.0

	score := textDensity*wTextDensity +
		(1-linkDensity)*wInvLinkDensity +
		tagImportance*wTagImportance +
		wordBonus*wWordBonus +
		baseline*wBaseline

	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// tagSignal returns -1..1 based on the element's tag name. Semantic content
// tags score positive; known boilerplate tags score negative.
func tagSignal(el *goquery.Selection) float64 {
	tag := goquery.NodeName(el)
	switch tag {
	case "article", "main", "section":
		return 1.0
	case "nav", "footer", "aside", "header":
		return -1.0
	default:
		return 0.0
	}
}

// classIDSignal scans the element's class and id attributes for substrings
// that indicate content vs. boilerplate, returning -1..1.
func classIDSignal(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	score := 0.0
	for _, pat := range positiveClassIDPatterns {
		if strings.Contains(combined, pat) {
			score += 1.0
			break // count at most once per direction
		}
	}
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(combined, pat) {
			score -= 1.0
			break
		}
	}
	return score
}
