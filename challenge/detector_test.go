package challenge

import (
	"strings"
	"testing"
)

func TestDetectorCloudflare(t *testing.T) {
	d := New()
	html := `<html><body><div id="cf-wrapper">Checking your browser before accessing example.com. cf-browser-verification</div></body></html>`
	score := d.Score(html, 503)
	if score < 0.7 {
		t.Fatalf("expected high confidence cloudflare score, got %f", score)
	}
}

func TestDetectorEmptyShell(t *testing.T) {
	d := New()
	html := `<html><body><div id="root"></div><script src="bundle.js"></script></body></html>`
	score := d.Score(html, 200)
	if score < 0.5 {
		t.Fatalf("expected empty-shell to score high, got %f", score)
	}
}

func TestDetectorCleanPage(t *testing.T) {
	d := New()
	html := `<html><body><article><h1>Real article</h1><p>` +
		"This is a perfectly normal page with plenty of visible text content that a reader would actually want to read, spanning more than two hundred characters so the empty-shell heuristic does not fire." +
		`</p></article></body></html>`
	score := d.Score(html, 200)
	if score >= 0.5 {
		t.Fatalf("expected clean page to score low, got %f", score)
	}
}

func TestDetectorSuppressesOnSubstantialVisibleText(t *testing.T) {
	d := New()
	paragraph := "This article discusses how websites use a CAPTCHA and other unusual traffic countermeasures to stop bots, are you a human detection included. "
	body := strings.Repeat(paragraph, 15) // well past the 1500-char visible-text threshold
	html := `<html><body><article>` + body + `</article></body></html>`

	score := d.Score(html, 200)
	if score >= 0.5 {
		t.Fatalf("expected a long article merely mentioning challenge phrases to score low, got %f", score)
	}
}

func TestDetectorNotFoundIsNeverAChallenge(t *testing.T) {
	d := New()
	html := `<html><head><title>404 Not Found</title></head><body>` +
		`<p>are you a human? unusual traffic detected, please complete the captcha.</p></body></html>`

	signals := d.Detect(html, 404)
	if len(signals) != 0 {
		t.Fatalf("expected no signals for a 404 not-found page, got %+v", signals)
	}
}

func TestDetectorDetectSortedDescending(t *testing.T) {
	d := New()
	html := `<html><body>datadome geo.captcha-delivery.com are you a human</body></html>`
	signals := d.Detect(html, 200)
	if len(signals) < 2 {
		t.Fatalf("expected multiple signals, got %d", len(signals))
	}
	for i := 1; i < len(signals); i++ {
		if signals[i].Confidence > signals[i-1].Confidence {
			t.Fatalf("signals not sorted descending: %+v", signals)
		}
	}
}
