package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/use-agent/peel/models"
)

// ChallengeScorer reports how confident the caller should be that a fetched
// page is an anti-bot challenge rather than real content. It is satisfied by
// challenge.Detector; kept as a narrow interface here to avoid a dependency
// cycle between engine and challenge.
type ChallengeScorer interface {
	Score(html string, statusCode int) float64
}

// Dispatcher walks the escalation ladder {Simple, Browser, Stealth} in
// strict order, advancing to the next rung only when the current one
// reports a retryable failure, a blocked-content signal, or content too
// short to be real. This replaces the teacher's race-all-engines dispatcher:
// racing wastes work on sites the first rung can already serve, and hides
// which rung actually produced the result. DomainMemory is kept as an
// optimization that starts the ladder at the last rung known to work for a
// domain, rather than always climbing from the bottom.
type Dispatcher struct {
	ladder     []Engine // index 0 = Simple, 1 = Browser, 2 = Stealth
	memory     *DomainMemory
	scorer     ChallengeScorer
	minHTMLLen int
}

// NewDispatcher creates a Dispatcher. ladder must be ordered cheapest-first
// (simple HTTP, then browser, then stealth browser).
func NewDispatcher(ladder []Engine, memory *DomainMemory, scorer ChallengeScorer) *Dispatcher {
	return &Dispatcher{ladder: ladder, memory: memory, scorer: scorer, minHTMLLen: 200}
}

// Dispatch walks the ladder for req, short-circuiting at the domain's
// last-known-good rung when memory has one, and returns the first rung's
// result that isn't itself a signal to escalate.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	domain := extractDomain(req.URL)
	start := 0

	switch {
	case req.Stealth:
		start = indexOfRung(d.ladder, RungStealth)
	case req.Render:
		start = indexOfRung(d.ladder, RungBrowser)
	default:
		if remembered := d.memory.Get(domain); remembered != "" {
			if i := indexOfName(d.ladder, remembered); i >= 0 {
				start = i
			}
		}
	}

	var lastErr error
	for i := start; i < len(d.ladder); i++ {
		eng := d.ladder[i]
		slog.Debug("escalation rung starting", "engine", eng.Name(), "url", req.URL)

		result, err := eng.Fetch(ctx, req)
		if err != nil {
			lastErr = err
			if shouldEscalate(err) {
				slog.Info("escalating to next rung", "engine", eng.Name(), "url", req.URL, "reason", err)
				d.memory.Delete(domain)
				continue
			}
			return nil, err
		}

		if reason, escalate := d.shouldEscalateResult(result); escalate {
			slog.Info("escalating to next rung", "engine", eng.Name(), "url", req.URL, "reason", reason)
			lastErr = fmt.Errorf("%s: %s", eng.Name(), reason)
			d.memory.Delete(domain)
			continue
		}

		d.memory.Set(domain, eng.Name())
		return result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: no rungs available for %s", req.URL)
	}
	return nil, models.NewPeelError(models.ErrCodeBlocked, "all escalation rungs exhausted", lastErr)
}

// shouldEscalateResult applies the content-based escalation triggers: short
// HTML, an empty SPA shell, or a challenge-detector score at or above the
// confidence threshold.
func (d *Dispatcher) shouldEscalateResult(result *FetchResult) (string, bool) {
	if result.StatusCode >= 500 {
		return "upstream 5xx", true
	}
	if len(strings.TrimSpace(result.HTML)) < d.minHTMLLen {
		return "html shorter than lower bound", true
	}
	if d.scorer != nil {
		if score := d.scorer.Score(result.HTML, result.StatusCode); score >= 0.7 {
			return fmt.Sprintf("challenge confidence %.2f", score), true
		}
	}
	return "", false
}

// shouldEscalate decides whether an engine-level error is a cue to try the
// next rung (network failure, 5xx, explicit blocked signal) rather than an
// unrecoverable failure worth aborting on.
func shouldEscalate(err error) bool {
	var pe *models.PeelError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	// Engine implementations that don't wrap PeelError (e.g. the simple
	// HTTP engine's plain fmt.Errorf on 4xx/5xx or an empty body) are treated as
	// retryable by default — the teacher's http_engine.go already uses
	// failure as its way of saying "escalate me."
	return true
}

func indexOfName(ladder []Engine, name string) int {
	for i, e := range ladder {
		if e.Name() == name {
			return i
		}
	}
	return -1
}

func indexOfRung(ladder []Engine, rung Rung) int {
	switch rung {
	case RungStealth:
		for i, e := range ladder {
			if e.Name() == "stealth" || e.Name() == "rod-stealth" {
				return i
			}
		}
	case RungBrowser:
		for i, e := range ladder {
			if e.Name() == "browser" || e.Name() == "rod" {
				return i
			}
		}
	}
	return 0
}

// extractDomain parses the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
