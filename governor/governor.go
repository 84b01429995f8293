// Package governor implements the per-host outbound rate governor described
// in the supporting-services section of the pipeline design: every fetch,
// regardless of which escalation rung serves it, acquires a slot for the
// target host before dialing, so a single misbehaving crawl can't hammer one
// origin even though the pipeline fans out many concurrent fetches.
//
// It reuses the teacher's x/time/rate-based limiter-map idiom from
// api/middleware/ratelimit.go, re-keyed by host instead of API key, and
// switched from a non-blocking Allow() to a context-bounded blocking Wait().
package governor

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Governor hands out per-host rate-limited permission to proceed.
type Governor struct {
	rps         float64
	burst       int
	waitTimeout time.Duration

	mu       sync.Mutex
	limiters map[string]*hostLimiter
	stop     chan struct{}
}

// New creates a Governor. rps/burst size each host's token bucket;
// waitTimeout bounds how long Acquire will block for a slot.
func New(rps float64, burst int, waitTimeout time.Duration) *Governor {
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	g := &Governor{
		rps:         rps,
		burst:       burst,
		waitTimeout: waitTimeout,
		limiters:    make(map[string]*hostLimiter),
		stop:        make(chan struct{}),
	}
	go g.cleanupLoop()
	return g
}

// HostOf extracts the governor key (lowercased host, no port) from a URL.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}

func (g *Governor) limiterFor(host string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	hl, ok := g.limiters[host]
	if !ok {
		hl = &hostLimiter{limiter: rate.NewLimiter(rate.Limit(g.rps), g.burst)}
		g.limiters[host] = hl
	}
	hl.lastSeen = time.Now()
	return hl.limiter
}

// Acquire blocks until a slot for host is available, the governor's
// waitTimeout elapses, or ctx is cancelled — whichever comes first.
func (g *Governor) Acquire(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, g.waitTimeout)
	defer cancel()
	return g.limiterFor(host).Wait(ctx)
}

// Stop halts the background eviction goroutine.
func (g *Governor) Stop() {
	close(g.stop)
}

func (g *Governor) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-time.Hour)
			g.mu.Lock()
			for host, hl := range g.limiters {
				if hl.lastSeen.Before(cutoff) {
					delete(g.limiters, host)
				}
			}
			g.mu.Unlock()
		}
	}
}
