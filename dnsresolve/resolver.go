// Package dnsresolve pre-resolves hostnames to IP addresses ahead of the
// escalation fetcher's first dial, the way the teacher's engine package
// pre-computes a TLS ClientHello spec ahead of dialing: do the expensive or
// blocking part once, cache it, and let the fetch rungs consume the result.
package dnsresolve

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// entry caches a resolved address set with its expiry.
type entry struct {
	addrs  []string
	expiry time.Time
}

// Resolver pre-resolves hostnames against a configured list of DNS servers,
// falling back to the OS resolver when none are configured. Results are
// cached for ttl regardless of the record's own TTL, bounding how often a
// single host is re-queried during a crawl.
type Resolver struct {
	servers []string
	ttl     time.Duration
	client  *dns.Client

	mu    sync.RWMutex
	cache map[string]entry
}

// New creates a Resolver. servers is a list of "host:port" DNS server
// addresses; an empty list means "use the OS resolver" and Resolve becomes a
// thin net.DefaultResolver wrapper.
func New(servers []string, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Resolver{
		servers: servers,
		ttl:     ttl,
		client:  &dns.Client{Timeout: 3 * time.Second},
		cache:   make(map[string]entry),
	}
}

// Resolve returns the cached or freshly-queried addresses for host (only A
// records are queried from configured servers; with none configured, the
// OS resolver's answer is used). The returned slice is never mutated by the caller's use of it.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]string, error) {
	r.mu.RLock()
	if e, ok := r.cache[host]; ok && time.Now().Before(e.expiry) {
		r.mu.RUnlock()
		return e.addrs, nil
	}
	r.mu.RUnlock()

	addrs, err := r.query(ctx, host)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[host] = entry{addrs: addrs, expiry: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return addrs, nil
}

func (r *Resolver) query(ctx context.Context, host string) ([]string, error) {
	if len(r.servers) == 0 {
		return net.DefaultResolver.LookupHost(ctx, host)
	}

	var lastErr error
	for _, server := range r.servers {
		addrs, err := r.queryServer(host, server, dns.TypeA)
		if err == nil && len(addrs) > 0 {
			return addrs, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("dnsresolve: all resolvers failed for %s: %w", host, lastErr)
	}
	return nil, fmt.Errorf("dnsresolve: no records for %s", host)
}

func (r *Resolver) queryServer(host, server string, qtype uint16) ([]string, error) {
	fqdn := dns.Fqdn(host)
	m := new(dns.Msg)
	m.SetQuestion(fqdn, qtype)
	m.RecursionDesired = true

	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, strconv.Itoa(53))
	}

	resp, _, err := r.client.Exchange(m, server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dnsresolve: rcode %d from %s", resp.Rcode, server)
	}

	var addrs []string
	for _, rr := range resp.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			addrs = append(addrs, rec.A.String())
		case *dns.AAAA:
			addrs = append(addrs, rec.AAAA.String())
		}
	}
	return addrs, nil
}

// Purge discards the cached entry for host, forcing the next Resolve to
// re-query. Used when a rung observes a connection failure that looks
// DNS-related (NXDOMAIN-adjacent network errors).
func (r *Resolver) Purge(host string) {
	r.mu.Lock()
	delete(r.cache, host)
	r.mu.Unlock()
}
