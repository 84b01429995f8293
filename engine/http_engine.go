package engine

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
	xproxy "golang.org/x/net/proxy"

	"github.com/use-agent/peel/dnsresolve"
)

// HTTPEngine is a lightweight Layer 1 engine that uses pure net/http.
// It is the fastest option, suitable for static pages that don't need
// JavaScript rendering.
type HTTPEngine struct {
	client   *http.Client // proxy-less client, reused across requests
	resolver *dnsresolve.Resolver
}

// maxAttemptsPerProxy bounds retries within a single proxy/rung attempt
// (§4.1 "Retries", §7 recovery policy): 3 attempts, waiting 500ms and then
// 1s between them.
const maxAttemptsPerProxy = 3

var retryBackoff = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Fallback: if spec generation fails, use HelloChrome_Auto as-is.
		// (Should never happen with a valid utls version.)
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine with a Chrome-like TLS fingerprint.
// ALPN is locked to http/1.1 to avoid the HTTP/2 framing mismatch that
// occurs when utls negotiates h2 but Go's http.Transport only speaks h1.
// resolver may be nil, in which case the OS resolver handles every dial
// (§4.9 "DNS pre-resolver" is then a no-op).
func NewHTTPEngine(resolver *dnsresolve.Resolver) *HTTPEngine {
	e := &HTTPEngine{resolver: resolver}
	e.client = e.buildClient("")
	return e
}

// buildClient creates an *http.Client with a Chrome TLS fingerprint,
// optionally dialing through proxy (http/https/socks5 URL). An empty proxy
// yields a direct-dial client.
func (e *HTTPEngine) buildClient(proxy string) *http.Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return e.dialTLSChromeH1(ctx, network, addr, proxy)
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// dialTLSChromeH1 dials through an optional SOCKS5 proxy (HTTP/HTTPS
// proxies are handled by http.Transport.Proxy instead) and performs a
// Chrome-fingerprinted TLS handshake over the result. When a resolver is
// configured and no proxy is in play, the target host is pre-resolved so
// the dial skips the OS resolver (§4.9).
func (e *HTTPEngine) dialTLSChromeH1(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if proxy != "" {
		if proxyURL, parseErr := url.Parse(proxy); parseErr == nil &&
			(proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			var pd xproxy.Dialer
			if pd, err = xproxy.FromURL(proxyURL, dialer); err == nil {
				conn, err = pd.Dial(network, addr)
			}
		} else {
			conn, err = dialer.DialContext(ctx, network, addr)
		}
	} else if e.resolver != nil {
		conn, err = e.dialResolved(ctx, dialer, network, addr)
	} else {
		conn, err = dialer.DialContext(ctx, network, addr)
	}
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// dialResolved looks addr's host up through the configured resolver and
// dials the first returned address, falling back to the normal dialer (and
// thus the OS resolver) if the lookup fails. A failed dial purges the
// cached entry so the next attempt re-queries instead of retrying a
// now-dead address.
func (e *HTTPEngine) dialResolved(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return dialer.DialContext(ctx, network, addr)
	}

	addrs, resolveErr := e.resolver.Resolve(ctx, host)
	if resolveErr != nil || len(addrs) == 0 {
		return dialer.DialContext(ctx, network, addr)
	}

	conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0], port))
	if dialErr != nil {
		e.resolver.Purge(host)
		return dialer.DialContext(ctx, network, addr)
	}
	return conn, nil
}

func (e *HTTPEngine) Name() string { return "http" }

// Fetch walks req.Proxies in order (a lone empty-string entry when none are
// configured), retrying each with exponential backoff before moving to the
// next proxy. Exhausting every proxy returns the last error, which the
// dispatcher treats as a cue to escalate to the next rung (§4.1 "Proxy
// chain").
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	proxies := req.Proxies
	if len(proxies) == 0 {
		proxies = []string{""}
	}

	var lastErr error
	for _, proxy := range proxies {
		result, err := e.fetchWithRetry(ctx, req, proxy)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// fetchWithRetry retries a single proxy's fetch up to maxAttemptsPerProxy
// times, backing off 500ms and then 1s. Network errors and 5xx are retried; 429
// is retried and honours Retry-After; other 4xx statuses are not retried.
func (e *HTTPEngine) fetchWithRetry(ctx context.Context, req *FetchRequest, proxy string) (*FetchResult, error) {
	client := e.client
	if proxy != "" {
		client = e.buildClient(proxy)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttemptsPerProxy; attempt++ {
		result, statusCode, retryAfter, err := e.fetchOnce(ctx, client, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableStatus(statusCode) {
			return nil, err
		}
		if attempt == maxAttemptsPerProxy-1 {
			break
		}

		wait := retryBackoff[attempt]
		if statusCode == http.StatusTooManyRequests && retryAfter > 0 {
			wait = retryAfter
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// isRetryableStatus reports whether a failed attempt's status code (0 for a
// network-level error) is worth retrying at the current rung: network
// errors, 5xx, and 429. Any other 4xx is terminal for this proxy.
func isRetryableStatus(statusCode int) bool {
	return statusCode == 0 || statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// fetchOnce performs a single HTTP GET attempt. It returns the response
// status code (0 when the request never reached a server) and any
// Retry-After duration so the caller can decide whether and how long to
// back off before the next attempt.
func (e *HTTPEngine) fetchOnce(ctx context.Context, client *http.Client, req *FetchRequest) (*FetchResult, int, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("http_engine: build request: %w", err)
	}

	// Simulate browser-like headers.
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36")
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	// Apply custom headers (override defaults if provided).
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Apply cookies.
	for i := range req.Cookies {
		httpReq.AddCookie(&req.Cookies[i])
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	reader, err := decompressingReader(resp)
	if err != nil {
		return nil, resp.StatusCode, retryAfter, fmt.Errorf("http_engine: decompress body: %w", err)
	}

	// Read body with a 10 MB limit to prevent unbounded memory use.
	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(reader, maxBody))
	if err != nil {
		return nil, resp.StatusCode, retryAfter, fmt.Errorf("http_engine: read body: %w", err)
	}

	bodyStr := string(body)
	ct := resp.Header.Get("Content-Type")

	// Non-HTML content types are not a failure here: the content-type
	// dispatcher routes JSON/XML/RSS/PDF/DOCX bodies to their own parsers.
	// Only an error status or empty body is a cue to escalate.
	if resp.StatusCode >= 400 || len(bodyStr) == 0 {
		return nil, resp.StatusCode, retryAfter, fmt.Errorf("http_engine: error status %d or empty body (content-type: %s)", resp.StatusCode, ct)
	}

	title := ""
	if isHTMLContentType(ct) {
		title = extractTitle(bodyStr)
	}
	finalURL := resp.Request.URL.String()

	return &FetchResult{
		HTML:        bodyStr,
		Title:       title,
		StatusCode:  resp.StatusCode,
		FinalURL:    finalURL,
		EngineName:  e.Name(),
		ContentType: ct,
	}, resp.StatusCode, 0, nil
}

// parseRetryAfter parses the Retry-After header's delay-seconds form. The
// rarer HTTP-date form is not produced by the anti-bot/rate-limit
// responses this engine escalates past, so it's left unhandled: a 429
// without a numeric Retry-After falls back to the normal backoff schedule.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// decompressingReader wraps resp.Body according to its Content-Encoding
// header. The simple-HTTP rung advertises gzip/deflate/br support so it can
// match what a real browser would request.
func decompressingReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return zlib.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
