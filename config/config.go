package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	Browser      BrowserConfig
	Scraper      ScraperConfig
	Auth         AuthConfig
	Governor     GovernorConfig
	Cache        CacheConfig
	Log          LogConfig
	Engine       EngineConfig
	AdaptivePool AdaptivePoolConfig
	DNS          DNSConfig
	Distiller    DistillerConfig
	Webhook      WebhookConfig
}

// GovernorConfig controls the per-host outbound rate governor.
type GovernorConfig struct {
	// RequestsPerSecond is the sustained rate per host.
	RequestsPerSecond float64 // default: 2
	// Burst is the maximum burst size per host.
	Burst int // default: 4
	// WaitTimeout bounds how long a fetch will block waiting for a slot.
	WaitTimeout time.Duration // default: 10s
}

// DNSConfig controls the DNS pre-resolver.
type DNSConfig struct {
	// Resolvers is the list of DNS server addresses ("host:53") to query.
	// Empty uses the OS resolver.
	Resolvers []string
	// CacheTTL bounds how long a resolved address is reused regardless of
	// the record's own TTL.
	CacheTTL time.Duration // default: 5m
}

// DistillerConfig controls token-budget distillation defaults.
type DistillerConfig struct {
	// DefaultModel is loaded from PEEL_DEFAULT_MODEL; nothing outside this
	// package reads it.
	DefaultModel string // default: "gpt-4o-mini"
}

// WebhookConfig is loaded from PEEL_WEBHOOK_TIMEOUT and
// PEEL_WEBHOOK_RETRY_DELAYS; package webhook does not read it and uses its
// own fixed 10s timeout and 1s/5s/30s retry delays.
type WebhookConfig struct {
	Timeout     time.Duration   // default: 10s
	RetryDelays []time.Duration // default: [1s, 5s, 30s]
}

// EngineConfig controls the multi-engine escalation dispatcher.
type EngineConfig struct {
	// EnableMultiEngine toggles the multi-engine dispatcher.
	EnableMultiEngine bool // default: true

	// EscalationDelays is loaded from PEEL_ESCALATION_DELAYS; the dispatcher
	// does not read it and starts each rung as soon as the previous one fails.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// HTTPTimeout is loaded from PEEL_HTTP_TIMEOUT; the HTTP engine does not
	// read it.
	HTTPTimeout time.Duration // default: 5s
}

// AdaptivePoolConfig controls the adaptive page pool sizing.
type AdaptivePoolConfig struct {
	// MinPages is the minimum number of pages kept in the pool.
	MinPages int // default: 3

	// HardMax is the absolute maximum number of pages.
	HardMax int // default: 20

	// MemThreshold is the heap memory fraction (0.0-1.0) above which the pool shrinks.
	MemThreshold float64 // default: 0.9

	// ScaleStep is the fraction of pool size to grow or shrink per interval.
	ScaleStep float64 // default: 0.05
}

// CacheConfig controls the result LRU cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 1000
	// MaxBytes caps total cached content size; 0 disables the byte cap.
	MaxBytes int64 // default: 256MB
	// TTL is how long an entry is served without re-validation.
	TTL time.Duration // default: 1h
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls scraping behavior.
type ScraperConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys (for MVP; replace with DB later).
	APIKeys []string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults,
// then overlays the YAML file named by PEEL_CONFIG_FILE (if set and present).
// Errors reading or parsing that file are ignored.
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("PEEL_HOST", "0.0.0.0"),
			Port: envIntOr("PEEL_PORT", 8080),
			Mode: envOr("PEEL_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PEEL_HEADLESS", true),
			MaxPages:     envIntOr("PEEL_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("PEEL_PROXY"),
			NoSandbox:    envBoolOr("PEEL_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PEEL_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout:    envDurationOr("PEEL_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:        envDurationOr("PEEL_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout: envDurationOr("PEEL_NAV_TIMEOUT", 15*time.Second),
			BlockedResourceTypes: envSliceOr("PEEL_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PEEL_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PEEL_API_KEYS", nil),
		},
		Governor: GovernorConfig{
			RequestsPerSecond: envFloatOr("PEEL_GOVERNOR_RPS", 2.0),
			Burst:             envIntOr("PEEL_GOVERNOR_BURST", 4),
			WaitTimeout:       envDurationOr("PEEL_GOVERNOR_WAIT", 10*time.Second),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PEEL_CACHE_MAX_ENTRIES", 1000),
			MaxBytes:   int64(envIntOr("PEEL_CACHE_MAX_BYTES", 256<<20)),
			TTL:        envDurationOr("PEEL_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PEEL_LOG_LEVEL", "info"),
			Format: envOr("PEEL_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("PEEL_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("PEEL_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			HTTPTimeout:       envDurationOr("PEEL_HTTP_TIMEOUT", 5*time.Second),
		},
		AdaptivePool: AdaptivePoolConfig{
			MinPages:     envIntOr("PEEL_MIN_PAGES", 3),
			HardMax:      envIntOr("PEEL_HARD_MAX_PAGES", 20),
			MemThreshold: envFloatOr("PEEL_MEM_THRESHOLD", 0.9),
			ScaleStep:    envFloatOr("PEEL_SCALE_STEP", 0.05),
		},
		DNS: DNSConfig{
			Resolvers: envSliceOr("PEEL_DNS_RESOLVERS", nil),
			CacheTTL:  envDurationOr("PEEL_DNS_CACHE_TTL", 5*time.Minute),
		},
		Distiller: DistillerConfig{
			DefaultModel: envOr("PEEL_DEFAULT_MODEL", "gpt-4o-mini"),
		},
		Webhook: WebhookConfig{
			Timeout:     envDurationOr("PEEL_WEBHOOK_TIMEOUT", 10*time.Second),
			RetryDelays: envDurationSliceOr("PEEL_WEBHOOK_RETRY_DELAYS", []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}),
		},
	}
	if path := os.Getenv("PEEL_CONFIG_FILE"); path != "" {
		_ = loadYAMLOverlay(path, cfg)
	}
	return cfg
}

// loadYAMLOverlay merges a YAML config file on top of cfg. Missing files are
// not an error; unreadable or malformed ones are reported to the caller.
func loadYAMLOverlay(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
