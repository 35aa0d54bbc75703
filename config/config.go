package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Pool      PoolConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Directory DirectoryConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // gin mode: "debug", "release", "test"; default: "release"

	// Environment names the deployment ("production", "staging",
	// "development"). Administrative pool resets are refused in production.
	Environment string // default: "production"
}

// IsProduction reports whether the server runs in the production environment.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// BrowserConfig controls how browser processes are launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional proxy server for every browser.
	Proxy string

	// Stealth injects evasion scripts into every new page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types the page never loads.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string
}

// PoolConfig controls the browser pool.
type PoolConfig struct {
	// Size is the number of idle browsers kept ready.
	Size int // default: 3

	// MaxEmergency caps browsers launched on demand while the pool is empty.
	MaxEmergency int // default: 5

	// LaunchRetryBackoff is the pause before retrying a failed emergency launch.
	LaunchRetryBackoff time.Duration // default: 250ms

	// ReplenishBackoff is the pause after a failed background replenish.
	ReplenishBackoff time.Duration // default: 1s
}

// ScraperConfig controls the scrape state machine.
type ScraperConfig struct {
	// NavigationTimeout bounds page navigation (DOM ready).
	NavigationTimeout time.Duration // default: 20s

	// DefaultWaitTime is the settle delay when a config sets none.
	DefaultWaitTime time.Duration // default: 1s

	// ChallengeTimeout bounds the wait for a detected challenge to clear.
	ChallengeTimeout time.Duration // default: 10s

	// ChallengePollInterval is how often the page is re-read while waiting.
	ChallengePollInterval time.Duration // default: 250ms

	// ChallengeSettle is the extra delay after a challenge clears.
	ChallengeSettle time.Duration // default: 1.5s

	// ReadTimeout bounds the HTML read that feeds extraction.
	ReadTimeout time.Duration // default: 10s

	// SitesFile optionally points at a YAML file overriding built-in sites.
	SitesFile string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string

	// AdminKey authorizes administrative actions. Empty disables them.
	AdminKey string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 500

	// TTL is the hard expiry of cached results.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DirectoryConfig controls registration with an external service directory.
// Registration is disabled when URL is empty.
type DirectoryConfig struct {
	URL               string
	Secret            string
	ServiceName       string        // default: "figscrape"
	AdvertiseURL      string        // address other services use to reach us
	HeartbeatInterval time.Duration // default: 30s
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        envOr("FIGSCRAPE_HOST", "0.0.0.0"),
			Port:        envIntOr("FIGSCRAPE_PORT", 8080),
			Mode:        envOr("FIGSCRAPE_MODE", "release"),
			Environment: envOr("FIGSCRAPE_ENV", "production"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("FIGSCRAPE_HEADLESS", true),
			NoSandbox:            envBoolOr("FIGSCRAPE_NO_SANDBOX", true),
			BrowserBin:           os.Getenv("FIGSCRAPE_BROWSER_BIN"),
			Proxy:                os.Getenv("FIGSCRAPE_PROXY"),
			Stealth:              envBoolOr("FIGSCRAPE_STEALTH", true),
			BlockedResourceTypes: envSliceOr("FIGSCRAPE_BLOCKED_RESOURCES", []string{"Font", "Media"}),
		},
		Pool: PoolConfig{
			Size:               envIntOr("FIGSCRAPE_POOL_SIZE", 3),
			MaxEmergency:       envIntOr("FIGSCRAPE_MAX_EMERGENCY", 5),
			LaunchRetryBackoff: envDurationOr("FIGSCRAPE_LAUNCH_RETRY_BACKOFF", 250*time.Millisecond),
			ReplenishBackoff:   envDurationOr("FIGSCRAPE_REPLENISH_BACKOFF", time.Second),
		},
		Scraper: ScraperConfig{
			NavigationTimeout:     envDurationOr("FIGSCRAPE_NAV_TIMEOUT", 20*time.Second),
			DefaultWaitTime:       envDurationOr("FIGSCRAPE_DEFAULT_WAIT", time.Second),
			ChallengeTimeout:      envDurationOr("FIGSCRAPE_CHALLENGE_TIMEOUT", 10*time.Second),
			ChallengePollInterval: envDurationOr("FIGSCRAPE_CHALLENGE_POLL", 250*time.Millisecond),
			ChallengeSettle:       envDurationOr("FIGSCRAPE_CHALLENGE_SETTLE", 1500*time.Millisecond),
			ReadTimeout:           envDurationOr("FIGSCRAPE_READ_TIMEOUT", 10*time.Second),
			SitesFile:             os.Getenv("FIGSCRAPE_SITES_FILE"),
		},
		Auth: AuthConfig{
			Enabled:  envBoolOr("FIGSCRAPE_AUTH_ENABLED", true),
			APIKeys:  envSliceOr("FIGSCRAPE_API_KEYS", nil),
			AdminKey: os.Getenv("FIGSCRAPE_ADMIN_KEY"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FIGSCRAPE_RATE_RPS", 2.0),
			Burst:             envIntOr("FIGSCRAPE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("FIGSCRAPE_CACHE_MAX_ENTRIES", 500),
			TTL:        envDurationOr("FIGSCRAPE_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("FIGSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("FIGSCRAPE_LOG_FORMAT", "json"),
		},
		Directory: DirectoryConfig{
			URL:               os.Getenv("FIGSCRAPE_DIRECTORY_URL"),
			Secret:            os.Getenv("FIGSCRAPE_DIRECTORY_SECRET"),
			ServiceName:       envOr("FIGSCRAPE_SERVICE_NAME", "figscrape"),
			AdvertiseURL:      os.Getenv("FIGSCRAPE_ADVERTISE_URL"),
			HeartbeatInterval: envDurationOr("FIGSCRAPE_HEARTBEAT_INTERVAL", 30*time.Second),
		},
	}
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
