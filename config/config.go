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
	Pool      PoolConfig
	Engine    EngineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the diagnostic HTTP server.
type ServerConfig struct {
	// Addr is the listen address for the read-only diagnostic API.
	// Empty disables the HTTP server entirely (stdio-only operation).
	Addr string

	// Mode is the gin mode: "debug", "release", "test".
	Mode string // default: "release"

	// ShutdownTimeout bounds the graceful HTTP shutdown.
	ShutdownTimeout time.Duration // default: 5s
}

// PoolConfig controls the browser session pool.
type PoolConfig struct {
	// EngineKind selects the default browser engine for new sessions:
	// "chromium", "firefox" or "webkit".
	EngineKind string // default: "chromium"

	// Headless controls whether browsers run without a visible UI.
	Headless bool // default: true

	// MaxSessions is the upper bound on concurrently live sessions.
	MaxSessions int // default: 10

	// DefaultTimeout is the per-operation timeout applied when a session's
	// operation does not override it.
	DefaultTimeout time.Duration // default: 30s

	// ViewportWidth/ViewportHeight are applied to new sessions unless
	// overridden at creation.
	ViewportWidth  int // default: 1280
	ViewportHeight int // default: 720

	// IdleTimeout expires Ready sessions with no activity for this long.
	// Zero disables idle expiry.
	IdleTimeout time.Duration // default: 0 (off)

	// CleanupConcurrency bounds the shutdown teardown fan-out.
	CleanupConcurrency int // default: 4

	// ShutdownTimeout bounds the total wait for session cleanup on shutdown.
	ShutdownTimeout time.Duration // default: 30s

	// BlockedResources lists resource types aborted on every page the pool
	// creates ("image", "stylesheet", "font", "media", "script").
	// Empty blocks nothing.
	BlockedResources []string
}

// EngineConfig controls the engine runtime.
type EngineConfig struct {
	// InstallOnStart downloads browser binaries before starting the runtime.
	InstallOnStart bool // default: false
}

// AuthConfig controls API key authentication on the diagnostic API.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the diagnostic API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// WebhookConfig controls session lifecycle event delivery.
type WebhookConfig struct {
	// URL receives lifecycle events as signed JSON POSTs. Empty disables delivery.
	URL string

	// Secret signs event payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            os.Getenv("BROWSERD_HTTP_ADDR"),
			Mode:            envOr("BROWSERD_MODE", "release"),
			ShutdownTimeout: envDurationOr("BROWSERD_HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Pool: PoolConfig{
			EngineKind:         envOr("BROWSERD_ENGINE", "chromium"),
			Headless:           envBoolOr("BROWSERD_HEADLESS", true),
			MaxSessions:        envIntOr("BROWSERD_MAX_SESSIONS", 10),
			DefaultTimeout:     envDurationOr("BROWSERD_DEFAULT_TIMEOUT", 30*time.Second),
			ViewportWidth:      envIntOr("BROWSERD_VIEWPORT_WIDTH", 1280),
			ViewportHeight:     envIntOr("BROWSERD_VIEWPORT_HEIGHT", 720),
			IdleTimeout:        envDurationOr("BROWSERD_IDLE_TIMEOUT", 0),
			CleanupConcurrency: envIntOr("BROWSERD_CLEANUP_CONCURRENCY", 4),
			ShutdownTimeout:    envDurationOr("BROWSERD_SHUTDOWN_TIMEOUT", 30*time.Second),
			BlockedResources:   envSliceOr("BROWSERD_BLOCKED_RESOURCES", nil),
		},
		Engine: EngineConfig{
			InstallOnStart: envBoolOr("BROWSERD_INSTALL_BROWSERS", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BROWSERD_AUTH_ENABLED", false),
			APIKeys: envSliceOr("BROWSERD_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BROWSERD_RATE_RPS", 5.0),
			Burst:             envIntOr("BROWSERD_RATE_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("BROWSERD_WEBHOOK_URL"),
			Secret: os.Getenv("BROWSERD_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("BROWSERD_LOG_LEVEL", "info"),
			Format: envOr("BROWSERD_LOG_FORMAT", "json"),
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
