package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"Console listen address"`
	Store     StoreConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Gzip      GzipConfig
	Graceful  GracefulConfig
}

// StoreConfig points at the remote product store API.
type StoreConfig struct {
	BaseURL string        `default:"https://fakestoreapi.com" usage:"Base URL of the product store API" flag:"store-url"`
	Timeout time.Duration `default:"15s" usage:"Per-request timeout towards the store, 0 disables" flag:"store-timeout"`
}

// SessionConfig controls console sessions.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Idle time after which a session is dropped"`
	CookieName    string        `default:"catalog_session" usage:"Session cookie name" flag:"cookie-name"`
	SecureCookie  bool          `default:"false" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
	LoadWait      time.Duration `default:"1500ms" usage:"How long a page waits for a running load" flag:"load-wait"`
	SweepInterval time.Duration `default:"1m" usage:"Interval of expired session eviction" flag:"sweep-interval"`
	MaxSessions   int           `default:"10000" usage:"Sessions held at most, the least recent is evicted beyond" flag:"max-sessions"`
	SharedTTL     time.Duration `default:"1m" usage:"How long the catalog served to API calls without a session is reused" flag:"shared-ttl"`
}

// RateLimitConfig controls the per-client sliding window rate limiter
// applied to console actions and to reads that carry no session.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max actions per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing on the JSON API.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GzipConfig controls response compression.
type GzipConfig struct {
	Enabled bool `default:"true" usage:"Compress responses" flag:"gzip"`
	Level   int  `default:"0" usage:"Compression level, 0 for default" flag:"gzip-level"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATALOG",
		Files:     []string{"config.yaml", "/etc/catalog-admin/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the PORT variable set by hosting platforms
// (Railway, Render, etc.) onto Addr unless Addr was configured explicitly.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.Store.BaseURL == "":
		return errors.New("store base URL is required")
	case c.Session.TTL <= 0:
		return errors.Errorf("session TTL must be positive, got %s", c.Session.TTL)
	case c.Session.MaxSessions < 0:
		return errors.Errorf("max sessions must not be negative, got %d", c.Session.MaxSessions)
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.New("rate limit max and window must be positive")
	case c.Gzip.Level < -2 || c.Gzip.Level > 9:
		return errors.Errorf("gzip level %d out of range", c.Gzip.Level)
	}
	return nil
}
