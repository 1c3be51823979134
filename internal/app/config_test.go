package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Addr:      defaultAddr,
		Store:     StoreConfig{BaseURL: "https://fakestoreapi.com", Timeout: 15 * time.Second},
		Session:   SessionConfig{TTL: time.Minute},
		RateLimit: RateLimitConfig{Max: 10, Window: time.Minute},
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no store", mutate: func(c *Config) { c.Store.BaseURL = "" }, wantErr: "store base URL is required"},
		{name: "no ttl", mutate: func(c *Config) { c.Session.TTL = 0 }, wantErr: "session TTL must be positive"},
		{name: "negative max sessions", mutate: func(c *Config) { c.Session.MaxSessions = -1 }, wantErr: "max sessions"},
		{name: "no rate window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "rate limit"},
		{name: "gzip level", mutate: func(c *Config) { c.Gzip.Level = 12 }, wantErr: "gzip level 12"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestConfig_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg := validConfig()
	cfg.applyPlatformDefaults()
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)

	cfg.Addr = "127.0.0.1:7000"
	cfg.applyPlatformDefaults()
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr, "explicit address wins")
}
