package config

import (
	"testing"
	"time"
)

func TestLoadRateLimitConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_CAPACITY", "RATE_LIMIT_REFILL_TOKENS",
		"RATE_LIMIT_REFILL_INTERVAL", "RATE_LIMIT_TTL", "RATE_LIMIT_KEY_STRATEGY",
		"RATE_LIMIT_PREFIX", "RATE_LIMIT_DEBUG",
	} {
		t.Setenv(k, "")
	}

	c := LoadRateLimitConfig()
	if !c.Enabled {
		t.Error("rate limiting should default on")
	}
	if c.Capacity != 60 || c.RefillTokens != 1 || c.RefillInterval != time.Second {
		t.Errorf("bucket defaults = %d/%d/%v", c.Capacity, c.RefillTokens, c.RefillInterval)
	}
	if c.TTL != 10*time.Minute {
		t.Errorf("TTL = %v, want 10m", c.TTL)
	}
	if c.KeyStrategy != "ip_user_route" || c.Prefix != "rl" {
		t.Errorf("key strategy/prefix = %q/%q", c.KeyStrategy, c.Prefix)
	}
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2m")
	t.Setenv("RATE_LIMIT_TTL", "1m")

	c := LoadRateLimitConfig()
	if c.Capacity != 1 || c.RefillTokens != 1 {
		t.Errorf("clamped bucket = %d/%d, want 1/1", c.Capacity, c.RefillTokens)
	}
	// TTL must cover several refill intervals.
	if want := 10 * time.Minute; c.TTL != want {
		t.Errorf("TTL = %v, want %v", c.TTL, want)
	}
}

func TestLoadRateLimitConfigParsesEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("RATE_LIMIT_CAPACITY", "120")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "500ms")
	t.Setenv("RATE_LIMIT_TTL", "30m")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "ip")
	t.Setenv("RATE_LIMIT_DEBUG", "true")

	c := LoadRateLimitConfig()
	if c.Enabled {
		t.Error("Enabled = true, want off")
	}
	if c.Capacity != 120 || c.RefillInterval != 500*time.Millisecond || c.TTL != 30*time.Minute {
		t.Errorf("parsed bucket = %d/%v/%v", c.Capacity, c.RefillInterval, c.TTL)
	}
	if c.KeyStrategy != "ip" || !c.Debug {
		t.Errorf("strategy/debug = %q/%v", c.KeyStrategy, c.Debug)
	}
}
