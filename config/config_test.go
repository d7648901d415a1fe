package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "scrape:jobs", cfg.QueuePrefix)
	assert.Equal(t, "scrape:events", cfg.EventStream)
	assert.Equal(t, "https://shopee.co.id", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollEvery)
	assert.Equal(t, 3, cfg.SearchConcurrency)
	assert.Equal(t, 2, cfg.ProductConcurrency)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.BackoffBase)
	assert.Equal(t, 3, cfg.MinCardMatches)
	assert.Equal(t, 3, cfg.MaxZeroCardRuns)
	assert.True(t, cfg.Headless)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("MAX_PAGES", "25")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("PROXY_URL", "socks5://127.0.0.1:1080")

	cfg := LoadConfig()

	assert.Equal(t, "redis:6380", cfg.RedisAddr)
	assert.Equal(t, 25, cfg.MaxPages)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.ProxyURL)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.RedisAddr = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxAttempts = 0
	assert.Error(t, bad.Validate())

	prod := cfg
	prod.Environment = "production"
	prod.CallbackSecret = ""
	assert.Error(t, prod.Validate())

	prod.CallbackSecret = "s3cret"
	assert.NoError(t, prod.Validate())
}
