package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration (queue transport and event stream)
	RedisAddr   string
	RedisDB     int
	QueuePrefix string
	EventStream string

	// Memcache configuration (anti-bot block cache)
	MemcacheAddr string

	// Record store
	DatabaseDSN string

	// Result callback server
	ListenAddr     string
	CallbackSecret string

	// Marketplace
	BaseURL string

	// Browser configuration
	BrowserBin  string
	Headless    bool
	ProxyURL    string
	ProxyAuto   bool
	NavTimeout  time.Duration
	PollEvery   time.Duration
	SettleDelay time.Duration

	// Traversal limits
	MaxPages        int
	MaxProducts     int
	MinCardMatches  int
	MaxZeroCardRuns int

	// Worker pool lane concurrency
	SearchConcurrency  int
	ProductConcurrency int
	SellerConcurrency  int

	// Retry policy
	MaxAttempts  int
	BackoffBase  time.Duration
	BlockSeconds int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	navTimeout, _ := strconv.Atoi(getEnv("NAV_TIMEOUT_SECONDS", "30"))
	pollEvery, _ := strconv.Atoi(getEnv("PAGE_POLL_MILLIS", "500"))
	settle, _ := strconv.Atoi(getEnv("SETTLE_DELAY_MILLIS", "500"))
	maxPages, _ := strconv.Atoi(getEnv("MAX_PAGES", "10"))
	maxProducts, _ := strconv.Atoi(getEnv("MAX_PRODUCTS", "50"))
	minMatches, _ := strconv.Atoi(getEnv("MIN_CARD_MATCHES", "3"))
	zeroRuns, _ := strconv.Atoi(getEnv("MAX_ZERO_CARD_PAGES", "3"))
	searchConc, _ := strconv.Atoi(getEnv("SEARCH_CONCURRENCY", "3"))
	productConc, _ := strconv.Atoi(getEnv("PRODUCT_CONCURRENCY", "2"))
	sellerConc, _ := strconv.Atoi(getEnv("SELLER_CONCURRENCY", "2"))
	maxAttempts, _ := strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	backoffBase, _ := strconv.Atoi(getEnv("BACKOFF_BASE_SECONDS", "5"))
	blockSeconds, _ := strconv.Atoi(getEnv("BLOCK_SECONDS", "300"))

	return Config{
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            redisDB,
		QueuePrefix:        getEnv("QUEUE_PREFIX", "scrape:jobs"),
		EventStream:        getEnv("EVENT_STREAM", "scrape:events"),
		MemcacheAddr:       getEnv("MEMCACHE_ADDR", "localhost:11211"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "file:sip.db?_pragma=busy_timeout(5000)"),
		ListenAddr:         getEnv("LISTEN_ADDR", ":8090"),
		CallbackSecret:     getEnv("CALLBACK_SECRET", ""),
		BaseURL:            getEnv("MARKETPLACE_BASE_URL", "https://shopee.co.id"),
		BrowserBin:         getEnv("BROWSER_BIN", ""),
		Headless:           getEnv("BROWSER_HEADLESS", "true") != "false",
		ProxyURL:           getEnv("PROXY_URL", ""),
		ProxyAuto:          getEnv("PROXY_AUTO", "false") == "true",
		NavTimeout:         time.Duration(navTimeout) * time.Second,
		PollEvery:          time.Duration(pollEvery) * time.Millisecond,
		SettleDelay:        time.Duration(settle) * time.Millisecond,
		MaxPages:           maxPages,
		MaxProducts:        maxProducts,
		MinCardMatches:     minMatches,
		MaxZeroCardRuns:    zeroRuns,
		SearchConcurrency:  searchConc,
		ProductConcurrency: productConc,
		SellerConcurrency:  sellerConc,
		MaxAttempts:        maxAttempts,
		BackoffBase:        time.Duration(backoffBase) * time.Second,
		BlockSeconds:       blockSeconds,
		Environment:        getEnv("SIP_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}
	if c.MinCardMatches < 1 {
		return fmt.Errorf("MIN_CARD_MATCHES must be at least 1")
	}
	if c.Environment == "production" && c.CallbackSecret == "" {
		return fmt.Errorf("CALLBACK_SECRET is required in production")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
