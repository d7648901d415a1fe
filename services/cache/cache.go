package cache

import (
	"time"
)

// CacheService is the shared short-lived cache. Its main user is the scraper,
// which parks a block marker here after tripping anti-bot detection so every
// worker process backs off together.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
