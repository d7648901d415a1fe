package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

// Requires a running memcached instance; skipped otherwise.
func TestMemcacheBlockWindow(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	_, err := mc.client.Get("probe")
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		t.Skip("memcached is not available, skipping test")
	}

	err = mc.Set("blocked", []byte("1"), 2*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("blocked")
	assert.NoError(t, err)
	assert.Equal(t, "1", string(value))

	err = mc.Delete("blocked")
	assert.NoError(t, err)

	// The window is closed now; a lookup misses.
	_, err = mc.Get("blocked")
	assert.Error(t, err)

	// Closing an already-closed window is fine.
	assert.NoError(t, mc.Delete("blocked"))
}
