package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService backs the block cache with a shared memcached instance, so
// a block window opened by one worker process is visible to all of them.
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService connects to memcached at serverAddr.
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{client: memcache.New(serverAddr)}
}

// Get returns the stored value. A miss means no window is open for the key.
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return item.Value, nil
}

// Set stores value under key for the given window. Memcached expirations
// have whole-second granularity, so the duration is rounded down.
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	item := &memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration / time.Second),
	}
	if err := m.client.Set(item); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete closes a window early. Deleting an absent key is not an error.
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}
