package voice

import (
	"context"
	"sync"
	"time"

	"draftwire/internal/models"
)

const (
	defaultCacheTTL     = 15 * time.Minute
	defaultCacheEntries = 1024
)

type cacheEntry struct {
	profile   models.Profile
	fetchedAt time.Time
}

// Cache is a bounded TTL cache over a DataService. Negative results are
// not cached: a profile created after a miss should be visible promptly.
type Cache struct {
	inner      DataService
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCache(inner DataService, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	return &Cache{
		inner:      inner,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
	}
}

func (c *Cache) Profile(ctx context.Context, userID string) (models.Profile, error) {
	c.mu.Lock()
	if entry, ok := c.entries[userID]; ok && time.Since(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.profile, nil
	}
	c.mu.Unlock()

	profile, err := c.inner.Profile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[userID] = cacheEntry{profile: profile, fetchedAt: time.Now()}
	c.mu.Unlock()

	return profile, nil
}

// Invalidate drops a user's cached profile, forcing the next read through.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.fetchedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.fetchedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
