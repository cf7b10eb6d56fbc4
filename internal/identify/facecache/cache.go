// Package facecache provides a bounded, TTL-evicting cache for biometric
// match results. Kiosks often capture the same face several times in a row
// (retakes, accidental double-taps); caching by sample digest avoids
// re-querying the vendor capability within a short window.
package facecache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"medkiosk/internal/identify/models"
)

// Cache is safe for concurrent use. It is owned by the identification
// service and never shared as ambient global state.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	maxSize int
	ttl     time.Duration
}

type entry struct {
	matches  []models.PatientMatch
	storedAt time.Time
}

func New(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Key digests a biometric sample into a cache key.
func Key(sample models.BiometricSample) string {
	sum := sha256.Sum256(sample.Data)
	return hex.EncodeToString(sum[:])
}

// Get returns cached matches for a key if present and fresh.
func (c *Cache) Get(key string, now time.Time) ([]models.PatientMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.matches, true
}

// Put stores matches for a key, evicting expired entries first and then the
// oldest entry if the cache is still at capacity.
func (c *Cache) Put(key string, matches []models.PatientMatch, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired(now)
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry{matches: matches, storedAt: now}
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictExpired must be called while holding c.mu.
func (c *Cache) evictExpired(now time.Time) {
	for key, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, key)
		}
	}
}

// evictOldest must be called while holding c.mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
