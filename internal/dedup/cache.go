package dedup

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/datnguyendev/social-watch-discord-bot/internal/domain"
)

const sweepProbability = 0.1

// Cache suppresses duplicate announcements of the same (subscription, post)
// pair for a bounded TTL. Entries older than the TTL may be evicted and the
// pair reannounced; that is a deliberate trade against unbounded growth.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	sample  func() float64
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
		sample:  rand.Float64,
	}
}

func key(subscriptionID int64, uri string) string {
	return fmt.Sprintf("%d:%s", subscriptionID, domain.NormalizeURI(uri))
}

// Seen reports whether the pair was announced within the TTL.
func (c *Cache) Seen(subscriptionID int64, uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.entries[key(subscriptionID, uri)]
	if !ok {
		return false
	}
	if c.now().Sub(at) > c.ttl {
		delete(c.entries, key(subscriptionID, uri))
		return false
	}
	return true
}

// Mark records the pair as announced. Roughly one write in ten also sweeps
// expired entries.
func (c *Cache) Mark(subscriptionID int64, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(subscriptionID, uri)] = c.now()
	if c.sample() < sweepProbability {
		c.sweepLocked()
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for k, at := range c.entries {
		if at.Before(cutoff) {
			delete(c.entries, k)
		}
	}
}
