package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maheshrc27/postpulse/internal/metrics"
	"github.com/rs/zerolog"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	payload    any
	insertedAt time.Time
}

// MetricsCache is a process-local TTL cache in front of the engagement store.
// It is created once per process and passed by pointer to every component that
// reads through it or needs to invalidate it. Nothing survives a restart.
type MetricsCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewMetricsCache(ttl time.Duration, logger zerolog.Logger) *MetricsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MetricsCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With().Str("component", "metrics_cache").Logger(),
	}
}

// Get returns the payload stored under key while it is younger than the TTL.
func (c *MetricsCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.insertedAt) >= c.ttl {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return e.payload, true
}

// Put stores payload under key, replacing any previous entry.
func (c *MetricsCache) Put(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{payload: payload, insertedAt: c.now()}
}

func (c *MetricsCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	c.logger.Debug().Strs("keys", keys).Msg("invalidated cache keys")
}

// InvalidatePrefix drops every key starting with prefix and returns how many were removed.
func (c *MetricsCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Sweep removes expired entries.
func (c *MetricsCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) >= c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	if n > 0 {
		c.logger.Debug().Int("removed", n).Int("remaining", len(c.entries)).Msg("swept expired cache entries")
	}
	return n
}

func (c *MetricsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func EngagementKey(postIDX string) string {
	return "engagement_" + postIDX
}

func EngagementLocalKey(postID string) string {
	return "engagement_local_" + postID
}

func AllEngagementsKey(userID int64, limit int) string {
	return fmt.Sprintf("%s%d", AllEngagementsPrefix(userID), limit)
}

// AllEngagementsPrefix covers the aggregate keys of a user for every limit.
func AllEngagementsPrefix(userID int64) string {
	return fmt.Sprintf("all_engagements_%d_", userID)
}
