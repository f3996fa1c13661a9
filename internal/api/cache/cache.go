// Package cache keeps search results in Redis. Keys embed the snapshot
// version, so a rebuild makes older entries unreachable even before they are
// invalidated or expire.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/redis"
)

const keyPrefix = "problems:search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type SearchCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps backend. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *SearchCache {
	return &SearchCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "search-cache"),
	}
}

func (c *SearchCache) Get(ctx context.Context, version uint64, q string, limit int) ([]query.SearchHit, bool) {
	key := buildKey(version, q, limit)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var hits []query.SearchHit
	if err := json.Unmarshal([]byte(data), &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return hits, true
}

func (c *SearchCache) Set(ctx context.Context, version uint64, q string, limit int, hits []query.SearchHit) {
	key := buildKey(version, q, limit)
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached hits or runs compute once per key across
// concurrent callers. The bool reports a cache hit.
func (c *SearchCache) GetOrCompute(
	ctx context.Context,
	version uint64,
	q string,
	limit int,
	compute func() []query.SearchHit,
) ([]query.SearchHit, bool) {
	if hits, ok := c.Get(ctx, version, q, limit); ok {
		return hits, true
	}
	key := buildKey(version, q, limit)
	val, _, _ := c.group.Do(key, func() (any, error) {
		hits := compute()
		c.Set(ctx, version, q, limit, hits)
		return hits, nil
	})
	return val.([]query.SearchHit), false
}

// Invalidate deletes every cached search.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *SearchCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *SearchCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *SearchCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(version uint64, q string, limit int) string {
	raw := fmt.Sprintf("%s|limit=%d", normalize.ForComparison(q), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%sv%d:%x", keyPrefix, version, hash[:16])
}
