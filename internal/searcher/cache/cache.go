// Package cache memoises search results in Redis. Keys embed the build id of
// the index that produced the result, so a swapped-in index never serves a
// result computed against its predecessor.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/catalog/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog/internal/searcher/scorer"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// QueryCache is safe for concurrent use. A nil Store disables storage but
// still collapses identical concurrent queries.
type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("query-cache"),
	}
}

// Enabled reports whether results are stored, as opposed to only collapsing
// concurrent identical queries.
func (c *QueryCache) Enabled() bool {
	return c != nil && c.store != nil
}

func (c *QueryCache) Get(ctx context.Context, buildID, query string, k int) (*scorer.Result, bool) {
	if c.store == nil {
		return nil, false
	}
	key := BuildKey(buildID, query, k)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result scorer.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, buildID, query string, k int, result *scorer.Result) {
	if c.store == nil {
		return
	}
	key := BuildKey(buildID, query, k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or runs compute once for all
// concurrent callers asking the same question. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	buildID, query string,
	k int,
	compute func() (*scorer.Result, error),
) (*scorer.Result, bool, error) {
	if result, ok := c.Get(ctx, buildID, query, k); ok {
		return result, true, nil
	}
	key := BuildKey(buildID, query, k)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, buildID, query, k, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*scorer.Result), false, nil
}

// Invalidate drops every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey maps queries that tokenize to the same term set onto one key.
func BuildKey(buildID, query string, k int) string {
	raw := fmt.Sprintf("%s:k=%d", normalizeQuery(query), k)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, buildID, hash[:16])
}

func normalizeQuery(query string) string {
	terms := tokenizer.Distinct(query)
	sort.Strings(terms)
	return strings.Join(terms, ",")
}
