package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/model"
)

// CachedAdapter serves repeated queries from a cache. Only answers that
// found sources are cached so transient empty results are retried.
type CachedAdapter struct {
	Adapter
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedAdapter wraps a with c; ttl of zero uses the cache default
func NewCachedAdapter(a Adapter, c cache.Cache, ttl time.Duration) *CachedAdapter {
	return &CachedAdapter{Adapter: a, cache: c, ttl: ttl}
}

func (c *CachedAdapter) key(q model.SourceQuery) string {
	return cache.CacheKey(c.Name(), strings.ToLower(strings.TrimSpace(q.Statement)), q.Domain, strconv.Itoa(q.MaxResults))
}

// Query returns a cached result when present, else queries the wrapped adapter
func (c *CachedAdapter) Query(ctx context.Context, q model.SourceQuery) (model.SourceResult, error) {
	key := c.key(q)

	var cached model.SourceResult
	if cache.GetJSON(c.cache, key, &cached) {
		return cached, nil
	}

	result, err := c.Adapter.Query(ctx, q)
	if err != nil {
		return result, err
	}
	if len(result.Sources) > 0 {
		_ = cache.SetJSON(c.cache, key, result, c.ttl)
	}
	return result, nil
}

// QueryBatch answers cached queries from the cache and sends only the misses
// to the wrapped adapter, in one batch when it supports batching.
func (c *CachedAdapter) QueryBatch(ctx context.Context, queries []model.SourceQuery) ([]model.SourceResult, error) {
	results := make([]model.SourceResult, len(queries))
	var misses []model.SourceQuery
	var missIdx []int

	for i, q := range queries {
		if cache.GetJSON(c.cache, c.key(q), &results[i]) {
			continue
		}
		misses = append(misses, q)
		missIdx = append(missIdx, i)
	}
	if len(misses) == 0 {
		return results, nil
	}

	var fresh []model.SourceResult
	if batcher, ok := c.Adapter.(BatchQuerier); ok {
		out, err := batcher.QueryBatch(ctx, misses)
		if err != nil {
			return nil, err
		}
		if len(out) != len(misses) {
			return nil, fmt.Errorf("got %d results for %d queries", len(out), len(misses))
		}
		fresh = out
	} else {
		for _, q := range misses {
			r, err := c.Adapter.Query(ctx, q)
			if err != nil {
				return nil, err
			}
			fresh = append(fresh, r)
		}
	}

	for j, r := range fresh {
		results[missIdx[j]] = r
		if len(r.Sources) > 0 {
			_ = cache.SetJSON(c.cache, c.key(misses[j]), r, c.ttl)
		}
	}
	return results, nil
}
