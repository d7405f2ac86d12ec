package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "company-analytics:search:"

// Cached serves repeated queries from Redis. Redis failures fall through to
// the wrapped Searcher.
type Cached struct {
	next Searcher
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCached wraps next with a Redis cache whose entries expire after ttl.
func NewCached(next Searcher, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl}
}

func cacheKey(query string, opts Options) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%t", query, opts.Depth, opts.MaxResults, opts.IncludeAnswer)))
	return cachePrefix + hex.EncodeToString(sum[:])
}

func (c *Cached) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	key := cacheKey(query, opts)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var resp Response
		if jerr := json.Unmarshal(raw, &resp); jerr == nil {
			return &resp, nil
		}
		slog.Warn("search cache: discarding corrupt entry", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("search cache: get failed", "error", err)
	}

	resp, err := c.next.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	// Empty answers are not cached so a later search can pick up new data.
	if len(resp.Results) == 0 {
		return resp, nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return resp, nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.Warn("search cache: set failed", "error", err)
	}
	return resp, nil
}
