package lots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryVersionKey = "lots:summary:version"

// SummaryCache caches the stock summary in Redis behind a version counter.
// Mutating ledger operations bump the version instead of deleting keys, so
// stale entries simply age out with their TTL.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache instantiates the cache helper.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising it when missing.
func (c *SummaryCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, summaryVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, summaryVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates every cached summary by advancing the version.
func (c *SummaryCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, summaryVersionKey).Err()
}

// FetchJSON loads the cached summary or populates it using the loader.
func (c *SummaryCache) FetchJSON(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("lots: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return reencode(value, dest)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("lots:summary:%d", ver)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(encoded, dest)
}

func reencode(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
