package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TotalsLoader reads fresh totals for the given customers from the store.
type TotalsLoader func(ctx context.Context, customerIDs []int64) (map[int64]Totals, error)

// TotalsCache keeps per-customer totals in Redis. Each customer has a version
// counter; entries are keyed by that version and Invalidate bumps it, so a
// value computed before a write is never served after it.
type TotalsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewTotalsCache returns nil when caching is disabled; a nil cache reads through.
func NewTotalsCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *TotalsCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TotalsCache{client: client, ttl: ttl, logger: logger}
}

func versionKey(customerID int64) string {
	return fmt.Sprintf("ledger:totals:%d:version", customerID)
}

func totalsKey(customerID, version int64) string {
	return fmt.Sprintf("ledger:totals:%d:v%d", customerID, version)
}

// Load returns totals for every id, serving what it can from Redis and
// filling the rest through load. Redis failures fall back to load.
func (c *TotalsCache) Load(ctx context.Context, ids []int64, load TotalsLoader) (map[int64]Totals, error) {
	if c == nil || len(ids) == 0 {
		return load(ctx, ids)
	}
	versions, err := c.versions(ctx, ids)
	if err != nil {
		return load(ctx, ids)
	}

	out := make(map[int64]Totals, len(ids))
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = totalsKey(id, versions[id])
	}
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return load(ctx, ids)
	}
	var missing []int64
	for i, id := range ids {
		raw, ok := cached[i].(string)
		if !ok {
			missing = append(missing, id)
			continue
		}
		var t Totals
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			missing = append(missing, id)
			continue
		}
		out[id] = t
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.fill(ctx, missing, versions, load)
	if err != nil {
		return nil, err
	}
	for id, t := range fresh {
		out[id] = t
	}
	return out, nil
}

// fill loads missing totals and stores them under the versions read before
// loading. A concurrent Invalidate moves readers to a newer version, leaving
// anything written here unreachable.
func (c *TotalsCache) fill(ctx context.Context, ids []int64, versions map[int64]int64, load TotalsLoader) (map[int64]Totals, error) {
	var fresh map[int64]Totals
	if len(ids) == 1 {
		key := totalsKey(ids[0], versions[ids[0]])
		v, err, _ := c.group.Do(key, func() (any, error) {
			return load(ctx, ids)
		})
		if err != nil {
			return nil, err
		}
		fresh = v.(map[int64]Totals)
	} else {
		var err error
		fresh, err = load(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	pipe := c.client.Pipeline()
	for _, id := range ids {
		raw, err := json.Marshal(fresh[id])
		if err != nil {
			continue
		}
		pipe.Set(ctx, totalsKey(id, versions[id]), raw, c.ttl)
	}
	_, _ = pipe.Exec(ctx)
	return fresh, nil
}

func (c *TotalsCache) versions(ctx context.Context, ids []int64) (map[int64]int64, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = versionKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(ids))
	for i, id := range ids {
		raw, ok := vals[i].(string)
		if !ok {
			out[id] = 0
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger cache: bad version for customer %d: %w", id, err)
		}
		out[id] = v
	}
	return out, nil
}

// Invalidate bumps the customer's version so cached totals are skipped. When
// the bump fails the entry under the current version is deleted instead.
func (c *TotalsCache) Invalidate(ctx context.Context, customerID int64) error {
	if c == nil {
		return nil
	}
	err := c.client.Incr(ctx, versionKey(customerID)).Err()
	if err == nil {
		return nil
	}
	err = fmt.Errorf("ledger cache: invalidate customer %d: %w", customerID, err)
	if dropErr := c.drop(ctx, customerID); dropErr != nil {
		c.logger.Warn("ledger totals may be stale until ttl", slog.Int64("customer_id", customerID), slog.Any("error", errors.Join(err, dropErr)))
		return err
	}
	c.logger.Warn("ledger version bump failed, cached totals dropped", slog.Int64("customer_id", customerID), slog.Any("error", err))
	return err
}

func (c *TotalsCache) drop(ctx context.Context, customerID int64) error {
	version, err := c.client.Get(ctx, versionKey(customerID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return c.client.Del(ctx, totalsKey(customerID, version)).Err()
}
