package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "reports:version"
	// BumpChannel carries version bumps between instances.
	BumpChannel = "pricing.bump"
)

// Cache stores report payloads in Redis under a global version. Pricing
// writes bump the version so every cached report goes stale at once.
// A nil Cache, or one without a client, always runs the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Version returns the current cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		// SETNX keeps a concurrent initialiser or bump intact.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	case err != nil:
		return 0, err
	case ver <= 0:
		return 1, c.client.Set(ctx, cacheVersionKey, 1, 0).Err()
	}
	return ver, nil
}

// BuildKey joins parts and appends the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if !c.enabled() {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON decodes the cached value at key into dest, or runs loader and
// stores its result. Cache read or write failures never fail the request.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (hit bool, err error) {
	if loader == nil {
		return false, errors.New("reports cache: loader required")
	}
	if c.enabled() {
		if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
			if json.Unmarshal(payload, dest) == nil {
				return true, nil
			}
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c.enabled() {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates every cached report and announces the new version.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation follows version bumps published by other instances
// until ctx is done. The version never moves backwards.
func (c *Cache) ListenForInvalidation(ctx context.Context) error {
	if !c.enabled() {
		<-ctx.Done()
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	defer func() { _ = pubsub.Close() }()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ver, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				continue
			}
			current, err := c.Version(ctx)
			if err != nil {
				return err
			}
			if ver > current {
				if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
					return err
				}
			}
		}
	}
}

func keyMargins(f MarginFilter) []string {
	return []string{"reports", "margins", f.Category, f.Subcategory, f.Brand,
		strings.ToLower(f.Search), f.SortField, f.SortDir, strconv.Itoa(f.Limit)}
}

func keyProfitability() []string {
	return []string{"reports", "profitability"}
}
