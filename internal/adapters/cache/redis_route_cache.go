package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"route-dispatch-service/internal/ports"
)

// RedisRouteCache is the Redis-backed gateway result cache. Entries carry a
// TTL and are replaced wholesale; nothing is mutated in place, so
// concurrent readers never observe a torn entry.
type RedisRouteCache struct {
	client *redis.Client
}

func NewRedisRouteCache(client *redis.Client) *RedisRouteCache {
	return &RedisRouteCache{client: client}
}

// GetRoute fetches a cached result. A missing or expired key is not an
// error; it reports ok=false.
func (c *RedisRouteCache) GetRoute(ctx context.Context, key string) (ports.RouteResult, bool, error) {
	if c.client == nil {
		return ports.RouteResult{}, false, errors.New("route cache: client is nil")
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.RouteResult{}, false, nil
	}
	if err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("get route cache %q: %w", key, err)
	}

	var res ports.RouteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("decode route cache %q: %w", key, err)
	}
	return res, true, nil
}

// PutRoute stores a result under the key with the given TTL.
func (c *RedisRouteCache) PutRoute(ctx context.Context, key string, res ports.RouteResult, ttl time.Duration) error {
	if c.client == nil {
		return errors.New("route cache: client is nil")
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode route cache %q: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("put route cache %q: %w", key, err)
	}
	return nil
}
