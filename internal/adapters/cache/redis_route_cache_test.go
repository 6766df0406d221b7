package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"route-dispatch-service/internal/adapters/cache"
	"route-dispatch-service/internal/ports"
)

func newTestCache(t *testing.T) (*cache.RedisRouteCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisRouteCache(client), mr
}

func TestRedisRouteCache_roundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	stored := ports.RouteResult{
		Legs: []ports.Leg{
			{DistanceMeters: 1200, DurationSeconds: 240},
			{DistanceMeters: 800, DurationSeconds: 150},
		},
		DistanceMeters:  2000,
		DurationSeconds: 390,
	}

	require.NoError(t, c.PutRoute(ctx, "route:v1;48.8708,2.3318;48.8867,2.3431", stored, time.Minute))

	got, ok, err := c.GetRoute(ctx, "route:v1;48.8708,2.3318;48.8867,2.3431")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stored, got)
}

func TestRedisRouteCache_missIsNotAnError(t *testing.T) {
	c, _ := newTestCache(t)

	_, ok, err := c.GetRoute(context.Background(), "route:v1;nowhere")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisRouteCache_entriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	res := ports.RouteResult{Legs: []ports.Leg{{DistanceMeters: 500, DurationSeconds: 90}}}
	require.NoError(t, c.PutRoute(ctx, "route:v1;short-lived", res, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, ok, err := c.GetRoute(ctx, "route:v1;short-lived")
	require.NoError(t, err)
	require.False(t, ok, "expired entry must read as a miss")
}
