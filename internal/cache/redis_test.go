package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newRedisCache(client, slog.Default())
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func TestRedisCacheSetGet(t *testing.T) {
	_, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte(`{"a":1}`), time.Minute)
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != `{"a":1}` {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("expected miss")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 || stats.CurrentSize != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected key to expire")
	}
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	mr, c := setupMiniRedis(t)
	ctx := context.Background()

	for i, k := range []string{"recipecost:1:recipes/", "recipecost:1:recipes/7/", "recipecost:1:products/", "recipecost:2:recipes/"} {
		c.Set(ctx, k, []byte{byte('a' + i)}, time.Minute)
	}

	n, err := c.DeletePrefix(ctx, "recipecost:1:recipes/")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if !mr.Exists("recipecost:1:products/") || !mr.Exists("recipecost:2:recipes/") {
		t.Error("unrelated keys were removed")
	}
}

func TestRedisCacheUnavailable(t *testing.T) {
	mr, c := setupMiniRedis(t)
	mr.Close()

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("expected miss when redis is down")
	}
	if _, err := c.DeletePrefix(context.Background(), "k"); err == nil {
		t.Error("expected error when redis is down")
	}
}

func TestNewRedisPingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedis(context.Background(), RedisConfig{Addr: addr}, slog.Default()); err == nil {
		t.Error("expected error connecting to closed server")
	}
}
