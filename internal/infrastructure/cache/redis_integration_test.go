//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/gts/pkg/logger"
)

// startRedis runs a disposable Redis container and returns a connected
// client. The test is skipped when no Docker daemon is reachable.
func startRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not reachable: %v", err)
	}

	resource, err := pool.Run("redis", "7-alpine", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	var client *redis.Client
	require.NoError(t, pool.Retry(func() error {
		client = redis.NewClient(&redis.Options{
			Addr: "localhost:" + resource.GetPort("6379/tcp"),
		})
		return client.Ping(context.Background()).Err()
	}))
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisCacheTierExpiryAgainstRealServer(t *testing.T) {
	client := startRedis(t)
	c, err := NewRedisCache(client, Config{
		PrimaryTTL: 500 * time.Millisecond,
		StaleTTL:   3 * time.Second,
	}, logger.NewNoopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "c1", sampleSecret("c1")))

	got, found := c.Get(ctx, "c1")
	require.True(t, found)
	assert.Equal(t, "key-c1", got.KeyID)

	// Let the primary tier lapse while the stale tier survives.
	time.Sleep(800 * time.Millisecond)

	_, found = c.Get(ctx, "c1")
	assert.False(t, found, "primary entry must expire after its TTL")

	stale, found := c.GetStale(ctx, "c1")
	require.True(t, found, "stale entry must outlive the primary tier")
	assert.Equal(t, "secret-material-c1", stale.Secret)
}

func TestRedisCacheClearAgainstRealServer(t *testing.T) {
	client := startRedis(t)
	c, err := NewRedisCache(client, DefaultConfig(), logger.NewNoopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	// Enough entries to force several SCAN batches.
	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("c%d", i), sampleSecret(fmt.Sprintf("c%d", i))))
	}

	require.NoError(t, c.Clear(ctx))

	keys, err := client.Keys(ctx, "secret:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys, "both tiers must be empty after Clear")

	// Unrelated keys in the shared database stay untouched.
	require.NoError(t, client.Set(ctx, "other:key", "v", 0).Err())
	require.NoError(t, c.Clear(ctx))
	val, err := client.Get(ctx, "other:key").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}
