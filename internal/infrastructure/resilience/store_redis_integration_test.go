//go:build integration

package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/gts/internal/domain/models"
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

func TestRedisStateStoreAgainstRealServer(t *testing.T) {
	client := startRedis(t)
	store, err := NewRedisStateStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	initial, err := store.Load(ctx, "lookup")
	require.NoError(t, err)
	assert.Equal(t, models.BreakerClosed, initial.State)
	assert.Zero(t, initial.Version)

	failed := initial.Fail(time.Now(), 1)
	ok, err := store.CompareAndSwap(ctx, "lookup", initial, failed)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := store.Load(ctx, "lookup")
	require.NoError(t, err)
	assert.Equal(t, models.BreakerOpen, stored.State)
	assert.Equal(t, failed.Version, stored.Version)

	// A writer holding the outdated record must lose.
	ok, err = store.CompareAndSwap(ctx, "lookup", initial, initial.Succeed(time.Now()))
	require.NoError(t, err)
	assert.False(t, ok)

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Contains(t, snapshot, "lookup")
	assert.Equal(t, models.BreakerOpen, snapshot["lookup"].State)
}

func TestRedisStateStoreContendedSwapElectsOneWinner(t *testing.T) {
	client := startRedis(t)
	store, err := NewRedisStateStore(client)
	require.NoError(t, err)
	ctx := context.Background()

	initial, err := store.Load(ctx, "probe")
	require.NoError(t, err)

	// Every goroutine starts from the same record, as concurrent instances
	// observing an expired open circuit would.
	const writers = 8
	var wg sync.WaitGroup
	wins := make(chan bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, swapErr := store.CompareAndSwap(ctx, "probe", initial, initial.ToHalfOpen())
			assert.NoError(t, swapErr)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one contender may claim the half-open probe")

	stored, err := store.Load(ctx, "probe")
	require.NoError(t, err)
	assert.Equal(t, models.BreakerHalfOpen, stored.State)
}
