package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisClient connects to a local Redis instance and skips the test
// if none is reachable, matching the teacher's
// nodestorage/v2/cache/redis_test.go "skipIfNoRedis" idiom.
func setupRedisClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping redis test, no reachable redis: %v", err)
	}

	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup
}

func TestRedisChangeCachePutGetRoundTrip(t *testing.T) {
	client, cleanup := setupRedisClient(t)
	defer cleanup()

	cache := NewRedisChangeCache(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "hash-1", []byte("change-blob")))

	blob, err := cache.Get(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("change-blob"), blob)
}

func TestRedisChangeCacheGetMissReturnsCacheMiss(t *testing.T) {
	client, cleanup := setupRedisClient(t)
	defer cleanup()

	cache := NewRedisChangeCache(client, time.Minute, nil)
	_, err := cache.Get(context.Background(), "never-cached")
	require.Error(t, err)
	assert.ErrorAs(t, err, new(ErrCacheMiss))
}
