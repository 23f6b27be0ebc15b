package storage

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// RedisChangeCache caches recently-applied encoded changes keyed by
// their hash, so a peer re-requesting a just-seen change (spec.md §6
// "getChanges") can be served without re-encoding it. Grounded on the teacher's nodestorage/v2/cache/redis.go
// (bson-marshaled payloads, prefixed keys, TTL-bounded Set), narrowed
// from a generic document cache to single change blobs.
type RedisChangeCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisChangeCache constructs a cache over client. ttl of 0 means no
// expiry.
func NewRedisChangeCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisChangeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisChangeCache{client: client, prefix: "crdtbackend:change:", ttl: ttl, logger: logger}
}

// Put caches the encoded change blob under hash.
func (c *RedisChangeCache) Put(ctx context.Context, hash string, blob []byte) error {
	encoded, err := bson.Marshal(struct {
		Blob []byte `bson:"blob"`
	}{Blob: blob})
	if err != nil {
		return errors.Wrapf(err, "marshaling change %s", hash)
	}
	if err := c.client.Set(ctx, c.key(hash), encoded, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "caching change %s", hash)
	}
	return nil
}

// Get returns the cached blob for hash, or ErrCacheMiss if absent.
func (c *RedisChangeCache) Get(ctx context.Context, hash string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss{Hash: hash}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading cached change %s", hash)
	}
	var payload struct {
		Blob []byte `bson:"blob"`
	}
	if err := bson.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrapf(err, "unmarshaling cached change %s", hash)
	}
	return payload.Blob, nil
}

func (c *RedisChangeCache) key(hash string) string {
	return c.prefix + hash
}

// ErrCacheMiss reports that hash is not present in the cache.
type ErrCacheMiss struct {
	Hash string
}

func (e ErrCacheMiss) Error() string {
	return "change not cached: " + e.Hash
}
