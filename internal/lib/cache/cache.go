// Package cache provides a Redis backed read-through cache for user
// records.
package cache

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/deppfellow/users-api/internal/lib/codec"
	"github.com/deppfellow/users-api/internal/metrics"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every cached user key.
const KeyPrefix = "users:"

// maxEntryBytes bounds a cached entry when decoding it.
const maxEntryBytes = 1 << 20

// minVersionTTL bounds how long a version counter outlives its last write.
const minVersionTTL = 24 * time.Hour

// UserCache caches user records by canonical id.
//
// Every write to a user bumps its version. A reader takes the version
// before reading the store and passes it to Set, which only stores the
// record when no write happened in between.
type UserCache interface {
	Get(ctx context.Context, id string) (model.User, bool, error)
	Version(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, user model.User, version int64) error
	Delete(ctx context.Context, id string) error
}

// RedisUserCache is a UserCache stored in Redis as JSON strings.
type RedisUserCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ UserCache = (*RedisUserCache)(nil)

// NewRedisUserCache creates a RedisUserCache. Entries expire after ttl;
// a zero ttl keeps them until invalidated.
func NewRedisUserCache(client *redis.Client, ttl time.Duration) *RedisUserCache {
	return &RedisUserCache{client: client, ttl: ttl}
}

// Key returns the Redis key of a user id.
func Key(id string) string {
	return KeyPrefix + id
}

// VersionKey returns the Redis key holding the write version of a user id.
func VersionKey(id string) string {
	return Key(id) + ":version"
}

// setIfVersion stores ARGV[2] under KEYS[1] only while KEYS[2] still
// holds ARGV[1]. A missing version reads as 0.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// Get returns the cached user. A miss is not an error.
func (c *RedisUserCache) Get(ctx context.Context, id string) (model.User, bool, error) {
	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, err
	}

	// Decoded like a request body so integral numbers stay int64.
	attrs, err := codec.DecodeObject(bytes.NewReader(data), maxEntryBytes)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false, err
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return model.User(attrs), true, nil
}

// Version returns the current write version of id, 0 when it was never
// written.
func (c *RedisUserCache) Version(ctx context.Context, id string) (int64, error) {
	v, err := c.client.Get(ctx, VersionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores user under its id unless its version moved past version.
func (c *RedisUserCache) Set(ctx context.Context, user model.User, version int64) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	id := user.ID()
	stored, err := setIfVersion.Run(ctx, c.client,
		[]string{Key(id), VersionKey(id)},
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if stored == 0 {
		metrics.CacheLookups.WithLabelValues("stale").Inc()
	}
	return nil
}

// Delete bumps the version of id and drops the cached user, so a read
// that started before the write cannot store its stale copy.
func (c *RedisUserCache) Delete(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, VersionKey(id))
		pipe.Expire(ctx, VersionKey(id), c.versionTTL())
		pipe.Del(ctx, Key(id))
		return nil
	})
	return err
}

// versionTTL keeps a version alive well past any entry it guards.
func (c *RedisUserCache) versionTTL() time.Duration {
	if ttl := 2 * c.ttl; ttl > minVersionTTL {
		return ttl
	}
	return minVersionTTL
}

// Nop is a UserCache that never stores anything. It is used when Redis
// is not configured.
type Nop struct{}

var _ UserCache = Nop{}

func (Nop) Get(context.Context, string) (model.User, bool, error) { return nil, false, nil }

func (Nop) Version(context.Context, string) (int64, error) { return 0, nil }

func (Nop) Set(context.Context, model.User, int64) error { return nil }

func (Nop) Delete(context.Context, string) error { return nil }
