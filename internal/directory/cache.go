package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/barberfinder/internal/model"
)

// DefaultCacheKey is the Redis key holding the cached provider list.
const DefaultCacheKey = "barberfinder:providers"

// cacheBackend is the subset of redis.Cmdable the cache uses.
type cacheBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cached serves List from Redis and refills from the wrapped directory on a
// miss. Redis failures fall through to the wrapped directory.
type Cached struct {
	next Directory
	rdb  cacheBackend
	key  string
	ttl  time.Duration
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewCached wraps next. A nil rdb disables caching and returns next as is.
func NewCached(next Directory, rdb cacheBackend, ttl time.Duration) Directory {
	if rdb == nil {
		return next
	}
	if c, ok := rdb.(*redis.Client); ok && c == nil {
		return next
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{next: next, rdb: rdb, key: DefaultCacheKey, ttl: ttl}
}

func (c *Cached) List(ctx context.Context) ([]model.Provider, error) {
	log := zap.L().With(zap.String("component", "directory.cache"))

	raw, err := c.rdb.Get(ctx, c.key).Result()
	switch {
	case err == nil:
		var ps []model.Provider
		uerr := json.Unmarshal([]byte(raw), &ps)
		if uerr == nil {
			return ps, nil
		}
		log.Warn("directory: discarding undecodable cache entry", zap.Error(uerr))
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("directory: cache read failed", zap.Error(err))
	}

	ps, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(ps)
	if err != nil {
		return nil, eris.Wrap(err, "directory: marshal cache entry")
	}
	if err := c.rdb.Set(ctx, c.key, string(b), c.ttl).Err(); err != nil {
		log.Warn("directory: cache write failed", zap.Error(err))
	}
	return ps, nil
}

// Invalidate drops the cached list.
func (c *Cached) Invalidate(ctx context.Context) error {
	return eris.Wrap(c.rdb.Del(ctx, c.key).Err(), "directory: cache invalidate")
}
