package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/barberfinder/internal/model"
)

// fakeRedis is an in-memory cacheBackend.
type fakeRedis struct {
	data    map[string]string
	ttl     time.Duration
	failGet bool
	failSet bool
	gets    int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	if f.failSet {
		return redis.NewStatusResult("", errors.New("read only replica"))
	}
	f.data[key] = value.(string)
	f.ttl = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	n := 0
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(int64(n), nil)
}

type countingDirectory struct {
	providers []model.Provider
	err       error
	calls     int
}

func (c *countingDirectory) List(context.Context) ([]model.Provider, error) {
	c.calls++
	return c.providers, c.err
}

func TestCached_MissThenHit(t *testing.T) {
	rdb := newFakeRedis()
	next := &countingDirectory{providers: sampleProviders()}
	d := NewCached(next, rdb, 30*time.Second)

	ps, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleProviders(), ps)
	assert.Equal(t, 30*time.Second, rdb.ttl)

	ps, err = d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleProviders(), ps)
	assert.Equal(t, 1, next.calls)
}

func TestCached_Invalidate(t *testing.T) {
	rdb := newFakeRedis()
	next := &countingDirectory{providers: sampleProviders()}
	d := NewCached(next, rdb, 0).(*Cached)
	assert.Equal(t, time.Minute, d.ttl)

	_, err := d.List(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Invalidate(context.Background()))
	_, err = d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCached_RedisFailuresFallThrough(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failGet, rdb.failSet = true, true
	next := &countingDirectory{providers: sampleProviders()}
	d := NewCached(next, rdb, time.Minute)

	for i := 0; i < 2; i++ {
		ps, err := d.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, ps, 2)
	}
	assert.Equal(t, 2, next.calls)
}

func TestCached_CorruptEntryRefilled(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data[DefaultCacheKey] = "{not json"
	next := &countingDirectory{providers: sampleProviders()}

	ps, err := NewCached(next, rdb, time.Minute).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ps, 2)
	assert.NotEqual(t, "{not json", rdb.data[DefaultCacheKey])
}

func TestCached_NextErrorNotCached(t *testing.T) {
	rdb := newFakeRedis()
	next := &countingDirectory{err: errors.New("db down")}

	_, err := NewCached(next, rdb, time.Minute).List(context.Background())
	require.Error(t, err)
	assert.Empty(t, rdb.data)
}

func TestNewCached_NilBackend(t *testing.T) {
	next := &countingDirectory{}
	assert.Same(t, next, NewCached(next, nil, time.Minute))

	var client *redis.Client
	assert.Same(t, next, NewCached(next, client, time.Minute))
	assert.Nil(t, OpenRedis("", "", 0))
}
