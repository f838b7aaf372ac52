package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	deleted []string
	err     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	value, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, key := range keys {
		delete(f.values, key)
		f.deleted = append(f.deleted, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]any
	err := repo.Get(ctx, "timetable:group:g1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "timetable:group:g1", map[string]any{"10A": []any{}}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "timetable:group:g1"))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	client := newFakeRedis()
	repo := newCacheRepository(client, nil, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "timetable:group:g1", map[string]int{"attempts": 3}, time.Minute))
	assert.Equal(t, `{"attempts":3}`, client.values["timetable:group:g1"])
	assert.Equal(t, time.Minute, client.ttls["timetable:group:g1"])

	var dest map[string]int
	require.NoError(t, repo.Get(ctx, "timetable:group:g1", &dest))
	assert.Equal(t, 3, dest["attempts"])

	require.NoError(t, repo.Delete(ctx, "timetable:group:g1"))
	err := repo.Get(ctx, "timetable:group:g1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositoryDropsUndecodableEntry(t *testing.T) {
	client := newFakeRedis()
	client.values["timetable:job:j1"] = "{not json"
	repo := newCacheRepository(client, nil, nil)

	var dest map[string]any
	err := repo.Get(context.Background(), "timetable:job:j1", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Equal(t, []string{"timetable:job:j1"}, client.deleted)
}

func TestCacheRepositoryPropagatesRedisErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection reset")
	repo := newCacheRepository(client, nil, nil)
	ctx := context.Background()

	var dest map[string]any
	err := repo.Get(ctx, "k", &dest)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.ErrorContains(t, repo.Set(ctx, "k", 1, 0), "connection reset")
	assert.ErrorContains(t, repo.Delete(ctx, "k"), "connection reset")
}

func TestCacheRepositoryCloseCallsCloser(t *testing.T) {
	closed := false
	repo := newCacheRepository(newFakeRedis(), func() error { closed = true; return nil }, nil)
	require.NoError(t, repo.Close())
	assert.True(t, closed)
}
