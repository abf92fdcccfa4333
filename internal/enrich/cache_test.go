package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

func samplePlaces() []model.RecommendedPlace {
	return []model.RecommendedPlace{{Name: "카페", Category: "카페", Tags: []string{"QUIET"}, Distance: 50}}
}

func TestMemoryCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Hour)

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	c.Put(ctx, "a", samplePlaces())
	got, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, samplePlaces(), got)

	// Returned slices are copies.
	got[0].Tags[0] = "LOUD"
	again, _ := c.Get(ctx, "a")
	assert.Equal(t, "QUIET", again[0].Tags[0])

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryCache_TTLExpiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 30*time.Millisecond)
	c.Put(ctx, "a", samplePlaces())

	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Hour)
	c.Put(ctx, "a", samplePlaces())
	c.Put(ctx, "b", samplePlaces())
	_, _ = c.Get(ctx, "a")
	c.Put(ctx, "c", samplePlaces())

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "nearby:37.4979:127.0276:500", cacheKey(37.49791, 127.02764, 500))
	assert.NotEqual(t, cacheKey(37.5, 127, 500), cacheKey(37.5, 127, 1000))
}

func TestRedisCache_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, WithPrefix("test:"))

	data, err := json.Marshal(samplePlaces())
	require.NoError(t, err)
	mock.ExpectGet("test:k").SetVal(string(data))

	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, samplePlaces(), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db)

	mock.ExpectGet("loadmap:k").RedisNil()
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_ErrorIsMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db)

	mock.ExpectGet("loadmap:k").SetErr(errors.New("connection refused"))
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	mock.ExpectGet("loadmap:bad").SetVal("{not json")
	_, ok = c.Get(context.Background(), "bad")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_Put(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, WithTTL(5*time.Minute))

	data, err := json.Marshal(samplePlaces())
	require.NoError(t, err)
	mock.ExpectSet("loadmap:k", data, 5*time.Minute).SetVal("OK")

	c.Put(context.Background(), "k", samplePlaces())
	assert.NoError(t, mock.ExpectationsWereMet())
}
