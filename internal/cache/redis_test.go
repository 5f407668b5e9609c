package cache

import (
	"context"
	"testing"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	c, err := ConnectRedis(ctx, endpoint, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	link := &types.ShortLink{
		ID:          uuid.New(),
		OriginalURL: "https://example.com",
		ShortCode:   "abc1234",
		ClickCount:  7,
		IsActive:    true,
		ExpiresAt:   &expires,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	_, err := c.Get(ctx, link.ShortCode)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, link, time.Minute))
	got, err := c.Get(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
	assert.Equal(t, link.OriginalURL, got.OriginalURL)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))

	require.NoError(t, c.Delete(ctx, link.ShortCode))
	_, err = c.Get(ctx, link.ShortCode)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCacheExpiry(t *testing.T) {
	c := setupRedis(t)
	ctx := context.Background()

	link := &types.ShortLink{ID: uuid.New(), ShortCode: "short", IsActive: true}
	require.NoError(t, c.Set(ctx, link, time.Second))

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "short")
		return err == ErrMiss
	}, 5*time.Second, 100*time.Millisecond)
}

func TestConnectRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ConnectRedis(ctx, "127.0.0.1:1", "")
	assert.Error(t, err)
}
