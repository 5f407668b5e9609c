package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linkStore interface {
	CreateLink(ctx context.Context, link *types.ShortLink) error
	GetByCode(ctx context.Context, code string) (*types.ShortLink, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.ShortLink, error)
	FindActiveByURL(ctx context.Context, originalURL string) (*types.ShortLink, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	IncrementClicks(ctx context.Context, id uuid.UUID, delta int64) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

func newLink(url, code string) *types.ShortLink {
	return &types.ShortLink{
		ID:          uuid.New(),
		OriginalURL: url,
		ShortCode:   code,
		IsActive:    true,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// testLinkStore runs the behaviour every link store must share.
func testLinkStore(t *testing.T, store linkStore) {
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		link := newLink("https://example.com/a", "AbCd123")
		require.NoError(t, store.CreateLink(ctx, link))
		assert.Equal(t, "abcd123", link.ShortCode)

		byCode, err := store.GetByCode(ctx, "ABCD123")
		require.NoError(t, err)
		assert.Equal(t, link.ID, byCode.ID)
		assert.Equal(t, "https://example.com/a", byCode.OriginalURL)
		assert.True(t, byCode.IsActive)

		byID, err := store.GetByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, "abcd123", byID.ShortCode)

		exists, err := store.CodeExists(ctx, "abcD123")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("duplicate code ignores case", func(t *testing.T) {
		require.NoError(t, store.CreateLink(ctx, newLink("https://example.com/b", "dupe1")))
		err := store.CreateLink(ctx, newLink("https://example.com/c", "DUPE1"))
		assert.ErrorIs(t, err, types.ErrDuplicateCode)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := store.GetByCode(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrLinkNotFound)
		_, err = store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, types.ErrLinkNotFound)
		assert.ErrorIs(t, store.IncrementClicks(ctx, uuid.New(), 1), types.ErrLinkNotFound)
		assert.ErrorIs(t, store.SetActive(ctx, uuid.New(), false), types.ErrLinkNotFound)

		exists, err := store.CodeExists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("find active by url", func(t *testing.T) {
		url := "https://example.com/" + uuid.NewString()
		_, err := store.FindActiveByURL(ctx, url)
		assert.ErrorIs(t, err, types.ErrLinkNotFound)

		past := time.Now().Add(-time.Hour)
		expired := newLink(url, "exp"+uuid.NewString()[:6])
		expired.ExpiresAt = &past
		require.NoError(t, store.CreateLink(ctx, expired))

		inactive := newLink(url, "off"+uuid.NewString()[:6])
		require.NoError(t, store.CreateLink(ctx, inactive))
		require.NoError(t, store.SetActive(ctx, inactive.ID, false))

		_, err = store.FindActiveByURL(ctx, url)
		assert.ErrorIs(t, err, types.ErrLinkNotFound)

		live := newLink(url, "on"+uuid.NewString()[:6])
		require.NoError(t, store.CreateLink(ctx, live))
		found, err := store.FindActiveByURL(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, live.ID, found.ID)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		link := newLink("https://example.com/count", "cnt"+uuid.NewString()[:6])
		require.NoError(t, store.CreateLink(ctx, link))

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.IncrementClicks(ctx, link.ID, 2))
			}()
		}
		wg.Wait()

		got, err := store.GetByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), got.ClickCount)
	})
}
