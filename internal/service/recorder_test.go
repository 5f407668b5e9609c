package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shortlinks/internal/database"
	"shortlinks/internal/service/mocks"
	"shortlinks/internal/types"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createLink(t *testing.T, mem *database.Memory) *types.ShortLink {
	t.Helper()
	link := &types.ShortLink{
		ID:          uuid.New(),
		OriginalURL: "https://example.com/" + uuid.NewString(),
		ShortCode:   uuid.NewString()[:8],
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, mem.CreateLink(context.Background(), link))
	return link
}

func TestRecordConcurrentClicks(t *testing.T) {
	mem := database.NewMemory()
	rec := NewRecorder(mem, mem, nil, DefaultRecorderConfig())
	link := createLink(t, mem)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, rec.Record(ctx, types.Visit{LinkID: link.ID, IP: "10.0.0." + string(rune('0'+i%10))}))
		}()
	}
	wg.Wait()

	stored, err := mem.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.ClickCount)

	total, err := mem.CountClicks(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestSubmitFlushesOnClose(t *testing.T) {
	mem := database.NewMemory()
	rec := NewRecorder(mem, mem, nil, RecorderConfig{BatchSize: 7, FlushInterval: time.Hour})
	rec.Start()
	a, b := createLink(t, mem), createLink(t, mem)

	for range 10 {
		require.True(t, rec.Submit(types.Visit{LinkID: a.ID, IP: "1.1.1.1"}))
	}
	for range 3 {
		require.True(t, rec.Submit(types.Visit{LinkID: b.ID, IP: "2.2.2.2"}))
	}
	rec.Close()

	ctx := context.Background()
	storedA, err := mem.GetByID(ctx, a.ID)
	require.NoError(t, err)
	storedB, err := mem.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), storedA.ClickCount)
	assert.Equal(t, int64(3), storedB.ClickCount)

	assert.False(t, rec.Submit(types.Visit{LinkID: a.ID}))
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	mem := database.NewMemory()
	rec := NewRecorder(mem, mem, nil, RecorderConfig{QueueSize: 2})
	link := createLink(t, mem)

	// Worker not started, so nothing drains the queue.
	assert.True(t, rec.Submit(types.Visit{LinkID: link.ID}))
	assert.True(t, rec.Submit(types.Visit{LinkID: link.ID}))
	assert.False(t, rec.Submit(types.Visit{LinkID: link.ID}))

	rec.Close()
	stored, err := mem.GetByID(context.Background(), link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.ClickCount)
}

func TestFailedEventWriteLeavesCounter(t *testing.T) {
	ctrl := gomock.NewController(t)
	counter := mocks.NewMockLinkStore(ctrl)
	events := mocks.NewMockEventWriter(ctrl)
	rec := NewRecorder(counter, events, nil, DefaultRecorderConfig())

	events.EXPECT().InsertClicks(gomock.Any(), gomock.Any()).Return(errors.New("clickhouse down"))
	counter.EXPECT().IncrementClicks(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := rec.Record(context.Background(), types.Visit{LinkID: uuid.New()})
	assert.Error(t, err)

	// The async path swallows the same failure.
	events.EXPECT().InsertClicks(gomock.Any(), gomock.Any()).Return(errors.New("clickhouse down"))
	rec.Start()
	require.True(t, rec.Submit(types.Visit{LinkID: uuid.New()}))
	rec.Close()
}

func TestEventEnrichment(t *testing.T) {
	ctrl := gomock.NewController(t)
	locator := mocks.NewMockLocator(ctrl)
	rec := NewRecorder(nil, nil, locator, DefaultRecorderConfig())

	locator.EXPECT().Locate("8.8.8.8").Return("United States", "Mountain View")

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("EET", 2*3600))
	e := rec.event(types.Visit{
		LinkID:    uuid.New(),
		IP:        "8.8.8.8",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
		Referrer:  "https://news.example",
		At:        at,
	})

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, types.DeviceDesktop, e.Device)
	assert.Equal(t, "Chrome", e.Browser)
	assert.Equal(t, "Windows", e.OS)
	assert.Equal(t, "United States", e.Country)
	assert.Equal(t, "Mountain View", e.City)
	assert.Equal(t, "https://news.example", e.Referrer)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
	assert.True(t, at.Equal(e.CreatedAt))
}
