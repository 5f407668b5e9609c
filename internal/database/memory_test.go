package database

import (
	"context"
	"testing"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLinkStore(t *testing.T) {
	testLinkStore(t, NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	link := newLink("https://example.com", "copy1")
	require.NoError(t, mem.CreateLink(ctx, link))

	got, err := mem.GetByID(ctx, link.ID)
	require.NoError(t, err)
	got.ClickCount = 99
	got.IsActive = false

	again, err := mem.GetByCode(ctx, "copy1")
	require.NoError(t, err)
	assert.Zero(t, again.ClickCount)
	assert.True(t, again.IsActive)
}

func TestMemoryEventQueries(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	linkID, other := uuid.New(), uuid.New()
	day := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC)

	require.NoError(t, mem.InsertClicks(ctx, []types.ClickEvent{
		{ID: uuid.New(), LinkID: linkID, IP: "1.1.1.1", Device: types.DeviceMobile, Browser: "Safari", CreatedAt: day},
		{ID: uuid.New(), LinkID: linkID, IP: "1.1.1.1", Device: types.DeviceMobile, Browser: "Chrome", CreatedAt: day.Add(time.Hour)},
		{ID: uuid.New(), LinkID: linkID, IP: "2.2.2.2", Device: types.DeviceDesktop, Browser: "Chrome", Referrer: "https://t.co", CreatedAt: day.Add(2 * time.Hour)},
		{ID: uuid.New(), LinkID: other, IP: "3.3.3.3", Device: types.DeviceDesktop, CreatedAt: day},
	}))

	total, err := mem.CountClicks(ctx, linkID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	unique, err := mem.CountUniqueVisitors(ctx, linkID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unique)

	byDate, err := mem.ClicksByDate(ctx, linkID, day.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []types.DateCount{{Date: "2024-05-10", Clicks: 1}, {Date: "2024-05-11", Clicks: 2}}, byDate)

	browsers, err := mem.GroupCount(ctx, linkID, types.GroupByBrowser, 1)
	require.NoError(t, err)
	assert.Equal(t, []types.GroupCount{{Value: "Chrome", Count: 2}}, browsers)

	referrers, err := mem.GroupCount(ctx, linkID, types.GroupByReferrer, 0)
	require.NoError(t, err)
	assert.Equal(t, []types.GroupCount{{Value: "https://t.co", Count: 1}}, referrers)

	_, err = mem.GroupCount(ctx, linkID, types.GroupField("os; DROP TABLE"), 0)
	assert.ErrorIs(t, err, ErrUnknownGroupField)

	recent, err := mem.RecentClicks(ctx, linkID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2.2.2.2", recent[0].IP)
}
