package bot

import (
	"fmt"
	"testing"

	"shortlinks/internal/service"
	"shortlinks/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestFormatStats(t *testing.T) {
	got := formatStats("https://sho.rt/abc1234", &types.AnalyticsSummary{
		TotalClicks:    3,
		UniqueVisitors: 2,
		DeviceStats:    []types.DeviceCount{{Device: "mobile", Count: 2}, {Device: "desktop", Count: 1}},
		BrowserStats:   []types.BrowserCount{{Browser: "Chrome", Count: 2}},
	})

	assert.Equal(t, "https://sho.rt/abc1234\nClicks: 3\nUnique visitors: 2\nmobile: 2\ndesktop: 1\nTop browser: Chrome (2)", got)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "No such short link.", describe(service.ErrLinkInactive))
	assert.Equal(t, "That short link has expired.", describe(service.ErrLinkExpired))
	assert.Equal(t, "That does not look like a valid http(s) link.", describe(fmt.Errorf("%w: host is required", service.ErrInvalidURL)))
}
