package service

import (
	"testing"

	"shortlinks/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want ClientInfo
	}{
		{
			name: "empty",
			ua:   "",
			want: ClientInfo{Device: types.DeviceUnknown},
		},
		{
			name: "chrome on windows",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			want: ClientInfo{Device: types.DeviceDesktop, Browser: "Chrome", OS: "Windows"},
		},
		{
			name: "edge wins over chrome",
			ua:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			want: ClientInfo{Device: types.DeviceDesktop, Browser: "Edge", OS: "Windows"},
		},
		{
			name: "safari on iphone",
			ua:   "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			want: ClientInfo{Device: types.DeviceMobile, Browser: "Safari", OS: "macOS"},
		},
		{
			name: "ipad is a tablet",
			ua:   "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/604.1",
			want: ClientInfo{Device: types.DeviceTablet, Browser: "Safari", OS: "macOS"},
		},
		{
			name: "android chrome reports linux",
			ua:   "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			want: ClientInfo{Device: types.DeviceMobile, Browser: "Chrome", OS: "Linux"},
		},
		{
			name: "firefox on linux",
			ua:   "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			want: ClientInfo{Device: types.DeviceDesktop, Browser: "Firefox", OS: "Linux"},
		},
		{
			name: "unrecognised client",
			ua:   "curl/8.4.0",
			want: ClientInfo{Device: types.DeviceDesktop},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseUserAgent(tt.ua))
		})
	}
}
