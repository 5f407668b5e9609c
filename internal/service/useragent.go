package service

import (
	"strings"

	"shortlinks/internal/types"
)

type ClientInfo struct {
	Device  types.Device
	Browser string
	OS      string
}

var (
	mobileTokens = []string{"mobile", "android", "iphone", "ipod", "blackberry", "opera mini", "iemobile"}
	tabletTokens = []string{"tablet", "ipad"}
)

// ParseUserAgent classifies a raw User-Agent header. Every rule is
// first-match-wins in the listed order; an empty header is unknown.
func ParseUserAgent(userAgent string) ClientInfo {
	if userAgent == "" {
		return ClientInfo{Device: types.DeviceUnknown}
	}
	ua := strings.ToLower(userAgent)
	return ClientInfo{
		Device:  detectDevice(ua),
		Browser: detectBrowser(ua),
		OS:      detectOS(ua),
	}
}

func detectDevice(ua string) types.Device {
	switch {
	case containsAny(ua, mobileTokens...):
		return types.DeviceMobile
	case containsAny(ua, tabletTokens...):
		return types.DeviceTablet
	default:
		return types.DeviceDesktop
	}
}

func detectBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/"):
		return "Edge"
	case strings.Contains(ua, "chrome/"):
		return "Chrome"
	case strings.Contains(ua, "safari/") && !strings.Contains(ua, "chrome"):
		return "Safari"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case containsAny(ua, "opera", "opr/"):
		return "Opera"
	default:
		return ""
	}
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "mac os"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	case strings.Contains(ua, "android"):
		return "Android"
	case containsAny(ua, "ios", "iphone", "ipad"):
		return "iOS"
	default:
		return ""
	}
}

func containsAny(s string, tokens ...string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
