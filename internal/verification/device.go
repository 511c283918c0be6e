package verification

import "strings"

const (
	DeviceBot     = "bot"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

var (
	botMarkers    = []string{"bot", "crawler", "spider", "curl", "wget", "python-requests", "go-http-client"}
	tabletMarkers = []string{"ipad", "tablet", "kindle", "silk"}
	mobileMarkers = []string{"mobile", "iphone", "ipod", "android", "blackberry", "opera mini", "windows phone"}
)

// ClassifyDevice buckets a user agent into a coarse device class.
func ClassifyDevice(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return DeviceUnknown
	}
	if containsAny(ua, botMarkers) {
		return DeviceBot
	}
	// Android tablets omit "mobile" from their user agent.
	if containsAny(ua, tabletMarkers) || (strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")) {
		return DeviceTablet
	}
	if containsAny(ua, mobileMarkers) {
		return DeviceMobile
	}
	return DeviceDesktop
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
