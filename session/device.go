package session

import "strings"

// ParseUserAgent classifies a raw User-Agent header into the coarse
// device/OS/browser triple shown in the account's session list. The
// matcher is deliberately small: it covers the families that appear in
// practice and reports "unknown" for the rest. Order matters in the
// browser checks because Chrome-family agents embed each other's tokens.
func ParseUserAgent(ua string) Device {
	if ua == "" {
		return Device{Class: "unknown", OS: "unknown", Browser: "unknown"}
	}
	lower := strings.ToLower(ua)

	return Device{
		Class:   deviceClass(lower),
		OS:      operatingSystem(lower),
		Browser: browser(lower),
	}
}

func deviceClass(ua string) string {
	switch {
	case strings.Contains(ua, "bot"), strings.Contains(ua, "crawler"), strings.Contains(ua, "spider"):
		return "bot"
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return "tablet"
	// Android tablets omit "mobile"; Android phones carry both tokens.
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return "tablet"
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "iphone"):
		return "mobile"
	case strings.Contains(ua, "windows"), strings.Contains(ua, "macintosh"),
		strings.Contains(ua, "linux"), strings.Contains(ua, "cros"):
		return "desktop"
	default:
		return "unknown"
	}
}

func operatingSystem(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		return "macOS"
	case strings.Contains(ua, "cros"):
		return "ChromeOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "unknown"
	}
}

func browser(ua string) string {
	switch {
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "samsungbrowser"):
		return "Samsung Internet"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	case strings.Contains(ua, "msie"), strings.Contains(ua, "trident/"):
		return "Internet Explorer"
	default:
		return "unknown"
	}
}
