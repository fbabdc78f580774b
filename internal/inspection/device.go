package inspection

import (
	"regexp"
	"strings"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/datastore/entities"
)

var (
	iosVersion     = regexp.MustCompile(`os (\d+[_\d]*)`)
	androidVersion = regexp.MustCompile(`android (\d+(?:\.\d+)*)`)
	macVersion     = regexp.MustCompile(`mac os x (\d+[_.\d]*)`)
)

var androidBrands = []string{"samsung", "huawei", "xiaomi", "oppo", "oneplus"}

// DeviceID returns the explicit device id when one was sent, otherwise a
// description parsed from the User-Agent such as "iPhone - iOS 17.2 - Safari".
func DeviceID(explicit, userAgent string) string {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" && explicit != entities.DefaultDeviceID {
		return explicit
	}
	if strings.TrimSpace(userAgent) == "" {
		return entities.DefaultDeviceID
	}
	return describeUserAgent(userAgent)
}

func describeUserAgent(userAgent string) string {
	ua := strings.ToLower(userAgent)
	var parts []string

	switch {
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		if strings.Contains(ua, "iphone") {
			parts = append(parts, "iPhone")
		} else {
			parts = append(parts, "iPad")
		}
		if m := iosVersion.FindStringSubmatch(ua); m != nil {
			parts = append(parts, "iOS "+strings.ReplaceAll(m[1], "_", "."))
		}
	case strings.Contains(ua, "android"):
		os := "Android"
		if m := androidVersion.FindStringSubmatch(ua); m != nil {
			os += " " + m[1]
		}
		parts = append(parts, os)
		for _, brand := range androidBrands {
			if strings.Contains(ua, brand) {
				parts = append(parts, titleWord(brand))
				break
			}
		}
	case strings.Contains(ua, "windows"):
		parts = append(parts, windowsVersion(ua))
	case strings.Contains(ua, "mac os x"):
		os := "macOS"
		if m := macVersion.FindStringSubmatch(ua); m != nil {
			os += " " + strings.ReplaceAll(m[1], "_", ".")
		}
		parts = append(parts, os)
	case strings.Contains(ua, "linux"):
		if strings.Contains(ua, "ubuntu") {
			parts = append(parts, "Ubuntu Linux")
		} else {
			parts = append(parts, "Linux")
		}
	}

	if browser := browserName(ua); browser != "" {
		parts = append(parts, browser)
	}

	if len(parts) == 0 {
		switch {
		case strings.Contains(ua, "mobile"):
			return "Mobiel"
		case strings.Contains(ua, "tablet"):
			return "Tablet"
		default:
			return "Desktop"
		}
	}
	return strings.Join(parts, " - ")
}

func windowsVersion(ua string) string {
	switch {
	case strings.Contains(ua, "windows nt 10"):
		return "Windows 10/11"
	case strings.Contains(ua, "windows nt 6.3"):
		return "Windows 8.1"
	case strings.Contains(ua, "windows nt 6.2"):
		return "Windows 8"
	case strings.Contains(ua, "windows nt 6.1"):
		return "Windows 7"
	default:
		return "Windows"
	}
}

func browserName(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		return "Chrome"
	case strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return ""
	}
}

func titleWord(s string) string {
	if s == "oneplus" {
		return "OnePlus"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
