// Package useragent derives browser, OS and device class from a User-Agent header.
package useragent

import (
	"strings"

	"warden/internal/domain/entity"
	"warden/internal/domain/service"

	"github.com/mssola/useragent"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	Unknown       = "unknown"
)

type parser struct{}

// NewParser returns a stateless ClientInfoParser.
func NewParser() service.ClientInfoParser {
	return parser{}
}

func (parser) Parse(raw string) entity.ClientInfo {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.ClientInfo{Browser: Unknown, OS: Unknown, Device: Unknown}
	}

	ua := useragent.New(raw)

	info := entity.ClientInfo{
		Browser: Unknown,
		OS:      Unknown,
		Device:  deviceClass(ua, raw),
	}
	if name, version := ua.Browser(); name != "" {
		info.Browser = strings.TrimSpace(name + " " + majorVersion(version))
	}
	if os := ua.OSInfo(); os.Name != "" {
		info.OS = strings.TrimSpace(os.Name + " " + os.Version)
	}

	return info
}

func deviceClass(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return DeviceBot
	case strings.Contains(raw, "iPad") || strings.Contains(raw, "Tablet"):
		return DeviceTablet
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func majorVersion(version string) string {
	major, _, _ := strings.Cut(version, ".")

	return major
}
