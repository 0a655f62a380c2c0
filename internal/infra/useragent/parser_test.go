package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name       string
		ua         string
		browserPfx string
		wantDevice string
	}{
		{
			name:       "desktop chrome",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36",
			browserPfx: "Chrome 120",
			wantDevice: DeviceDesktop,
		},
		{
			name:       "iphone safari",
			ua:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			browserPfx: "Safari",
			wantDevice: DeviceMobile,
		},
		{
			name:       "crawler",
			ua:         "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			wantDevice: DeviceBot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := p.Parse(tt.ua)
			assert.Equal(t, tt.wantDevice, info.Device)
			if tt.browserPfx != "" {
				assert.Contains(t, info.Browser, tt.browserPfx)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	info := NewParser().Parse("  ")
	assert.Equal(t, Unknown, info.Browser)
	assert.Equal(t, Unknown, info.OS)
	assert.Equal(t, Unknown, info.Device)
}
