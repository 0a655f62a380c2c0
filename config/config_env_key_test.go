package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode":  "disable",
			"userName": "warden",
		},
		"token": map[string]any{
			"accessTTL":        "720h",
			"cookieExpiryDays": 7,
		},
		"auth": map[string]any{
			"maxFailedAttempts": 5,
		},
		"audit": map[string]any{
			"exportBucketURL": "",
		},
		"secretKey": map[string]any{
			"access": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_USERNAME", want: "postgres.userName"},
		{envKey: "TOKEN_ACCESSTTL", want: "token.accessTTL"},
		{envKey: "TOKEN_COOKIEEXPIRYDAYS", want: "token.cookieExpiryDays"},
		{envKey: "AUTH_MAXFAILEDATTEMPTS", want: "auth.maxFailedAttempts"},
		{envKey: "AUDIT_EXPORTBUCKETURL", want: "audit.exportBucketURL"},
		{envKey: "SECRETKEY_ACCESS", want: "secretKey.access"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
		{envKey: "__TRAILING__", want: "trailing"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}
