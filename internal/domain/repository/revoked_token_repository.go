package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RevokedTokenRepository is the token blacklist. Entries are only meaningful until the
// token's natural expiry, so implementations may forget them afterwards.
type RevokedTokenRepository interface {
	// Revoke is idempotent.
	Revoke(ctx context.Context, jti string, userID uuid.UUID, reason string, expiresAt time.Time) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	// DeleteExpired removes entries past their expiry and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
