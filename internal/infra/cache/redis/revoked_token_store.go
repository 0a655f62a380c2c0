package redis

import (
	"context"
	"time"

	"warden/internal/domain/repository"
	"warden/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "warden:revoked:"

type revokedTokenStore struct {
	client goredis.Cmdable
	clock  service.Clock
}

// NewRevokedTokenStore keeps one key per revoked jti, expiring with the token itself.
func NewRevokedTokenStore(client goredis.Cmdable, clock service.Clock) repository.RevokedTokenRepository {
	return &revokedTokenStore{client: client, clock: clock}
}

func revokedKey(jti string) string {
	return revokedKeyPrefix + jti
}

func (s *revokedTokenStore) Revoke(ctx context.Context, jti string, userID uuid.UUID, reason string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		// Already expired; verification rejects it on expiry alone.
		return nil
	}

	value := userID.String() + "|" + reason
	if err := s.client.SetNX(ctx, revokedKey(jti), value, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to revoke token")
	}

	return nil
}

func (s *revokedTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to check revoked token")
	}

	return n > 0, nil
}

// DeleteExpired is a no-op: Redis evicts keys on their TTL.
func (s *revokedTokenStore) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
