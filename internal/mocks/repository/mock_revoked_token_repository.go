package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRevokedTokenRepository struct {
	mock.Mock
}

func NewMockRevokedTokenRepository(t *testing.T) *MockRevokedTokenRepository {
	m := &MockRevokedTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockRevokedTokenRepository) Revoke(ctx context.Context, jti string, userID uuid.UUID, reason string, expiresAt time.Time) error {
	return m.Called(ctx, jti, userID, reason, expiresAt).Error(0)
}

func (m *MockRevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)

	return args.Bool(0), args.Error(1)
}

func (m *MockRevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)

	return args.Get(0).(int64), args.Error(1)
}
