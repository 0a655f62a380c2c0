package service

import (
	"time"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	UserID    uuid.UUID
	Role      entity.Role
	TokenID   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies signed tokens.
// Parse methods fail with ErrTokenInvalid for anything but a well-signed token of the
// requested type, and with ErrTokenExpired only when such a token is past its expiry.
type TokenService interface {
	IssueAccessToken(userID uuid.UUID, role entity.Role) (string, *Claims, error)

	IssueRefreshToken(userID uuid.UUID, role entity.Role) (string, *Claims, error)

	ParseAccessToken(token string) (*Claims, error)

	ParseRefreshToken(token string) (*Claims, error)
}
