// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"warden/config"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// tokenClaims is the signed payload. Registered claims carry sub, jti, iat, exp and iss.
type tokenClaims struct {
	Type string `json:"typ"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// jwtService is a concrete implementation of the TokenService interface using HS256 JWTs.
type jwtService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	clock         service.Clock
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config, clock service.Clock) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}
	if cfg.Token == nil {
		return nil, errors.New("token configuration must be provided")
	}

	return &jwtService{
		accessSecret:  []byte(cfg.SecretKey.Access),
		refreshSecret: []byte(cfg.SecretKey.Refresh),
		accessTTL:     cfg.Token.AccessTTL,
		refreshTTL:    cfg.Token.RefreshTTL,
		issuer:        cfg.Token.Issuer,
		clock:         clock,
	}, nil
}

func (s *jwtService) IssueAccessToken(userID uuid.UUID, role entity.Role) (string, *service.Claims, error) {
	return s.issue(userID, role, service.TokenTypeAccess, s.accessTTL, s.accessSecret)
}

// IssueRefreshToken omits the role; it is re-read from the user on refresh.
func (s *jwtService) IssueRefreshToken(userID uuid.UUID, _ entity.Role) (string, *service.Claims, error) {
	return s.issue(userID, "", service.TokenTypeRefresh, s.refreshTTL, s.refreshSecret)
}

func (s *jwtService) ParseAccessToken(token string) (*service.Claims, error) {
	return s.parse(token, service.TokenTypeAccess, s.accessSecret)
}

func (s *jwtService) ParseRefreshToken(token string) (*service.Claims, error) {
	return s.parse(token, service.TokenTypeRefresh, s.refreshSecret)
}

func (s *jwtService) issue(userID uuid.UUID, role entity.Role, tokenType service.TokenType, ttl time.Duration, secret []byte) (string, *service.Claims, error) {
	// JWT timestamps have second precision.
	now := s.clock.Now().Truncate(time.Second)
	claims := &service.Claims{
		UserID:    userID,
		Role:      role,
		TokenID:   uuid.NewString(),
		Type:      tokenType,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type: string(tokenType),
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        claims.TokenID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to sign token")
	}

	return signed, claims, nil
}

// parse checks the signature before anything else, so a token signed with another
// secret is reported as invalid even when it has also expired.
func (s *jwtService) parse(raw string, want service.TokenType, secret []byte) (*service.Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, errors.Wrap(domainerrors.ErrTokenInvalid, "bad signature")
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errors.Wrap(domainerrors.ErrTokenExpired, "token expired")
	default:
		return nil, errors.Wrap(domainerrors.ErrTokenInvalid, err.Error())
	}

	if claims.Type != string(want) {
		return nil, errors.Wrapf(domainerrors.ErrTokenInvalid, "expected %s token, got %q", want, claims.Type)
	}
	if claims.ID == "" {
		return nil, errors.Wrap(domainerrors.ErrTokenInvalid, "token has no id")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrTokenInvalid, "subject is not a user id")
	}

	result := &service.Claims{
		UserID:    userID,
		Role:      entity.Role(claims.Role),
		TokenID:   claims.ID,
		Type:      want,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}

	return result, nil
}
