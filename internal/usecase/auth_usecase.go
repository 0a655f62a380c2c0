// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a new account.
// Username is optional and generated from the email when empty.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Meta     entity.RequestMeta
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
	Meta     entity.RequestMeta
}

type VerifyEmailInput struct {
	Token string
	Meta  entity.RequestMeta
}

type ResendVerificationInput struct {
	Email string
	Meta  entity.RequestMeta
}

type RefreshInput struct {
	RefreshToken string
	Meta         entity.RequestMeta
}

// LogoutInput revokes the caller's access token and, when present, the refresh token.
type LogoutInput struct {
	Principal    entity.Principal
	RefreshToken string
	Meta         entity.RequestMeta
}

// --- Output DTOs ---

// RegisterOutput returns the new account and the pending verification token.
type RegisterOutput struct {
	User              *entity.User
	VerificationToken string
}

// LoginOutput returns the generated tokens after a successful login.
type LoginOutput struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *entity.User
}

type RefreshOutput struct {
	AccessToken     string
	AccessExpiresAt time.Time
}

type ResendVerificationOutput struct {
	VerificationToken string
}

// AuthUsecase defines the authentication flows exposed to the delivery layer.
type AuthUsecase interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error)
	VerifyEmail(ctx context.Context, input VerifyEmailInput) (*entity.User, error)
	ResendVerification(ctx context.Context, input ResendVerificationInput) (*ResendVerificationOutput, error)
	Login(ctx context.Context, input LoginInput) (*LoginOutput, error)
	Refresh(ctx context.Context, input RefreshInput) (*RefreshOutput, error)
	Logout(ctx context.Context, input LogoutInput) error
	// Authenticate verifies an access token: signature, then expiry, then the revocation list.
	Authenticate(ctx context.Context, accessToken string) (*entity.Principal, error)
	Me(ctx context.Context, userID uuid.UUID) (*entity.User, error)
}
