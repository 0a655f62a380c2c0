// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"warden/config"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/domain/repository"
	"warden/internal/domain/service"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	maxUsernameAttempts = 5
	revokeReasonLogout  = "logout"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager           repository.TransactionManager
	userRepo            repository.UserRepository
	revokedRepo         repository.RevokedTokenRepository
	hasher              service.PasswordHasher
	tokenService        service.TokenService
	recorder            usecase.AuditRecorder
	clock               service.Clock
	guard               loginGuard
	requireVerification bool
	distinctLoginErrors bool
	verificationTTL     time.Duration
	logger              *slog.Logger
}

// AuthServiceParams holds dependencies for the auth service, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	RevokedTokenRepo repository.RevokedTokenRepository
	Hasher           service.PasswordHasher
	TokenService     service.TokenService
	Recorder         usecase.AuditRecorder
	Clock            service.Clock
	Config           *config.Config
	Logger           *slog.Logger
}

func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	authCfg := params.Config.Auth

	return &authService{
		txManager:    params.TxManager,
		userRepo:     params.UserRepo,
		revokedRepo:  params.RevokedTokenRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		recorder:     params.Recorder,
		clock:        params.Clock,
		guard: loginGuard{
			maxAttempts:  authCfg.MaxFailedAttempts,
			lockDuration: authCfg.LockDuration,
		},
		requireVerification: authCfg.RequireVerification,
		distinctLoginErrors: authCfg.DistinctLoginErrors,
		verificationTTL:     authCfg.VerificationTTL,
		logger:              params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	email := normalizeEmail(input.Email)

	if err := srv.hasher.ValidatePasswordStrength(input.Password); err != nil {
		srv.record(ctx, entity.ActionRegister, entity.StatusFailed, nil, input.Meta, map[string]any{"email": email, "reason": "weak_password"})

		return nil, errors.Wrap(domainerrors.ErrPasswordStrength.WithDetails(err.Error()), "password does not meet security requirements")
	}

	// bcrypt is CPU-bound, so hash before opening the transaction.
	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	now := srv.clock.Now()
	newUser := &entity.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         entity.RoleUser,
		IsVerified:   !srv.requireVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var verificationToken string
	if srv.requireVerification {
		if verificationToken, err = randomHex(32); err != nil {
			return nil, errors.Wrap(err, "failed to generate verification token")
		}
		expiresAt := now.Add(srv.verificationTTL)
		newUser.VerificationToken = verificationToken
		newUser.VerificationExpiresAt = &expiresAt
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return errors.Wrap(domainerrors.ErrUserAlreadyExists, "email already registered")
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(err, "failed to check existing email")
		}

		username, err := srv.resolveUsername(ctx, userRepo, input.Username, email)
		if err != nil {
			return err
		}
		newUser.Username = username

		if err := userRepo.Create(ctx, newUser); err != nil {
			if errors.Is(err, repository.ErrUserConflict) {
				return errors.Wrap(domainerrors.ErrUserAlreadyExists, "email or username already registered")
			}

			return errors.Wrap(err, "failed to create user during registration")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", email), slog.Any("error", err))
		srv.record(ctx, entity.ActionRegister, entity.StatusFailed, nil, input.Meta, map[string]any{"email": email, "reason": errorCode(err)})

		return nil, errors.Wrap(err, "failed to execute user registration transaction")
	}

	srv.log(ctx).Info("User registered", slog.String("user_id", newUser.ID.String()))
	srv.recordEntry(ctx, entity.AuditEntry{
		ActorID:      &newUser.ID,
		Action:       entity.ActionRegister,
		Status:       entity.StatusSuccess,
		ResourceType: "user",
		ResourceID:   newUser.ID.String(),
		After:        userSnapshot(newUser),
		Meta:         input.Meta,
	})

	return &usecase.RegisterOutput{User: newUser, VerificationToken: verificationToken}, nil
}

func (srv *authService) resolveUsername(ctx context.Context, userRepo repository.UserRepository, requested, email string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		exists, err := userRepo.ExistsByUsername(ctx, requested)
		if err != nil {
			return "", errors.Wrap(err, "failed to check username")
		}
		if exists {
			return "", errors.Wrap(domainerrors.ErrUserAlreadyExists, "username already taken")
		}

		return requested, nil
	}

	base := usernameBase(email)
	for range maxUsernameAttempts {
		suffix, err := randomHex(2)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate username suffix")
		}
		candidate := base + "-" + suffix

		exists, err := userRepo.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "failed to check generated username")
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", errors.Wrap(domainerrors.ErrConflict, "could not generate a unique username")
}

func (srv *authService) VerifyEmail(ctx context.Context, input usecase.VerifyEmailInput) (*entity.User, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, errors.Wrap(domainerrors.ErrVerificationTokenInvalid, "empty verification token")
	}

	now := srv.clock.Now()
	var verified *entity.User
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		user, err := userRepo.FindByVerificationToken(ctx, token)
		if errors.Is(err, repository.ErrUserNotFound) {
			return errors.Wrap(domainerrors.ErrVerificationTokenInvalid, "unknown verification token")
		}
		if err != nil {
			return errors.Wrap(err, "failed to find user by verification token")
		}
		if !user.VerificationValid(token, now) {
			return errors.Wrap(domainerrors.ErrVerificationTokenInvalid, "verification token expired")
		}

		user.IsVerified = true
		user.VerificationToken = ""
		user.VerificationExpiresAt = nil
		user.UpdatedAt = now
		if err := userRepo.Update(ctx, user); err != nil {
			return errors.Wrap(err, "failed to mark user verified")
		}
		verified = user

		return nil
	})
	if err != nil {
		srv.record(ctx, entity.ActionVerifyEmail, entity.StatusFailed, nil, input.Meta, map[string]any{"reason": errorCode(err)})

		return nil, err
	}

	srv.recordEntry(ctx, entity.AuditEntry{
		ActorID:      &verified.ID,
		Action:       entity.ActionVerifyEmail,
		Status:       entity.StatusSuccess,
		ResourceType: "user",
		ResourceID:   verified.ID.String(),
		Before:       map[string]any{"isVerified": false},
		After:        map[string]any{"isVerified": true},
		Meta:         input.Meta,
	})

	return verified, nil
}

// ResendVerification answers the same way for unknown and already verified emails.
func (srv *authService) ResendVerification(ctx context.Context, input usecase.ResendVerificationInput) (*usecase.ResendVerificationOutput, error) {
	email := normalizeEmail(input.Email)
	now := srv.clock.Now()

	var (
		token  string
		userID *uuid.UUID
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		user, err := userRepo.FindByEmail(ctx, email)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to find user for verification resend")
		}
		if user.IsVerified {
			return nil
		}

		if token, err = randomHex(32); err != nil {
			return errors.Wrap(err, "failed to generate verification token")
		}
		expiresAt := now.Add(srv.verificationTTL)
		user.VerificationToken = token
		user.VerificationExpiresAt = &expiresAt
		user.UpdatedAt = now
		userID = &user.ID

		return userRepo.Update(ctx, user)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to resend verification")
	}

	if userID != nil {
		srv.record(ctx, entity.ActionResendVerification, entity.StatusSuccess, userID, input.Meta, nil)
	}

	return &usecase.ResendVerificationOutput{VerificationToken: token}, nil
}

// Login runs the lock check, password comparison and counter update under a row lock
// so concurrent attempts against one account cannot lose increments.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := normalizeEmail(input.Email)
	now := srv.clock.Now()

	var (
		user      *entity.User
		rejection error
		lockedNow bool
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		found, err := userRepo.FindByEmailForUpdate(ctx, email)
		if errors.Is(err, repository.ErrUserNotFound) {
			rejection = srv.unknownAccountError()

			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to load user for login")
		}
		user = found

		if err := srv.guard.check(found, now); err != nil {
			rejection = err

			return nil
		}

		if !srv.hasher.Check(input.Password, found.PasswordHash) {
			lockedNow = srv.guard.registerFailure(found, now)
			rejection = srv.wrongPasswordError()
			found.UpdatedAt = now

			return userRepo.Update(ctx, found)
		}

		if srv.requireVerification && !found.IsVerified {
			rejection = domainerrors.ErrAccountUnverified

			return nil
		}

		srv.guard.registerSuccess(found, now, input.Meta.IPAddress)
		found.UpdatedAt = now

		return userRepo.Update(ctx, found)
	})
	if err != nil {
		srv.log(ctx).Error("Login transaction failed", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute login transaction")
	}

	var actorID *uuid.UUID
	if user != nil {
		actorID = &user.ID
	}

	if rejection != nil {
		srv.log(ctx).Warn("Login rejected", slog.String("email", email), slog.String("reason", errorCode(rejection)))
		srv.record(ctx, entity.ActionLogin, entity.StatusFailed, actorID, input.Meta,
			map[string]any{"email": email, "reason": errorCode(rejection)})
		if lockedNow {
			srv.record(ctx, entity.ActionAccountLock, entity.StatusSuccess, actorID, input.Meta,
				map[string]any{"lockedUntil": user.AccountLockedUntil, "failedAttempts": user.FailedLoginAttempts})
		}

		return nil, errors.Wrap(rejection, "login rejected")
	}

	accessToken, accessClaims, err := srv.tokenService.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}
	refreshToken, refreshClaims, err := srv.tokenService.IssueRefreshToken(user.ID, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue refresh token")
	}

	srv.record(ctx, entity.ActionLogin, entity.StatusSuccess, actorID, input.Meta, nil)

	return &usecase.LoginOutput{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
		User:             user,
	}, nil
}

func (srv *authService) unknownAccountError() error {
	if srv.distinctLoginErrors {
		return domainerrors.ErrUnknownAccount
	}

	return domainerrors.ErrInvalidCredentials
}

func (srv *authService) wrongPasswordError() error {
	if srv.distinctLoginErrors {
		return domainerrors.ErrIncorrectPassword
	}

	return domainerrors.ErrInvalidCredentials
}

// Refresh issues a new access token. The refresh token itself is not rotated.
func (srv *authService) Refresh(ctx context.Context, input usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	if strings.TrimSpace(input.RefreshToken) == "" {
		return nil, domainerrors.ErrTokenMissing
	}

	claims, err := srv.tokenService.ParseRefreshToken(input.RefreshToken)
	if err != nil {
		srv.log(ctx).Info("Refresh token rejected", slog.String("reason", domainerrors.TokenFailureReason(err)))

		return nil, err
	}

	if err := srv.ensureNotRevoked(ctx, claims.TokenID); err != nil {
		srv.log(ctx).Info("Refresh token rejected", slog.String("reason", domainerrors.TokenFailureReason(err)))

		return nil, err
	}

	user, err := srv.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		srv.log(ctx).Info("Refresh token subject no longer exists", slog.String("user_id", claims.UserID.String()))

		return nil, errors.Wrap(domainerrors.ErrUserNotFound, "refresh token subject not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load refresh token subject")
	}

	accessToken, accessClaims, err := srv.tokenService.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	srv.record(ctx, entity.ActionTokenRefresh, entity.StatusSuccess, &user.ID, input.Meta, nil)

	return &usecase.RefreshOutput{AccessToken: accessToken, AccessExpiresAt: accessClaims.ExpiresAt}, nil
}

// Logout blacklists the access token until its natural expiry, and the refresh token when
// it belongs to the same user.
func (srv *authService) Logout(ctx context.Context, input usecase.LogoutInput) error {
	principal := input.Principal

	if err := srv.revokedRepo.Revoke(ctx, principal.TokenID, principal.UserID, revokeReasonLogout, principal.ExpiresAt); err != nil {
		srv.log(ctx).Error("Failed to revoke access token", slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrStorageUnavailable, err.Error())
	}

	if input.RefreshToken != "" {
		claims, err := srv.tokenService.ParseRefreshToken(input.RefreshToken)
		switch {
		case err != nil:
			srv.log(ctx).Debug("Ignoring unusable refresh token on logout", slog.String("reason", domainerrors.TokenFailureReason(err)))
		case claims.UserID != principal.UserID:
			srv.log(ctx).Warn("Refresh token on logout belongs to another user", slog.String("user_id", principal.UserID.String()))
		default:
			if err := srv.revokedRepo.Revoke(ctx, claims.TokenID, claims.UserID, revokeReasonLogout, claims.ExpiresAt); err != nil {
				srv.log(ctx).Error("Failed to revoke refresh token", slog.Any("error", err))

				return errors.Wrap(domainerrors.ErrStorageUnavailable, err.Error())
			}
		}
	}

	srv.record(ctx, entity.ActionLogout, entity.StatusSuccess, &principal.UserID, input.Meta, nil)

	return nil
}

func (srv *authService) Authenticate(ctx context.Context, accessToken string) (*entity.Principal, error) {
	if accessToken == "" {
		return nil, domainerrors.ErrUnauthorized
	}

	claims, err := srv.tokenService.ParseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	if err := srv.ensureNotRevoked(ctx, claims.TokenID); err != nil {
		return nil, err
	}

	return &entity.Principal{
		UserID:    claims.UserID,
		Role:      claims.Role,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// ensureNotRevoked fails closed when the revocation list cannot be read.
func (srv *authService) ensureNotRevoked(ctx context.Context, jti string) error {
	revoked, err := srv.revokedRepo.IsRevoked(ctx, jti)
	if err != nil {
		srv.log(ctx).Error("Revocation list lookup failed", slog.Any("error", err))

		return errors.Wrap(domainerrors.ErrStorageUnavailable, err.Error())
	}
	if revoked {
		return domainerrors.ErrTokenBlacklisted
	}

	return nil
}

func (srv *authService) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.Wrap(domainerrors.ErrUserNotFound, userID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load current user")
	}

	return user, nil
}

func (srv *authService) record(ctx context.Context, action entity.Action, status entity.AuditStatus, actor *uuid.UUID, meta entity.RequestMeta, details map[string]any) {
	srv.recordEntry(ctx, entity.AuditEntry{
		ActorID: actor,
		Action:  action,
		Status:  status,
		Details: details,
		Meta:    meta,
	})
}

func (srv *authService) recordEntry(ctx context.Context, entry entity.AuditEntry) {
	if srv.recorder == nil {
		return
	}
	srv.recorder.Record(ctx, entry)
}

func userSnapshot(user *entity.User) map[string]any {
	return map[string]any{
		"email":      user.Email,
		"username":   user.Username,
		"role":       string(user.Role),
		"isVerified": user.IsVerified,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// usernameBase keeps the lower-cased local part of an email, restricted to [a-z0-9._].
func usernameBase(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}

	return b.String()
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.WithStack(err)
	}

	return hex.EncodeToString(buf), nil
}

// errorCode names the domain error behind err for logs and audit details.
func errorCode(err error) string {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.ErrorCode()
	}

	return "INTERNAL_ERROR"
}
