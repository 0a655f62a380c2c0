package impl

import (
	"context"
	"strings"
	"testing"
	"time"

	"warden/config"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/domain/repository"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func verifiedUser() *entity.User {
	return &entity.User{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: "stored-hash",
		Role:         entity.RoleUser,
		IsVerified:   true,
		CreatedAt:    testEpoch,
		UpdatedAt:    testEpoch,
	}
}

func TestLogin_LocksAccountAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := verifiedUser()

	f.users.On("FindByEmailForUpdate", mock.Anything, "alice@example.com").Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)
	f.hasher.On("Check", "wrong", "stored-hash").Return(false)
	f.hasher.On("Check", "correct", "stored-hash").Return(true).Once()

	ctx := context.Background()
	login := func(password string) error {
		_, err := f.svc.Login(ctx, usecase.LoginInput{
			Email:    " Alice@Example.com ",
			Password: password,
			Meta:     entity.RequestMeta{IPAddress: "198.51.100.4"},
		})

		return err
	}

	for i := 1; i <= 5; i++ {
		err := login("wrong")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials), "attempt %d", i)
	}
	require.NotNil(t, user.AccountLockedUntil)
	assert.Equal(t, testEpoch.Add(15*time.Minute), *user.AccountLockedUntil)

	// the correct password does not help while locked and is never compared
	f.clock.Advance(14 * time.Minute)
	err := login("correct")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrAccountLocked))
	var locked *domainerrors.AccountLockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, 1, locked.RemainingMinutes())

	f.clock.Advance(time.Minute + time.Second)
	out, err := f.svc.Login(ctx, usecase.LoginInput{Email: "alice@example.com", Password: "correct"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)
	assert.NotEmpty(t, out.RefreshToken)
	assert.Zero(t, user.FailedLoginAttempts)
	assert.Nil(t, user.AccountLockedUntil)

	actions := f.recorder.Actions()
	assert.Contains(t, actions, "account-lock:success")
	assert.Equal(t, "login:success", actions[len(actions)-1])
}

func TestLogin_UnknownAccountHasNoActor(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.users.On("FindByEmailForUpdate", mock.Anything, "ghost@example.com").Return(nil, repository.ErrUserNotFound)

	_, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: "ghost@example.com", Password: "x"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidCredentials))

	entries := f.recorder.Entries()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	assert.Equal(t, entity.ActionLogin, entries[0].Action)
	assert.Equal(t, entity.StatusFailed, entries[0].Status)
}

func TestLogin_DistinctErrorsWhenConfigured(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.Config) { cfg.Auth.DistinctLoginErrors = true })
	user := verifiedUser()

	f.users.On("FindByEmailForUpdate", mock.Anything, "ghost@example.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("FindByEmailForUpdate", mock.Anything, "alice@example.com").Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)
	f.hasher.On("Check", "wrong", "stored-hash").Return(false)

	_, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: "ghost@example.com", Password: "x"})
	assert.True(t, errors.Is(err, domainerrors.ErrUnknownAccount))

	_, err = f.svc.Login(context.Background(), usecase.LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.True(t, errors.Is(err, domainerrors.ErrIncorrectPassword))
}

func TestLogin_RejectsUnverifiedAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := verifiedUser()
	user.IsVerified = false

	f.users.On("FindByEmailForUpdate", mock.Anything, "alice@example.com").Return(user, nil)
	f.hasher.On("Check", "correct", "stored-hash").Return(true)

	_, err := f.svc.Login(context.Background(), usecase.LoginInput{Email: "alice@example.com", Password: "correct"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrAccountUnverified))
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestLogout_RevokesAccessAndRefreshTokens(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()

	access, _, err := f.tokens.IssueAccessToken(userID, entity.RoleUser)
	require.NoError(t, err)
	refresh, _, err := f.tokens.IssueRefreshToken(userID, entity.RoleUser)
	require.NoError(t, err)

	principal, err := f.svc.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)

	require.NoError(t, f.svc.Logout(ctx, usecase.LogoutInput{Principal: *principal, RefreshToken: refresh}))
	assert.Equal(t, 2, f.revoked.size())

	_, err = f.svc.Authenticate(ctx, access)
	assert.True(t, errors.Is(err, domainerrors.ErrTokenBlacklisted))

	_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: refresh})
	assert.True(t, errors.Is(err, domainerrors.ErrTokenBlacklisted))

	// logging out twice stays successful
	require.NoError(t, f.svc.Logout(ctx, usecase.LogoutInput{Principal: *principal}))
	assert.Equal(t, 2, f.revoked.size())
}

func TestLogout_KeepsAnotherUsersRefreshToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	access, _, err := f.tokens.IssueAccessToken(uuid.New(), entity.RoleUser)
	require.NoError(t, err)
	foreign, _, err := f.tokens.IssueRefreshToken(uuid.New(), entity.RoleUser)
	require.NoError(t, err)

	principal, err := f.svc.Authenticate(ctx, access)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, usecase.LogoutInput{Principal: *principal, RefreshToken: foreign}))
	assert.Equal(t, 1, f.revoked.size())
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		f := newAuthFixture(t, nil)

		_, err := f.svc.Refresh(ctx, usecase.RefreshInput{})
		assert.True(t, errors.Is(err, domainerrors.ErrTokenMissing))
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newAuthFixture(t, nil)

		_, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: "not-a-jwt"})
		assert.True(t, errors.Is(err, domainerrors.ErrTokenInvalid))
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		access, _, err := f.tokens.IssueAccessToken(uuid.New(), entity.RoleUser)
		require.NoError(t, err)

		_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: access})
		assert.True(t, errors.Is(err, domainerrors.ErrTokenInvalid))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		refresh, _, err := f.tokens.IssueRefreshToken(uuid.New(), entity.RoleUser)
		require.NoError(t, err)

		f.clock.Advance(f.cfg.Token.RefreshTTL + time.Second)
		_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: refresh})
		assert.True(t, errors.Is(err, domainerrors.ErrTokenExpired))
	})

	t.Run("subject deleted", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		userID := uuid.New()
		refresh, _, err := f.tokens.IssueRefreshToken(userID, entity.RoleUser)
		require.NoError(t, err)
		f.users.On("FindByID", mock.Anything, userID).Return(nil, repository.ErrUserNotFound)

		_, err = f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: refresh})
		assert.True(t, errors.Is(err, domainerrors.ErrUserNotFound))
	})

	t.Run("issues an access token with the current role", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := verifiedUser()
		user.Role = entity.RoleAdmin
		refresh, _, err := f.tokens.IssueRefreshToken(user.ID, entity.RoleUser)
		require.NoError(t, err)
		f.users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		out, err := f.svc.Refresh(ctx, usecase.RefreshInput{RefreshToken: refresh})
		require.NoError(t, err)

		claims, err := f.tokens.ParseAccessToken(out.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, entity.RoleAdmin, claims.Role)
		assert.Equal(t, []string{"token-refresh:success"}, f.recorder.Actions())
	})
}

func TestAuthenticate_FailsClosedWhenRevocationListIsDown(t *testing.T) {
	f := newAuthFixture(t, nil)
	access, _, err := f.tokens.IssueAccessToken(uuid.New(), entity.RoleUser)
	require.NoError(t, err)

	f.revoked.err = errors.New("connection refused")

	_, err = f.svc.Authenticate(context.Background(), access)
	assert.True(t, errors.Is(err, domainerrors.ErrStorageUnavailable))
}

func TestAuthenticate_RejectsExpiredToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	access, _, err := f.tokens.IssueAccessToken(uuid.New(), entity.RoleUser)
	require.NoError(t, err)

	f.clock.Advance(f.cfg.Token.AccessTTL + time.Second)

	_, err = f.svc.Authenticate(context.Background(), access)
	assert.True(t, errors.Is(err, domainerrors.ErrTokenExpired))
	assert.Equal(t, "expired", domainerrors.TokenFailureReason(err))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an unverified user with a generated username", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.hasher.On("ValidatePasswordStrength", "Sup3rSecret!").Return(nil)
		f.hasher.On("Hash", "Sup3rSecret!").Return("hashed", nil)
		f.users.On("FindByEmail", mock.Anything, "bob@example.com").Return(nil, repository.ErrUserNotFound)
		f.users.On("ExistsByUsername", mock.Anything, mock.AnythingOfType("string")).Return(false, nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).Return(nil)

		out, err := f.svc.Register(ctx, usecase.RegisterInput{Email: "Bob@Example.com", Password: "Sup3rSecret!"})
		require.NoError(t, err)

		assert.Equal(t, "bob@example.com", out.User.Email)
		assert.True(t, strings.HasPrefix(out.User.Username, "bob-"))
		assert.Equal(t, "hashed", out.User.PasswordHash)
		assert.False(t, out.User.IsVerified)
		assert.Len(t, out.VerificationToken, 64)
		require.NotNil(t, out.User.VerificationExpiresAt)
		assert.Equal(t, testEpoch.Add(24*time.Hour), *out.User.VerificationExpiresAt)

		entries := f.recorder.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, entity.StatusSuccess, entries[0].Status)
		require.NotNil(t, entries[0].ActorID)
		assert.Equal(t, out.User.ID, *entries[0].ActorID)
		assert.NotContains(t, entries[0].After, "passwordHash")
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.hasher.On("ValidatePasswordStrength", "Sup3rSecret!").Return(nil)
		f.hasher.On("Hash", "Sup3rSecret!").Return("hashed", nil)
		f.users.On("FindByEmail", mock.Anything, "alice@example.com").Return(verifiedUser(), nil)

		_, err := f.svc.Register(ctx, usecase.RegisterInput{Email: "alice@example.com", Password: "Sup3rSecret!"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domainerrors.ErrUserAlreadyExists))
		assert.Equal(t, []string{"register:failed"}, f.recorder.Actions())
	})

	t.Run("requested username taken", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.hasher.On("ValidatePasswordStrength", "Sup3rSecret!").Return(nil)
		f.hasher.On("Hash", "Sup3rSecret!").Return("hashed", nil)
		f.users.On("FindByEmail", mock.Anything, "carol@example.com").Return(nil, repository.ErrUserNotFound)
		f.users.On("ExistsByUsername", mock.Anything, "carol").Return(true, nil)

		_, err := f.svc.Register(ctx, usecase.RegisterInput{Email: "carol@example.com", Username: "carol", Password: "Sup3rSecret!"})
		assert.True(t, errors.Is(err, domainerrors.ErrUserAlreadyExists))
	})

	t.Run("weak password", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		f.hasher.On("ValidatePasswordStrength", "short").Return(errors.New("password must be at least 8 characters"))

		_, err := f.svc.Register(ctx, usecase.RegisterInput{Email: "dave@example.com", Password: "short"})
		assert.True(t, errors.Is(err, domainerrors.ErrPasswordStrength))
		assert.Zero(t, f.tx.Calls)
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := verifiedUser()
		user.IsVerified = false
		user.VerificationToken = "tok"
		expires := testEpoch.Add(time.Hour)
		user.VerificationExpiresAt = &expires

		f.users.On("FindByVerificationToken", mock.Anything, "tok").Return(user, nil)
		f.users.On("Update", mock.Anything, user).Return(nil)

		verified, err := f.svc.VerifyEmail(ctx, usecase.VerifyEmailInput{Token: "tok"})
		require.NoError(t, err)
		assert.True(t, verified.IsVerified)
		assert.Empty(t, verified.VerificationToken)
		assert.Nil(t, verified.VerificationExpiresAt)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newAuthFixture(t, nil)
		user := verifiedUser()
		user.IsVerified = false
		user.VerificationToken = "tok"
		expires := testEpoch.Add(-time.Minute)
		user.VerificationExpiresAt = &expires

		f.users.On("FindByVerificationToken", mock.Anything, "tok").Return(user, nil)

		_, err := f.svc.VerifyEmail(ctx, usecase.VerifyEmailInput{Token: "tok"})
		assert.True(t, errors.Is(err, domainerrors.ErrVerificationTokenInvalid))
		assert.Equal(t, []string{"verify-email:failed"}, f.recorder.Actions())
	})

	t.Run("empty token", func(t *testing.T) {
		f := newAuthFixture(t, nil)

		_, err := f.svc.VerifyEmail(ctx, usecase.VerifyEmailInput{Token: "  "})
		assert.True(t, errors.Is(err, domainerrors.ErrVerificationTokenInvalid))
	})
}

func TestResendVerification_SameAnswerForUnknownAndVerified(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.users.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrUserNotFound)
	f.users.On("FindByEmail", mock.Anything, "alice@example.com").Return(verifiedUser(), nil)

	unknown, err := f.svc.ResendVerification(context.Background(), usecase.ResendVerificationInput{Email: "ghost@example.com"})
	require.NoError(t, err)
	verified, err := f.svc.ResendVerification(context.Background(), usecase.ResendVerificationInput{Email: "alice@example.com"})
	require.NoError(t, err)

	assert.Equal(t, unknown, verified)
	assert.Empty(t, f.recorder.Entries())
}

func TestResendVerification_RotatesToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := verifiedUser()
	user.IsVerified = false
	user.VerificationToken = "old"

	f.users.On("FindByEmail", mock.Anything, "alice@example.com").Return(user, nil)
	f.users.On("Update", mock.Anything, user).Return(nil)

	out, err := f.svc.ResendVerification(context.Background(), usecase.ResendVerificationInput{Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "old", out.VerificationToken)
	assert.Equal(t, out.VerificationToken, user.VerificationToken)
}

func TestMe_UnknownUser(t *testing.T) {
	f := newAuthFixture(t, nil)
	id := uuid.New()
	f.users.On("FindByID", mock.Anything, id).Return(nil, repository.ErrUserNotFound)

	_, err := f.svc.Me(context.Background(), id)
	assert.True(t, errors.Is(err, domainerrors.ErrUserNotFound))
}

func TestUsernameBase(t *testing.T) {
	assert.Equal(t, "john.doe", usernameBase("John.Doe+tag@example.com"))
	assert.Equal(t, "user", usernameBase("+++@example.com"))
}
