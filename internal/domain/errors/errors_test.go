package errors

import (
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAccountLockedError(t *testing.T) {
	err := NewAccountLockedError(90 * time.Second)

	assert.Equal(t, 2, err.RemainingMinutes())
	assert.Equal(t, http.StatusForbidden, err.HTTPCode())
	assert.Contains(t, err.Message(), "2 minute(s)")
	assert.True(t, errors.Is(errors.Wrap(err, "login"), ErrAccountLocked))

	var appErr AppError
	assert.True(t, errors.As(errors.Wrap(err, "login"), &appErr))
}

func TestAccountLockedError_NeverReportsZero(t *testing.T) {
	assert.Equal(t, 1, NewAccountLockedError(0).RemainingMinutes())
	assert.Equal(t, 1, NewAccountLockedError(time.Second).RemainingMinutes())
}

func TestWithDetails_KeepsIdentity(t *testing.T) {
	err := ErrValidationFailed.WithDetails("email is required")

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, "email is required", err.Details())
	assert.Empty(t, ErrValidationFailed.Details())
}

func TestTokenErrorsShareClientMessage(t *testing.T) {
	assert.Equal(t, ErrTokenInvalid.Message(), ErrTokenExpired.Message())
	assert.Equal(t, ErrTokenInvalid.Message(), ErrTokenBlacklisted.Message())
	assert.False(t, errors.Is(ErrTokenExpired, ErrTokenInvalid))
	assert.Equal(t, "Refresh token is required", ErrTokenMissing.Message())
}

func TestDatabaseExecuteError_Unwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabaseExecuteError(cause, "insert audit event")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, http.StatusInternalServerError, err.HTTPCode())
}

func TestTokenFailureReason(t *testing.T) {
	assert.Equal(t, "expired", TokenFailureReason(errors.Wrap(ErrTokenExpired, "parse")))
	assert.Equal(t, "revoked", TokenFailureReason(ErrTokenBlacklisted))
	assert.Equal(t, "malformed", TokenFailureReason(ErrTokenInvalid))
	assert.Equal(t, "missing", TokenFailureReason(ErrTokenMissing))
	assert.Equal(t, "unknown", TokenFailureReason(errors.New("boom")))
}
