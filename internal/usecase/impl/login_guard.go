package impl

import (
	"time"

	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
)

// loginGuard implements the Open / Locked(until) account state machine.
// It only mutates the user; persisting the result is the caller's job.
type loginGuard struct {
	maxAttempts  int
	lockDuration time.Duration
}

// check must run before any password comparison.
func (g loginGuard) check(user *entity.User, now time.Time) error {
	if user.IsLocked(now) {
		return domainerrors.NewAccountLockedError(user.LockRemaining(now))
	}

	return nil
}

// registerFailure counts a wrong password and reports whether this attempt locked the account.
// The counter survives an expired lock, so one more failure re-locks immediately.
func (g loginGuard) registerFailure(user *entity.User, now time.Time) bool {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts < g.maxAttempts {
		return false
	}

	until := now.Add(g.lockDuration)
	user.AccountLockedUntil = &until

	return true
}

func (g loginGuard) registerSuccess(user *entity.User, now time.Time, ip string) {
	user.FailedLoginAttempts = 0
	user.AccountLockedUntil = nil
	user.LastLoginAt = &now
	user.RememberIP(ip)
}
