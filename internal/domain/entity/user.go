// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// User is the credential record of an account together with its login guard state.
type User struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	Username              string     `json:"username"`
	PasswordHash          string     `json:"-"`
	Role                  Role       `json:"role"`
	IsVerified            bool       `json:"isVerified"`
	VerificationToken     string     `json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	FailedLoginAttempts   int        `json:"-"`
	AccountLockedUntil    *time.Time `json:"-"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty"`
	KnownIPs              []string   `json:"-"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// IsLocked reports whether the account is in the Locked state at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.AccountLockedUntil != nil && now.Before(*u.AccountLockedUntil)
}

// LockRemaining is zero once the lock has expired.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.IsLocked(now) {
		return 0
	}

	return u.AccountLockedUntil.Sub(now)
}

// RememberIP appends ip to the known set if it is new.
func (u *User) RememberIP(ip string) {
	if ip == "" || slices.Contains(u.KnownIPs, ip) {
		return
	}
	u.KnownIPs = append(u.KnownIPs, ip)
}

// VerificationValid reports whether token matches an unexpired pending verification.
func (u *User) VerificationValid(token string, now time.Time) bool {
	if u.VerificationToken == "" || u.VerificationToken != token {
		return false
	}

	return u.VerificationExpiresAt == nil || now.Before(*u.VerificationExpiresAt)
}
