package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"warden/config"
	"warden/internal/domain/service"
)

// bcryptHasher is a concrete implementation of the PasswordHasher interface using bcrypt.
type bcryptHasher struct {
	cost     int
	strength config.PasswordStrengthConfig
}

// NewBcryptHasher is the constructor for bcryptHasher.
func NewBcryptHasher(cfg *config.Config) service.PasswordHasher {
	cost := bcrypt.DefaultCost
	if cfg.Auth != nil && cfg.Auth.BcryptCost >= bcrypt.MinCost && cfg.Auth.BcryptCost <= bcrypt.MaxCost {
		cost = cfg.Auth.BcryptCost
	}

	var strength config.PasswordStrengthConfig
	if cfg.PasswordStrength != nil {
		strength = *cfg.PasswordStrength
	}

	return &bcryptHasher{cost: cost, strength: strength}
}

// Hash generates a salted hash from a plaintext password using bcrypt.
func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}

	return string(bytes), nil
}

// Check compares a plaintext password with a bcrypt hash.
func (h *bcryptHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength lists every unmet requirement in the returned error.
func (h *bcryptHasher) ValidatePasswordStrength(password string) error {
	var problems []string

	length := len([]rune(password))
	if h.strength.MinLength > 0 && length < h.strength.MinLength {
		problems = append(problems, fmt.Sprintf("at least %d characters", h.strength.MinLength))
	}
	if h.strength.MaxLength > 0 && length > h.strength.MaxLength {
		problems = append(problems, fmt.Sprintf("at most %d characters", h.strength.MaxLength))
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		problems = append(problems, "at most 72 bytes")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if h.strength.RequireUppercase && !upper {
		problems = append(problems, "an uppercase letter")
	}
	if h.strength.RequireLowercase && !lower {
		problems = append(problems, "a lowercase letter")
	}
	if h.strength.RequireNumbers && !digit {
		problems = append(problems, "a number")
	}
	if h.strength.RequireSpecial && !special {
		problems = append(problems, "a special character")
	}

	if len(problems) > 0 {
		return errors.Errorf("password must contain %s", strings.Join(problems, ", "))
	}

	return nil
}
