// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrUserConflict is returned when a unique email or username is already taken.
var ErrUserConflict = errors.New("user already exists")

// UserRepository defines the standard operations for user persistence.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByEmailForUpdate locks the row until the surrounding transaction ends.
	// It must only be called inside TransactionManager.Execute.
	FindByEmailForUpdate(ctx context.Context, email string) (*entity.User, error)

	FindByVerificationToken(ctx context.Context, token string) (*entity.User, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)

	Create(ctx context.Context, user *entity.User) error

	Update(ctx context.Context, user *entity.User) error
}
