package postgres

import (
	"context"

	"warden/internal/domain/entity"
	"warden/internal/domain/repository"
	"warden/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns the repository as a domain interface. db may be a transaction.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return repo.first(ctx, repo.db.WithContext(ctx).Where("id = ?", id), "id")
}

func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.first(ctx, repo.db.WithContext(ctx).Where("email = ?", email), "email")
}

// FindByEmailForUpdate takes a row lock held until the surrounding transaction ends.
func (repo *userRepository) FindByEmailForUpdate(ctx context.Context, email string) (*entity.User, error) {
	tx := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("email = ?", email)

	return repo.first(ctx, tx, "email for update")
}

func (repo *userRepository) FindByVerificationToken(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, repository.ErrUserNotFound
	}

	return repo.first(ctx, repo.db.WithContext(ctx).Where("verification_token = ?", token), "verification token")
}

func (repo *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("username = ?", username).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check username")
	}

	return count > 0, nil
}

func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)
	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrUserConflict
		}

		return errors.Wrap(err, "failed to create user")
	}

	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

// Update writes every mutable column, including zero values such as a reset attempt counter.
func (repo *userRepository) Update(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{ID: user.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(userM)
	if result.Error != nil {
		if isUniqueConstraintViolation(result.Error) {
			return repository.ErrUserConflict
		}

		return errors.Wrap(result.Error, "failed to update user")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	user.UpdatedAt = userM.UpdatedAt

	return nil
}

func (repo *userRepository) first(_ context.Context, tx *gorm.DB, by string) (*entity.User, error) {
	var userM model.UserModel
	if err := tx.First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, errors.Wrapf(err, "failed to find user by %s", by)
	}

	return toUserDomain(&userM), nil
}

func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	user := &entity.User{
		ID:                    data.ID,
		Email:                 data.Email,
		Username:              data.Username,
		PasswordHash:          data.PasswordHash,
		Role:                  entity.Role(data.Role),
		IsVerified:            data.IsVerified,
		VerificationExpiresAt: data.VerificationExpiresAt,
		FailedLoginAttempts:   data.FailedLoginAttempts,
		AccountLockedUntil:    data.AccountLockedUntil,
		LastLoginAt:           data.LastLoginAt,
		KnownIPs:              data.KnownIPs,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
	}
	if data.VerificationToken != nil {
		user.VerificationToken = *data.VerificationToken
	}

	return user
}

func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	knownIPs := data.KnownIPs
	if knownIPs == nil {
		knownIPs = []string{}
	}

	userM := &model.UserModel{
		ID:                    data.ID,
		Email:                 data.Email,
		Username:              data.Username,
		PasswordHash:          data.PasswordHash,
		Role:                  string(data.Role),
		IsVerified:            data.IsVerified,
		VerificationExpiresAt: data.VerificationExpiresAt,
		FailedLoginAttempts:   data.FailedLoginAttempts,
		AccountLockedUntil:    data.AccountLockedUntil,
		LastLoginAt:           data.LastLoginAt,
		KnownIPs:              knownIPs,
		CreatedAt:             data.CreatedAt,
		UpdatedAt:             data.UpdatedAt,
	}
	if data.VerificationToken != "" {
		token := data.VerificationToken
		userM.VerificationToken = &token
	}

	return userM
}
