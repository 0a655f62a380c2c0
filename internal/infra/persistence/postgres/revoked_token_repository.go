package postgres

import (
	"context"
	"time"

	"warden/internal/domain/repository"
	"warden/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

type revokedTokenRepository struct {
	db *gorm.DB
}

// NewRevokedTokenRepository stores the revocation list in the revoked_tokens table.
func NewRevokedTokenRepository(db *gorm.DB) repository.RevokedTokenRepository {
	return &revokedTokenRepository{db: db}
}

func (repo *revokedTokenRepository) Revoke(ctx context.Context, jti string, userID uuid.UUID, reason string, expiresAt time.Time) error {
	row := &model.RevokedTokenModel{
		JTI:       jti,
		UserID:    userID,
		Reason:    reason,
		ExpiresAt: expiresAt,
	}

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return errors.Wrap(err, "failed to revoke token")
	}

	return nil
}

// IsRevoked reads from the primary; a replica may not have seen a logout yet.
func (repo *revokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Model(&model.RevokedTokenModel{}).
		Where("jti = ? AND expires_at > ?", jti, time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check revoked token")
	}

	return count > 0, nil
}

func (repo *revokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.RevokedTokenModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired revoked tokens")
	}

	return result.RowsAffected, nil
}
