package model

import (
	"time"

	"github.com/google/uuid"
)

// RevokedTokenModel mirrors the 'revoked_tokens' table.
type RevokedTokenModel struct {
	JTI       string    `gorm:"column:jti;type:varchar(64);primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Reason    string    `gorm:"type:varchar(50);not null"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (RevokedTokenModel) TableName() string {
	return "revoked_tokens"
}
