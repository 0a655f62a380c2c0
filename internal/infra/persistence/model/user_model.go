package model

import (
	"time"

	"github.com/google/uuid"
)

// UserModel mirrors the 'users' table.
type UserModel struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email                 string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username              string     `gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash          string     `gorm:"type:varchar(255);not null"`
	Role                  string     `gorm:"type:varchar(20);not null;default:user"`
	IsVerified            bool       `gorm:"not null;default:false"`
	VerificationToken     *string    `gorm:"type:varchar(128);uniqueIndex"`
	VerificationExpiresAt *time.Time `gorm:"type:timestamptz"`
	FailedLoginAttempts   int        `gorm:"not null;default:0"`
	AccountLockedUntil    *time.Time `gorm:"type:timestamptz"`
	LastLoginAt           *time.Time `gorm:"type:timestamptz"`
	KnownIPs              []string   `gorm:"column:known_ips;type:jsonb;serializer:json;not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}
