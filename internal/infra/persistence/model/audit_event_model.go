package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventModel mirrors the 'audit_events' table. Rows are never updated.
type AuditEventModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID        *uuid.UUID     `gorm:"type:uuid;index:idx_audit_events_user_created,priority:1"`
	Action        string         `gorm:"type:varchar(100);not null;index"`
	Status        string         `gorm:"type:varchar(20);not null"`
	EventCategory string         `gorm:"type:varchar(50);not null;index"`
	SeverityLevel string         `gorm:"type:varchar(20);not null;index"`
	ResourceType  string         `gorm:"type:varchar(100)"`
	ResourceID    string         `gorm:"type:varchar(255)"`
	IPAddress     string         `gorm:"type:varchar(64)"`
	UserAgent     string         `gorm:"type:text"`
	Browser       string         `gorm:"type:varchar(100)"`
	OS            string         `gorm:"column:os;type:varchar(100)"`
	Device        string         `gorm:"type:varchar(50)"`
	BeforeState   map[string]any `gorm:"type:jsonb;serializer:json"`
	AfterState    map[string]any `gorm:"type:jsonb;serializer:json"`
	ChangedFields []string       `gorm:"type:jsonb;serializer:json"`
	JourneyID     string         `gorm:"type:varchar(100);not null;index"`
	Endpoint      string         `gorm:"type:varchar(255)"`
	HTTPMethod    string         `gorm:"column:http_method;type:varchar(10)"`
	RequestID     string         `gorm:"type:varchar(100)"`
	Details       map[string]any `gorm:"type:jsonb;serializer:json"`
	CreatedAt     time.Time      `gorm:"type:timestamptz;not null;index:idx_audit_events_user_created,priority:2"`
}

// TableName explicitly sets the table name for GORM.
func (AuditEventModel) TableName() string {
	return "audit_events"
}
