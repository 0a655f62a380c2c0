package entity

import (
	"time"

	"github.com/google/uuid"
)

// ClientInfo is derived from the user agent.
type ClientInfo struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
}

// AuditEntry is what callers hand to the recorder. The recorder derives everything else.
type AuditEntry struct {
	ActorID      *uuid.UUID
	Action       Action
	Status       AuditStatus
	ResourceType string
	ResourceID   string
	Before       map[string]any
	After        map[string]any
	Details      map[string]any
	Meta         RequestMeta
}

// AuditEvent is an immutable audit trail record.
type AuditEvent struct {
	ID            uuid.UUID      `json:"id"`
	UserID        *uuid.UUID     `json:"userId,omitempty"`
	Action        Action         `json:"action"`
	Status        AuditStatus    `json:"status"`
	Category      EventCategory  `json:"eventCategory"`
	Severity      Severity       `json:"severityLevel"`
	ResourceType  string         `json:"resourceType,omitempty"`
	ResourceID    string         `json:"resourceId,omitempty"`
	IPAddress     string         `json:"ipAddress,omitempty"`
	UserAgent     string         `json:"userAgent,omitempty"`
	Client        ClientInfo     `json:"clientInfo"`
	BeforeState   map[string]any `json:"beforeState,omitempty"`
	AfterState    map[string]any `json:"afterState,omitempty"`
	ChangedFields []string       `json:"changedFields,omitempty"`
	JourneyID     string         `json:"journeyId"`
	Endpoint      string         `json:"endpoint,omitempty"`
	HTTPMethod    string         `json:"httpMethod,omitempty"`
	RequestID     string         `json:"requestId,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// AuditFilter narrows audit queries. Zero values mean "any".
type AuditFilter struct {
	UserID       *uuid.UUID
	Action       Action
	Category     EventCategory
	Severity     Severity
	Status       AuditStatus
	ResourceType string
	ResourceID   string
	JourneyID    string
	Start        *time.Time
	End          *time.Time
	Search       string
}

// PageRequest is a 1-based page with a clamped page size.
type PageRequest struct {
	Page  int
	Limit int
}

func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}

	return (p.Page - 1) * p.Limit
}

// AuditFilterOptions lists the distinct values present in the store.
type AuditFilterOptions struct {
	Actions    []string `json:"actions"`
	Categories []string `json:"categories"`
	Severities []string `json:"severities"`
	Statuses   []string `json:"statuses"`
}

// ActivitySummary aggregates one user's audit trail.
type ActivitySummary struct {
	UserID       uuid.UUID        `json:"userId"`
	Total        int64            `json:"total"`
	ByStatus     map[string]int64 `json:"byStatus"`
	ByCategory   map[string]int64 `json:"byCategory"`
	BySeverity   map[string]int64 `json:"bySeverity"`
	FailedLogins int64            `json:"failedLogins"`
	DistinctIPs  int64            `json:"distinctIps"`
	LastActivity *time.Time       `json:"lastActivity,omitempty"`
}
