package entity

import (
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated caller of a protected route.
type Principal struct {
	UserID    uuid.UUID
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// RequestMeta is the client information captured per request and passed explicitly to use cases.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Endpoint  string
	Method    string
	RequestID string
	JourneyID string
}
