package service

import (
	"context"
	"time"

	"warden/internal/domain/entity"
)

// AuditEventMessage is the wire form of an audit event on the real-time sink.
type AuditEventMessage struct {
	EventID      string            `json:"event_id"`
	RequestID    string            `json:"request_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Action       string            `json:"action"`
	Status       string            `json:"status"`
	Category     string            `json:"category"`
	Severity     string            `json:"severity"`
	ResourceType string            `json:"resource_type,omitempty"`
	ResourceID   string            `json:"resource_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Client       entity.ClientInfo `json:"client"`
	JourneyID    string            `json:"journey_id"`
	Endpoint     string            `json:"endpoint,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// NewAuditEventMessage strips snapshots and details; subscribers fetch those through the query API.
func NewAuditEventMessage(event *entity.AuditEvent) *AuditEventMessage {
	msg := &AuditEventMessage{
		EventID:      event.ID.String(),
		RequestID:    event.RequestID,
		Action:       string(event.Action),
		Status:       string(event.Status),
		Category:     string(event.Category),
		Severity:     string(event.Severity),
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		IPAddress:    event.IPAddress,
		Client:       event.Client,
		JourneyID:    event.JourneyID,
		Endpoint:     event.Endpoint,
		OccurredAt:   event.CreatedAt,
	}
	if event.UserID != nil {
		msg.UserID = event.UserID.String()
	}

	return msg
}

// AuditEventPublisher pushes persisted audit events to a real-time sink.
type AuditEventPublisher interface {
	PublishAuditEvent(ctx context.Context, msg *AuditEventMessage) error

	// Close releases any resources held by the publisher
	Close() error
}
