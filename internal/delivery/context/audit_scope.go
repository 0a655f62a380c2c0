package context

import (
	"context"
	"maps"
	"sync"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
)

// AuditScope collects what a handler knows about the audited operation.
// The audit middleware turns it into an entry once the handler returns.
type AuditScope struct {
	mu           sync.Mutex
	actorID      *uuid.UUID
	status       entity.AuditStatus
	resourceType string
	resourceID   string
	before       map[string]any
	after        map[string]any
	details      map[string]any
	skip         bool
}

func NewAuditScope() *AuditScope {
	return &AuditScope{}
}

func WithAuditScope(ctx context.Context, scope *AuditScope) context.Context {
	return context.WithValue(ctx, KeyAuditScope, scope)
}

// GetAuditScope returns nil when the route is not audited.
func GetAuditScope(ctx context.Context) *AuditScope {
	if scope, ok := ctx.Value(KeyAuditScope).(*AuditScope); ok {
		return scope
	}

	return nil
}

func (s *AuditScope) SetActor(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actorID = &id
}

// SetStatus overrides the status derived from the handler result.
func (s *AuditScope) SetStatus(status entity.AuditStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *AuditScope) SetResource(resourceType, resourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resourceType = resourceType
	s.resourceID = resourceID
}

func (s *AuditScope) SetBefore(state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.before = maps.Clone(state)
}

func (s *AuditScope) SetAfter(state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after = maps.Clone(state)
}

func (s *AuditScope) AddDetail(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.details == nil {
		s.details = make(map[string]any)
	}
	s.details[key] = value
}

// Skip suppresses the event, e.g. when the use case already recorded it.
func (s *AuditScope) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip = true
}

// Entry builds the audit entry. ok is false when the scope was skipped.
// Fields the handler left empty fall back to the supplied defaults.
func (s *AuditScope) Entry(action entity.Action, status entity.AuditStatus, actor *uuid.UUID, meta entity.RequestMeta) (entry entity.AuditEntry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skip {
		return entity.AuditEntry{}, false
	}
	if s.status != "" {
		status = s.status
	}
	if s.actorID != nil {
		actor = s.actorID
	}

	return entity.AuditEntry{
		ActorID:      actor,
		Action:       action,
		Status:       status,
		ResourceType: s.resourceType,
		ResourceID:   s.resourceID,
		Before:       s.before,
		After:        s.after,
		Details:      s.details,
		Meta:         meta,
	}, true
}
