package context

import (
	"context"
	"testing"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditScope_Entry(t *testing.T) {
	defaultActor := uuid.New()
	explicitActor := uuid.New()
	meta := entity.RequestMeta{IPAddress: "10.0.0.1"}

	scope := NewAuditScope()
	scope.SetActor(explicitActor)
	scope.SetResource("user", "42")
	before := map[string]any{"name": "A"}
	scope.SetBefore(before)
	scope.SetAfter(map[string]any{"name": "B"})
	scope.AddDetail("reason", "rename")
	before["name"] = "mutated"

	entry, ok := scope.Entry(entity.ActionUserUpdate, entity.StatusSuccess, &defaultActor, meta)
	require.True(t, ok)

	assert.Equal(t, explicitActor, *entry.ActorID)
	assert.Equal(t, entity.StatusSuccess, entry.Status)
	assert.Equal(t, "user", entry.ResourceType)
	assert.Equal(t, "42", entry.ResourceID)
	assert.Equal(t, "A", entry.Before["name"])
	assert.Equal(t, "B", entry.After["name"])
	assert.Equal(t, "rename", entry.Details["reason"])
	assert.Equal(t, meta, entry.Meta)
}

func TestAuditScope_StatusOverrideAndSkip(t *testing.T) {
	scope := NewAuditScope()
	scope.SetStatus(entity.StatusPending)

	entry, ok := scope.Entry(entity.ActionUserUpdate, entity.StatusSuccess, nil, entity.RequestMeta{})
	require.True(t, ok)
	assert.Equal(t, entity.StatusPending, entry.Status)
	assert.Nil(t, entry.ActorID)

	scope.Skip()
	_, ok = scope.Entry(entity.ActionUserUpdate, entity.StatusSuccess, nil, entity.RequestMeta{})
	assert.False(t, ok)
}

func TestScopeAndPrincipalRoundTripThroughContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetAuditScope(ctx))
	assert.Nil(t, GetPrincipal(ctx))

	scope := NewAuditScope()
	principal := &entity.Principal{UserID: uuid.New(), Role: entity.RoleAdmin}
	ctx = WithPrincipal(WithAuditScope(ctx, scope), principal)

	assert.Same(t, scope, GetAuditScope(ctx))
	assert.Same(t, principal, GetPrincipal(ctx))
}
