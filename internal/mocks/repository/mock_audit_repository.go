package repository

import (
	"context"
	"testing"
	"time"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockAuditRepository struct {
	mock.Mock
}

func NewMockAuditRepository(t *testing.T) *MockAuditRepository {
	m := &MockAuditRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAuditRepository) Create(ctx context.Context, event *entity.AuditEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockAuditRepository) Find(ctx context.Context, filter entity.AuditFilter, page entity.PageRequest) ([]*entity.AuditEvent, int64, error) {
	args := m.Called(ctx, filter, page)
	events, _ := args.Get(0).([]*entity.AuditEvent)

	return events, args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditRepository) DeleteBetween(ctx context.Context, start, end time.Time) (int64, error) {
	args := m.Called(ctx, start, end)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAuditRepository) DistinctValues(ctx context.Context, userID *uuid.UUID) (*entity.AuditFilterOptions, error) {
	args := m.Called(ctx, userID)
	options, _ := args.Get(0).(*entity.AuditFilterOptions)

	return options, args.Error(1)
}

func (m *MockAuditRepository) Summarize(ctx context.Context, userID uuid.UUID, start, end *time.Time) (*entity.ActivitySummary, error) {
	args := m.Called(ctx, userID, start, end)
	summary, _ := args.Get(0).(*entity.ActivitySummary)

	return summary, args.Error(1)
}
