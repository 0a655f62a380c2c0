package service

import (
	"context"
	"testing"

	"warden/internal/domain/service"

	"github.com/stretchr/testify/mock"
)

type MockAuditEventPublisher struct {
	mock.Mock
}

func NewMockAuditEventPublisher(t *testing.T) *MockAuditEventPublisher {
	m := &MockAuditEventPublisher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAuditEventPublisher) PublishAuditEvent(ctx context.Context, msg *service.AuditEventMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockAuditEventPublisher) Close() error {
	return m.Called().Error(0)
}
