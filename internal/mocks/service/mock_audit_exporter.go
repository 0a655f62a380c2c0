package service

import (
	"context"
	"testing"

	"warden/internal/domain/entity"

	"github.com/stretchr/testify/mock"
)

type MockAuditExporter struct {
	mock.Mock
}

func NewMockAuditExporter(t *testing.T) *MockAuditExporter {
	m := &MockAuditExporter{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAuditExporter) Export(ctx context.Context, key string, events []*entity.AuditEvent) (string, error) {
	args := m.Called(ctx, key, events)

	return args.String(0), args.Error(1)
}
