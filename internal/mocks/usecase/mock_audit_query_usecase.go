package usecase

import (
	"context"
	"testing"

	"warden/internal/domain/entity"
	"warden/internal/usecase"

	"github.com/stretchr/testify/mock"
)

type MockAuditQueryUsecase struct {
	mock.Mock
}

func NewMockAuditQueryUsecase(t *testing.T) *MockAuditQueryUsecase {
	m := &MockAuditQueryUsecase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAuditQueryUsecase) Query(ctx context.Context, input usecase.QueryAuditInput) (*usecase.AuditPage, error) {
	args := m.Called(ctx, input)
	page, _ := args.Get(0).(*usecase.AuditPage)

	return page, args.Error(1)
}

func (m *MockAuditQueryUsecase) Search(ctx context.Context, input usecase.QueryAuditInput) (*usecase.AuditPage, error) {
	args := m.Called(ctx, input)
	page, _ := args.Get(0).(*usecase.AuditPage)

	return page, args.Error(1)
}

func (m *MockAuditQueryUsecase) Purge(ctx context.Context, input usecase.PurgeAuditInput) (*usecase.PurgeAuditOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.PurgeAuditOutput)

	return out, args.Error(1)
}

func (m *MockAuditQueryUsecase) FilterOptions(ctx context.Context, principal entity.Principal) (*entity.AuditFilterOptions, error) {
	args := m.Called(ctx, principal)
	out, _ := args.Get(0).(*entity.AuditFilterOptions)

	return out, args.Error(1)
}

func (m *MockAuditQueryUsecase) Summarize(ctx context.Context, input usecase.SummarizeInput) (*entity.ActivitySummary, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*entity.ActivitySummary)

	return out, args.Error(1)
}

func (m *MockAuditQueryUsecase) ForResource(ctx context.Context, input usecase.ResourceAuditInput) (*usecase.AuditPage, error) {
	args := m.Called(ctx, input)
	page, _ := args.Get(0).(*usecase.AuditPage)

	return page, args.Error(1)
}

func (m *MockAuditQueryUsecase) Export(ctx context.Context, input usecase.ExportAuditInput) (*usecase.ExportAuditOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.ExportAuditOutput)

	return out, args.Error(1)
}
