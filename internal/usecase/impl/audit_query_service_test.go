package impl

import (
	"context"
	"strings"
	"testing"
	"time"

	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/domain/service"
	mockrepo "warden/internal/mocks/repository"
	mocksvc "warden/internal/mocks/service"
	mockuc "warden/internal/mocks/usecase"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type queryFixture struct {
	svc      usecase.AuditQueryUsecase
	repo     *mockrepo.MockAuditRepository
	recorder *mockuc.AuditRecorder
}

func newQueryFixture(t *testing.T, exporter service.AuditExporter) *queryFixture {
	t.Helper()

	f := &queryFixture{
		repo:     mockrepo.NewMockAuditRepository(t),
		recorder: mockuc.NewAuditRecorder(),
	}
	f.svc = NewAuditQueryService(AuditQueryServiceParams{
		AuditRepo: f.repo,
		Exporter:  exporter,
		Recorder:  f.recorder,
		Clock:     mocksvc.NewFakeClock(testEpoch),
		Config:    newTestConfig(),
		Logger:    discardLogger(),
	})

	return f
}

func userPrincipal() entity.Principal {
	return entity.Principal{UserID: uuid.New(), Role: entity.RoleUser}
}

func adminPrincipal() entity.Principal {
	return entity.Principal{UserID: uuid.New(), Role: entity.RoleAdmin}
}

func ptr[T any](v T) *T {
	return &v
}

func TestQuery_ScopesNonAdminToOwnEvents(t *testing.T) {
	f := newQueryFixture(t, nil)
	caller := userPrincipal()
	other := uuid.New()

	f.repo.On("Find", mock.Anything, mock.MatchedBy(func(filter entity.AuditFilter) bool {
		return filter.UserID != nil && *filter.UserID == caller.UserID
	}), entity.PageRequest{Page: 1, Limit: 20}).
		Return([]*entity.AuditEvent{{ID: uuid.New()}}, int64(41), nil)

	page, err := f.svc.Query(context.Background(), usecase.QueryAuditInput{
		Principal: caller,
		Filter:    entity.AuditFilter{UserID: &other},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(41), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, []string{"audit-retrieve:success"}, f.recorder.Actions())
}

func TestQuery_AdminFilterIsKept(t *testing.T) {
	f := newQueryFixture(t, nil)
	subject := uuid.New()

	f.repo.On("Find", mock.Anything, mock.MatchedBy(func(filter entity.AuditFilter) bool {
		return filter.UserID != nil && *filter.UserID == subject
	}), entity.PageRequest{Page: 2, Limit: 100}).
		Return(nil, int64(0), nil)

	page, err := f.svc.Query(context.Background(), usecase.QueryAuditInput{
		Principal: adminPrincipal(),
		Filter:    entity.AuditFilter{UserID: &subject},
		Page:      2,
		Limit:     500,
	})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 100, page.Limit)
}

func TestQuery_ClosesOpenRange(t *testing.T) {
	f := newQueryFixture(t, nil)

	f.repo.On("Find", mock.Anything, mock.MatchedBy(func(filter entity.AuditFilter) bool {
		return filter.Start != nil && filter.End != nil &&
			filter.End.Equal(testEpoch) &&
			filter.Start.Equal(testEpoch.Add(-365*24*time.Hour))
	}), mock.Anything).
		Return(nil, int64(0), nil)

	_, err := f.svc.Query(context.Background(), usecase.QueryAuditInput{Principal: adminPrincipal()})
	require.NoError(t, err)
}

func TestQuery_RejectsBadRanges(t *testing.T) {
	f := newQueryFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Query(ctx, usecase.QueryAuditInput{
		Principal: adminPrincipal(),
		Filter:    entity.AuditFilter{Start: ptr(testEpoch), End: ptr(testEpoch.Add(-time.Hour))},
	})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidDateRange))

	_, err = f.svc.Query(ctx, usecase.QueryAuditInput{
		Principal: adminPrincipal(),
		Filter:    entity.AuditFilter{Start: ptr(testEpoch.Add(-400 * 24 * time.Hour)), End: ptr(testEpoch)},
	})
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidDateRange))

	f.repo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_RequiresText(t *testing.T) {
	f := newQueryFixture(t, nil)

	_, err := f.svc.Search(context.Background(), usecase.QueryAuditInput{
		Principal: adminPrincipal(),
		Filter:    entity.AuditFilter{Search: "   "},
	})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
}

func TestSearch_TrimsText(t *testing.T) {
	f := newQueryFixture(t, nil)

	f.repo.On("Find", mock.Anything, mock.MatchedBy(func(filter entity.AuditFilter) bool {
		return filter.Search == "login"
	}), mock.Anything).Return(nil, int64(0), nil)

	_, err := f.svc.Search(context.Background(), usecase.QueryAuditInput{
		Principal: adminPrincipal(),
		Filter:    entity.AuditFilter{Search: "  login "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"audit-search:success"}, f.recorder.Actions())
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	start := testEpoch.Add(-48 * time.Hour)
	end := testEpoch.Add(-24 * time.Hour)

	t.Run("admin only", func(t *testing.T) {
		f := newQueryFixture(t, nil)

		_, err := f.svc.Purge(ctx, usecase.PurgeAuditInput{Principal: userPrincipal(), Start: start, End: end})
		assert.True(t, errors.Is(err, domainerrors.ErrForbidden))
	})

	t.Run("inverted range", func(t *testing.T) {
		f := newQueryFixture(t, nil)

		_, err := f.svc.Purge(ctx, usecase.PurgeAuditInput{Principal: adminPrincipal(), Start: end, End: start})
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidDateRange))
	})

	t.Run("deletes and records", func(t *testing.T) {
		f := newQueryFixture(t, nil)
		f.repo.On("DeleteBetween", mock.Anything, start, end).Return(int64(12), nil)

		out, err := f.svc.Purge(ctx, usecase.PurgeAuditInput{Principal: adminPrincipal(), Start: start, End: end})
		require.NoError(t, err)
		assert.Equal(t, int64(12), out.Deleted)

		entries := f.recorder.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, entity.ActionAuditPurge, entries[0].Action)
		assert.Equal(t, int64(12), entries[0].Details["deleted"])
	})
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	t.Run("other user needs admin", func(t *testing.T) {
		f := newQueryFixture(t, nil)

		_, err := f.svc.Summarize(ctx, usecase.SummarizeInput{Principal: userPrincipal(), UserID: uuid.New()})
		assert.True(t, errors.Is(err, domainerrors.ErrForbidden))
	})

	t.Run("own summary over the default window", func(t *testing.T) {
		f := newQueryFixture(t, nil)
		caller := userPrincipal()
		want := &entity.ActivitySummary{UserID: caller.UserID, Total: 3, FailedLogins: 1}
		f.repo.On("Summarize", mock.Anything, caller.UserID,
			mock.MatchedBy(func(start *time.Time) bool { return start != nil && start.Equal(testEpoch.Add(-365*24*time.Hour)) }),
			mock.MatchedBy(func(end *time.Time) bool { return end != nil && end.Equal(testEpoch) }),
		).Return(want, nil)

		got, err := f.svc.Summarize(ctx, usecase.SummarizeInput{Principal: caller, UserID: caller.UserID})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("open start is closed relative to end", func(t *testing.T) {
		f := newQueryFixture(t, nil)
		caller := userPrincipal()
		end := testEpoch.Add(-48 * time.Hour)
		f.repo.On("Summarize", mock.Anything, caller.UserID,
			mock.MatchedBy(func(start *time.Time) bool { return start != nil && start.Equal(end.Add(-365*24*time.Hour)) }),
			mock.MatchedBy(func(got *time.Time) bool { return got != nil && got.Equal(end) }),
		).Return(&entity.ActivitySummary{UserID: caller.UserID}, nil)

		_, err := f.svc.Summarize(ctx, usecase.SummarizeInput{Principal: caller, UserID: caller.UserID, End: ptr(end)})
		require.NoError(t, err)
	})

	t.Run("span longer than a year", func(t *testing.T) {
		f := newQueryFixture(t, nil)
		caller := userPrincipal()

		_, err := f.svc.Summarize(ctx, usecase.SummarizeInput{
			Principal: caller,
			UserID:    caller.UserID,
			Start:     ptr(testEpoch.AddDate(-5, 0, 0)),
			End:       ptr(testEpoch),
		})
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidDateRange))
		f.repo.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("inverted range", func(t *testing.T) {
		f := newQueryFixture(t, nil)

		_, err := f.svc.Summarize(ctx, usecase.SummarizeInput{
			Principal: adminPrincipal(),
			UserID:    uuid.New(),
			Start:     ptr(testEpoch),
			End:       ptr(testEpoch.Add(-time.Hour)),
		})
		assert.True(t, errors.Is(err, domainerrors.ErrInvalidDateRange))
	})
}

func TestFilterOptions(t *testing.T) {
	ctx := context.Background()
	options := &entity.AuditFilterOptions{Actions: []string{"login"}}

	t.Run("non-admin sees own values only", func(t *testing.T) {
		f := newQueryFixture(t, nil)
		caller := userPrincipal()
		f.repo.On("DistinctValues", mock.Anything, mock.MatchedBy(func(id *uuid.UUID) bool {
			return id != nil && *id == caller.UserID
		})).Return(options, nil)

		got, err := f.svc.FilterOptions(ctx, caller)
		require.NoError(t, err)
		assert.Equal(t, options, got)
	})

	t.Run("admin sees every value", func(t *testing.T) {
		f := newQueryFixture(t, nil)
		f.repo.On("DistinctValues", mock.Anything, (*uuid.UUID)(nil)).Return(options, nil)

		_, err := f.svc.FilterOptions(ctx, adminPrincipal())
		require.NoError(t, err)
	})
}

func TestForResource_RequiresTypeAndID(t *testing.T) {
	f := newQueryFixture(t, nil)

	_, err := f.svc.ForResource(context.Background(), usecase.ResourceAuditInput{Principal: adminPrincipal(), ResourceType: "user"})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
}

func TestForResource_FiltersByResource(t *testing.T) {
	f := newQueryFixture(t, nil)

	f.repo.On("Find", mock.Anything, mock.MatchedBy(func(filter entity.AuditFilter) bool {
		return filter.ResourceType == "user" && filter.ResourceID == "42"
	}), mock.Anything).Return(nil, int64(0), nil)

	_, err := f.svc.ForResource(context.Background(), usecase.ResourceAuditInput{
		Principal:    adminPrincipal(),
		ResourceType: "user",
		ResourceID:   "42",
	})
	require.NoError(t, err)
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("unconfigured", func(t *testing.T) {
		f := newQueryFixture(t, nil)

		_, err := f.svc.Export(ctx, usecase.ExportAuditInput{Principal: adminPrincipal()})
		assert.True(t, errors.Is(err, domainerrors.ErrExportUnavailable))
	})

	t.Run("writes matching events", func(t *testing.T) {
		exporter := mocksvc.NewMockAuditExporter(t)
		f := newQueryFixture(t, exporter)
		events := []*entity.AuditEvent{{ID: uuid.New()}, {ID: uuid.New()}}

		f.repo.On("Find", mock.Anything, mock.Anything, entity.PageRequest{Page: 1, Limit: 10000}).
			Return(events, int64(2), nil)
		exporter.On("Export", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "audit-exports/2025-03-10/") && strings.HasSuffix(key, ".ndjson")
		}), events).Return("audit-exports/2025-03-10/x.ndjson", nil)

		out, err := f.svc.Export(ctx, usecase.ExportAuditInput{Principal: adminPrincipal()})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "audit-exports/2025-03-10/x.ndjson", out.Location)
		assert.Equal(t, []string{"audit-export:success"}, f.recorder.Actions())
	})

	t.Run("admin only", func(t *testing.T) {
		exporter := mocksvc.NewMockAuditExporter(t)
		f := newQueryFixture(t, exporter)

		_, err := f.svc.Export(ctx, usecase.ExportAuditInput{Principal: userPrincipal()})
		assert.True(t, errors.Is(err, domainerrors.ErrForbidden))
	})
}
