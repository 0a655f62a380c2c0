package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/config"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/domain/repository"
	"warden/internal/domain/service"
	"warden/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const auditResourceType = "audit_log"

type auditQueryService struct {
	auditRepo       repository.AuditRepository
	exporter        service.AuditExporter
	recorder        usecase.AuditRecorder
	clock           service.Clock
	maxRange        time.Duration
	defaultPageSize int
	maxPageSize     int
	maxExportRows   int
	logger          *slog.Logger
}

// AuditQueryServiceParams holds dependencies for the audit query service, injected by Fx.
type AuditQueryServiceParams struct {
	fx.In

	AuditRepo repository.AuditRepository
	Exporter  service.AuditExporter `optional:"true"`
	Recorder  usecase.AuditRecorder
	Clock     service.Clock
	Config    *config.Config
	Logger    *slog.Logger
}

func NewAuditQueryService(params AuditQueryServiceParams) usecase.AuditQueryUsecase {
	auditCfg := params.Config.Audit

	return &auditQueryService{
		auditRepo:       params.AuditRepo,
		exporter:        params.Exporter,
		recorder:        params.Recorder,
		clock:           params.Clock,
		maxRange:        auditCfg.MaxQueryRange,
		defaultPageSize: auditCfg.DefaultPageSize,
		maxPageSize:     auditCfg.MaxPageSize,
		maxExportRows:   auditCfg.MaxExportRows,
		logger:          params.Logger,
	}
}

func (srv *auditQueryService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *auditQueryService) Query(ctx context.Context, input usecase.QueryAuditInput) (*usecase.AuditPage, error) {
	return srv.query(ctx, input, entity.ActionAuditRetrieve)
}

func (srv *auditQueryService) Search(ctx context.Context, input usecase.QueryAuditInput) (*usecase.AuditPage, error) {
	input.Filter.Search = strings.TrimSpace(input.Filter.Search)
	if input.Filter.Search == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("search text is required")
	}

	return srv.query(ctx, input, entity.ActionAuditSearch)
}

func (srv *auditQueryService) query(ctx context.Context, input usecase.QueryAuditInput, action entity.Action) (*usecase.AuditPage, error) {
	filter := scopeToCaller(input.Principal, input.Filter)
	if err := srv.boundRange(&filter); err != nil {
		return nil, err
	}

	page := srv.pageRequest(input.Page, input.Limit)
	items, total, err := srv.auditRepo.Find(ctx, filter, page)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit events")
	}

	srv.recordAccess(ctx, action, input.Principal, input.Meta, map[string]any{"results": len(items)})

	return newAuditPage(items, total, page), nil
}

func (srv *auditQueryService) Purge(ctx context.Context, input usecase.PurgeAuditInput) (*usecase.PurgeAuditOutput, error) {
	if !input.Principal.IsAdmin() {
		return nil, errors.Wrap(domainerrors.ErrForbidden, "purge requires the admin role")
	}
	if !input.Start.Before(input.End) {
		return nil, domainerrors.ErrInvalidDateRange.WithDetails("start must be before end")
	}

	deleted, err := srv.auditRepo.DeleteBetween(ctx, input.Start, input.End)
	if err != nil {
		return nil, errors.Wrap(err, "failed to purge audit events")
	}

	srv.log(ctx).Warn("Audit events purged",
		slog.Int64("deleted", deleted),
		slog.Time("start", input.Start),
		slog.Time("end", input.End),
		slog.String("operator", input.Principal.UserID.String()))
	srv.recordAccess(ctx, entity.ActionAuditPurge, input.Principal, input.Meta, map[string]any{
		"start":   input.Start,
		"end":     input.End,
		"deleted": deleted,
	})

	return &usecase.PurgeAuditOutput{Deleted: deleted}, nil
}

// FilterOptions lists values present in the caller's visible events; non-admins only see their own.
func (srv *auditQueryService) FilterOptions(ctx context.Context, principal entity.Principal) (*entity.AuditFilterOptions, error) {
	scoped := scopeToCaller(principal, entity.AuditFilter{})
	options, err := srv.auditRepo.DistinctValues(ctx, scoped.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load audit filter options")
	}

	return options, nil
}

func (srv *auditQueryService) Summarize(ctx context.Context, input usecase.SummarizeInput) (*entity.ActivitySummary, error) {
	if !input.Principal.IsAdmin() && input.Principal.UserID != input.UserID {
		return nil, errors.Wrap(domainerrors.ErrForbidden, "cannot summarize another user's activity")
	}
	window := entity.AuditFilter{Start: input.Start, End: input.End}
	if err := srv.boundRange(&window); err != nil {
		return nil, err
	}

	summary, err := srv.auditRepo.Summarize(ctx, input.UserID, window.Start, window.End)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize audit events")
	}

	srv.recordAccess(ctx, entity.ActionAuditSummary, input.Principal, input.Meta, map[string]any{"subject": input.UserID.String()})

	return summary, nil
}

func (srv *auditQueryService) ForResource(ctx context.Context, input usecase.ResourceAuditInput) (*usecase.AuditPage, error) {
	if strings.TrimSpace(input.ResourceType) == "" || strings.TrimSpace(input.ResourceID) == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("resource type and id are required")
	}

	return srv.query(ctx, usecase.QueryAuditInput{
		Principal: input.Principal,
		Filter: entity.AuditFilter{
			ResourceType: input.ResourceType,
			ResourceID:   input.ResourceID,
		},
		Page:  input.Page,
		Limit: input.Limit,
		Meta:  input.Meta,
	}, entity.ActionAuditRetrieve)
}

// Export writes matching events as NDJSON to the configured bucket, capped at maxExportRows.
func (srv *auditQueryService) Export(ctx context.Context, input usecase.ExportAuditInput) (*usecase.ExportAuditOutput, error) {
	if !input.Principal.IsAdmin() {
		return nil, errors.Wrap(domainerrors.ErrForbidden, "export requires the admin role")
	}
	if srv.exporter == nil {
		return nil, domainerrors.ErrExportUnavailable
	}

	filter := input.Filter
	if err := srv.boundRange(&filter); err != nil {
		return nil, err
	}

	items, _, err := srv.auditRepo.Find(ctx, filter, entity.PageRequest{Page: 1, Limit: srv.maxExportRows})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load audit events for export")
	}

	now := srv.clock.Now().UTC()
	key := fmt.Sprintf("audit-exports/%s/%s.ndjson", now.Format("2006-01-02"), now.Format("20060102T150405.000000000Z"))
	location, err := srv.exporter.Export(ctx, key, items)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export audit events")
	}

	srv.recordAccess(ctx, entity.ActionAuditExport, input.Principal, input.Meta, map[string]any{
		"location": location,
		"count":    len(items),
	})

	return &usecase.ExportAuditOutput{Location: location, Count: len(items)}, nil
}

// boundRange rejects inverted or oversized ranges and closes open ends so every query
// covers at most maxRange.
func (srv *auditQueryService) boundRange(filter *entity.AuditFilter) error {
	end := srv.clock.Now()
	if filter.End != nil {
		end = *filter.End
	}
	start := end.Add(-srv.maxRange)
	if filter.Start != nil {
		start = *filter.Start
	}

	if !start.Before(end) {
		return domainerrors.ErrInvalidDateRange.WithDetails("start must be before end")
	}
	if end.Sub(start) > srv.maxRange {
		return domainerrors.ErrInvalidDateRange.WithDetails(fmt.Sprintf("date range may span at most %s", srv.maxRange))
	}

	filter.Start = &start
	filter.End = &end

	return nil
}

func (srv *auditQueryService) pageRequest(page, limit int) entity.PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = srv.defaultPageSize
	}
	if limit > srv.maxPageSize {
		limit = srv.maxPageSize
	}

	return entity.PageRequest{Page: page, Limit: limit}
}

func (srv *auditQueryService) recordAccess(ctx context.Context, action entity.Action, principal entity.Principal, meta entity.RequestMeta, details map[string]any) {
	if srv.recorder == nil {
		return
	}
	srv.recorder.Record(ctx, entity.AuditEntry{
		ActorID:      &principal.UserID,
		Action:       action,
		Status:       entity.StatusSuccess,
		ResourceType: auditResourceType,
		Details:      details,
		Meta:         meta,
	})
}

// scopeToCaller limits non-admin callers to their own events.
func scopeToCaller(principal entity.Principal, filter entity.AuditFilter) entity.AuditFilter {
	if !principal.IsAdmin() {
		userID := principal.UserID
		filter.UserID = &userID
	}

	return filter
}

func newAuditPage(items []*entity.AuditEvent, total int64, page entity.PageRequest) *usecase.AuditPage {
	totalPages := 0
	if page.Limit > 0 {
		totalPages = int((total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	if items == nil {
		items = []*entity.AuditEvent{}
	}

	return &usecase.AuditPage{
		Items:      items,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages,
	}
}
