package postgres

import (
	"context"
	"strings"
	"time"

	"warden/internal/domain/entity"
	"warden/internal/domain/repository"
	"warden/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository returns the audit trail store. Reads are served by replicas when configured.
func NewAuditRepository(db *gorm.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) Create(ctx context.Context, event *entity.AuditEvent) error {
	if err := repo.db.WithContext(ctx).Create(fromAuditDomain(event)).Error; err != nil {
		if isCheckConstraintViolation(err) {
			return errors.Wrapf(err, "audit event %s rejected by schema", event.ID)
		}

		return errors.Wrap(err, "failed to create audit event")
	}

	return nil
}

func (repo *auditRepository) Find(ctx context.Context, filter entity.AuditFilter, page entity.PageRequest) ([]*entity.AuditEvent, int64, error) {
	var total int64
	if err := repo.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count audit events")
	}
	if total == 0 {
		return []*entity.AuditEvent{}, 0, nil
	}

	var rows []*model.AuditEventModel
	err := repo.filtered(ctx, filter).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to find audit events")
	}

	events := make([]*entity.AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, toAuditDomain(row))
	}

	return events, total, nil
}

func (repo *auditRepository) DeleteBetween(ctx context.Context, start, end time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Delete(&model.AuditEventModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to purge audit events")
	}

	return result.RowsAffected, nil
}

func (repo *auditRepository) DistinctValues(ctx context.Context, userID *uuid.UUID) (*entity.AuditFilterOptions, error) {
	opts := &entity.AuditFilterOptions{}
	columns := []struct {
		name string
		dst  *[]string
	}{
		{"action", &opts.Actions},
		{"event_category", &opts.Categories},
		{"severity_level", &opts.Severities},
		{"status", &opts.Statuses},
	}

	for _, col := range columns {
		values := []string{}
		tx := repo.db.WithContext(ctx).Model(&model.AuditEventModel{})
		if userID != nil {
			tx = tx.Where("user_id = ?", *userID)
		}
		err := tx.
			Distinct(col.name).
			Order(col.name).
			Pluck(col.name, &values).Error
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list distinct %s", col.name)
		}
		*col.dst = values
	}

	return opts, nil
}

type groupCount struct {
	GroupKey string
	Total    int64
}

func (repo *auditRepository) Summarize(ctx context.Context, userID uuid.UUID, start, end *time.Time) (*entity.ActivitySummary, error) {
	summary := &entity.ActivitySummary{
		UserID:     userID,
		ByStatus:   map[string]int64{},
		ByCategory: map[string]int64{},
		BySeverity: map[string]int64{},
	}
	scope := func() *gorm.DB {
		tx := repo.db.WithContext(ctx).Model(&model.AuditEventModel{}).Where("user_id = ?", userID)
		if start != nil {
			tx = tx.Where("created_at >= ?", *start)
		}
		if end != nil {
			tx = tx.Where("created_at < ?", *end)
		}

		return tx
	}

	groups := []struct {
		column string
		dst    map[string]int64
	}{
		{"status", summary.ByStatus},
		{"event_category", summary.ByCategory},
		{"severity_level", summary.BySeverity},
	}
	for _, group := range groups {
		var counts []groupCount
		err := scope().
			Select(group.column + " AS group_key, COUNT(*) AS total").
			Group(group.column).
			Scan(&counts).Error
		if err != nil {
			return nil, errors.Wrapf(err, "failed to group audit events by %s", group.column)
		}
		for _, c := range counts {
			group.dst[c.GroupKey] = c.Total
			if group.column == "status" {
				summary.Total += c.Total
			}
		}
	}

	err := scope().
		Where("action = ? AND status = ?", string(entity.ActionLogin), string(entity.StatusFailed)).
		Count(&summary.FailedLogins).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to count failed logins")
	}

	err = scope().
		Where("ip_address <> ''").
		Distinct("ip_address").
		Count(&summary.DistinctIPs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to count distinct ips")
	}

	var last struct {
		LastActivity *time.Time
	}
	if err := scope().Select("MAX(created_at) AS last_activity").Scan(&last).Error; err != nil {
		return nil, errors.Wrap(err, "failed to read last activity")
	}
	summary.LastActivity = last.LastActivity

	return summary, nil
}

// filtered builds the shared WHERE clause of Find. Search is a case-insensitive substring match.
func (repo *auditRepository) filtered(ctx context.Context, filter entity.AuditFilter) *gorm.DB {
	tx := repo.db.WithContext(ctx).Clauses(dbresolver.Read).Model(&model.AuditEventModel{})

	if filter.UserID != nil {
		tx = tx.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		tx = tx.Where("action = ?", string(filter.Action))
	}
	if filter.Category != "" {
		tx = tx.Where("event_category = ?", string(filter.Category))
	}
	if filter.Severity != "" {
		tx = tx.Where("severity_level = ?", string(filter.Severity))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.ResourceType != "" {
		tx = tx.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		tx = tx.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.JourneyID != "" {
		tx = tx.Where("journey_id = ?", filter.JourneyID)
	}
	if filter.Start != nil {
		tx = tx.Where("created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		tx = tx.Where("created_at < ?", *filter.End)
	}
	if text := strings.TrimSpace(filter.Search); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		tx = tx.Where(
			"(action ILIKE ? OR endpoint ILIKE ? OR resource_id ILIKE ? OR user_agent ILIKE ? OR ip_address ILIKE ?)",
			pattern, pattern, pattern, pattern, pattern,
		)
	}

	return tx
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func toAuditDomain(data *model.AuditEventModel) *entity.AuditEvent {
	return &entity.AuditEvent{
		ID:           data.ID,
		UserID:       data.UserID,
		Action:       entity.Action(data.Action),
		Status:       entity.AuditStatus(data.Status),
		Category:     entity.EventCategory(data.EventCategory),
		Severity:     entity.Severity(data.SeverityLevel),
		ResourceType: data.ResourceType,
		ResourceID:   data.ResourceID,
		IPAddress:    data.IPAddress,
		UserAgent:    data.UserAgent,
		Client: entity.ClientInfo{
			Browser: data.Browser,
			OS:      data.OS,
			Device:  data.Device,
		},
		BeforeState:   data.BeforeState,
		AfterState:    data.AfterState,
		ChangedFields: data.ChangedFields,
		JourneyID:     data.JourneyID,
		Endpoint:      data.Endpoint,
		HTTPMethod:    data.HTTPMethod,
		RequestID:     data.RequestID,
		Details:       data.Details,
		CreatedAt:     data.CreatedAt,
	}
}

func fromAuditDomain(data *entity.AuditEvent) *model.AuditEventModel {
	return &model.AuditEventModel{
		ID:            data.ID,
		UserID:        data.UserID,
		Action:        string(data.Action),
		Status:        string(data.Status),
		EventCategory: string(data.Category),
		SeverityLevel: string(data.Severity),
		ResourceType:  data.ResourceType,
		ResourceID:    data.ResourceID,
		IPAddress:     data.IPAddress,
		UserAgent:     data.UserAgent,
		Browser:       data.Client.Browser,
		OS:            data.Client.OS,
		Device:        data.Client.Device,
		BeforeState:   data.BeforeState,
		AfterState:    data.AfterState,
		ChangedFields: data.ChangedFields,
		JourneyID:     data.JourneyID,
		Endpoint:      data.Endpoint,
		HTTPMethod:    data.HTTPMethod,
		RequestID:     data.RequestID,
		Details:       data.Details,
		CreatedAt:     data.CreatedAt,
	}
}
