package usecase

import (
	"context"
	"time"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
)

// AuditRecorder captures audit events. Record never fails the caller and never blocks on storage.
type AuditRecorder interface {
	Record(ctx context.Context, entry entity.AuditEntry)
}

// QueryAuditInput carries the caller, the filter and the requested page.
// Page and Limit of zero fall back to the configured defaults.
type QueryAuditInput struct {
	Principal entity.Principal
	Filter    entity.AuditFilter
	Page      int
	Limit     int
	Meta      entity.RequestMeta
}

type PurgeAuditInput struct {
	Principal entity.Principal
	Start     time.Time
	End       time.Time
	Meta      entity.RequestMeta
}

type SummarizeInput struct {
	Principal entity.Principal
	UserID    uuid.UUID
	Start     *time.Time
	End       *time.Time
	Meta      entity.RequestMeta
}

type ResourceAuditInput struct {
	Principal    entity.Principal
	ResourceType string
	ResourceID   string
	Page         int
	Limit        int
	Meta         entity.RequestMeta
}

type ExportAuditInput struct {
	Principal entity.Principal
	Filter    entity.AuditFilter
	Meta      entity.RequestMeta
}

// AuditPage is one page of audit events.
type AuditPage struct {
	Items      []*entity.AuditEvent `json:"items"`
	Total      int64                `json:"total"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalPages int                  `json:"totalPages"`
}

type PurgeAuditOutput struct {
	Deleted int64 `json:"deleted"`
}

type ExportAuditOutput struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// AuditQueryUsecase is the read side of the audit trail plus the operator purge.
type AuditQueryUsecase interface {
	Query(ctx context.Context, input QueryAuditInput) (*AuditPage, error)
	Search(ctx context.Context, input QueryAuditInput) (*AuditPage, error)
	Purge(ctx context.Context, input PurgeAuditInput) (*PurgeAuditOutput, error)
	FilterOptions(ctx context.Context, principal entity.Principal) (*entity.AuditFilterOptions, error)
	Summarize(ctx context.Context, input SummarizeInput) (*entity.ActivitySummary, error)
	ForResource(ctx context.Context, input ResourceAuditInput) (*AuditPage, error)
	Export(ctx context.Context, input ExportAuditInput) (*ExportAuditOutput, error)
}
