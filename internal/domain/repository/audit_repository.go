package repository

import (
	"context"
	"time"

	"warden/internal/domain/entity"

	"github.com/google/uuid"
)

// AuditRepository persists audit events. Events are append-only; the only delete is a range purge.
type AuditRepository interface {
	Create(ctx context.Context, event *entity.AuditEvent) error

	// Find returns one page of events, newest first, and the total number of matches.
	Find(ctx context.Context, filter entity.AuditFilter, page entity.PageRequest) ([]*entity.AuditEvent, int64, error)

	DeleteBetween(ctx context.Context, start, end time.Time) (int64, error)

	// DistinctValues lists the values present per filterable column, restricted to userID when set.
	DistinctValues(ctx context.Context, userID *uuid.UUID) (*entity.AuditFilterOptions, error)

	Summarize(ctx context.Context, userID uuid.UUID, start, end *time.Time) (*entity.ActivitySummary, error)
}
