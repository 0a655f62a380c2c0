package service

import (
	"context"

	"warden/internal/domain/entity"
)

// AuditExporter writes a batch of audit events to durable object storage.
type AuditExporter interface {
	// Export stores events under key and returns the object location.
	Export(ctx context.Context, key string, events []*entity.AuditEvent) (string, error)
}
