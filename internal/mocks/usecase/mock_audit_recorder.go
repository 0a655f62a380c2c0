// Package usecase provides test doubles for the use case contracts.
package usecase

import (
	"context"
	"sync"

	"warden/internal/domain/entity"
)

// AuditRecorder keeps every recorded entry in memory.
type AuditRecorder struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
}

func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

func (r *AuditRecorder) Record(_ context.Context, entry entity.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *AuditRecorder) Entries() []entity.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.AuditEntry(nil), r.entries...)
}

// Actions lists recorded actions in order, suffixed with the status.
func (r *AuditRecorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, string(entry.Action)+":"+string(entry.Status))
	}

	return actions
}
