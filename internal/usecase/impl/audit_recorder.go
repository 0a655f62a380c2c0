package impl

import (
	"context"
	"log/slog"
	"maps"

	"warden/config"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/entity"
	"warden/internal/domain/repository"
	"warden/internal/domain/service"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

type auditRecorder struct {
	dispatcher *auditDispatcher
	parser     service.ClientInfoParser
	clock      service.Clock
	logger     *slog.Logger
}

// AuditRecorderParams holds dependencies for the audit recorder, injected by Fx.
type AuditRecorderParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	AuditRepo repository.AuditRepository
	Publisher service.AuditEventPublisher
	Parser    service.ClientInfoParser
	Clock     service.Clock
	Logger    *slog.Logger
}

// NewAuditRecorder starts the worker pool with the application and drains it on stop.
func NewAuditRecorder(params AuditRecorderParams) usecase.AuditRecorder {
	recorder := newAuditRecorder(
		newAuditDispatcher(params.AuditRepo, params.Publisher, params.Logger,
			params.Config.Audit.Workers, params.Config.Audit.QueueSize),
		params.Parser,
		params.Clock,
		params.Logger,
	)

	params.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			recorder.dispatcher.start()

			return nil
		},
		OnStop: recorder.Close,
	})

	return recorder
}

func newAuditRecorder(dispatcher *auditDispatcher, parser service.ClientInfoParser, clock service.Clock, logger *slog.Logger) *auditRecorder {
	return &auditRecorder{
		dispatcher: dispatcher,
		parser:     parser,
		clock:      clock,
		logger:     logger,
	}
}

// Record builds the event synchronously and hands it to the dispatcher.
// After Close it silently does nothing.
func (r *auditRecorder) Record(ctx context.Context, entry entity.AuditEntry) {
	if r.dispatcher.isClosed() {
		return
	}

	logger := deliverycontext.GetLoggerOrDefault(ctx, r.logger)
	if entry.ActorID == nil && !entry.Action.AllowsAnonymous() {
		logger.Debug("Skipping audit event without actor", slog.String("action", string(entry.Action)))

		return
	}
	if !entry.Action.Registered() {
		logger.Warn("Unregistered audit action, classified by keyword",
			slog.String("action", string(entry.Action)),
			slog.String("category", string(entry.Action.Category())))
	}

	r.dispatcher.enqueue(r.build(entry))
}

// Close stops the dispatcher; see auditDispatcher.close.
func (r *auditRecorder) Close(ctx context.Context) error {
	return r.dispatcher.close(ctx)
}

func (r *auditRecorder) build(entry entity.AuditEntry) *entity.AuditEvent {
	now := r.clock.Now()
	status := entry.Status
	if !status.IsValid() {
		status = entity.StatusSuccess
	}

	event := &entity.AuditEvent{
		ID:            uuid.New(),
		UserID:        entry.ActorID,
		Action:        entry.Action,
		Status:        status,
		Category:      entry.Action.Category(),
		Severity:      entry.Action.Severity(status),
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		IPAddress:     entry.Meta.IPAddress,
		UserAgent:     entry.Meta.UserAgent,
		BeforeState:   redactSnapshot(entry.Before),
		AfterState:    redactSnapshot(entry.After),
		ChangedFields: changedFields(entry.Before, entry.After),
		JourneyID:     resolveJourneyID(entry.Meta.JourneyID, entry.ActorID, entry.Meta.IPAddress, now),
		Endpoint:      entry.Meta.Endpoint,
		HTTPMethod:    entry.Meta.Method,
		RequestID:     entry.Meta.RequestID,
		Details:       maps.Clone(entry.Details),
		CreatedAt:     now,
	}
	if r.parser != nil {
		event.Client = r.parser.Parse(entry.Meta.UserAgent)
	}

	return event
}
