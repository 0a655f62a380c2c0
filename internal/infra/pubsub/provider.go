// Package pubsub implements the real-time audit event sink.
package pubsub

import (
	"context"
	"log/slog"

	"warden/config"
	"warden/internal/domain/constants"
	"warden/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// noopPublisher is used when no sink is configured.
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishAuditEvent(ctx context.Context, msg *service.AuditEventMessage) error {
	p.logger.DebugContext(ctx, "audit sink disabled, skipping event",
		slog.String("event_id", msg.EventID),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

// PublisherParams holds dependencies for AuditEventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewAuditEventPublisher picks the sink named by pubsub.provider.
func NewAuditEventPublisher(params PublisherParams) (service.AuditEventPublisher, error) {
	cfg := params.Config.PubSub
	logger := params.Logger

	if cfg == nil || cfg.Provider == "" {
		logger.Info("PubSub not configured, audit events stay local")

		return &noopPublisher{logger: logger}, nil
	}

	var publisher service.AuditEventPublisher
	var err error

	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("local endpoint is required for local provider")
		}
		logger.Info("Using local HTTP push for audit events",
			slog.String("endpoint", cfg.LocalEndpoint),
		)

		publisher = NewLocalHTTPPublisher(cfg.LocalEndpoint, logger)

	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		if cfg.TopicID == "" {
			return nil, errors.New("topic ID is required for google provider")
		}

		publisher, err = NewGooglePubSubPublisher(params.Ctx, cfg.ProjectID, cfg.TopicID, logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", cfg.Provider)
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing audit event publisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

// messageAttributes lets subscriptions filter on severity or category without decoding the body.
func messageAttributes(msg *service.AuditEventMessage) map[string]string {
	attributes := map[string]string{
		"event_id": msg.EventID,
		"severity": msg.Severity,
		"category": msg.Category,
	}
	if msg.RequestID != "" {
		attributes["request_id"] = msg.RequestID
	}

	return attributes
}

// Module provides the Pub/Sub FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewAuditEventPublisher),
)
