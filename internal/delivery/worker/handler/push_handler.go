// Package handler contains the Pub/Sub push handler of the alert worker.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"warden/config"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/constants"
	"warden/internal/domain/entity"
	"warden/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// retryableError wraps an error to indicate it should trigger a Pub/Sub retry
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func newRetryableError(err error) error {
	return &retryableError{err: err}
}

func isRetryableError(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// tokenVerifier validates the OIDC token Pub/Sub attaches to push requests.
type tokenVerifier func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushHandler turns critical audit events into push alerts.
type PushHandler struct {
	verifyPushAuth bool
	audience       string
	verify         tokenVerifier
	alertTopic     string
	notifier       service.AlertNotifier
	isRetryable    func(error) bool
	logger         *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config      *config.Config
	Logger      *slog.Logger
	Notifier    service.AlertNotifier
	IsRetryable func(error) bool `name:"alertRetryable" optional:"true"`
}

func NewPushHandler(params PushHandlerParams) *PushHandler {
	cfg := params.Config
	verifyPushAuth := cfg.PubSub != nil &&
		cfg.PubSub.Provider == constants.PubSubProviderGoogle &&
		cfg.Env.Env != constants.EnvDevelop

	h := &PushHandler{
		verifyPushAuth: verifyPushAuth,
		verify:         idtoken.Validate,
		notifier:       params.Notifier,
		isRetryable:    params.IsRetryable,
		logger:         params.Logger,
	}
	if cfg.PubSub != nil {
		h.audience = cfg.PubSub.PushAudience
	}
	if cfg.Firebase != nil {
		h.alertTopic = cfg.Firebase.AlertTopic
	}
	if h.isRetryable == nil {
		h.isRetryable = func(error) bool { return true }
	}

	return h
}

// HandlePush acknowledges everything it cannot or need not act on. Only send failures
// the notifier considers transient answer 500 so Pub/Sub redelivers.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	var event service.AuditEventMessage
	if err := json.Unmarshal(data, &event); err != nil {
		h.logger.Error("[Worker] Failed to parse audit event", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	requestID := h.extractRequestID(ctx, &pushMsg, &event)
	reqLogger := h.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	if event.Severity != string(entity.SeverityCritical) {
		reqLogger.Debug("[Worker] Ignoring non-critical audit event",
			slog.String("event_id", event.EventID),
			slog.String("severity", event.Severity),
		)

		return c.NoContent(http.StatusOK)
	}

	if err := h.alert(ctx, &event); err != nil {
		reqLogger.Error("[Worker] Failed to send alert",
			slog.String("event_id", event.EventID),
			slog.Any("error", err),
			slog.Bool("retryable", isRetryableError(err)),
		)
		if isRetryableError(err) {
			return c.NoContent(http.StatusInternalServerError)
		}

		return c.NoContent(http.StatusOK)
	}

	reqLogger.Info("[Worker] Critical audit alert sent",
		slog.String("event_id", event.EventID),
		slog.String("action", event.Action),
	)

	return c.NoContent(http.StatusOK)
}

// extractRequestID prefers message attributes, then the payload, then the inbound request.
func (h *PushHandler) extractRequestID(ctx context.Context, pushMsg *PubSubMessage, event *service.AuditEventMessage) string {
	if requestID, ok := pushMsg.Message.Attributes["request_id"]; ok && requestID != "" {
		return requestID
	}
	if event.RequestID != "" {
		return event.RequestID
	}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// alert sends to the operator topic and, when the event has an actor, to that user's topic.
func (h *PushHandler) alert(ctx context.Context, event *service.AuditEventMessage) error {
	title, body, data := alertContent(event)

	topics := make([]string, 0, 2)
	if h.alertTopic != "" {
		topics = append(topics, h.alertTopic)
	}
	if event.UserID != "" {
		topics = append(topics, "user-"+event.UserID)
	}

	for _, topic := range topics {
		if err := h.notifier.SendTopicAlert(ctx, topic, title, body, data); err != nil {
			if h.isRetryable(err) {
				return newRetryableError(err)
			}

			return err
		}
	}

	return nil
}

func alertContent(event *service.AuditEventMessage) (title, body string, data map[string]string) {
	title = "Security alert: " + event.Action + " " + event.Status
	body = fmt.Sprintf("%s %s from %s", event.Action, event.Status, valueOr(event.IPAddress, "unknown address"))
	if event.Client.Browser != "" {
		body = fmt.Sprintf("%s using %s on %s", body, event.Client.Browser, valueOr(event.Client.OS, "unknown OS"))
	}

	data = map[string]string{
		"event_id":    event.EventID,
		"action":      event.Action,
		"status":      event.Status,
		"category":    event.Category,
		"severity":    event.Severity,
		"journey_id":  event.JourneyID,
		"occurred_at": event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if event.UserID != "" {
		data["user_id"] = event.UserID
	}

	return title, body, data
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}

	return v
}

// verifyPubSubToken checks the Google-signed OIDC token on push requests.
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func (h *PushHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	audience := h.audience
	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http"
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := h.verify(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}
	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
