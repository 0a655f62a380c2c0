package middleware

import (
	"log/slog"
	"net/http"

	"warden/config"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// AuditMiddlewareParams holds dependencies for AuditMiddleware, injected by Fx.
type AuditMiddlewareParams struct {
	fx.In

	Recorder usecase.AuditRecorder
	Config   *config.Config
	Logger   *slog.Logger
}

// AuditMiddleware records one audit event per wrapped request.
type AuditMiddleware struct {
	recorder      usecase.AuditRecorder
	journeyHeader string
	journeyCookie string
	logger        *slog.Logger
}

func NewAuditMiddleware(params AuditMiddlewareParams) *AuditMiddleware {
	m := &AuditMiddleware{recorder: params.Recorder, logger: params.Logger}
	if params.Config.Audit != nil {
		m.journeyHeader = params.Config.Audit.JourneyHeader
		m.journeyCookie = params.Config.Audit.JourneyCookie
	}

	return m
}

// Meta extracts the audit request metadata with the configured journey sources.
func (m *AuditMiddleware) Meta(c echo.Context) entity.RequestMeta {
	return deliverycontext.RequestMeta(c, m.journeyHeader, m.journeyCookie)
}

// Audit wraps a handler. The handler may describe the operation through the AuditScope in its
// request context; the status follows the handler result unless the handler sets one.
func (m *AuditMiddleware) Audit(action entity.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scope := deliverycontext.NewAuditScope()
			ctx := deliverycontext.WithAuditScope(c.Request().Context(), scope)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			var actor *uuid.UUID
			if principal := deliverycontext.GetPrincipal(c.Request().Context()); principal != nil {
				id := principal.UserID
				actor = &id
			}

			entry, ok := scope.Entry(action, statusOf(c, err), actor, m.Meta(c))
			if !ok {
				return err
			}
			if err != nil {
				entry.Details = withErrorCode(entry.Details, err)
			}

			m.recorder.Record(c.Request().Context(), entry)

			return err
		}
	}
}

func statusOf(c echo.Context, err error) entity.AuditStatus {
	if err != nil {
		return entity.StatusFailed
	}
	if c.Response().Status >= http.StatusBadRequest {
		return entity.StatusFailed
	}

	return entity.StatusSuccess
}

func withErrorCode(details map[string]any, err error) map[string]any {
	code := "INTERNAL_ERROR"
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.ErrorCode()
	}

	if details == nil {
		details = make(map[string]any, 1)
	}
	details["errorCode"] = code

	return details
}
