package middleware

import (
	"log/slog"
	"strings"

	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const bearerPrefix = "Bearer "

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Logger *slog.Logger
}

// AuthMiddleware guards protected routes with the access token.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
	logger *slog.Logger
}

func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{authUC: params.AuthUC, logger: params.Logger}
}

// Authenticate rejects requests without a valid, unrevoked access token. Clients only ever see
// the generic unauthorized message; the concrete reason goes to the log.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger)

		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			logger.Debug("Access token missing", slog.String("path", c.Request().URL.Path))

			return domainerrors.ErrUnauthorized
		}

		principal, err := m.authUC.Authenticate(ctx, token)
		if err != nil {
			logger.Info("Access token rejected",
				slog.String("reason", domainerrors.TokenFailureReason(err)),
				slog.String("path", c.Request().URL.Path),
			)

			return err
		}

		c.SetRequest(c.Request().WithContext(deliverycontext.WithPrincipal(ctx, principal)))

		return next(c)
	}
}

// RequireRole must run after Authenticate.
func (m *AuthMiddleware) RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := deliverycontext.GetPrincipal(c.Request().Context())
			if principal == nil {
				return domainerrors.ErrUnauthorized
			}
			if principal.Role != role {
				return domainerrors.ErrForbidden
			}

			return next(c)
		}
	}
}

// GetPrincipal returns the caller stored by Authenticate.
func GetPrincipal(c echo.Context) (*entity.Principal, bool) {
	principal := deliverycontext.GetPrincipal(c.Request().Context())

	return principal, principal != nil
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])

	return token, token != ""
}
