// Package handler contains the echo handlers of the API.
package handler

import (
	"net/http"
	"strings"
	"time"

	"warden/config"
	deliverycontext "warden/internal/delivery/context"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// metaSource reads audit request metadata with the configured journey header and cookie.
type metaSource struct {
	journeyHeader string
	journeyCookie string
}

func newMetaSource(cfg *config.Config) metaSource {
	if cfg == nil || cfg.Audit == nil {
		return metaSource{}
	}

	return metaSource{journeyHeader: cfg.Audit.JourneyHeader, journeyCookie: cfg.Audit.JourneyCookie}
}

func (m metaSource) meta(c echo.Context) entity.RequestMeta {
	return deliverycontext.RequestMeta(c, m.journeyHeader, m.journeyCookie)
}

// principal returns the caller stored by the auth middleware.
func principal(c echo.Context) (entity.Principal, error) {
	p := deliverycontext.GetPrincipal(c.Request().Context())
	if p == nil {
		return entity.Principal{}, domainerrors.ErrUnauthorized
	}

	return *p, nil
}

// bindAndValidate turns binding failures into a 400 instead of echo's plain HTTPError.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("malformed request")
	}

	return c.Validate(req)
}

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()

			return &t, nil
		}
	}

	return nil, domainerrors.ErrValidationFailed.WithDetails(field + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

// HealthCheck reports liveness.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
