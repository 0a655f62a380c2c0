package handler

import (
	"net/http"

	"warden/config"
	"warden/internal/delivery/api/response"
	"warden/internal/domain/entity"
	domainerrors "warden/internal/domain/errors"
	"warden/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuditHandlerParams holds dependencies for AuditHandler, injected by Fx.
type AuditHandlerParams struct {
	fx.In

	AuditUC usecase.AuditQueryUsecase
	Config  *config.Config
}

// AuditHandler serves the /audit-logs routes.
type AuditHandler struct {
	auditUC usecase.AuditQueryUsecase
	metaSource
}

func NewAuditHandler(params AuditHandlerParams) *AuditHandler {
	return &AuditHandler{
		auditUC:    params.AuditUC,
		metaSource: newMetaSource(params.Config),
	}
}

// AuditQueryRequest is the shared query string of the listing routes.
type AuditQueryRequest struct {
	UserID       string `query:"userId" validate:"omitempty,uuid"`
	Action       string `query:"action" validate:"omitempty,max=100"`
	Category     string `query:"eventCategory" validate:"omitempty,oneof=authentication data_modification data_access permission system"`
	Severity     string `query:"severityLevel" validate:"omitempty,oneof=info warning critical"`
	Status       string `query:"status" validate:"omitempty,oneof=success failed pending"`
	ResourceType string `query:"resourceType" validate:"omitempty,max=100"`
	ResourceID   string `query:"resourceId" validate:"omitempty,max=255"`
	JourneyID    string `query:"journeyId" validate:"omitempty,max=100"`
	StartDate    string `query:"startDate"`
	EndDate      string `query:"endDate"`
	Search       string `query:"q" validate:"omitempty,max=200"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	Limit        int    `query:"limit" validate:"omitempty,min=1"`
}

func (r *AuditQueryRequest) filter() (entity.AuditFilter, error) {
	filter := entity.AuditFilter{
		Action:       entity.Action(r.Action),
		Category:     entity.EventCategory(r.Category),
		Severity:     entity.Severity(r.Severity),
		Status:       entity.AuditStatus(r.Status),
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		JourneyID:    r.JourneyID,
		Search:       r.Search,
	}
	if r.UserID != "" {
		id, err := uuid.Parse(r.UserID)
		if err != nil {
			return filter, domainerrors.ErrValidationFailed.WithDetails("userId must be a uuid")
		}
		filter.UserID = &id
	}

	var err error
	if filter.Start, err = parseTime("startDate", r.StartDate); err != nil {
		return filter, err
	}
	if filter.End, err = parseTime("endDate", r.EndDate); err != nil {
		return filter, err
	}

	return filter, nil
}

type PurgeRequest struct {
	StartDate string `query:"startDate" validate:"required"`
	EndDate   string `query:"endDate" validate:"required"`
}

type SummaryRequest struct {
	UserID    string `param:"id" validate:"required,uuid"`
	StartDate string `query:"startDate"`
	EndDate   string `query:"endDate"`
}

type ResourceRequest struct {
	Type  string `param:"type" validate:"required,max=100"`
	ID    string `param:"id" validate:"required,max=255"`
	Page  int    `query:"page" validate:"omitempty,min=1"`
	Limit int    `query:"limit" validate:"omitempty,min=1"`
}

// List is GET /audit-logs.
func (h *AuditHandler) List(c echo.Context) error {
	input, err := h.queryInput(c)
	if err != nil {
		return err
	}

	page, err := h.auditUC.Query(c.Request().Context(), input)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, page)
}

// Search is GET /audit-logs/search?q=.
func (h *AuditHandler) Search(c echo.Context) error {
	input, err := h.queryInput(c)
	if err != nil {
		return err
	}

	page, err := h.auditUC.Search(c.Request().Context(), input)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, page)
}

// Purge is DELETE /audit-logs?startDate=&endDate=.
func (h *AuditHandler) Purge(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	var req PurgeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	start, err := parseTime("startDate", req.StartDate)
	if err != nil {
		return err
	}
	end, err := parseTime("endDate", req.EndDate)
	if err != nil {
		return err
	}

	out, err := h.auditUC.Purge(c.Request().Context(), usecase.PurgeAuditInput{
		Principal: caller,
		Start:     *start,
		End:       *end,
		Meta:      h.meta(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, out)
}

// FilterOptions is GET /audit-logs/filters.
func (h *AuditHandler) FilterOptions(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	options, err := h.auditUC.FilterOptions(c.Request().Context(), caller)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, options)
}

// Summary is GET /audit-logs/users/:id/summary.
func (h *AuditHandler) Summary(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	var req SummaryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("id must be a uuid")
	}
	start, err := parseTime("startDate", req.StartDate)
	if err != nil {
		return err
	}
	end, err := parseTime("endDate", req.EndDate)
	if err != nil {
		return err
	}

	summary, err := h.auditUC.Summarize(c.Request().Context(), usecase.SummarizeInput{
		Principal: caller,
		UserID:    userID,
		Start:     start,
		End:       end,
		Meta:      h.meta(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, summary)
}

// ForResource is GET /audit-logs/resources/:type/:id.
func (h *AuditHandler) ForResource(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	var req ResourceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	page, err := h.auditUC.ForResource(c.Request().Context(), usecase.ResourceAuditInput{
		Principal:    caller,
		ResourceType: req.Type,
		ResourceID:   req.ID,
		Page:         req.Page,
		Limit:        req.Limit,
		Meta:         h.meta(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, page)
}

// Export is POST /audit-logs/export; the filter travels in the query string.
func (h *AuditHandler) Export(c echo.Context) error {
	input, err := h.queryInput(c)
	if err != nil {
		return err
	}

	out, err := h.auditUC.Export(c.Request().Context(), usecase.ExportAuditInput{
		Principal: input.Principal,
		Filter:    input.Filter,
		Meta:      input.Meta,
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusAccepted, out)
}

func (h *AuditHandler) queryInput(c echo.Context) (usecase.QueryAuditInput, error) {
	caller, err := principal(c)
	if err != nil {
		return usecase.QueryAuditInput{}, err
	}

	var req AuditQueryRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return usecase.QueryAuditInput{}, domainerrors.ErrValidationFailed.WithDetails("malformed query string")
	}
	if err := c.Validate(&req); err != nil {
		return usecase.QueryAuditInput{}, err
	}

	filter, err := req.filter()
	if err != nil {
		return usecase.QueryAuditInput{}, err
	}

	return usecase.QueryAuditInput{
		Principal: caller,
		Filter:    filter,
		Page:      req.Page,
		Limit:     req.Limit,
		Meta:      h.meta(c),
	}, nil
}
