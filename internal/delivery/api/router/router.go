// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"warden/internal/delivery/api/middleware"
	"warden/internal/delivery/api/router/handler"
	"warden/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler     *handler.AuthHandler
	AuditHandler    *handler.AuditHandler
	AuthMiddleware  *middleware.AuthMiddleware
	AuditMiddleware *middleware.AuditMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler     *handler.AuthHandler
	auditHandler    *handler.AuditHandler
	authMiddleware  *middleware.AuthMiddleware
	auditMiddleware *middleware.AuditMiddleware
}

func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:     params.AuthHandler,
		auditHandler:    params.AuditHandler,
		authMiddleware:  params.AuthMiddleware,
		auditMiddleware: params.AuditMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	// Auth flows record their own audit events.
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh-token", r.authHandler.RefreshToken)
		authGroup.POST("/verify-email", r.authHandler.VerifyEmail)
		authGroup.POST("/resend-verification", r.authHandler.ResendVerification)
		authGroup.POST("/logout", r.authHandler.Logout, r.authMiddleware.Authenticate)
		authGroup.GET("/me", r.authHandler.Me,
			r.authMiddleware.Authenticate,
			r.auditMiddleware.Audit(entity.ActionUserRetrieve),
		)
	}

	auditGroup := e.Group("/audit-logs")
	auditGroup.Use(r.authMiddleware.Authenticate)
	{
		auditGroup.GET("", r.auditHandler.List)
		auditGroup.GET("/search", r.auditHandler.Search)
		auditGroup.GET("/filters", r.auditHandler.FilterOptions)
		auditGroup.GET("/users/:id/summary", r.auditHandler.Summary)
		auditGroup.GET("/resources/:type/:id", r.auditHandler.ForResource)

		adminOnly := r.authMiddleware.RequireRole(entity.RoleAdmin)
		auditGroup.DELETE("", r.auditHandler.Purge, adminOnly)
		auditGroup.POST("/export", r.auditHandler.Export, adminOnly)
	}
}
