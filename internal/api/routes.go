package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dasa-hub/internal/api/middleware"
	v1 "dasa-hub/internal/api/v1"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/service"
	"dasa-hub/internal/sse"
)

// Deps carries everything the /api/v1 surface needs. Nil services skip
// their routes.
type Deps struct {
	Auth          *middleware.Auth
	Announcements *service.AnnouncementService
	Events        *service.EventService
	LostItems     *service.LostItemService
	System        v1.SystemDeps
	SSEHub        *sse.SSEHub
	AuditRepo     repository.AuditRepository
	Logger        *zap.Logger
}

const settingsPath = "/api/v1/system/settings"

func RegisterV1Routes(router gin.IRouter, deps Deps) *gin.RouterGroup {
	apiV1 := router.Group("/api/v1")
	if deps.System.System != nil {
		apiV1.Use(middleware.MaintenanceMode(deps.System.System, deps.Auth, settingsPath))
	}

	v1.RegisterAnnouncementRoutes(apiV1, deps.Announcements, deps.Auth)
	v1.RegisterEventRoutes(apiV1, deps.Events, deps.Auth)
	v1.RegisterLostItemRoutes(apiV1, deps.LostItems, deps.Auth, deps.AuditRepo, deps.Logger)
	v1.RegisterSystemRoutes(apiV1, deps.System, deps.Auth)
	v1.RegisterSSERoutes(apiV1, deps.SSEHub, deps.Auth)

	return apiV1
}
