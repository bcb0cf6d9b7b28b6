package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dasa-hub/internal/api/middleware"
	"dasa-hub/internal/api/response"
	"dasa-hub/internal/model"
	"dasa-hub/internal/service"
	loggerpkg "dasa-hub/pkg/logger"
)

type SystemHandler struct {
	systemService      *service.SystemService
	maintenanceService *service.MaintenanceService
	statsService       *service.StatsService
	auditService       *service.AuditService
	recentLogs         *loggerpkg.RecentLogs
}

type SystemDeps struct {
	System      *service.SystemService
	Maintenance *service.MaintenanceService
	Stats       *service.StatsService
	Audit       *service.AuditService
	RecentLogs  *loggerpkg.RecentLogs
}

func NewSystemHandler(deps SystemDeps) *SystemHandler {
	return &SystemHandler{
		systemService:      deps.System,
		maintenanceService: deps.Maintenance,
		statsService:       deps.Stats,
		auditService:       deps.Audit,
		recentLogs:         deps.RecentLogs,
	}
}

func RegisterSystemRoutes(group *gin.RouterGroup, deps SystemDeps, auth *middleware.Auth) {
	if deps.System == nil {
		return
	}

	handler := NewSystemHandler(deps)
	system := group.Group("/system")
	system.GET("/settings", handler.GetSettings)

	admin := system.Group("", auth.Required(), middleware.RequireRole(model.RoleAdmin))
	admin.PATCH("/settings", handler.UpdateSettings)
	if deps.Maintenance != nil {
		admin.POST("/maintenance/sweep", handler.Sweep)
		admin.POST("/maintenance/backfill", handler.Backfill)
	}
	if deps.Stats != nil {
		admin.GET("/stats", handler.Stats)
	}
	if deps.Audit != nil {
		admin.GET("/audit-logs", handler.AuditLogs)
	}
	if deps.RecentLogs != nil {
		admin.GET("/logs", handler.Logs)
	}
}

// GetSettings
// @Summary Site settings
// @Description Public; stays reachable while maintenance mode is on.
// @Tags system
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/system/settings [get]
func (h *SystemHandler) GetSettings(c *gin.Context) {
	response.Success(c, h.systemService.Current())
}

// UpdateSettings
// @Summary Update site settings
// @Tags system
// @Accept json
// @Produce json
// @Param body body service.UpdateSiteSettingsRequest true "fields to change"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/system/settings [patch]
func (h *SystemHandler) UpdateSettings(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var req service.UpdateSiteSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.systemService.Update(c.Request.Context(), claims.UserID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, settings)
}

// Sweep
// @Summary Deactivate stale unlinked announcements
// @Tags system
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Router /api/v1/system/maintenance/sweep [post]
func (h *SystemHandler) Sweep(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	deactivated, err := h.maintenanceService.SweepUnlinked(c.Request.Context(), claims.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deactivated": deactivated})
}

// Backfill
// @Summary Create missing announcements for open entities
// @Tags system
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Router /api/v1/system/maintenance/backfill [post]
func (h *SystemHandler) Backfill(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	created, err := h.maintenanceService.Backfill(c.Request.Context(), claims.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"created": created})
}

// Stats
// @Summary Dashboard counts and host usage
// @Tags system
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Router /api/v1/system/stats [get]
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.statsService.Dashboard(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

// AuditLogs
// @Summary Query the audit trail
// @Tags system
// @Produce json
// @Param user_id query string false "operator id"
// @Param resource_type query string false "announcement, site_settings, lost_item"
// @Param from query string false "RFC3339 or YYYY-MM-DD"
// @Param to query string false "RFC3339 or YYYY-MM-DD"
// @Param limit query int false "max rows"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/system/audit-logs [get]
func (h *SystemHandler) AuditLogs(c *gin.Context) {
	filter := service.AuditFilter{Limit: parseIntOrDefault(c.Query("limit"), 100)}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		filter.UserID = &raw
	}
	if raw := strings.TrimSpace(c.Query("resource_type")); raw != "" {
		filter.ResourceType = &raw
	}

	from, err := parseQueryTime(c.Query("from"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid from")
		return
	}
	if !from.IsZero() {
		filter.From = &from
	}
	to, err := parseQueryTime(c.Query("to"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid to")
		return
	}
	if !to.IsZero() {
		filter.To = &to
	}

	items, err := h.auditService.List(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// Logs
// @Summary Recent process log entries
// @Tags system
// @Produce json
// @Param level query string false "minimum level"
// @Param keyword query string false "substring match"
// @Param limit query int false "max entries"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Router /api/v1/system/logs [get]
func (h *SystemHandler) Logs(c *gin.Context) {
	response.Success(c, h.recentLogs.Query(loggerpkg.LogQuery{
		MinLevel: strings.TrimSpace(c.Query("level")),
		Keyword:  c.Query("keyword"),
		Limit:    parseIntOrDefault(c.Query("limit"), 0),
	}))
}

func parseQueryTime(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, nil
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts.UTC(), nil
	}

	return time.Time{}, errors.New("invalid time")
}

func parseIntOrDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return def
	}
	return value
}
