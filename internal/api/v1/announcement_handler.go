package v1

import (
	"github.com/gin-gonic/gin"

	"dasa-hub/internal/api/middleware"
	"dasa-hub/internal/api/response"
	inputsanitize "dasa-hub/internal/api/sanitize"
	"dasa-hub/internal/model"
	"dasa-hub/internal/service"
)

type AnnouncementHandler struct {
	announcementService *service.AnnouncementService
}

func NewAnnouncementHandler(announcementService *service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcementService: announcementService,
	}
}

func RegisterAnnouncementRoutes(group *gin.RouterGroup, announcementService *service.AnnouncementService, auth *middleware.Auth) {
	if announcementService == nil {
		return
	}

	handler := NewAnnouncementHandler(announcementService)
	ann := group.Group("/announcements")

	ann.GET("", auth.Optional(), handler.List)
	ann.GET("/:id", auth.Optional(), handler.GetByID)

	admin := ann.Group("", auth.Required(), middleware.RequireRole(model.RoleAdmin))
	admin.POST("", handler.Create)
	admin.PATCH("/:id", handler.Update)
	admin.DELETE("/:id", handler.Delete)
}

// List
// @Summary List announcements
// @Description Reconciles visibility, then returns active announcements (admins see every row).
// @Tags announcement
// @Produce json
// @Success 200 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	items, err := h.announcementService.List(c.Request.Context(), middleware.Viewer(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// GetByID
// @Summary Get announcement
// @Tags announcement
// @Produce json
// @Param id path string true "announcement id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/announcements/{id} [get]
func (h *AnnouncementHandler) GetByID(c *gin.Context) {
	item, err := h.announcementService.Get(c.Request.Context(), middleware.Viewer(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Create
// @Summary Create announcement
// @Description Admin only. The row is not linked to any entity.
// @Tags announcement
// @Accept json
// @Produce json
// @Param body body service.CreateAnnouncementRequest true "announcement"
// @Security ApiKeyAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var req service.CreateAnnouncementRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Title = inputsanitize.Text(req.Title)
	req.Message = inputsanitize.Markdown(req.Message)
	req.RelatedLink = inputsanitize.TextPtr(req.RelatedLink)

	item, err := h.announcementService.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Created(c, item)
}

// Update
// @Summary Update announcement
// @Description Admin only. Partial update including is_active.
// @Tags announcement
// @Accept json
// @Produce json
// @Param id path string true "announcement id"
// @Param body body service.UpdateAnnouncementRequest true "fields to change"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/announcements/{id} [patch]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	var req service.UpdateAnnouncementRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Title = inputsanitize.TextPtr(req.Title)
	req.Message = inputsanitize.MarkdownPtr(req.Message)
	req.RelatedLink = inputsanitize.TextPtr(req.RelatedLink)

	item, err := h.announcementService.Update(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Delete
// @Summary Delete announcement
// @Tags announcement
// @Produce json
// @Param id path string true "announcement id"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)

	if err := h.announcementService.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
