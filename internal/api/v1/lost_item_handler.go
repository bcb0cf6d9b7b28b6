package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dasa-hub/internal/api/middleware"
	"dasa-hub/internal/api/response"
	inputsanitize "dasa-hub/internal/api/sanitize"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/service"
)

const (
	lostItemPostLimit  = 10
	lostItemPostWindow = time.Hour
)

type LostItemHandler struct {
	lostItemService *service.LostItemService
}

func NewLostItemHandler(lostItemService *service.LostItemService) *LostItemHandler {
	return &LostItemHandler{lostItemService: lostItemService}
}

func RegisterLostItemRoutes(
	group *gin.RouterGroup,
	lostItemService *service.LostItemService,
	auth *middleware.Auth,
	auditRepo repository.AuditRepository,
	logger *zap.Logger,
) {
	if lostItemService == nil {
		return
	}

	handler := NewLostItemHandler(lostItemService)
	items := group.Group("/lost-found/items")

	items.GET("", auth.Optional(), handler.List)
	items.GET("/:id", auth.Optional(), handler.GetByID)

	owned := items.Group("", auth.Required())
	owned.POST("",
		middleware.RateLimit("user_id", lostItemPostLimit, lostItemPostWindow),
		middleware.AuditLog(auditRepo, logger, "lost_item.create", model.AuditResourceLostItem),
		handler.Create,
	)
	owned.PATCH("/:id", middleware.AuditLog(auditRepo, logger, "lost_item.update", model.AuditResourceLostItem), handler.Update)
	owned.POST("/:id/resolve", middleware.AuditLog(auditRepo, logger, "lost_item.resolve", model.AuditResourceLostItem), handler.Resolve)
	owned.DELETE("/:id", middleware.AuditLog(auditRepo, logger, "lost_item.delete", model.AuditResourceLostItem), handler.Delete)
}

// List
// @Summary List lost and found posts
// @Description Unresolved posts for the public, every post for admins, the caller's own posts with mode=my_posts.
// @Tags lost-found
// @Produce json
// @Param mode query string false "my_posts"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/lost-found/items [get]
func (h *LostItemHandler) List(c *gin.Context) {
	items, err := h.lostItemService.List(c.Request.Context(), middleware.Viewer(c), c.Query("mode"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// GetByID
// @Summary Get lost and found post
// @Tags lost-found
// @Produce json
// @Param id path string true "item id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/lost-found/items/{id} [get]
func (h *LostItemHandler) GetByID(c *gin.Context) {
	item, err := h.lostItemService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Create
// @Summary Report a lost or found item
// @Tags lost-found
// @Accept json
// @Produce json
// @Param body body service.CreateLostItemRequest true "item"
// @Security ApiKeyAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /api/v1/lost-found/items [post]
func (h *LostItemHandler) Create(c *gin.Context) {
	var req service.CreateLostItemRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Description = inputsanitize.Text(req.Description)
	req.ContactInfo = inputsanitize.Text(req.ContactInfo)
	req.StudentName = inputsanitize.TextPtr(req.StudentName)

	item, err := h.lostItemService.Create(c.Request.Context(), middleware.Viewer(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	middleware.SetAuditResourceID(c, item.ID.String())
	response.Created(c, item)
}

// Update
// @Summary Update a post
// @Description Owner or admin. Setting is_resolved to true resolves the post; reopening is rejected.
// @Tags lost-found
// @Accept json
// @Produce json
// @Param id path string true "item id"
// @Param body body service.UpdateLostItemRequest true "fields to change"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/lost-found/items/{id} [patch]
func (h *LostItemHandler) Update(c *gin.Context) {
	var req service.UpdateLostItemRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Description = inputsanitize.TextPtr(req.Description)
	req.ContactInfo = inputsanitize.TextPtr(req.ContactInfo)
	req.StudentName = inputsanitize.TextPtr(req.StudentName)

	item, err := h.lostItemService.Update(c.Request.Context(), middleware.Viewer(c), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Resolve
// @Summary Mark a post resolved
// @Tags lost-found
// @Produce json
// @Param id path string true "item id"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/lost-found/items/{id}/resolve [post]
func (h *LostItemHandler) Resolve(c *gin.Context) {
	item, err := h.lostItemService.Resolve(c.Request.Context(), middleware.Viewer(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Delete
// @Summary Delete a post
// @Tags lost-found
// @Produce json
// @Param id path string true "item id"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/lost-found/items/{id} [delete]
func (h *LostItemHandler) Delete(c *gin.Context) {
	if err := h.lostItemService.Delete(c.Request.Context(), middleware.Viewer(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
