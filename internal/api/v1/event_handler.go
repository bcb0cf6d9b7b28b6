package v1

import (
	"github.com/gin-gonic/gin"

	"dasa-hub/internal/api/middleware"
	"dasa-hub/internal/api/response"
	inputsanitize "dasa-hub/internal/api/sanitize"
	"dasa-hub/internal/model"
	"dasa-hub/internal/service"
)

type EventHandler struct {
	eventService *service.EventService
}

func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func RegisterEventRoutes(group *gin.RouterGroup, eventService *service.EventService, auth *middleware.Auth) {
	if eventService == nil {
		return
	}

	handler := NewEventHandler(eventService)
	events := group.Group("/events")

	events.GET("", auth.Optional(), handler.List)
	events.GET("/:id", auth.Optional(), handler.GetByID)

	admin := events.Group("", auth.Required(), middleware.RequireRole(model.RoleAdmin))
	admin.POST("", handler.Create)
	admin.PATCH("/:id", handler.Update)
	admin.DELETE("/:id", handler.Delete)
}

// List
// @Summary List events
// @Description Upcoming events. Admins see every event; ?all=true includes past ones for anyone.
// @Tags event
// @Produce json
// @Param all query bool false "include past events"
// @Param featured query bool false "featured only"
// @Success 200 {object} response.Response
// @Router /api/v1/events [get]
func (h *EventHandler) List(c *gin.Context) {
	items, err := h.eventService.List(c.Request.Context(), middleware.Viewer(c), queryBool(c, "all"), queryBool(c, "featured"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, items)
}

// GetByID
// @Summary Get event
// @Tags event
// @Produce json
// @Param id path string true "event id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/events/{id} [get]
func (h *EventHandler) GetByID(c *gin.Context) {
	item, err := h.eventService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Create
// @Summary Create event
// @Description Admin only. Publishes entity.created, which posts the event announcement.
// @Tags event
// @Accept json
// @Produce json
// @Param body body service.CreateEventRequest true "event"
// @Security ApiKeyAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req service.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Title = inputsanitize.Text(req.Title)
	req.Description = inputsanitize.Markdown(req.Description)
	req.Location = inputsanitize.Text(req.Location)

	item, err := h.eventService.Create(c.Request.Context(), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Created(c, item)
}

// Update
// @Summary Update event
// @Tags event
// @Accept json
// @Produce json
// @Param id path string true "event id"
// @Param body body service.UpdateEventRequest true "fields to change"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/events/{id} [patch]
func (h *EventHandler) Update(c *gin.Context) {
	var req service.UpdateEventRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Title = inputsanitize.TextPtr(req.Title)
	req.Description = inputsanitize.MarkdownPtr(req.Description)
	req.Location = inputsanitize.TextPtr(req.Location)

	item, err := h.eventService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, item)
}

// Delete
// @Summary Delete event
// @Description Linked announcements are left in place.
// @Tags event
// @Produce json
// @Param id path string true "event id"
// @Security ApiKeyAuth
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.eventService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
