package v1

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"dasa-hub/internal/api/middleware"
	"dasa-hub/internal/api/response"
	"dasa-hub/internal/sse"
)

type SSEHandler struct {
	hub *sse.SSEHub
}

func NewSSEHandler(hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

func RegisterSSERoutes(group *gin.RouterGroup, hub *sse.SSEHub, auth *middleware.Auth) {
	handler := NewSSEHandler(hub)
	group.GET("/stream", auth.Optional(), handler.Stream)
}

// Stream
// @Summary Live announcement feed
// @Description Server-sent events. Anonymous visitors get public events; signed-in users also get their own notifications. Resume with Last-Event-ID.
// @Tags sse
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Failure 503 {object} response.Response
// @Router /api/v1/stream [get]
func (h *SSEHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Fail(c, 503, response.ErrInternal, "sse hub unavailable")
		return
	}

	flusher, ok := c.Writer.(interface{ Flush() })
	if !ok {
		response.Fail(c, 500, response.ErrInternal, "stream unsupported")
		return
	}

	viewer := middleware.Viewer(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Connection", "keep-alive")
	c.Status(200)
	flusher.Flush()

	client := sse.NewClient(viewer.UserID, viewer.Role)
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	for _, event := range h.hub.Since(c.GetHeader("Last-Event-ID")) {
		if err := writeSSEEvent(c, event); err != nil {
			return
		}
		flusher.Flush()
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-client.Done:
			return
		case event := <-client.Ch:
			if err := writeSSEEvent(c, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(c *gin.Context, event sse.SSEEvent) error {
	if _, err := fmt.Fprintf(c.Writer, "id: %s\n", event.ID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event.Type); err != nil {
		return err
	}

	for _, line := range strings.Split(event.Data, "\n") {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n", line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprint(c.Writer, "\n")
	return err
}
