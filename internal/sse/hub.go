package sse

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dasa-hub/internal/metrics"
)

const (
	heartbeatInterval = 30 * time.Second
	// A client whose buffer stays full for this many deliveries in a row is
	// disconnected; it can resume with Last-Event-ID.
	maxDroppedRun = 5
)

// SSEHub fans events out to open streams. Only Broadcast events are kept for
// replay, so a reconnecting client never sees another user's targeted events.
type SSEHub struct {
	mu       sync.RWMutex
	clients  map[string]*SSEClient
	closed   bool
	eventBuf *RingBuffer

	logger *zap.Logger
	stopCh chan struct{}
}

func NewHub(logger *zap.Logger) *SSEHub {
	hub := newHub(logger)
	go hub.heartbeat()
	return hub
}

func newHub(logger *zap.Logger) *SSEHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSEHub{
		clients:  make(map[string]*SSEClient),
		eventBuf: NewRingBuffer(defaultRingBufferSize),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Register adds client. After Close the client is closed immediately.
func (h *SSEHub) Register(client *SSEClient) {
	if h == nil || client == nil || client.ID == "" {
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		client.Close()
		return
	}
	h.clients[client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	metrics.SetSSEClients(count)
}

func (h *SSEHub) Unregister(clientID string) {
	if h == nil || clientID == "" {
		return
	}

	h.mu.Lock()
	client, ok := h.clients[clientID]
	delete(h.clients, clientID)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.Close()
	metrics.SetSSEClients(count)
}

func (h *SSEHub) Broadcast(event SSEEvent) {
	if h == nil {
		return
	}
	if event.Type != EventHeartbeat {
		h.eventBuf.Push(event)
	}
	h.deliver(event, func(*SSEClient) bool { return true })
}

// SendToUser reaches every open stream of userID.
func (h *SSEHub) SendToUser(userID string, event SSEEvent) {
	if h == nil || userID == "" {
		return
	}
	h.deliver(event, func(c *SSEClient) bool { return c.UserID == userID })
}

func (h *SSEHub) SendToRole(role string, event SSEEvent) {
	if h == nil || role == "" {
		return
	}
	h.deliver(event, func(c *SSEClient) bool { return strings.EqualFold(c.Role, role) })
}

func (h *SSEHub) Since(lastID string) []SSEEvent {
	if h == nil {
		return nil
	}
	return h.eventBuf.Since(lastID)
}

// Close stops the heartbeat and ends every open stream. It is safe to call
// more than once.
func (h *SSEHub) Close() {
	if h == nil {
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*SSEClient)
	h.mu.Unlock()

	close(h.stopCh)
	for _, client := range clients {
		client.Close()
	}
	metrics.SetSSEClients(0)
}

func (h *SSEHub) ConnectedCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *SSEHub) deliver(event SSEEvent, match func(*SSEClient) bool) {
	h.mu.RLock()
	targets := make([]*SSEClient, 0, len(h.clients))
	for _, client := range h.clients {
		if match(client) {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		queued, droppedRun := client.offer(event)
		if queued || droppedRun == 0 {
			continue
		}
		h.logger.Warn("sse client buffer full, event dropped",
			zap.String("client_id", client.ID),
			zap.String("type", event.Type),
			zap.Int("dropped_run", droppedRun),
		)
		if droppedRun >= maxDroppedRun {
			h.logger.Warn("disconnecting slow sse client", zap.String("client_id", client.ID))
			h.Unregister(client.ID)
		}
	}
}

func (h *SSEHub) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case now := <-ticker.C:
			h.Broadcast(NewEvent(EventHeartbeat, map[string]interface{}{
				"ts": now.UTC().Format(time.RFC3339Nano),
			}))
		}
	}
}
