package sse

import (
	"sync"

	"github.com/google/uuid"
)

const clientBufferSize = 64

// SSEClient is one open stream. UserID and Role are empty for anonymous
// visitors.
type SSEClient struct {
	ID     string
	UserID string
	Role   string
	Ch     chan SSEEvent
	Done   chan struct{}

	mu         sync.Mutex
	droppedRun int
	closeOnce  sync.Once
}

func NewClient(userID, role string) *SSEClient {
	return &SSEClient{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		Ch:     make(chan SSEEvent, clientBufferSize),
		Done:   make(chan struct{}),
	}
}

func (c *SSEClient) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}

// offer queues event without blocking and reports how many deliveries in a
// row have now been dropped (0 when this one was queued).
func (c *SSEClient) offer(event SSEEvent) (queued bool, droppedRun int) {
	select {
	case <-c.Done:
		return false, 0
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case c.Ch <- event:
		c.droppedRun = 0
		return true, 0
	default:
		c.droppedRun++
		return false, c.droppedRun
	}
}
