package sse

import (
	"sort"
	"strconv"
	"sync"
)

const defaultRingBufferSize = 1000

type bufferedEvent struct {
	seq   int64
	event SSEEvent
}

// RingBuffer keeps the most recent broadcast events for Last-Event-ID
// resumption. Sequence numbers only grow, so the kept window is sorted.
type RingBuffer struct {
	mu       sync.RWMutex
	capacity int
	items    []bufferedEvent
	next     int
	full     bool
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultRingBufferSize
	}
	return &RingBuffer{
		capacity: capacity,
		items:    make([]bufferedEvent, capacity),
	}
}

// Push stores event. Events whose ID is not a sequence number are dropped.
func (rb *RingBuffer) Push(event SSEEvent) {
	if rb == nil {
		return
	}
	seq, err := strconv.ParseInt(event.ID, 10, 64)
	if err != nil {
		return
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.items[rb.next] = bufferedEvent{seq: seq, event: event}
	rb.next = (rb.next + 1) % rb.capacity
	if rb.next == 0 {
		rb.full = true
	}
}

// Since returns the kept events after lastID, oldest first. A client
// without a usable Last-Event-ID has nothing to resume.
func (rb *RingBuffer) Since(lastID string) []SSEEvent {
	if rb == nil || lastID == "" {
		return nil
	}
	lastSeq, err := strconv.ParseInt(lastID, 10, 64)
	if err != nil {
		return nil
	}

	rb.mu.RLock()
	defer rb.mu.RUnlock()

	window := rb.ordered()
	from := sort.Search(len(window), func(i int) bool { return window[i].seq > lastSeq })

	out := make([]SSEEvent, 0, len(window)-from)
	for _, item := range window[from:] {
		out = append(out, item.event)
	}
	return out
}

func (rb *RingBuffer) ordered() []bufferedEvent {
	if !rb.full {
		return rb.items[:rb.next]
	}
	window := make([]bufferedEvent, 0, rb.capacity)
	window = append(window, rb.items[rb.next:]...)
	return append(window, rb.items[:rb.next]...)
}
