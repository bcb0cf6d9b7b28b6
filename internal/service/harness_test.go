package service

import (
	"sync"
	"testing"
	"time"

	"dasa-hub/internal/event"
	"dasa-hub/internal/lifecycle"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/repository/memory"
	"dasa-hub/internal/sse"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []sse.SSEEvent
}

func (b *captureBroadcaster) Broadcast(event sse.SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

type testStack struct {
	clock         *testClock
	announcements *memory.AnnouncementRepository
	events        *memory.EventRepository
	lostItems     *memory.LostItemRepository
	audit         *memory.AuditRepository
	bus           *event.Bus
	router        *lifecycle.Router
	reconciler    *VisibilityReconciler
	eventSvc      *EventService
	lostItemSvc   *LostItemService
	announceSvc   *AnnouncementService
	maintenance   *MaintenanceService
	broadcaster   *captureBroadcaster
}

func newTestStack(t *testing.T, now time.Time) *testStack {
	t.Helper()
	return newTestStackWithAnnouncements(t, now, nil)
}

// newTestStackWithAnnouncements lets a test swap the repository the router
// writes through while reads keep using the memory store.
func newTestStackWithAnnouncements(t *testing.T, now time.Time, routerRepo repository.AnnouncementRepository) *testStack {
	t.Helper()

	s := &testStack{
		clock:         &testClock{now: now},
		announcements: memory.NewAnnouncementRepository(),
		events:        memory.NewEventRepository(),
		lostItems:     memory.NewLostItemRepository(),
		audit:         memory.NewAuditRepository(),
		bus:           event.NewBus(),
		broadcaster:   &captureBroadcaster{},
	}
	if routerRepo == nil {
		routerRepo = s.announcements
	}

	s.router = lifecycle.NewRouter(routerRepo, s.broadcaster, nil, lifecycle.DefaultTemplates()...)
	s.router.Subscribe(s.bus)

	s.reconciler = NewVisibilityReconciler(
		s.announcements,
		s.broadcaster,
		nil,
		NewEventIndex(s.events, time.UTC),
		NewLostItemIndex(s.lostItems),
	).WithClock(s.clock.Now)

	s.eventSvc = NewEventService(s.events, s.bus, time.UTC, nil)
	s.eventSvc.now = s.clock.Now
	s.lostItemSvc = NewLostItemService(s.lostItems, s.bus, s.broadcaster, nil)
	s.lostItemSvc.now = s.clock.Now
	s.announceSvc = NewAnnouncementService(s.announcements, s.reconciler, s.audit, s.broadcaster, nil)
	s.maintenance = NewMaintenanceService(
		s.announcements,
		s.reconciler,
		s.router,
		s.audit,
		s.broadcaster,
		DefaultSweepPolicy(),
		nil,
	).WithClock(s.clock.Now)

	return s
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
