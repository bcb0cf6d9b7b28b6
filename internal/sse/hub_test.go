package sse

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBroadcast_ReachesAnonymousAndSignedInClients(t *testing.T) {
	t.Parallel()

	hub := newHub(zap.NewNop())
	anonymous := NewClient("", "")
	student := NewClient("u2", "student")
	hub.Register(anonymous)
	hub.Register(student)

	hub.Broadcast(NewEvent(EventAnnouncement, map[string]any{"action": ActionCreate}))

	assertEventType(t, anonymous.Ch, EventAnnouncement)
	assertEventType(t, student.Ch, EventAnnouncement)
	if got := hub.ConnectedCount(); got != 2 {
		t.Fatalf("ConnectedCount() = %d, want 2", got)
	}
}

func TestSendToRole_OnlyMatchingRoleReceives(t *testing.T) {
	t.Parallel()

	hub := newHub(zap.NewNop())
	admin := NewClient("a1", "admin")
	student := NewClient("s1", "student")
	hub.Register(admin)
	hub.Register(student)

	hub.SendToRole("Admin", NewEvent(EventMaintenanceRun, map[string]any{"deactivated": 3}))

	assertEventType(t, admin.Ch, EventMaintenanceRun)
	assertNoEvent(t, student.Ch)
}

func TestSendToUser_ReachesEveryTabOfThatUser(t *testing.T) {
	t.Parallel()

	hub := newHub(zap.NewNop())
	tabA := NewClient("owner", "student")
	tabB := NewClient("owner", "student")
	other := NewClient("someone", "student")
	hub.Register(tabA)
	hub.Register(tabB)
	hub.Register(other)

	hub.SendToUser("owner", NewEvent(EventLostItemResolved, map[string]any{"id": "x"}))

	assertEventType(t, tabA.Ch, EventLostItemResolved)
	assertEventType(t, tabB.Ch, EventLostItemResolved)
	assertNoEvent(t, other.Ch)
}

func TestSince_ReplaysBroadcastsOnly(t *testing.T) {
	t.Parallel()

	hub := newHub(zap.NewNop())
	first := NewEvent(EventAnnouncement, map[string]any{"action": ActionCreate})
	hub.Broadcast(first)
	hub.SendToUser("owner", NewEvent(EventLostItemResolved, nil))
	hub.Broadcast(NewEvent(EventHeartbeat, nil))
	second := NewEvent(EventSystemSettings, nil)
	hub.Broadcast(second)

	replay := hub.Since(first.ID)
	if len(replay) != 1 || replay[0].ID != second.ID {
		t.Fatalf("replay after %s = %+v, want only %s", first.ID, replay, second.ID)
	}
	if got := hub.Since(""); got != nil {
		t.Fatalf("fresh client should replay nothing, got %+v", got)
	}
}

func TestSlowClient_DoesNotBlockOthersAndIsDisconnected(t *testing.T) {
	t.Parallel()

	hub := newHub(zap.NewNop())
	slow := &SSEClient{ID: "slow", Ch: make(chan SSEEvent, 1), Done: make(chan struct{})}
	fast := &SSEClient{ID: "fast", Ch: make(chan SSEEvent, maxDroppedRun+1), Done: make(chan struct{})}
	slow.Ch <- NewEvent(EventHeartbeat, nil)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < maxDroppedRun; i++ {
		hub.Broadcast(NewEvent(EventAnnouncement, map[string]any{"action": ActionDeactivate}))
	}

	assertEventType(t, fast.Ch, EventAnnouncement)
	select {
	case <-slow.Done:
	default:
		t.Fatal("slow client should have been closed")
	}
	if got := hub.ConnectedCount(); got != 1 {
		t.Fatalf("ConnectedCount() = %d, want 1", got)
	}
}

func TestClose_EndsStreamsAndRejectsNewClients(t *testing.T) {
	t.Parallel()

	hub := newHub(zap.NewNop())
	open := NewClient("u1", "student")
	hub.Register(open)

	hub.Close()
	hub.Close()

	select {
	case <-open.Done:
	default:
		t.Fatal("open stream should be closed by hub.Close")
	}

	late := NewClient("u2", "student")
	hub.Register(late)
	select {
	case <-late.Done:
	default:
		t.Fatal("client registered after Close should be closed")
	}
	if got := hub.ConnectedCount(); got != 0 {
		t.Fatalf("ConnectedCount() = %d, want 0", got)
	}
}

func TestRingBuffer_SinceAndEviction(t *testing.T) {
	t.Parallel()

	rb := NewRingBuffer(3)
	for _, id := range []string{"1", "2", "3", "4", "not-a-seq"} {
		rb.Push(SSEEvent{ID: id, Type: EventAnnouncement})
	}

	all := rb.Since("0")
	if len(all) != 3 || all[0].ID != "2" || all[2].ID != "4" {
		t.Fatalf("window after eviction = %+v, want 2..4", all)
	}
	if tail := rb.Since("3"); len(tail) != 1 || tail[0].ID != "4" {
		t.Fatalf("Since(3) = %+v", tail)
	}
	if none := rb.Since("garbage"); none != nil {
		t.Fatalf("unparsable id should replay nothing, got %+v", none)
	}
}

func assertEventType(t *testing.T, ch <-chan SSEEvent, wantType string) {
	t.Helper()
	select {
	case event := <-ch:
		if event.Type != wantType {
			t.Fatalf("event type = %q, want %q", event.Type, wantType)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for %q", wantType)
	}
}

func assertNoEvent(t *testing.T, ch <-chan SSEEvent) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("expected no event, got %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}
