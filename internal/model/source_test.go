package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEventIsClosed_UsesCalendarDayInLocation(t *testing.T) {
	t.Parallel()

	accra := time.FixedZone("GMT", 0)
	event := &Event{ID: uuid.New(), Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)}

	sameDayLate := time.Date(2026, 3, 10, 23, 59, 0, 0, accra)
	if event.IsClosed(sameDayLate, accra) {
		t.Fatal("event must stay open for the whole of its own day")
	}

	nextDay := time.Date(2026, 3, 11, 0, 0, 1, 0, accra)
	if !event.IsClosed(nextDay, accra) {
		t.Fatal("event must be closed the day after")
	}
}

func TestEventIsClosed_TimeZoneShiftsToday(t *testing.T) {
	t.Parallel()

	event := &Event{Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)}
	// 23:30 UTC on the 10th is already the 11th in UTC+2.
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)

	if event.IsClosed(now, time.UTC) {
		t.Fatal("expected open in UTC")
	}
	if !event.IsClosed(now, time.FixedZone("UTC+2", 2*60*60)) {
		t.Fatal("expected closed in UTC+2")
	}
}

func TestLostItemIsClosed(t *testing.T) {
	t.Parallel()

	item := &LostItem{ID: uuid.New()}
	if item.IsClosed() {
		t.Fatal("unresolved item must be open")
	}
	item.IsResolved = true
	if !item.IsClosed() {
		t.Fatal("resolved item must be closed")
	}
}

func TestSourceRefValid(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	cases := []struct {
		name string
		ref  SourceRef
		want bool
	}{
		{name: "event", ref: EventRef(id), want: true},
		{name: "lost item", ref: LostItemRef(id), want: true},
		{name: "nil id", ref: EventRef(uuid.Nil), want: false},
		{name: "legacy kind", ref: SourceRef{Kind: "market_listing", ID: id}, want: false},
	}

	for _, tc := range cases {
		if got := tc.ref.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	if p, ok := ParsePriority(" HIGH "); !ok || p != PriorityHigh {
		t.Fatalf("expected High, got %q ok=%v", p, ok)
	}
	if _, ok := ParsePriority("urgent"); ok {
		t.Fatal("urgent must be rejected")
	}
}

func TestAnnouncementCloneIsDeep(t *testing.T) {
	t.Parallel()

	link := "/events"
	ref := EventRef(uuid.New())
	original := &Announcement{ID: uuid.New(), RelatedLink: &link, Source: &ref}

	copied := original.Clone()
	*copied.RelatedLink = "/changed"
	copied.Source.Kind = EntityKindLostItem

	if *original.RelatedLink != "/events" || original.Source.Kind != EntityKindEvent {
		t.Fatalf("clone shares memory with original: %+v", original)
	}
}

func TestViewerIsAdmin(t *testing.T) {
	t.Parallel()

	if (Viewer{}).IsAdmin() {
		t.Fatal("anonymous viewer must not be admin")
	}
	if !(Viewer{UserID: "u1", Role: "Admin"}).IsAdmin() {
		t.Fatal("role match must be case-insensitive")
	}
}
