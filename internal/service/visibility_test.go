package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"dasa-hub/internal/model"
)

var (
	student = model.Viewer{UserID: uuid.NewString(), Role: "student"}
	admin   = model.Viewer{UserID: uuid.NewString(), Role: model.RoleAdmin}
)

func createEvent(t *testing.T, s *testStack, title string, date time.Time) *model.Event {
	t.Helper()
	ev, err := s.eventSvc.Create(context.Background(), CreateEventRequest{
		Title:     title,
		Date:      date.Format(model.DateLayout),
		StartTime: "10:00",
		Location:  "Main Auditorium",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func titles(items []*model.Announcement) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestReconcileAndListActive_DayZeroAndDayOne(t *testing.T) {
	s := newTestStack(t, day(2026, 4, 1).Add(9*time.Hour))
	ctx := context.Background()

	createEvent(t, s, "Career Fair", day(2026, 4, 1))

	visible, err := s.reconciler.ReconcileAndListActive(ctx, student)
	if err != nil {
		t.Fatalf("list on event day: %v", err)
	}
	if diff := cmp.Diff([]string{"New Event: Career Fair"}, titles(visible)); diff != "" {
		t.Fatalf("event-day listing mismatch (-want +got):\n%s", diff)
	}

	s.clock.Set(day(2026, 4, 2).Add(time.Minute))
	visible, err = s.reconciler.ReconcileAndListActive(ctx, student)
	if err != nil {
		t.Fatalf("list on next day: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected nothing visible the day after, got %v", titles(visible))
	}

	all, err := s.reconciler.ReconcileAndListActive(ctx, admin)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("admin must still see the inactive row, got %+v", all)
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	s := newTestStack(t, day(2026, 4, 10))
	ctx := context.Background()

	createEvent(t, s, "Past Talk", day(2026, 4, 3))
	createEvent(t, s, "Future Talk", day(2026, 4, 20))

	first, err := s.reconciler.ReconcileAndListActive(ctx, student)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	flipsAfterFirst := s.announcements.Deactivated()

	second, err := s.reconciler.ReconcileAndListActive(ctx, student)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if flipsAfterFirst != 1 {
		t.Fatalf("expected one deactivation in the first pass, got %d", flipsAfterFirst)
	}
	if s.announcements.Deactivated() != flipsAfterFirst {
		t.Fatalf("second pass wrote %d rows", s.announcements.Deactivated()-flipsAfterFirst)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("listings differ between passes (-first +second):\n%s", diff)
	}
}

func TestReconcile_ConcurrentCallersDeactivateOnce(t *testing.T) {
	s := newTestStack(t, day(2026, 4, 10))
	ctx := context.Background()
	createEvent(t, s, "Old Meetup", day(2026, 4, 1))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.reconciler.ReconcileAndListActive(ctx, student)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
	}
	if got := s.announcements.Deactivated(); got != 1 {
		t.Fatalf("expected one deactivation in total, got %d", got)
	}
}

func TestReconcile_ReadsClockOnce(t *testing.T) {
	s := newTestStack(t, day(2026, 4, 10))
	calls := 0
	s.reconciler.WithClock(func() time.Time {
		calls++
		return day(2026, 4, 10)
	})

	if _, err := s.reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if calls != 1 {
		t.Fatalf("clock read %d times", calls)
	}
}

func TestReconcile_ToleratesDanglingAndUnknownRefs(t *testing.T) {
	s := newTestStack(t, day(2026, 4, 10))
	ctx := context.Background()

	ev := createEvent(t, s, "Deleted Later", day(2026, 5, 1))
	if err := s.eventSvc.Delete(ctx, ev.ID.String()); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	legacy := model.SourceRef{Kind: "market_listing", ID: uuid.New()}
	if err := s.announcements.Create(ctx, &model.Announcement{Title: "Old listing", IsActive: true, Source: &legacy}); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.Dangling != 1 || report.UnknownKind != 1 || report.Total() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	visible, err := s.reconciler.ReconcileAndListActive(ctx, student)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("anomalous rows must be left untouched, got %v", titles(visible))
	}
}

func TestGetVisible_InactiveIsNotFoundForNonAdmins(t *testing.T) {
	s := newTestStack(t, day(2026, 4, 10))
	ctx := context.Background()

	hidden := &model.Announcement{Title: "Draft", Message: "m", Priority: model.PriorityLow, IsActive: false}
	if err := s.announcements.Create(ctx, hidden); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.reconciler.GetVisible(ctx, student, hidden.ID); !errors.Is(err, ErrAnnouncementNotFound) {
		t.Fatalf("expected ErrAnnouncementNotFound, got %v", err)
	}
	got, err := s.reconciler.GetVisible(ctx, admin, hidden.ID)
	if err != nil || got.ID != hidden.ID {
		t.Fatalf("admin lookup = %+v, %v", got, err)
	}
}
