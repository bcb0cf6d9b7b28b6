package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

func TestClassifyTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]SweepClass{
		"LOST: Keys":                   SweepClassLostFound,
		"Found: Student ID - Kofi":     SweepClassLostFound,
		"New Event: Hackathon":         SweepClassEvent,
		"Upcoming Event: Dinner":       SweepClassEvent,
		"Exam timetable released":      SweepClassGeneric,
		"lost: lowercase is not a tag": SweepClassGeneric,
	}
	for title, want := range cases {
		if got := ClassifyTitle(title); got != want {
			t.Errorf("ClassifyTitle(%q) = %s, want %s", title, got, want)
		}
	}
}

func TestSweepUnlinked_AgeThresholds(t *testing.T) {
	now := day(2026, 6, 20).Add(12 * time.Hour)
	s := newTestStack(t, now)
	ctx := context.Background()

	seed := func(title string, age time.Duration, linked bool) *model.Announcement {
		item := &model.Announcement{Title: title, Message: "m", Priority: model.PriorityNormal, IsActive: true, CreatedAt: now.Add(-age)}
		if linked {
			ref := model.LostItemRef(uuid.New())
			item.Source = &ref
		}
		if err := s.announcements.Create(ctx, item); err != nil {
			t.Fatalf("seed %q: %v", title, err)
		}
		return item
	}

	oldKeys := seed("LOST: Keys", 8*24*time.Hour, false)
	freshKeys := seed("LOST: Keys", 6*24*time.Hour, false)
	oldEvent := seed("New Event: Gala", 31*24*time.Hour, false)
	recentEvent := seed("New Event: Gala", 20*24*time.Hour, false)
	oldGeneric := seed("Library hours", 61*24*time.Hour, false)
	linkedOld := seed("LOST: Wallet", 40*24*time.Hour, true)

	changed, err := s.maintenance.SweepUnlinked(ctx, "")
	if err != nil {
		t.Fatalf("SweepUnlinked: %v", err)
	}
	if changed != 3 {
		t.Fatalf("expected 3 rows deactivated, got %d", changed)
	}

	wantActive := map[uuid.UUID]bool{
		oldKeys.ID:     false,
		freshKeys.ID:   true,
		oldEvent.ID:    false,
		recentEvent.ID: true,
		oldGeneric.ID:  false,
		linkedOld.ID:   true,
	}
	for id, want := range wantActive {
		got, err := s.announcements.FindByID(ctx, id)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.IsActive != want {
			t.Errorf("%q (%s): is_active=%v, want %v", got.Title, id, got.IsActive, want)
		}
	}

	again, err := s.maintenance.SweepUnlinked(ctx, "")
	if err != nil || again != 0 {
		t.Fatalf("second sweep = %d, %v", again, err)
	}
}

func TestSweepUnlinked_RecordsAuditForManualRuns(t *testing.T) {
	s := newTestStack(t, day(2026, 6, 20))
	ctx := context.Background()

	if _, err := s.maintenance.SweepUnlinked(ctx, admin.UserID); err != nil {
		t.Fatalf("SweepUnlinked: %v", err)
	}
	logs, err := s.audit.List(ctx, repository.AuditListFilter{})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "maintenance.sweep" {
		t.Fatalf("unexpected audit trail %+v", logs)
	}
}

func TestSweepPolicy_FallsBackToDefaults(t *testing.T) {
	t.Parallel()

	policy := SweepPolicy{LostFoundMaxAge: 48 * time.Hour}
	if policy.MaxAge(SweepClassLostFound) != 48*time.Hour {
		t.Fatal("configured value must win")
	}
	if policy.MaxAge(SweepClassGeneric) != DefaultGenericMaxAge {
		t.Fatal("zero value must fall back to default")
	}
}

func TestBackfill_CreatesMissingAnnouncementsForOpenEntities(t *testing.T) {
	s := newTestStack(t, day(2026, 3, 1))
	ctx := context.Background()

	// Entities written straight to the store never went through the router.
	upcoming := &model.Event{Title: "Orientation", Date: day(2026, 3, 5), StartTime: "09:00", Location: "Hall"}
	past := &model.Event{Title: "Old", Date: day(2026, 2, 1), StartTime: "09:00", Location: "Hall"}
	for _, ev := range []*model.Event{upcoming, past} {
		if err := s.events.Create(ctx, ev); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
	open := &model.LostItem{Type: model.LostItemTypeFound, Category: model.CategoryGadget, Description: "phone", ContactInfo: "desk"}
	resolved := &model.LostItem{Type: model.LostItemTypeLost, Category: model.CategoryKeys, Description: "keys", ContactInfo: "desk", IsResolved: true}
	for _, item := range []*model.LostItem{open, resolved} {
		if err := s.lostItems.Create(ctx, item); err != nil {
			t.Fatalf("seed lost item: %v", err)
		}
	}
	// One open event already linked through the normal path.
	createEvent(t, s, "Already announced", day(2026, 3, 9))

	created, err := s.maintenance.Backfill(ctx, "")
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 backfilled announcements, got %d", created)
	}

	again, err := s.maintenance.Backfill(ctx, "")
	if err != nil || again != 0 {
		t.Fatalf("second backfill = %d, %v", again, err)
	}

	counts, _ := s.announcements.Count(ctx)
	if counts.Total != 3 || counts.Linked != 3 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestBackfill_SkipsSourcesWhoseAnnouncementWasDeleted(t *testing.T) {
	s := newTestStack(t, day(2026, 3, 1))
	ctx := context.Background()

	ev := createEvent(t, s, "Career fair", day(2026, 3, 12))
	rows, _ := s.announcements.List(ctx, repository.AnnouncementListFilter{})
	if len(rows) != 1 || rows[0].Source == nil || rows[0].Source.ID != ev.ID {
		t.Fatalf("expected one announcement linked to the event, got %+v", rows)
	}

	if err := s.announceSvc.Delete(ctx, admin.UserID, rows[0].ID.String()); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	created, err := s.maintenance.Backfill(ctx, "")
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if created != 0 {
		t.Fatalf("backfill recreated %d deleted announcements", created)
	}
	counts, _ := s.announcements.Count(ctx)
	if counts.Total != 0 {
		t.Fatalf("expected no announcements after backfill, got %+v", counts)
	}
}
