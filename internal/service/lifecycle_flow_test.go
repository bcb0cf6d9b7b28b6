package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/repository/memory"
)

func TestEventCreate_FeaturedProducesOneHighAnnouncement(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))
	ctx := context.Background()

	ev, err := s.eventSvc.Create(ctx, CreateEventRequest{
		Title:      "Awards Night",
		Date:       "2026-02-14",
		StartTime:  "19:00",
		Location:   "Banquet Hall",
		IsFeatured: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	all, _ := s.announcements.List(ctx, repository.AnnouncementListFilter{})
	linked := 0
	for _, a := range all {
		if a.Source != nil && *a.Source == model.EventRef(ev.ID) {
			linked++
			if a.Priority != model.PriorityHigh {
				t.Fatalf("expected High priority, got %s", a.Priority)
			}
		}
	}
	if linked != 1 {
		t.Fatalf("expected exactly one linked announcement, got %d", linked)
	}
}

func TestEventCreate_ValidationErrors(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))

	_, err := s.eventSvc.Create(context.Background(), CreateEventRequest{
		Title:     "",
		Date:      "14/02/2026",
		StartTime: "7pm",
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"title", "date", "start_time", "location"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing error for %s in %v", field, verr.Fields)
		}
	}
}

type failingCreateRepo struct {
	*memory.AnnouncementRepository
}

func (failingCreateRepo) Create(context.Context, *model.Announcement) error {
	return errors.New("insert failed")
}

func TestEventCreate_RouterFailureKeepsEntity(t *testing.T) {
	s := newTestStackWithAnnouncements(t, day(2026, 2, 1), failingCreateRepo{memory.NewAnnouncementRepository()})
	ctx := context.Background()

	ev, err := s.eventSvc.Create(ctx, CreateEventRequest{
		Title:     "Quiz",
		Date:      "2026-02-10",
		StartTime: "15:00",
		Location:  "Room 4",
	})
	if err != nil {
		t.Fatalf("entity write must succeed despite router failure: %v", err)
	}
	if _, err := s.events.FindByID(ctx, ev.ID); err != nil {
		t.Fatalf("event was rolled back: %v", err)
	}
}

func TestLostItemResolve_DeactivatesBeforeAnyReconcile(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.NewString(), Role: "student"}

	item, err := s.lostItemSvc.Create(ctx, owner, CreateLostItemRequest{
		Type:        "Lost",
		Category:    "Wallet",
		Description: "Blue wallet",
		ContactInfo: "0550000000",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, _ := s.announcements.List(ctx, repository.AnnouncementListFilter{ActiveOnly: true})
	if len(active) != 1 || active[0].Title != "LOST: Wallet" || *active[0].RelatedLink != "/lost-and-found" {
		t.Fatalf("unexpected announcements after create: %+v", active)
	}

	if _, err := s.lostItemSvc.Resolve(ctx, owner, item.ID.String()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	active, _ = s.announcements.List(ctx, repository.AnnouncementListFilter{ActiveOnly: true})
	if len(active) != 0 {
		t.Fatalf("announcement still active after resolution: %+v", active)
	}
}

func TestLostItemResolve_ConcurrentRequestsPublishOnce(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.NewString()}

	item, err := s.lostItemSvc.Create(ctx, owner, CreateLostItemRequest{
		Type: "Found", Category: "Keys", Description: "bunch of keys", ContactInfo: "porter",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var (
		mu        sync.Mutex
		published int
	)
	s.bus.Subscribe("entity.resolved", func(context.Context, any) error {
		mu.Lock()
		published++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.lostItemSvc.Resolve(ctx, owner, item.ID.String()); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if published != 1 {
		t.Fatalf("resolved event published %d times", published)
	}
}

func TestLostItemUpdate_OwnershipAndReopen(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.NewString()}
	stranger := model.Viewer{UserID: uuid.NewString()}

	item, err := s.lostItemSvc.Create(ctx, owner, CreateLostItemRequest{
		Type: "Lost", Category: "Gadget", Description: "earbuds", ContactInfo: "dm me",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	description := "white earbuds"
	if _, err := s.lostItemSvc.Update(ctx, stranger, item.ID.String(), UpdateLostItemRequest{Description: &description}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := s.lostItemSvc.Update(ctx, model.Viewer{}, item.ID.String(), UpdateLostItemRequest{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	resolved := true
	updated, err := s.lostItemSvc.Update(ctx, admin, item.ID.String(), UpdateLostItemRequest{Description: &description, IsResolved: &resolved})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if !updated.IsResolved || updated.Description != description {
		t.Fatalf("unexpected update result %+v", updated)
	}

	reopen := false
	_, err = s.lostItemSvc.Update(ctx, owner, item.ID.String(), UpdateLostItemRequest{IsResolved: &reopen})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["is_resolved"] == "" {
		t.Fatalf("expected is_resolved validation error, got %v", err)
	}
}

func TestLostItemList_Modes(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.NewString()}
	other := model.Viewer{UserID: uuid.NewString()}

	mine, _ := s.lostItemSvc.Create(ctx, owner, CreateLostItemRequest{Type: "Lost", Category: "Other", Description: "umbrella", ContactInfo: "x"})
	if _, err := s.lostItemSvc.Create(ctx, other, CreateLostItemRequest{Type: "Found", Category: "Other", Description: "scarf", ContactInfo: "y"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.lostItemSvc.Resolve(ctx, owner, mine.ID.String()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	public, _ := s.lostItemSvc.List(ctx, model.Viewer{}, LostItemListPublic)
	if len(public) != 1 {
		t.Fatalf("public view should only hold unresolved items, got %d", len(public))
	}
	own, _ := s.lostItemSvc.List(ctx, owner, LostItemListMine)
	if len(own) != 1 || own[0].ID != mine.ID {
		t.Fatalf("my_posts mismatch: %+v", own)
	}
	all, _ := s.lostItemSvc.List(ctx, admin, LostItemListPublic)
	if len(all) != 2 {
		t.Fatalf("admin should see every item, got %d", len(all))
	}
	if _, err := s.lostItemSvc.List(ctx, model.Viewer{}, LostItemListMine); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
