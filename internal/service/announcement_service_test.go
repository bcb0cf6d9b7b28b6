package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/repository/memory"
)

func TestAnnouncementCreate_AdminRowsAreUnlinked(t *testing.T) {
	s := newTestStack(t, day(2026, 1, 5))
	ctx := context.Background()

	link := " /elections "
	created, err := s.announceSvc.Create(ctx, admin.UserID, CreateAnnouncementRequest{
		Title:       "Elections open",
		Message:     "Vote on the portal.",
		Priority:    "high",
		RelatedLink: &link,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Source != nil || !created.IsActive || created.Priority != model.PriorityHigh || *created.RelatedLink != "/elections" {
		t.Fatalf("unexpected announcement %+v", created)
	}

	logs, _ := s.audit.List(ctx, repository.AuditListFilter{})
	if len(logs) != 1 || logs[0].Action != "announcement.create" {
		t.Fatalf("expected create audit, got %+v", logs)
	}
	if rt := logs[0].ResourceType; rt == nil || *rt != model.AuditResourceAnnouncement {
		t.Fatalf("audit resource type = %v, want %q", rt, model.AuditResourceAnnouncement)
	}
}

func TestAnnouncementCreate_Validation(t *testing.T) {
	s := newTestStack(t, day(2026, 1, 5))

	_, err := s.announceSvc.Create(context.Background(), admin.UserID, CreateAnnouncementRequest{
		Title:    "   ",
		Message:  "",
		Priority: "urgent",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected title, message and priority errors, got %v", verr.Fields)
	}
}

func TestAnnouncementUpdate_DeactivateHidesFromStudents(t *testing.T) {
	s := newTestStack(t, day(2026, 1, 5))
	ctx := context.Background()

	created, err := s.announceSvc.Create(ctx, admin.UserID, CreateAnnouncementRequest{Title: "Notice", Message: "body"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	inactive := false
	if _, err := s.announceSvc.Update(ctx, admin.UserID, created.ID.String(), UpdateAnnouncementRequest{IsActive: &inactive}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := s.announceSvc.Get(ctx, student, created.ID.String()); !errors.Is(err, ErrAnnouncementNotFound) {
		t.Fatalf("expected not found for student, got %v", err)
	}
	list, err := s.announceSvc.List(ctx, student)
	if err != nil || len(list) != 0 {
		t.Fatalf("student list = %v, %v", titles(list), err)
	}
}

// afterFindRepo runs hook once the row has been read, standing in for a
// request that lands between an edit's read and its write.
type afterFindRepo struct {
	*memory.AnnouncementRepository
	hook func()
}

func (r afterFindRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Announcement, error) {
	row, err := r.AnnouncementRepository.FindByID(ctx, id)
	if err == nil && r.hook != nil {
		r.hook()
	}
	return row, err
}

func TestAnnouncementUpdate_TitleEditKeepsConcurrentDeactivation(t *testing.T) {
	s := newTestStack(t, day(2026, 2, 1))
	ctx := context.Background()
	owner := model.Viewer{UserID: uuid.NewString(), Role: "student"}

	item, err := s.lostItemSvc.Create(ctx, owner, CreateLostItemRequest{
		Type: "Lost", Category: "Wallet", Description: "Blue wallet", ContactInfo: "0550000000",
	})
	if err != nil {
		t.Fatalf("Create lost item: %v", err)
	}
	active, _ := s.announcements.List(ctx, repository.AnnouncementListFilter{ActiveOnly: true})
	if len(active) != 1 {
		t.Fatalf("expected one active announcement, got %d", len(active))
	}
	target := active[0]

	repo := afterFindRepo{
		AnnouncementRepository: s.announcements,
		hook: func() {
			if _, err := s.lostItemSvc.Resolve(ctx, owner, item.ID.String()); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		},
	}
	svc := NewAnnouncementService(repo, s.reconciler, s.audit, s.broadcaster, nil)

	title := "LOST: Blue wallet"
	updated, err := svc.Update(ctx, admin.UserID, target.ID.String(), UpdateAnnouncementRequest{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("title = %q, want %q", updated.Title, title)
	}
	if updated.IsActive {
		t.Fatal("title-only edit re-activated the announcement of a resolved lost item")
	}

	stored, err := s.announcements.FindByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.IsActive || stored.Title != title {
		t.Fatalf("stored row = %+v", stored)
	}
}

func TestAnnouncementDelete(t *testing.T) {
	s := newTestStack(t, day(2026, 1, 5))
	ctx := context.Background()

	created, _ := s.announceSvc.Create(ctx, admin.UserID, CreateAnnouncementRequest{Title: "Temp", Message: "body"})
	if err := s.announceSvc.Delete(ctx, admin.UserID, created.ID.String()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.announceSvc.Delete(ctx, admin.UserID, created.ID.String()); !errors.Is(err, ErrAnnouncementNotFound) {
		t.Fatalf("expected ErrAnnouncementNotFound, got %v", err)
	}
	if _, err := s.announceSvc.Get(ctx, admin, "not-a-uuid"); !errors.Is(err, ErrAnnouncementNotFound) {
		t.Fatalf("expected ErrAnnouncementNotFound for bad id, got %v", err)
	}
}
