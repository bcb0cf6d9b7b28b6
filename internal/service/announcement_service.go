package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"dasa-hub/internal/metrics"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

type CreateAnnouncementRequest struct {
	Title       string  `json:"title" binding:"required,max=200"`
	Message     string  `json:"message" binding:"required"`
	Priority    string  `json:"priority,omitempty"`
	RelatedLink *string `json:"related_link,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type UpdateAnnouncementRequest struct {
	Title       *string `json:"title,omitempty" binding:"omitempty,max=200"`
	Message     *string `json:"message,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	RelatedLink *string `json:"related_link,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// AnnouncementService is the role-gated facade over the announcement store.
// Reads go through the reconciler. Writes are admin-only and checked by the
// HTTP layer.
type AnnouncementService struct {
	repo        repository.AnnouncementRepository
	reconciler  *VisibilityReconciler
	auditRepo   repository.AuditRepository
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewAnnouncementService(
	repo repository.AnnouncementRepository,
	reconciler *VisibilityReconciler,
	auditRepo repository.AuditRepository,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *AnnouncementService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnnouncementService{
		repo:        repo,
		reconciler:  reconciler,
		auditRepo:   auditRepo,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *AnnouncementService) List(ctx context.Context, viewer model.Viewer) ([]*model.Announcement, error) {
	return s.reconciler.ReconcileAndListActive(ctx, viewer)
}

func (s *AnnouncementService) Get(ctx context.Context, viewer model.Viewer, announcementID string) (*model.Announcement, error) {
	id, ok := parseID(announcementID)
	if !ok {
		return nil, ErrAnnouncementNotFound
	}
	return s.reconciler.GetVisible(ctx, viewer, id)
}

func (s *AnnouncementService) Create(
	ctx context.Context,
	operatorID string,
	req CreateAnnouncementRequest,
) (*model.Announcement, error) {
	announcement, err := buildAnnouncementForCreate(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, err
	}

	metrics.IncAnnouncementCreated("admin")
	writeAudit(ctx, s.auditRepo, operatorID, "announcement.create", model.AuditResourceAnnouncement, announcement.ID.String(), nil, announcementAuditView(announcement))
	s.broadcast(sse.ActionCreate, announcement)

	return announcement, nil
}

func (s *AnnouncementService) Update(
	ctx context.Context,
	operatorID string,
	announcementID string,
	req UpdateAnnouncementRequest,
) (*model.Announcement, error) {
	id, ok := parseID(announcementID)
	if !ok {
		return nil, ErrAnnouncementNotFound
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, err
	}

	next, err := buildAnnouncementForUpdate(current, req)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, repository.AnnouncementPatch{
		Title:       next.Title,
		Message:     next.Message,
		Priority:    next.Priority,
		RelatedLink: next.RelatedLink,
		IsActive:    req.IsActive,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, err
	}

	writeAudit(ctx, s.auditRepo, operatorID, "announcement.update", model.AuditResourceAnnouncement, updated.ID.String(),
		announcementAuditView(current), announcementAuditView(updated))
	s.broadcast(sse.ActionUpdate, updated)

	return updated, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, operatorID string, announcementID string) error {
	id, ok := parseID(announcementID)
	if !ok {
		return ErrAnnouncementNotFound
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAnnouncementNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAnnouncementNotFound
		}
		return err
	}

	writeAudit(ctx, s.auditRepo, operatorID, "announcement.delete", model.AuditResourceAnnouncement, id.String(), announcementAuditView(current), nil)
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
			"action": sse.ActionDelete,
			"id":     id.String(),
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		}))
	}

	return nil
}

func buildAnnouncementForCreate(req CreateAnnouncementRequest) (*model.Announcement, error) {
	v := &ValidationError{}

	title := strings.TrimSpace(req.Title)
	checkTitle(v, "title", title)
	message := strings.TrimSpace(req.Message)
	if message == "" {
		v.Add("message", "is required")
	}

	priority := model.PriorityNormal
	if strings.TrimSpace(req.Priority) != "" {
		parsed, ok := model.ParsePriority(req.Priority)
		if !ok {
			v.Add("priority", "must be one of Low, Normal, High")
		}
		priority = parsed
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	var link *string
	if req.RelatedLink != nil {
		link = normalizedNullableString(*req.RelatedLink)
	}

	return &model.Announcement{
		Title:       title,
		Message:     message,
		Priority:    priority,
		RelatedLink: link,
		IsActive:    active,
	}, nil
}

func buildAnnouncementForUpdate(current *model.Announcement, req UpdateAnnouncementRequest) (*model.Announcement, error) {
	if current == nil {
		return nil, ErrAnnouncementNotFound
	}

	next := current.Clone()
	v := &ValidationError{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		checkTitle(v, "title", title)
		next.Title = title
	}
	if req.Message != nil {
		message := strings.TrimSpace(*req.Message)
		if message == "" {
			v.Add("message", "must not be empty")
		}
		next.Message = message
	}
	if req.Priority != nil {
		parsed, ok := model.ParsePriority(*req.Priority)
		if !ok {
			v.Add("priority", "must be one of Low, Normal, High")
		}
		next.Priority = parsed
	}
	if req.RelatedLink != nil {
		next.RelatedLink = normalizedNullableString(*req.RelatedLink)
	}
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return next, nil
}

func announcementAuditView(item *model.Announcement) map[string]interface{} {
	if item == nil {
		return nil
	}

	view := map[string]interface{}{
		"title":        item.Title,
		"priority":     string(item.Priority),
		"is_active":    item.IsActive,
		"related_link": item.RelatedLink,
	}
	if item.Source != nil {
		view["source"] = item.Source.String()
	}
	return view
}

func (s *AnnouncementService) broadcast(action string, item *model.Announcement) {
	if s.broadcaster == nil || item == nil {
		return
	}

	// The stream is public, so inactive rows only travel as an id.
	if !item.IsActive {
		s.broadcaster.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
			"action": sse.ActionDeactivate,
			"id":     item.ID.String(),
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		}))
		return
	}

	s.broadcaster.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
		"action":       action,
		"announcement": item,
		"ts":           time.Now().UTC().Format(time.RFC3339Nano),
	}))
}
