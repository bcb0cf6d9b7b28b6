package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dasa-hub/internal/event"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

const (
	LostItemListPublic = ""
	LostItemListMine   = "my_posts"
)

type CreateLostItemRequest struct {
	Type        string  `json:"type" binding:"required"`
	Category    string  `json:"category" binding:"required"`
	StudentName *string `json:"student_name,omitempty" binding:"omitempty,max=100"`
	Description string  `json:"description" binding:"required"`
	ContactInfo string  `json:"contact_info" binding:"required,max=200"`
}

type UpdateLostItemRequest struct {
	Type        *string `json:"type,omitempty"`
	Category    *string `json:"category,omitempty"`
	StudentName *string `json:"student_name,omitempty" binding:"omitempty,max=100"`
	Description *string `json:"description,omitempty"`
	ContactInfo *string `json:"contact_info,omitempty" binding:"omitempty,max=200"`
	IsResolved  *bool   `json:"is_resolved,omitempty"`
}

type LostItemService struct {
	repo        repository.LostItemRepository
	bus         Publisher
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

func NewLostItemService(
	repo repository.LostItemRepository,
	bus Publisher,
	broadcaster Broadcaster,
	logger *zap.Logger,
) *LostItemService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LostItemService{
		repo:        repo,
		bus:         bus,
		broadcaster: broadcaster,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *LostItemService) Create(ctx context.Context, viewer model.Viewer, req CreateLostItemRequest) (*model.LostItem, error) {
	if !viewer.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	reporterID, ok := parseID(viewer.UserID)
	if !ok {
		return nil, ErrInvalidUserID
	}

	item, err := buildLostItemForCreate(reporterID, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	dispatchLifecycle(ctx, s.bus, s.logger, event.EventEntityCreated, item.SourceRef().String(), event.EntityCreated{
		Source:     item,
		OccurredAt: s.now(),
	})

	return item, nil
}

// Update edits an item. Setting is_resolved to true goes through Resolve;
// a resolved item cannot be reopened.
func (s *LostItemService) Update(ctx context.Context, viewer model.Viewer, itemID string, req UpdateLostItemRequest) (*model.LostItem, error) {
	current, err := s.owned(ctx, viewer, itemID)
	if err != nil {
		return nil, err
	}

	if req.IsResolved != nil && !*req.IsResolved && current.IsResolved {
		return nil, NewFieldError("is_resolved", "a resolved item cannot be reopened")
	}

	next, err := buildLostItemForUpdate(current, req)
	if err != nil {
		return nil, err
	}

	if lostItemFieldsChanged(req) {
		if err := s.repo.Update(ctx, next); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrLostItemNotFound
			}
			return nil, err
		}
	}

	if req.IsResolved != nil && *req.IsResolved {
		if _, err := s.resolve(ctx, next); err != nil {
			return nil, err
		}
		next.IsResolved = true
	}

	return next, nil
}

// Resolve marks the item resolved. The resolved event is published only by
// the call that performed the transition.
func (s *LostItemService) Resolve(ctx context.Context, viewer model.Viewer, itemID string) (*model.LostItem, error) {
	current, err := s.owned(ctx, viewer, itemID)
	if err != nil {
		return nil, err
	}

	if _, err := s.resolve(ctx, current); err != nil {
		return nil, err
	}
	current.IsResolved = true
	return current, nil
}

func (s *LostItemService) resolve(ctx context.Context, item *model.LostItem) (bool, error) {
	transitioned, err := s.repo.MarkResolved(ctx, item.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrLostItemNotFound
		}
		return false, err
	}
	if !transitioned {
		return false, nil
	}

	dispatchLifecycle(ctx, s.bus, s.logger, event.EventEntityResolved, item.SourceRef().String(), event.EntityResolved{
		Ref:        item.SourceRef(),
		OccurredAt: s.now(),
	})

	if hub, ok := s.broadcaster.(userBroadcaster); ok {
		hub.SendToUser(item.ReporterID.String(), sse.NewEvent(sse.EventLostItemResolved, map[string]interface{}{
			"id": item.ID.String(),
			"ts": s.now().Format(time.RFC3339Nano),
		}))
	}
	return true, nil
}

type userBroadcaster interface {
	SendToUser(userID string, event sse.SSEEvent)
}

// Delete removes the item. Its announcements are kept and become dangling.
func (s *LostItemService) Delete(ctx context.Context, viewer model.Viewer, itemID string) error {
	current, err := s.owned(ctx, viewer, itemID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, current.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLostItemNotFound
		}
		return err
	}
	return nil
}

func (s *LostItemService) Get(ctx context.Context, itemID string) (*model.LostItem, error) {
	id, ok := parseID(itemID)
	if !ok {
		return nil, ErrLostItemNotFound
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLostItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// List serves three views: the caller's own posts (mode my_posts), every
// item for admins, and unresolved items for everyone else.
func (s *LostItemService) List(ctx context.Context, viewer model.Viewer, mode string) ([]*model.LostItem, error) {
	filter := repository.LostItemListFilter{}

	switch strings.TrimSpace(mode) {
	case LostItemListMine:
		if !viewer.IsAuthenticated() {
			return nil, ErrUnauthenticated
		}
		reporterID, ok := parseID(viewer.UserID)
		if !ok {
			return nil, ErrInvalidUserID
		}
		filter.ReporterID = &reporterID
	default:
		filter.UnresolvedOnly = !viewer.IsAdmin()
	}

	return s.repo.List(ctx, filter)
}

func (s *LostItemService) CountUnresolved(ctx context.Context) (int64, error) {
	return s.repo.CountUnresolved(ctx)
}

func (s *LostItemService) owned(ctx context.Context, viewer model.Viewer, itemID string) (*model.LostItem, error) {
	if !viewer.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}

	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdmin() && item.ReporterID.String() != strings.ToLower(strings.TrimSpace(viewer.UserID)) {
		return nil, ErrForbidden
	}
	return item, nil
}

func buildLostItemForCreate(reporterID uuid.UUID, req CreateLostItemRequest) (*model.LostItem, error) {
	v := &ValidationError{}

	itemType := model.LostItemType(strings.TrimSpace(req.Type))
	if !itemType.Valid() {
		v.Add("type", "must be Lost or Found")
	}
	category := model.LostItemCategory(strings.TrimSpace(req.Category))
	if !category.Valid() {
		v.Add("category", "must be one of Student ID, Keys, Wallet, Gadget, Other")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		v.Add("description", "is required")
	}
	contact := strings.TrimSpace(req.ContactInfo)
	if contact == "" {
		v.Add("contact_info", "is required")
	}
	var studentName *string
	if req.StudentName != nil {
		studentName = normalizedNullableString(*req.StudentName)
		if studentName != nil && utf8.RuneCountInString(*studentName) > 100 {
			v.Add("student_name", "must be at most 100 characters")
		}
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return &model.LostItem{
		ReporterID:  reporterID,
		Type:        itemType,
		Category:    category,
		StudentName: studentName,
		Description: description,
		ContactInfo: contact,
	}, nil
}

func buildLostItemForUpdate(current *model.LostItem, req UpdateLostItemRequest) (*model.LostItem, error) {
	next := *current
	next.StudentName = cloneStringPointer(current.StudentName)
	v := &ValidationError{}

	if req.Type != nil {
		next.Type = model.LostItemType(strings.TrimSpace(*req.Type))
		if !next.Type.Valid() {
			v.Add("type", "must be Lost or Found")
		}
	}
	if req.Category != nil {
		next.Category = model.LostItemCategory(strings.TrimSpace(*req.Category))
		if !next.Category.Valid() {
			v.Add("category", "must be one of Student ID, Keys, Wallet, Gadget, Other")
		}
	}
	if req.StudentName != nil {
		next.StudentName = normalizedNullableString(*req.StudentName)
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
		if next.Description == "" {
			v.Add("description", "must not be empty")
		}
	}
	if req.ContactInfo != nil {
		next.ContactInfo = strings.TrimSpace(*req.ContactInfo)
		if next.ContactInfo == "" {
			v.Add("contact_info", "must not be empty")
		}
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return &next, nil
}

func lostItemFieldsChanged(req UpdateLostItemRequest) bool {
	return req.Type != nil || req.Category != nil || req.StudentName != nil ||
		req.Description != nil || req.ContactInfo != nil
}
