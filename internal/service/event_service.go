package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"dasa-hub/internal/event"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

type CreateEventRequest struct {
	Title                string  `json:"title" binding:"required,max=200"`
	Description          string  `json:"description"`
	Date                 string  `json:"date" binding:"required"`
	StartTime            string  `json:"start_time" binding:"required"`
	EndTime              string  `json:"end_time,omitempty"`
	Location             string  `json:"location" binding:"required"`
	IsFeatured           bool    `json:"is_featured"`
	RegistrationRequired bool    `json:"registration_required"`
	RegistrationLink     *string `json:"registration_link,omitempty" binding:"omitempty,url"`
}

type UpdateEventRequest struct {
	Title                *string `json:"title,omitempty" binding:"omitempty,max=200"`
	Description          *string `json:"description,omitempty"`
	Date                 *string `json:"date,omitempty"`
	StartTime            *string `json:"start_time,omitempty"`
	EndTime              *string `json:"end_time,omitempty"`
	Location             *string `json:"location,omitempty"`
	IsFeatured           *bool   `json:"is_featured,omitempty"`
	RegistrationRequired *bool   `json:"registration_required,omitempty"`
	RegistrationLink     *string `json:"registration_link,omitempty"`
}

type EventService struct {
	repo     repository.EventRepository
	bus      Publisher
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewEventService(
	repo repository.EventRepository,
	bus Publisher,
	location *time.Location,
	logger *zap.Logger,
) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}

	return &EventService{
		repo:     repo,
		bus:      bus,
		location: location,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *EventService) Create(ctx context.Context, req CreateEventRequest) (*model.Event, error) {
	ev, err := buildEventForCreate(req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, err
	}

	dispatchLifecycle(ctx, s.bus, s.logger, event.EventEntityCreated, ev.SourceRef().String(), event.EntityCreated{
		Source:     ev,
		OccurredAt: s.now(),
	})

	return ev, nil
}

func (s *EventService) Update(ctx context.Context, eventID string, req UpdateEventRequest) (*model.Event, error) {
	current, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	next, err := buildEventForUpdate(current, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return next, nil
}

// Delete removes the event. Announcements linked to it stay and are
// reported as dangling by the reconciler.
func (s *EventService) Delete(ctx context.Context, eventID string) error {
	id, ok := parseID(eventID)
	if !ok {
		return ErrEventNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	return nil
}

func (s *EventService) Get(ctx context.Context, eventID string) (*model.Event, error) {
	id, ok := parseID(eventID)
	if !ok {
		return nil, ErrEventNotFound
	}

	ev, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

// List returns upcoming events, or every event when includePast is set or
// the viewer is an admin.
func (s *EventService) List(ctx context.Context, viewer model.Viewer, includePast, featuredOnly bool) ([]*model.Event, error) {
	filter := repository.EventListFilter{FeaturedOnly: featuredOnly}
	if !includePast && !viewer.IsAdmin() {
		filter.FromDay = model.Today(s.now(), s.location)
	}
	return s.repo.List(ctx, filter)
}

func (s *EventService) CountUpcoming(ctx context.Context) (int64, error) {
	return s.repo.CountFrom(ctx, model.Today(s.now(), s.location))
}

func buildEventForCreate(req CreateEventRequest) (*model.Event, error) {
	v := &ValidationError{}

	title := strings.TrimSpace(req.Title)
	checkTitle(v, "title", title)
	date := parseEventDate(v, req.Date)
	start := parseClock(v, "start_time", req.StartTime, true)
	end := parseClock(v, "end_time", req.EndTime, false)
	location := strings.TrimSpace(req.Location)
	if location == "" {
		v.Add("location", "is required")
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var link *string
	if req.RegistrationLink != nil {
		link = normalizedNullableString(*req.RegistrationLink)
	}

	return &model.Event{
		Title:                title,
		Description:          strings.TrimSpace(req.Description),
		Date:                 date,
		StartTime:            start,
		EndTime:              end,
		Location:             location,
		IsFeatured:           req.IsFeatured,
		RegistrationRequired: req.RegistrationRequired,
		RegistrationLink:     link,
	}, nil
}

func buildEventForUpdate(current *model.Event, req UpdateEventRequest) (*model.Event, error) {
	next := *current
	next.RegistrationLink = cloneStringPointer(current.RegistrationLink)
	v := &ValidationError{}

	if req.Title != nil {
		next.Title = strings.TrimSpace(*req.Title)
		checkTitle(v, "title", next.Title)
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.Date != nil {
		next.Date = parseEventDate(v, *req.Date)
	}
	if req.StartTime != nil {
		next.StartTime = parseClock(v, "start_time", *req.StartTime, true)
	}
	if req.EndTime != nil {
		next.EndTime = parseClock(v, "end_time", *req.EndTime, false)
	}
	if req.Location != nil {
		next.Location = strings.TrimSpace(*req.Location)
		if next.Location == "" {
			v.Add("location", "must not be empty")
		}
	}
	if req.IsFeatured != nil {
		next.IsFeatured = *req.IsFeatured
	}
	if req.RegistrationRequired != nil {
		next.RegistrationRequired = *req.RegistrationRequired
	}
	if req.RegistrationLink != nil {
		next.RegistrationLink = normalizedNullableString(*req.RegistrationLink)
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return &next, nil
}

func parseEventDate(v *ValidationError, raw string) time.Time {
	parsed, err := time.Parse(model.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		v.Add("date", "must be a date in YYYY-MM-DD form")
		return time.Time{}
	}
	return parsed
}

// parseClock normalises "9:05", "09:05" or "09:05:00" to "09:05".
func parseClock(v *ValidationError, field, raw string, required bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			v.Add(field, "is required")
		}
		return ""
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("15:04")
		}
	}
	v.Add(field, "must be a time in HH:MM form")
	return ""
}
