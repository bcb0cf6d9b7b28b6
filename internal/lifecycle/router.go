// Package lifecycle turns source entity lifecycle events into announcement
// writes. Sources never import this package; they publish on the event bus.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dasa-hub/internal/event"
	"dasa-hub/internal/metrics"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

var (
	ErrNoTemplate        = errors.New("no announcement template for entity kind")
	ErrUnexpectedSource  = errors.New("unexpected source type")
	ErrInvalidSourceRef  = errors.New("invalid source reference")
	ErrUnexpectedPayload = errors.New("unexpected event payload")
)

type Broadcaster interface {
	Broadcast(event sse.SSEEvent)
}

type Router struct {
	repo        repository.AnnouncementRepository
	templates   map[model.EntityKind]Template
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewRouter(
	repo repository.AnnouncementRepository,
	broadcaster Broadcaster,
	logger *zap.Logger,
	templates ...Template,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	byKind := make(map[model.EntityKind]Template, len(templates))
	for _, tpl := range templates {
		if tpl == nil {
			continue
		}
		byKind[tpl.Kind()] = tpl
	}

	return &Router{
		repo:        repo,
		templates:   byKind,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// DefaultTemplates covers every built-in entity kind.
func DefaultTemplates() []Template {
	return []Template{EventTemplate{}, LostItemTemplate{}}
}

// Kinds lists the kinds that have a template, sorted.
func (r *Router) Kinds() []model.EntityKind {
	kinds := make([]model.EntityKind, 0, len(r.templates))
	for kind := range r.templates {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// OnEntityCreated creates one active announcement linked to src.
func (r *Router) OnEntityCreated(ctx context.Context, src model.Source) (*model.Announcement, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrUnexpectedSource)
	}

	ref := src.SourceRef()
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSourceRef, ref)
	}

	tpl, ok := r.templates[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTemplate, ref.Kind)
	}

	draft, err := tpl.Compose(src)
	if err != nil {
		return nil, fmt.Errorf("compose %s announcement: %w", ref.Kind, err)
	}

	announcement := &model.Announcement{
		Title:    draft.Title,
		Message:  draft.Message,
		Priority: draft.Priority,
		IsActive: true,
		Source:   &ref,
	}
	if draft.RelatedLink != "" {
		link := draft.RelatedLink
		announcement.RelatedLink = &link
	}

	if err := r.repo.Create(ctx, announcement); err != nil {
		return nil, fmt.Errorf("create announcement for %s: %w", ref, err)
	}

	metrics.IncAnnouncementCreated(ref.Kind.String())
	r.logger.Info("announcement created from source",
		zap.String("announcement_id", announcement.ID.String()),
		zap.String("source", ref.String()),
		zap.String("priority", string(announcement.Priority)),
	)
	r.broadcast(sse.ActionCreate, announcement)

	return announcement, nil
}

// OnEntityResolved deactivates every active announcement linked to ref.
// Calling it again for the same ref changes nothing.
func (r *Router) OnEntityResolved(ctx context.Context, ref model.SourceRef) (int64, error) {
	if !ref.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSourceRef, ref)
	}

	changed, err := r.repo.DeactivateBySource(ctx, ref.Kind, []uuid.UUID{ref.ID})
	if err != nil {
		return 0, fmt.Errorf("deactivate announcements for %s: %w", ref, err)
	}

	if changed > 0 {
		metrics.AddAnnouncementsDeactivated("resolved", changed)
		r.logger.Info("announcements deactivated on resolution",
			zap.String("source", ref.String()),
			zap.Int64("count", changed),
		)
		if r.broadcaster != nil {
			r.broadcaster.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
				"action": sse.ActionDeactivate,
				"source": ref,
			}))
		}
	}

	return changed, nil
}

// Subscribe registers the router for both lifecycle topics.
func (r *Router) Subscribe(bus *event.Bus) {
	if bus == nil {
		return
	}

	bus.Subscribe(event.EventEntityCreated, func(ctx context.Context, payload any) error {
		created, ok := payload.(event.EntityCreated)
		if !ok {
			return fmt.Errorf("%w: %T on %s", ErrUnexpectedPayload, payload, event.EventEntityCreated)
		}
		_, err := r.OnEntityCreated(ctx, created.Source)
		return err
	})

	bus.Subscribe(event.EventEntityResolved, func(ctx context.Context, payload any) error {
		resolved, ok := payload.(event.EntityResolved)
		if !ok {
			return fmt.Errorf("%w: %T on %s", ErrUnexpectedPayload, payload, event.EventEntityResolved)
		}
		_, err := r.OnEntityResolved(ctx, resolved.Ref)
		return err
	})
}

func (r *Router) broadcast(action string, announcement *model.Announcement) {
	if r.broadcaster == nil || announcement == nil {
		return
	}

	r.broadcaster.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
		"action":       action,
		"announcement": announcement,
		"ts":           time.Now().UTC().Format(time.RFC3339Nano),
	}))
}
