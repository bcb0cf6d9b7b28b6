package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dasa-hub/internal/metrics"
	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

// SourceIndex answers closure questions about one entity kind.
type SourceIndex interface {
	Kind() model.EntityKind
	// ClosedIDs returns ids whose relevance window is over at now.
	ClosedIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	// OpenSources returns entities whose relevance window is still open.
	OpenSources(ctx context.Context, now time.Time) ([]model.Source, error)
}

type EventIndex struct {
	repo     repository.EventRepository
	location *time.Location
}

func NewEventIndex(repo repository.EventRepository, location *time.Location) *EventIndex {
	if location == nil {
		location = time.UTC
	}
	return &EventIndex{repo: repo, location: location}
}

func (i *EventIndex) Kind() model.EntityKind {
	return model.EntityKindEvent
}

func (i *EventIndex) ClosedIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return i.repo.IDsBefore(ctx, model.Today(now, i.location))
}

func (i *EventIndex) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return i.repo.ExistingIDs(ctx, ids)
}

func (i *EventIndex) OpenSources(ctx context.Context, now time.Time) ([]model.Source, error) {
	events, err := i.repo.List(ctx, repository.EventListFilter{FromDay: model.Today(now, i.location)})
	if err != nil {
		return nil, err
	}
	out := make([]model.Source, 0, len(events))
	for _, event := range events {
		out = append(out, event)
	}
	return out, nil
}

type LostItemIndex struct {
	repo repository.LostItemRepository
}

func NewLostItemIndex(repo repository.LostItemRepository) *LostItemIndex {
	return &LostItemIndex{repo: repo}
}

func (i *LostItemIndex) Kind() model.EntityKind {
	return model.EntityKindLostItem
}

func (i *LostItemIndex) ClosedIDs(ctx context.Context, _ time.Time) ([]uuid.UUID, error) {
	return i.repo.ResolvedIDs(ctx)
}

func (i *LostItemIndex) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return i.repo.ExistingIDs(ctx, ids)
}

func (i *LostItemIndex) OpenSources(ctx context.Context, _ time.Time) ([]model.Source, error) {
	items, err := i.repo.List(ctx, repository.LostItemListFilter{UnresolvedOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]model.Source, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}

type ReconcileReport struct {
	Deactivated map[model.EntityKind]int64 `json:"deactivated"`
	Dangling    int                        `json:"dangling"`
	UnknownKind int                        `json:"unknown_kind"`
}

func (r ReconcileReport) Total() int64 {
	var total int64
	for _, n := range r.Deactivated {
		total += n
	}
	return total
}

// VisibilityReconciler recomputes which linked announcements must be
// inactive and persists the corrections before a read.
type VisibilityReconciler struct {
	announcements repository.AnnouncementRepository
	indexes       []SourceIndex
	broadcaster   Broadcaster
	logger        *zap.Logger
	now           func() time.Time
}

func NewVisibilityReconciler(
	announcements repository.AnnouncementRepository,
	broadcaster Broadcaster,
	logger *zap.Logger,
	indexes ...SourceIndex,
) *VisibilityReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := make([]SourceIndex, 0, len(indexes))
	for _, idx := range indexes {
		if idx != nil {
			sorted = append(sorted, idx)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Kind() < sorted[j].Kind() })

	return &VisibilityReconciler{
		announcements: announcements,
		indexes:       sorted,
		broadcaster:   broadcaster,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (r *VisibilityReconciler) WithClock(now func() time.Time) *VisibilityReconciler {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *VisibilityReconciler) Indexes() []SourceIndex {
	return append([]SourceIndex(nil), r.indexes...)
}

// Reconcile runs one pass against a single clock reading. Per-kind failures
// do not stop the other kinds; they are joined into the returned error.
func (r *VisibilityReconciler) Reconcile(ctx context.Context) (ReconcileReport, error) {
	started := time.Now()
	now := r.now()
	report := ReconcileReport{Deactivated: make(map[model.EntityKind]int64, len(r.indexes))}

	var errs []error
	for _, idx := range r.indexes {
		kind := idx.Kind()

		closed, err := idx.ClosedIDs(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("closed %s ids: %w", kind, err))
			continue
		}

		changed, err := r.announcements.DeactivateBySource(ctx, kind, closed)
		if err != nil {
			errs = append(errs, fmt.Errorf("deactivate %s announcements: %w", kind, err))
			continue
		}
		report.Deactivated[kind] = changed
	}

	if err := r.inspectReferences(ctx, &report); err != nil {
		errs = append(errs, err)
	}

	metrics.ObserveReconcileDuration(time.Since(started))
	if total := report.Total(); total > 0 {
		metrics.AddAnnouncementsDeactivated("closed", total)
		r.logger.Info("announcements deactivated by reconciliation",
			zap.Int64("count", total),
			zap.Time("as_of", now),
		)
		if r.broadcaster != nil {
			r.broadcaster.Broadcast(sse.NewEvent(sse.EventAnnouncement, map[string]interface{}{
				"action": sse.ActionDeactivate,
				"count":  total,
			}))
		}
	}

	return report, errors.Join(errs...)
}

// ReconcileAndListActive is the read path behind every announcement list.
// Admins get every row without reconciliation. Everybody else triggers a
// pass first and then sees active rows only. A failed pass is logged and
// the listing still happens.
func (r *VisibilityReconciler) ReconcileAndListActive(ctx context.Context, viewer model.Viewer) ([]*model.Announcement, error) {
	if viewer.IsAdmin() {
		return r.announcements.List(ctx, repository.AnnouncementListFilter{})
	}

	if _, err := r.Reconcile(ctx); err != nil {
		r.logger.Warn("announcement reconciliation failed", zap.Error(err))
	}

	return r.announcements.List(ctx, repository.AnnouncementListFilter{ActiveOnly: true})
}

// GetVisible returns one announcement as viewer may see it. Inactive rows
// are reported as not found to non-admins.
func (r *VisibilityReconciler) GetVisible(ctx context.Context, viewer model.Viewer, id uuid.UUID) (*model.Announcement, error) {
	if !viewer.IsAdmin() {
		if _, err := r.Reconcile(ctx); err != nil {
			r.logger.Warn("announcement reconciliation failed", zap.Error(err))
		}
	}

	item, err := r.announcements.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, err
	}
	if !item.IsActive && !viewer.IsAdmin() {
		return nil, ErrAnnouncementNotFound
	}
	return item, nil
}

// inspectReferences reports active links that point at unknown kinds or at
// entities that no longer exist. Such rows are left untouched.
func (r *VisibilityReconciler) inspectReferences(ctx context.Context, report *ReconcileReport) error {
	refs, err := r.announcements.ActiveSourceRefs(ctx)
	if err != nil {
		return fmt.Errorf("active source refs: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	byKind := make(map[model.EntityKind][]uuid.UUID)
	for _, ref := range refs {
		byKind[ref.Kind] = append(byKind[ref.Kind], ref.ID)
	}

	known := make(map[model.EntityKind]SourceIndex, len(r.indexes))
	for _, idx := range r.indexes {
		known[idx.Kind()] = idx
	}

	var errs []error
	for kind, ids := range byKind {
		idx, ok := known[kind]
		if !ok {
			report.UnknownKind += len(ids)
			metrics.IncReconcileAnomaly("unknown_kind")
			r.logger.Warn("skipping announcements with unknown source kind",
				zap.Error(fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)),
				zap.Int("count", len(ids)),
			)
			continue
		}

		existing, err := idx.ExistingIDs(ctx, ids)
		if err != nil {
			errs = append(errs, fmt.Errorf("existing %s ids: %w", kind, err))
			continue
		}
		present := make(map[uuid.UUID]struct{}, len(existing))
		for _, id := range existing {
			present[id] = struct{}{}
		}

		for _, id := range ids {
			if _, ok := present[id]; ok {
				continue
			}
			report.Dangling++
			metrics.IncReconcileAnomaly("dangling")
			r.logger.Warn("active announcement points at a deleted entity",
				zap.Error(fmt.Errorf("%w: %s", ErrDanglingReference, model.SourceRef{Kind: kind, ID: id})),
			)
		}
	}

	return errors.Join(errs...)
}
