// Package memory holds mutex-guarded repositories used by the memory
// database driver and by unit tests. Bulk updates follow the same
// "only rows still active" rule as the SQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

type AnnouncementRepository struct {
	mu        sync.RWMutex
	rows      map[uuid.UUID]*model.Announcement
	announced map[model.SourceRef]struct{}
	now       func() time.Time
	flips     atomic.Int64
}

func NewAnnouncementRepository() *AnnouncementRepository {
	return &AnnouncementRepository{
		rows:      make(map[uuid.UUID]*model.Announcement),
		announced: make(map[model.SourceRef]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ repository.AnnouncementRepository = (*AnnouncementRepository)(nil)

// Deactivated returns the total number of rows flipped by bulk
// deactivation since construction.
func (r *AnnouncementRepository) Deactivated() int64 {
	return r.flips.Load()
}

func (r *AnnouncementRepository) Create(_ context.Context, announcement *model.Announcement) error {
	if announcement.ID == uuid.Nil {
		announcement.ID = uuid.New()
	}
	now := r.now()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[announcement.ID] = announcement.Clone()
	if announcement.Source != nil {
		r.announced[*announcement.Source] = struct{}{}
	}
	return nil
}

func (r *AnnouncementRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Announcement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return row.Clone(), nil
}

func (r *AnnouncementRepository) Update(_ context.Context, id uuid.UUID, patch repository.AnnouncementPatch) (*model.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	row.Title = patch.Title
	row.Message = patch.Message
	row.Priority = patch.Priority
	row.RelatedLink = nil
	if patch.RelatedLink != nil {
		link := *patch.RelatedLink
		row.RelatedLink = &link
	}
	if patch.IsActive != nil {
		row.IsActive = *patch.IsActive
	}
	row.UpdatedAt = r.now()
	return row.Clone(), nil
}

func (r *AnnouncementRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *AnnouncementRepository) List(_ context.Context, filter repository.AnnouncementListFilter) ([]*model.Announcement, error) {
	return r.collect(func(a *model.Announcement) bool {
		return !filter.ActiveOnly || a.IsActive
	}), nil
}

func (r *AnnouncementRepository) Count(_ context.Context) (repository.AnnouncementCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out repository.AnnouncementCounts
	for _, row := range r.rows {
		out.Total++
		if row.IsActive {
			out.Active++
		}
		if row.IsLinked() {
			out.Linked++
		} else {
			out.Unlinked++
		}
	}
	return out, nil
}

func (r *AnnouncementRepository) ActiveSourceRefs(_ context.Context) ([]model.SourceRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[model.SourceRef]struct{})
	refs := make([]model.SourceRef, 0)
	for _, row := range r.rows {
		if !row.IsActive || row.Source == nil {
			continue
		}
		if _, ok := seen[*row.Source]; ok {
			continue
		}
		seen[*row.Source] = struct{}{}
		refs = append(refs, *row.Source)
	}
	return refs, nil
}

func (r *AnnouncementRepository) AnnouncedSourceIDs(_ context.Context, kind model.EntityKind) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0)
	for ref := range r.announced {
		if ref.Kind == kind {
			ids = append(ids, ref.ID)
		}
	}
	return ids, nil
}

func (r *AnnouncementRepository) DeactivateBySource(_ context.Context, kind model.EntityKind, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	wanted := idSet(ids)

	return r.deactivate(func(a *model.Announcement) bool {
		if a.Source == nil || a.Source.Kind != kind {
			return false
		}
		_, ok := wanted[a.Source.ID]
		return ok
	}), nil
}

func (r *AnnouncementRepository) ListActiveUnlinked(_ context.Context) ([]*model.Announcement, error) {
	return r.collect(func(a *model.Announcement) bool {
		return a.IsActive && a.Source == nil
	}), nil
}

func (r *AnnouncementRepository) DeactivateUnlinked(_ context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	wanted := idSet(ids)

	return r.deactivate(func(a *model.Announcement) bool {
		_, ok := wanted[a.ID]
		return ok && a.Source == nil
	}), nil
}

func (r *AnnouncementRepository) deactivate(match func(*model.Announcement) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var changed int64
	for _, row := range r.rows {
		if !row.IsActive || !match(row) {
			continue
		}
		row.IsActive = false
		row.UpdatedAt = now
		changed++
	}
	r.flips.Add(changed)
	return changed
}

func (r *AnnouncementRepository) collect(keep func(*model.Announcement) bool) []*model.Announcement {
	r.mu.RLock()
	out := make([]*model.Announcement, 0, len(r.rows))
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, row.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
