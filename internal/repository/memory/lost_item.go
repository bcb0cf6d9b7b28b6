package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

type LostItemRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]model.LostItem
}

func NewLostItemRepository() *LostItemRepository {
	return &LostItemRepository{rows: make(map[uuid.UUID]model.LostItem)}
}

var _ repository.LostItemRepository = (*LostItemRepository)(nil)

func (r *LostItemRepository) Create(_ context.Context, item *model.LostItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[item.ID] = copyLostItem(item)
	return nil
}

func (r *LostItemRepository) FindByID(_ context.Context, id uuid.UUID) (*model.LostItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return lostItemPtr(row), nil
}

func (r *LostItemRepository) Update(_ context.Context, item *model.LostItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[item.ID]
	if !ok {
		return repository.ErrNotFound
	}

	next := copyLostItem(item)
	next.ReporterID = existing.ReporterID
	next.IsResolved = existing.IsResolved
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	item.UpdatedAt = next.UpdatedAt
	r.rows[item.ID] = next
	return nil
}

func (r *LostItemRepository) MarkResolved(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if row.IsResolved {
		return false, nil
	}
	row.IsResolved = true
	row.UpdatedAt = time.Now().UTC()
	r.rows[id] = row
	return true, nil
}

func (r *LostItemRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *LostItemRepository) List(_ context.Context, filter repository.LostItemListFilter) ([]*model.LostItem, error) {
	r.mu.RLock()
	out := make([]*model.LostItem, 0, len(r.rows))
	for _, row := range r.rows {
		if filter.ReporterID != nil && row.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.UnresolvedOnly && row.IsResolved {
			continue
		}
		out = append(out, lostItemPtr(row))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (r *LostItemRepository) ResolvedIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0)
	for id, row := range r.rows {
		if row.IsResolved {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *LostItemRepository) ExistingIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.rows[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *LostItemRepository) CountUnresolved(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, row := range r.rows {
		if !row.IsResolved {
			total++
		}
	}
	return total, nil
}

func copyLostItem(item *model.LostItem) model.LostItem {
	out := *item
	if item.StudentName != nil {
		name := *item.StudentName
		out.StudentName = &name
	}
	return out
}

func lostItemPtr(row model.LostItem) *model.LostItem {
	out := copyLostItem(&row)
	return &out
}
