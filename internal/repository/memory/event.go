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

type EventRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]model.Event
}

func NewEventRepository() *EventRepository {
	return &EventRepository{rows: make(map[uuid.UUID]model.Event)}
}

var _ repository.EventRepository = (*EventRepository)(nil)

func (r *EventRepository) Create(_ context.Context, event *model.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[event.ID] = copyEvent(event)
	return nil
}

func (r *EventRepository) FindByID(_ context.Context, id uuid.UUID) (*model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return eventPtr(row), nil
}

func (r *EventRepository) Update(_ context.Context, event *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[event.ID]
	if !ok {
		return repository.ErrNotFound
	}
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = time.Now().UTC()
	r.rows[event.ID] = copyEvent(event)
	return nil
}

func (r *EventRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *EventRepository) List(_ context.Context, filter repository.EventListFilter) ([]*model.Event, error) {
	r.mu.RLock()
	out := make([]*model.Event, 0, len(r.rows))
	for _, row := range r.rows {
		if filter.FromDay != "" && row.Date.Format(model.DateLayout) < filter.FromDay {
			continue
		}
		if filter.FeaturedOnly && !row.IsFeatured {
			continue
		}
		out = append(out, eventPtr(row))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Date.Format(model.DateLayout), out[j].Date.Format(model.DateLayout)
		if di != dj {
			return di < dj
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *EventRepository) IDsBefore(_ context.Context, day string) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0)
	for id, row := range r.rows {
		if row.Date.Format(model.DateLayout) < day {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *EventRepository) ExistingIDs(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
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

func (r *EventRepository) CountFrom(_ context.Context, day string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, row := range r.rows {
		if row.Date.Format(model.DateLayout) >= day {
			total++
		}
	}
	return total, nil
}

func copyEvent(event *model.Event) model.Event {
	out := *event
	if event.RegistrationLink != nil {
		link := *event.RegistrationLink
		out.RegistrationLink = &link
	}
	return out
}

func eventPtr(row model.Event) *model.Event {
	out := copyEvent(&row)
	return &out
}
