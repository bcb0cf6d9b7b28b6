package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

var _ repository.EventRepository = (*eventRepository)(nil)

const eventColumns = `
	id,
	title,
	description,
	event_date,
	start_time,
	end_time,
	location,
	is_featured,
	registration_required,
	registration_link,
	created_at,
	updated_at
`

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (
			id, title, description, event_date, start_time, end_time, location,
			is_featured, registration_required, registration_link, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		event.ID,
		event.Title,
		event.Description,
		event.Date.Format(model.DateLayout),
		event.StartTime,
		event.EndTime,
		event.Location,
		event.IsFeatured,
		event.RegistrationRequired,
		event.RegistrationLink,
		event.CreatedAt,
		event.UpdatedAt,
	)
	return err
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *eventRepository) Update(ctx context.Context, event *model.Event) error {
	event.UpdatedAt = time.Now().UTC()

	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET title = $2,
			description = $3,
			event_date = $4::date,
			start_time = $5,
			end_time = $6,
			location = $7,
			is_featured = $8,
			registration_required = $9,
			registration_link = $10,
			updated_at = $11
		WHERE id = $1
	`,
		event.ID,
		event.Title,
		event.Description,
		event.Date.Format(model.DateLayout),
		event.StartTime,
		event.EndTime,
		event.Location,
		event.IsFeatured,
		event.RegistrationRequired,
		event.RegistrationLink,
		event.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *eventRepository) List(ctx context.Context, filter repository.EventListFilter) ([]*model.Event, error) {
	var where whereClause
	if filter.FromDay != "" {
		where.add("event_date >= $%d::date", filter.FromDay)
	}
	if filter.FeaturedOnly {
		where.addRaw("is_featured")
	}

	query := `SELECT ` + eventColumns + ` FROM events` + where.String() + ` ORDER BY event_date ASC, start_time ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) IDsBefore(ctx context.Context, day string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM events WHERE event_date < $1::date`, day)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *eventRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM events WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *eventRepository) CountFrom(ctx context.Context, day string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE event_date >= $1::date`, day).Scan(&total)
	return total, err
}

func scanEvent(src scanTarget) (*model.Event, error) {
	event := &model.Event{}
	err := src.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Date,
		&event.StartTime,
		&event.EndTime,
		&event.Location,
		&event.IsFeatured,
		&event.RegistrationRequired,
		&event.RegistrationLink,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}
