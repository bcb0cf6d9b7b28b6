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

type lostItemRepository struct {
	pool *pgxpool.Pool
}

func NewLostItemRepository(pool *pgxpool.Pool) repository.LostItemRepository {
	return &lostItemRepository{pool: pool}
}

var _ repository.LostItemRepository = (*lostItemRepository)(nil)

const lostItemColumns = `
	id,
	reporter_id,
	type,
	category,
	student_name,
	description,
	contact_info,
	is_resolved,
	created_at,
	updated_at
`

func (r *lostItemRepository) Create(ctx context.Context, item *model.LostItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lost_items (
			id, reporter_id, type, category, student_name, description,
			contact_info, is_resolved, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		item.ID,
		item.ReporterID,
		string(item.Type),
		string(item.Category),
		item.StudentName,
		item.Description,
		item.ContactInfo,
		item.IsResolved,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return err
}

func (r *lostItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.LostItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lostItemColumns+` FROM lost_items WHERE id = $1`, id)
	item, err := scanLostItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// Update rewrites the descriptive columns. is_resolved only moves through
// MarkResolved.
func (r *lostItemRepository) Update(ctx context.Context, item *model.LostItem) error {
	item.UpdatedAt = time.Now().UTC()

	tag, err := r.pool.Exec(ctx, `
		UPDATE lost_items
		SET type = $2,
			category = $3,
			student_name = $4,
			description = $5,
			contact_info = $6,
			updated_at = $7
		WHERE id = $1
	`,
		item.ID,
		string(item.Type),
		string(item.Category),
		item.StudentName,
		item.Description,
		item.ContactInfo,
		item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *lostItemRepository) MarkResolved(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lost_items
		SET is_resolved = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_resolved
	`, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM lost_items WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (r *lostItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lost_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *lostItemRepository) List(ctx context.Context, filter repository.LostItemListFilter) ([]*model.LostItem, error) {
	var where whereClause
	if filter.ReporterID != nil {
		where.add("reporter_id = $%d", *filter.ReporterID)
	}
	if filter.UnresolvedOnly {
		where.addRaw("NOT is_resolved")
	}

	query := `SELECT ` + lostItemColumns + ` FROM lost_items` + where.String() + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.LostItem, 0)
	for rows.Next() {
		item, err := scanLostItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *lostItemRepository) ResolvedIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM lost_items WHERE is_resolved`)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *lostItemRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM lost_items WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *lostItemRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lost_items WHERE NOT is_resolved`).Scan(&total)
	return total, err
}

func scanLostItem(src scanTarget) (*model.LostItem, error) {
	item := &model.LostItem{}
	var itemType, category string

	err := src.Scan(
		&item.ID,
		&item.ReporterID,
		&itemType,
		&category,
		&item.StudentName,
		&item.Description,
		&item.ContactInfo,
		&item.IsResolved,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Type = model.LostItemType(itemType)
	item.Category = model.LostItemCategory(category)
	return item, nil
}
