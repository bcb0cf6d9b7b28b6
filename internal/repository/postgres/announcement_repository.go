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

type announcementRepository struct {
	pool *pgxpool.Pool
}

func NewAnnouncementRepository(pool *pgxpool.Pool) repository.AnnouncementRepository {
	return &announcementRepository{pool: pool}
}

var _ repository.AnnouncementRepository = (*announcementRepository)(nil)

const announcementColumns = `
	id,
	title,
	message,
	priority,
	related_link,
	is_active,
	source_kind,
	source_id,
	created_at,
	updated_at
`

func (r *announcementRepository) Create(ctx context.Context, announcement *model.Announcement) error {
	if announcement.ID == uuid.Nil {
		announcement.ID = uuid.New()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	kind, sourceID := sourceColumns(announcement.Source)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO announcements (
			id, title, message, priority, related_link, is_active,
			source_kind, source_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		announcement.ID,
		announcement.Title,
		announcement.Message,
		string(announcement.Priority),
		announcement.RelatedLink,
		announcement.IsActive,
		kind,
		sourceID,
		announcement.CreatedAt,
		announcement.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if announcement.Source != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO announced_sources (source_kind, source_id, announced_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (source_kind, source_id) DO NOTHING
		`, kind, sourceID, announcement.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *announcementRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Announcement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id)
	item, err := scanAnnouncement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// Update writes the editable columns. The source link is never rewritten and
// is_active keeps its stored value unless the patch sets it.
func (r *announcementRepository) Update(ctx context.Context, id uuid.UUID, patch repository.AnnouncementPatch) (*model.Announcement, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE announcements
		SET title = $2,
			message = $3,
			priority = $4,
			related_link = $5,
			is_active = COALESCE($6, is_active),
			updated_at = $7
		WHERE id = $1
		RETURNING `+announcementColumns,
		id,
		patch.Title,
		patch.Message,
		string(patch.Priority),
		patch.RelatedLink,
		patch.IsActive,
		time.Now().UTC(),
	)
	item, err := scanAnnouncement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *announcementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return ensureAffected(tag)
}

func (r *announcementRepository) List(ctx context.Context, filter repository.AnnouncementListFilter) ([]*model.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements`
	if filter.ActiveOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	return r.query(ctx, query)
}

func (r *announcementRepository) Count(ctx context.Context) (repository.AnnouncementCounts, error) {
	var out repository.AnnouncementCounts
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE source_kind IS NOT NULL),
			COUNT(*) FILTER (WHERE source_kind IS NULL)
		FROM announcements
	`).Scan(&out.Total, &out.Active, &out.Linked, &out.Unlinked)
	return out, err
}

func (r *announcementRepository) ActiveSourceRefs(ctx context.Context) ([]model.SourceRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT source_kind, source_id
		FROM announcements
		WHERE is_active AND source_kind IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]model.SourceRef, 0)
	for rows.Next() {
		var (
			kind string
			id   uuid.UUID
		)
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, err
		}
		refs = append(refs, model.SourceRef{Kind: model.EntityKind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *announcementRepository) AnnouncedSourceIDs(ctx context.Context, kind model.EntityKind) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT source_id FROM announced_sources WHERE source_kind = $1
	`, string(kind))
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *announcementRepository) DeactivateBySource(ctx context.Context, kind model.EntityKind, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE announcements
		SET is_active = FALSE, updated_at = NOW()
		WHERE source_kind = $1 AND source_id = ANY($2::uuid[]) AND is_active
	`, string(kind), uuidStrings(ids))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *announcementRepository) ListActiveUnlinked(ctx context.Context) ([]*model.Announcement, error) {
	return r.query(ctx, `
		SELECT `+announcementColumns+`
		FROM announcements
		WHERE is_active AND source_kind IS NULL
		ORDER BY created_at DESC, id DESC
	`)
}

func (r *announcementRepository) DeactivateUnlinked(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE announcements
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = ANY($1::uuid[]) AND source_kind IS NULL AND is_active
	`, uuidStrings(ids))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *announcementRepository) query(ctx context.Context, query string, args ...any) ([]*model.Announcement, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Announcement, 0)
	for rows.Next() {
		item, err := scanAnnouncement(rows)
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

func scanAnnouncement(src scanTarget) (*model.Announcement, error) {
	item := &model.Announcement{}
	var (
		priority string
		kind     *string
		sourceID *uuid.UUID
	)

	err := src.Scan(
		&item.ID,
		&item.Title,
		&item.Message,
		&priority,
		&item.RelatedLink,
		&item.IsActive,
		&kind,
		&sourceID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Priority = model.Priority(priority)
	if kind != nil && sourceID != nil {
		item.Source = &model.SourceRef{Kind: model.EntityKind(*kind), ID: *sourceID}
	}
	return item, nil
}

func sourceColumns(ref *model.SourceRef) (*string, *uuid.UUID) {
	if ref == nil {
		return nil, nil
	}
	kind := string(ref.Kind)
	id := ref.ID
	return &kind, &id
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
