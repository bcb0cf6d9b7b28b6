package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return &auditRepository{pool: pool}
}

var _ repository.AuditRepository = (*auditRepository)(nil)

const auditColumns = `id, user_id, action, resource_type, resource_id, old_value, new_value, ip_address, user_agent, created_at`

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	oldValue, err := encodeJSONMap(log.OldValue)
	if err != nil {
		return fmt.Errorf("encode audit old_value: %w", err)
	}
	newValue, err := encodeJSONMap(log.NewValue)
	if err != nil {
		return fmt.Errorf("encode audit new_value: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, resource_type, resource_id, old_value, new_value, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		log.UserID, log.Action, log.ResourceType, log.ResourceID,
		oldValue, newValue, log.IPAddress, log.UserAgent, log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("insert audit log %s: %w", log.Action, err)
	}
	return nil
}

// List returns newest first. Both time bounds are inclusive.
func (r *auditRepository) List(ctx context.Context, filter repository.AuditListFilter) ([]*model.AuditLog, error) {
	var where whereClause
	if filter.UserID != nil {
		where.add("user_id = $%d", *filter.UserID)
	}
	if filter.ResourceType != nil {
		where.add("resource_type = $%d", *filter.ResourceType)
	}
	if filter.StartTime != nil {
		where.add("created_at >= $%d", *filter.StartTime)
	}
	if filter.EndTime != nil {
		where.add("created_at <= $%d", *filter.EndTime)
	}

	limit := normalizeLimit(filter.Limit)
	args := append(where.args, limit)
	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		auditColumns, where.String(), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*model.AuditLog, 0, limit)
	for rows.Next() {
		item, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return logs, nil
}

func scanAuditLog(src scanTarget) (*model.AuditLog, error) {
	var (
		log            model.AuditLog
		oldRaw, newRaw []byte
	)
	if err := src.Scan(
		&log.ID, &log.UserID, &log.Action, &log.ResourceType, &log.ResourceID,
		&oldRaw, &newRaw, &log.IPAddress, &log.UserAgent, &log.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	var err error
	if log.OldValue, err = decodeJSONMap(oldRaw); err != nil {
		return nil, fmt.Errorf("decode audit old_value: %w", err)
	}
	if log.NewValue, err = decodeJSONMap(newRaw); err != nil {
		return nil, fmt.Errorf("decode audit new_value: %w", err)
	}
	return &log, nil
}
