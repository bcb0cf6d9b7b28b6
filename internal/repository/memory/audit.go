package memory

import (
	"context"
	"sync"
	"time"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

type AuditRepository struct {
	mu   sync.RWMutex
	seq  int64
	logs []*model.AuditLog
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

func (r *AuditRepository) Create(_ context.Context, log *model.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	log.ID = r.seq
	stored := *log
	r.logs = append(r.logs, &stored)
	return nil
}

// List returns newest first.
func (r *AuditRepository) List(_ context.Context, filter repository.AuditListFilter) ([]*model.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := int(filter.Limit)
	if limit <= 0 {
		limit = 50
	}

	out := make([]*model.AuditLog, 0, limit)
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		log := r.logs[i]
		if filter.UserID != nil && (log.UserID == nil || *log.UserID != *filter.UserID) {
			continue
		}
		if filter.ResourceType != nil && (log.ResourceType == nil || *log.ResourceType != *filter.ResourceType) {
			continue
		}
		if filter.StartTime != nil && log.CreatedAt.Before(*filter.StartTime) {
			continue
		}
		if filter.EndTime != nil && log.CreatedAt.After(*filter.EndTime) {
			continue
		}
		copied := *log
		out = append(out, &copied)
	}
	return out, nil
}
