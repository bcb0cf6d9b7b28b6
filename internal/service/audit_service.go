package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
)

var ErrInvalidAuditInput = errors.New("invalid audit input")

type AuditEntry struct {
	UserID       string                 `json:"user_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType *string                `json:"resource_type,omitempty"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	IPAddress    *string                `json:"ip_address,omitempty"`
	UserAgent    *string                `json:"user_agent,omitempty"`
}

type AuditFilter struct {
	UserID       *string    `json:"user_id,omitempty"`
	ResourceType *string    `json:"resource_type,omitempty"`
	From         *time.Time `json:"from,omitempty"`
	To           *time.Time `json:"to,omitempty"`
	Limit        int        `json:"limit"`
}

type AuditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if s.auditRepo == nil {
		return errors.New("audit repository is nil")
	}

	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return ErrInvalidAuditInput
	}

	return s.auditRepo.Create(ctx, &model.AuditLog{
		UserID:       operatorUUID(entry.UserID),
		Action:       action,
		ResourceType: trimAuditStringPtr(entry.ResourceType),
		ResourceID:   trimAuditStringPtr(entry.ResourceID),
		NewValue:     entry.NewValue,
		IPAddress:    trimAuditStringPtr(entry.IPAddress),
		UserAgent:    trimAuditStringPtr(entry.UserAgent),
		CreatedAt:    time.Now().UTC(),
	})
}

func (s *AuditService) List(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, error) {
	if s.auditRepo == nil {
		return nil, errors.New("audit repository is nil")
	}

	repoFilter := repository.AuditListFilter{
		ResourceType: trimAuditStringPtr(filter.ResourceType),
		StartTime:    filter.From,
		EndTime:      filter.To,
		Limit:        int32(filter.Limit),
	}
	if filter.UserID != nil && strings.TrimSpace(*filter.UserID) != "" {
		uid, ok := parseID(*filter.UserID)
		if !ok {
			return nil, ErrInvalidUserID
		}
		repoFilter.UserID = &uid
	}

	return s.auditRepo.List(ctx, repoFilter)
}

func trimAuditStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
