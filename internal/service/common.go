package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
	"dasa-hub/internal/repository"
	"dasa-hub/internal/sse"
)

const titleMaxRunes = 200

type Broadcaster interface {
	Broadcast(event sse.SSEEvent)
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func operatorUUID(operatorID string) *uuid.UUID {
	id, ok := parseID(operatorID)
	if !ok {
		return nil
	}
	return &id
}

func strPtr(v string) *string {
	return &v
}

func cloneStringPointer(v *string) *string {
	if v == nil {
		return nil
	}
	copyValue := *v
	return &copyValue
}

func normalizedNullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func checkTitle(v *ValidationError, field, title string) {
	switch {
	case strings.TrimSpace(title) == "":
		v.Add(field, "is required")
	case utf8.RuneCountInString(title) > titleMaxRunes:
		v.Add(field, "must be at most 200 characters")
	}
}

func writeAudit(
	ctx context.Context,
	auditRepo repository.AuditRepository,
	operatorID string,
	action, resourceType, resourceID string,
	oldValue, newValue map[string]interface{},
) {
	if auditRepo == nil {
		return
	}

	_ = auditRepo.Create(ctx, &model.AuditLog{
		UserID:       operatorUUID(operatorID),
		Action:       action,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		OldValue:     oldValue,
		NewValue:     newValue,
		CreatedAt:    time.Now().UTC(),
	})
}
