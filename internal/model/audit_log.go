package model

import (
	"time"

	"github.com/google/uuid"
)

// Resource types recorded in the audit trail. Maintenance runs are filed under
// AuditResourceAnnouncement with resource id "*".
const (
	AuditResourceAnnouncement = "announcement"
	AuditResourceLostItem     = "lost_item"
	AuditResourceSiteSettings = "site_settings"
)

// AuditLog is one admin or owner write. UserID is nil for writes without a
// signed-in operator, and OldValue/NewValue hold the audit view of the row,
// never lost-item contact details.
type AuditLog struct {
	ID           int64                  `db:"id" json:"id"`
	UserID       *uuid.UUID             `db:"user_id" json:"user_id,omitempty"`
	Action       string                 `db:"action" json:"action"`
	ResourceType *string                `db:"resource_type" json:"resource_type,omitempty"`
	ResourceID   *string                `db:"resource_id" json:"resource_id,omitempty"`
	OldValue     map[string]interface{} `db:"old_value" json:"old_value,omitempty"`
	NewValue     map[string]interface{} `db:"new_value" json:"new_value,omitempty"`
	IPAddress    *string                `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent    *string                `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt    time.Time              `db:"created_at" json:"created_at"`
}
