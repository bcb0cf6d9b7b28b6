package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dasa-hub/internal/model"
)

var ErrNotFound = errors.New("record not found")

type AnnouncementListFilter struct {
	ActiveOnly bool `json:"active_only"`
}

type AnnouncementCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Linked   int64 `json:"linked"`
	Unlinked int64 `json:"unlinked"`
}

// AnnouncementPatch carries the columns an admin edit writes. IsActive is
// written only when set, so an edit that leaves visibility alone cannot undo a
// concurrent deactivation.
type AnnouncementPatch struct {
	Title       string
	Message     string
	Priority    model.Priority
	RelatedLink *string
	IsActive    *bool
}

type AuditListFilter struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType *string    `json:"resource_type,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Limit        int32      `json:"limit"`
}

type EventListFilter struct {
	// FromDay, when set, keeps events on or after this YYYY-MM-DD day.
	FromDay      string `json:"from_day,omitempty"`
	FeaturedOnly bool   `json:"featured_only"`
}

type LostItemListFilter struct {
	ReporterID     *uuid.UUID `json:"reporter_id,omitempty"`
	UnresolvedOnly bool       `json:"unresolved_only"`
}

// AnnouncementRepository stores announcements. Every method that flips
// is_active is a conditional bulk update ("set false where currently true"),
// so concurrent callers converge without read-modify-write races.
type AnnouncementRepository interface {
	Create(ctx context.Context, announcement *model.Announcement) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Announcement, error)
	// Update applies patch and returns the stored row.
	Update(ctx context.Context, id uuid.UUID, patch AnnouncementPatch) (*model.Announcement, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter AnnouncementListFilter) ([]*model.Announcement, error)
	Count(ctx context.Context) (AnnouncementCounts, error)

	// ActiveSourceRefs returns the distinct refs of active linked rows.
	ActiveSourceRefs(ctx context.Context) ([]model.SourceRef, error)
	// AnnouncedSourceIDs returns every entity id of kind that ever had a linked
	// announcement created. Deleting the announcement does not clear the mark.
	AnnouncedSourceIDs(ctx context.Context, kind model.EntityKind) ([]uuid.UUID, error)
	DeactivateBySource(ctx context.Context, kind model.EntityKind, ids []uuid.UUID) (int64, error)

	ListActiveUnlinked(ctx context.Context) ([]*model.Announcement, error)
	DeactivateUnlinked(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	Update(ctx context.Context, event *model.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter EventListFilter) ([]*model.Event, error)
	// IDsBefore returns ids of events whose day is strictly before day.
	IDsBefore(ctx context.Context, day string) ([]uuid.UUID, error)
	ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	CountFrom(ctx context.Context, day string) (int64, error)
}

type LostItemRepository interface {
	Create(ctx context.Context, item *model.LostItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LostItem, error)
	Update(ctx context.Context, item *model.LostItem) error
	// MarkResolved flips is_resolved false->true and reports whether this
	// call performed the transition.
	MarkResolved(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter LostItemListFilter) ([]*model.LostItem, error)
	ResolvedIDs(ctx context.Context) ([]uuid.UUID, error)
	ExistingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	CountUnresolved(ctx context.Context) (int64, error)
}

type SettingsRepository interface {
	// Load returns ErrNotFound when no document was stored under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}

type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filter AuditListFilter) ([]*model.AuditLog, error)
}
