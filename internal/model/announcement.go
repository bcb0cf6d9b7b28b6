package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	default:
		return false
	}
}

// ParsePriority accepts any casing of the three priority names.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow, true
	case "normal":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	default:
		return "", false
	}
}

// EntityKind names a record type an announcement can point at. The set is
// closed: a new kind is added here and nowhere else.
type EntityKind string

const (
	EntityKindEvent    EntityKind = "event"
	EntityKindLostItem EntityKind = "lost_item"
)

func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindEvent, EntityKindLostItem:
		return true
	default:
		return false
	}
}

func (k EntityKind) String() string {
	return string(k)
}

// SourceRef is the polymorphic link from an announcement to the entity that
// produced it. Rows written by older releases may carry a kind this binary
// does not know; such refs are kept as-is and report Valid() == false.
type SourceRef struct {
	Kind EntityKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func EventRef(id uuid.UUID) SourceRef {
	return SourceRef{Kind: EntityKindEvent, ID: id}
}

func LostItemRef(id uuid.UUID) SourceRef {
	return SourceRef{Kind: EntityKindLostItem, ID: id}
}

func (r SourceRef) Valid() bool {
	return r.Kind.Valid() && r.ID != uuid.Nil
}

func (r SourceRef) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

type Announcement struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Message     string     `db:"message" json:"message"`
	Priority    Priority   `db:"priority" json:"priority"`
	RelatedLink *string    `db:"related_link" json:"related_link,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	Source      *SourceRef `db:"-" json:"source,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Announcement) IsLinked() bool {
	return a != nil && a.Source != nil
}

// Clone returns a deep copy so callers can hand rows across goroutines.
func (a *Announcement) Clone() *Announcement {
	if a == nil {
		return nil
	}

	out := *a
	if a.RelatedLink != nil {
		link := *a.RelatedLink
		out.RelatedLink = &link
	}
	if a.Source != nil {
		ref := *a.Source
		out.Source = &ref
	}
	return &out
}
