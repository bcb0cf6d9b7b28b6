package model

import (
	"time"

	"github.com/google/uuid"
)

// Source is implemented by every record type whose lifecycle drives
// announcements. It carries no announcement knowledge.
type Source interface {
	SourceRef() SourceRef
	Created() time.Time
}

const DateLayout = "2006-01-02"

type Event struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	Title                string    `db:"title" json:"title"`
	Description          string    `db:"description" json:"description"`
	Date                 time.Time `db:"event_date" json:"date"`
	StartTime            string    `db:"start_time" json:"start_time"`
	EndTime              string    `db:"end_time" json:"end_time"`
	Location             string    `db:"location" json:"location"`
	IsFeatured           bool      `db:"is_featured" json:"is_featured"`
	RegistrationRequired bool      `db:"registration_required" json:"registration_required"`
	RegistrationLink     *string   `db:"registration_link" json:"registration_link,omitempty"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

func (e *Event) SourceRef() SourceRef {
	return EventRef(e.ID)
}

func (e *Event) Created() time.Time {
	return e.CreatedAt
}

// IsClosed reports whether the event day lies before the calendar day of now
// in loc.
func (e *Event) IsClosed(now time.Time, loc *time.Location) bool {
	return e.Date.Format(DateLayout) < Today(now, loc)
}

func (e *Event) IsUpcoming(now time.Time, loc *time.Location) bool {
	return !e.IsClosed(now, loc)
}

// Today renders the calendar day of now in loc (UTC when loc is nil).
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

type LostItemType string

const (
	LostItemTypeLost  LostItemType = "Lost"
	LostItemTypeFound LostItemType = "Found"
)

func (t LostItemType) Valid() bool {
	return t == LostItemTypeLost || t == LostItemTypeFound
}

type LostItemCategory string

const (
	CategoryStudentID LostItemCategory = "Student ID"
	CategoryKeys      LostItemCategory = "Keys"
	CategoryWallet    LostItemCategory = "Wallet"
	CategoryGadget    LostItemCategory = "Gadget"
	CategoryOther     LostItemCategory = "Other"
)

var categoryDisplay = map[LostItemCategory]string{
	CategoryStudentID: "Student ID",
	CategoryKeys:      "Keys",
	CategoryWallet:    "Wallet",
	CategoryGadget:    "Gadget",
	CategoryOther:     "Other",
}

func (c LostItemCategory) Valid() bool {
	_, ok := categoryDisplay[c]
	return ok
}

func (c LostItemCategory) Display() string {
	if label, ok := categoryDisplay[c]; ok {
		return label
	}
	return string(c)
}

type LostItem struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	ReporterID  uuid.UUID        `db:"reporter_id" json:"reporter_id"`
	Type        LostItemType     `db:"type" json:"type"`
	Category    LostItemCategory `db:"category" json:"category"`
	StudentName *string          `db:"student_name" json:"student_name,omitempty"`
	Description string           `db:"description" json:"description"`
	ContactInfo string           `db:"contact_info" json:"contact_info"`
	IsResolved  bool             `db:"is_resolved" json:"is_resolved"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

func (l *LostItem) SourceRef() SourceRef {
	return LostItemRef(l.ID)
}

func (l *LostItem) Created() time.Time {
	return l.CreatedAt
}

func (l *LostItem) IsClosed() bool {
	return l.IsResolved
}

func (l *LostItem) CategoryDisplay() string {
	return l.Category.Display()
}
