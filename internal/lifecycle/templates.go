package lifecycle

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"dasa-hub/internal/model"
)

const (
	excerptRunes = 100

	EventsLink       = "/events"
	LostAndFoundLink = "/lost-and-found"
)

// Draft is the announcement content a Template derives from a source.
type Draft struct {
	Title       string
	Message     string
	Priority    model.Priority
	RelatedLink string
}

// Template turns a freshly created source of one kind into announcement
// content. Compose must be deterministic.
type Template interface {
	Kind() model.EntityKind
	Compose(src model.Source) (Draft, error)
}

type EventTemplate struct{}

func (EventTemplate) Kind() model.EntityKind {
	return model.EntityKindEvent
}

func (EventTemplate) Compose(src model.Source) (Draft, error) {
	event, ok := src.(*model.Event)
	if !ok || event == nil {
		return Draft{}, fmt.Errorf("%w: want *model.Event, got %T", ErrUnexpectedSource, src)
	}

	priority := model.PriorityNormal
	if event.IsFeatured {
		priority = model.PriorityHigh
	}

	message := fmt.Sprintf(
		"A new event has been scheduled at %s on %s at %s. %s",
		event.Location,
		event.Date.Format("January 02, 2006"),
		clockTime(event.StartTime),
		Excerpt(event.Description),
	)

	return Draft{
		Title:       "New Event: " + event.Title,
		Message:     message,
		Priority:    priority,
		RelatedLink: EventsLink,
	}, nil
}

var criticalCategories = map[model.LostItemCategory]bool{
	model.CategoryStudentID: true,
	model.CategoryKeys:      true,
	model.CategoryWallet:    true,
}

type LostItemTemplate struct{}

func (LostItemTemplate) Kind() model.EntityKind {
	return model.EntityKindLostItem
}

func (LostItemTemplate) Compose(src model.Source) (Draft, error) {
	item, ok := src.(*model.LostItem)
	if !ok || item == nil {
		return Draft{}, fmt.Errorf("%w: want *model.LostItem, got %T", ErrUnexpectedSource, src)
	}

	prefix := "LOST"
	if item.Type == model.LostItemTypeFound {
		prefix = "FOUND"
	}

	title := prefix + ": " + item.CategoryDisplay()
	if item.Category == model.CategoryStudentID && item.StudentName != nil && strings.TrimSpace(*item.StudentName) != "" {
		title = prefix + ": Student ID - " + strings.TrimSpace(*item.StudentName)
	}

	priority := model.PriorityNormal
	if criticalCategories[item.Category] {
		priority = model.PriorityHigh
	}

	return Draft{
		Title:       title,
		Message:     Excerpt(item.Description) + " Contact: " + item.ContactInfo,
		Priority:    priority,
		RelatedLink: LostAndFoundLink,
	}, nil
}

// Excerpt keeps the first 100 characters of text and appends "..." when
// something was cut.
func Excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptRunes]) + "..."
}

// clockTime renders "14:30" or "14:30:00" as "02:30 PM". Unparseable input
// is returned unchanged.
func clockTime(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("03:04 PM")
		}
	}
	return raw
}
