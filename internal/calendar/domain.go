// Package calendar implements the per-user event store backing the
// dashboard calendar: a small JSON sequence in durable key-value storage,
// reconciled in memory and re-synced in the background.
package calendar

import "time"

// Category is the closed set of event categories. The display color is
// derived from the category; the category is the source of truth and the
// color is never stored authoritatively.
type Category string

const (
	CategoryMeeting  Category = "meeting"
	CategoryTask     Category = "task"
	CategoryReminder Category = "reminder"
	CategoryHoliday  Category = "holiday"
	CategoryOther    Category = "other"
)

// DefaultCategory absorbs unset and unknown categories.
const DefaultCategory = CategoryOther

var categoryColors = map[Category]string{
	CategoryMeeting:  "#3f51b5",
	CategoryTask:     "#00897b",
	CategoryReminder: "#fb8c00",
	CategoryHoliday:  "#e53935",
	CategoryOther:    "#757575",
}

// Valid reports whether c is one of the closed set.
func (c Category) Valid() bool {
	_, ok := categoryColors[c]
	return ok
}

// Color returns the display color for the category.
func (c Category) Color() string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return categoryColors[DefaultCategory]
}

// NormalizeCategory maps arbitrary stored input onto the closed set,
// falling back to the default. Storage reads go through here; API writes
// are validated strictly instead.
func NormalizeCategory(raw string) Category {
	c := Category(raw)
	if c.Valid() {
		return c
	}
	return DefaultCategory
}

// Categories lists the closed set in display order.
func Categories() []Category {
	return []Category{CategoryMeeting, CategoryTask, CategoryReminder, CategoryHoliday, CategoryOther}
}

// Extended carries the event fields beyond scheduling.
type Extended struct {
	Category    Category `json:"category"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Event is one calendar record. Field names follow the calendar widget's
// wire convention since the same JSON is what the shell renders and what
// the store persists.
type Event struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	AllDay          bool       `json:"allDay"`
	BackgroundColor string     `json:"backgroundColor"`
	Extended        Extended   `json:"extendedProps"`
}

// normalize enforces the event invariants: a resolvable category and a
// color derived from it.
func normalize(e Event) Event {
	e.Extended.Category = NormalizeCategory(string(e.Extended.Category))
	e.BackgroundColor = e.Extended.Category.Color()
	return e
}

// equal compares two events structurally. time.Time is compared by instant
// so a JSON round-trip through a different zone offset is not a change.
func equal(a, b Event) bool {
	if a.ID != b.ID || a.Title != b.Title || a.AllDay != b.AllDay ||
		a.BackgroundColor != b.BackgroundColor || a.Extended != b.Extended {
		return false
	}
	if !a.Start.Equal(b.Start) {
		return false
	}
	switch {
	case a.End == nil && b.End == nil:
		return true
	case a.End == nil || b.End == nil:
		return false
	default:
		return a.End.Equal(*b.End)
	}
}

// clone copies an event deeply enough that callers cannot alias store state.
func clone(e Event) Event {
	if e.End != nil {
		end := *e.End
		e.End = &end
	}
	return e
}

// Draft is the input for a new event.
type Draft struct {
	Title       string
	Start       time.Time
	End         *time.Time
	AllDay      bool
	Category    Category
	Location    string
	Description string
}

// Patch is a partial update; nil fields are left untouched. ClearEnd
// removes the end timestamp, which a nil End cannot express.
type Patch struct {
	Title       *string
	Start       *time.Time
	End         *time.Time
	ClearEnd    bool
	AllDay      *bool
	Category    *Category
	Location    *string
	Description *string
}

// ChangeSet reports what a resync changed. Empty means storage and memory
// already agreed.
type ChangeSet struct {
	Added   []Event `json:"added"`
	Updated []Event `json:"updated"`
	Removed []Event `json:"removed"`
}

// Empty reports whether the resync was a no-op.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}
