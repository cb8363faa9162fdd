// Package domain holds the productivity dataset: one document with ordered
// item collections and two singleton stats objects.
//
// Documents are handled as immutable snapshots. Every mutation is applied to
// a Clone, and items inside a collection are replaced, never modified in place,
// so a shallow copy of each collection slice is a safe clone.
package domain

import (
	"slices"
	"time"
)

// SchemaVersion is the document format version written by this module.
const SchemaVersion = 1

// timestampLayout matches the millisecond ISO-8601 form the desktop app writes.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DateLayout is the calendar-day form used by journal entries and habits.
const DateLayout = "2006-01-02"

// Document is the whole dataset.
type Document struct {
	Version       int               `json:"version"`
	Notes         []Note            `json:"notes"`
	Tasks         []Task            `json:"tasks"`
	Habits        []Habit           `json:"habits"`
	Journal       []JournalEntry    `json:"journal"`
	Bookmarks     []Bookmark        `json:"bookmarks"`
	Ideas         []Idea            `json:"ideas"`
	DailyNotes    []DailyNoteCard   `json:"dailyNotes"`
	FocusSessions []FocusSession    `json:"focusSessions"`
	Gamification  GamificationStats `json:"gamification"`
	FocusStats    FocusStats        `json:"focusStats"`
	LastModified  string            `json:"lastModified"`
}

// NewEmpty returns a document with no items, stamped with now.
func NewEmpty(now time.Time) *Document {
	doc := &Document{
		Version:      SchemaVersion,
		Gamification: GamificationStats{Level: 1},
		LastModified: FormatTimestamp(now),
	}
	doc.Normalize()
	return doc
}

// Normalize replaces nil collections with empty ones so the document always
// serializes every collection as a JSON array.
func (d *Document) Normalize() {
	if d.Version == 0 {
		d.Version = SchemaVersion
	}
	if d.Notes == nil {
		d.Notes = []Note{}
	}
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	if d.Habits == nil {
		d.Habits = []Habit{}
	}
	if d.Journal == nil {
		d.Journal = []JournalEntry{}
	}
	if d.Bookmarks == nil {
		d.Bookmarks = []Bookmark{}
	}
	if d.Ideas == nil {
		d.Ideas = []Idea{}
	}
	if d.DailyNotes == nil {
		d.DailyNotes = []DailyNoteCard{}
	}
	if d.FocusSessions == nil {
		d.FocusSessions = []FocusSession{}
	}
}

// TotalItems is the number of collection items. Singletons are not counted.
func (d *Document) TotalItems() int {
	if d == nil {
		return 0
	}
	return len(d.Notes) + len(d.Tasks) + len(d.Habits) + len(d.Journal) +
		len(d.Bookmarks) + len(d.Ideas) + len(d.DailyNotes) + len(d.FocusSessions)
}

// Counts returns the item count of every collection.
func (d *Document) Counts() map[CollectionName]int {
	return map[CollectionName]int{
		CollectionNotes:         len(d.Notes),
		CollectionTasks:         len(d.Tasks),
		CollectionHabits:        len(d.Habits),
		CollectionJournal:       len(d.Journal),
		CollectionBookmarks:     len(d.Bookmarks),
		CollectionIdeas:         len(d.Ideas),
		CollectionDailyNotes:    len(d.DailyNotes),
		CollectionFocusSessions: len(d.FocusSessions),
	}
}

// Clone returns a copy that can be mutated without affecting d.
func (d *Document) Clone() *Document {
	c := *d
	c.Notes = slices.Clone(d.Notes)
	c.Tasks = slices.Clone(d.Tasks)
	c.Habits = slices.Clone(d.Habits)
	c.Journal = slices.Clone(d.Journal)
	c.Bookmarks = slices.Clone(d.Bookmarks)
	c.Ideas = slices.Clone(d.Ideas)
	c.DailyNotes = slices.Clone(d.DailyNotes)
	c.FocusSessions = slices.Clone(d.FocusSessions)
	c.Gamification.Achievements = slices.Clone(d.Gamification.Achievements)
	c.Normalize()
	return &c
}

// ModifiedAt parses LastModified. An unparsable or empty value is the zero time.
func (d *Document) ModifiedAt() time.Time {
	return ParseTimestamp(d.LastModified)
}

// Touch sets LastModified to now, never moving it backwards.
func (d *Document) Touch(now time.Time) {
	if prev := d.ModifiedAt(); !prev.IsZero() && !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	d.LastModified = FormatTimestamp(now)
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses an ISO-8601 timestamp, returning the zero time on failure.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
