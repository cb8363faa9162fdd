package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/validation"
)

// CollectionName addresses one item collection of the document.
type CollectionName string

const (
	CollectionNotes         CollectionName = "notes"
	CollectionTasks         CollectionName = "tasks"
	CollectionHabits        CollectionName = "habits"
	CollectionJournal       CollectionName = "journal"
	CollectionBookmarks     CollectionName = "bookmarks"
	CollectionIdeas         CollectionName = "ideas"
	CollectionDailyNotes    CollectionName = "dailyNotes"
	CollectionFocusSessions CollectionName = "focusSessions"
)

// Collections lists every collection in document order.
var Collections = []CollectionName{
	CollectionNotes,
	CollectionTasks,
	CollectionHabits,
	CollectionJournal,
	CollectionBookmarks,
	CollectionIdeas,
	CollectionDailyNotes,
	CollectionFocusSessions,
}

// ParseCollection validates a collection name.
func ParseCollection(s string) (CollectionName, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", apperrors.Validation(apperrors.CodeUnknownCollection, "Unknown collection").
		WithResource(s).
		Build()
}

// Collection is a typed view over one document collection. Values returned
// are the concrete item structs (Note, Task, ...).
type Collection interface {
	Name() CollectionName
	Len() int
	List() []any
	Get(id string) (any, error)
	Create(fields map[string]any, now time.Time) (any, error)
	Update(id string, fields map[string]any, now time.Time) (any, error)
	Delete(id string) error
}

type record[T any] interface {
	*T
	stamp(id, created, updated string)
	itemID() string
	created() string
}

type sliceCollection[T any, P record[T]] struct {
	name  CollectionName
	items *[]T
}

// Collection returns the accessor for name, bound to d.
func (d *Document) Collection(name CollectionName) (Collection, error) {
	switch name {
	case CollectionNotes:
		return &sliceCollection[Note, *Note]{name: name, items: &d.Notes}, nil
	case CollectionTasks:
		return &sliceCollection[Task, *Task]{name: name, items: &d.Tasks}, nil
	case CollectionHabits:
		return &sliceCollection[Habit, *Habit]{name: name, items: &d.Habits}, nil
	case CollectionJournal:
		return &sliceCollection[JournalEntry, *JournalEntry]{name: name, items: &d.Journal}, nil
	case CollectionBookmarks:
		return &sliceCollection[Bookmark, *Bookmark]{name: name, items: &d.Bookmarks}, nil
	case CollectionIdeas:
		return &sliceCollection[Idea, *Idea]{name: name, items: &d.Ideas}, nil
	case CollectionDailyNotes:
		return &sliceCollection[DailyNoteCard, *DailyNoteCard]{name: name, items: &d.DailyNotes}, nil
	case CollectionFocusSessions:
		return &sliceCollection[FocusSession, *FocusSession]{name: name, items: &d.FocusSessions}, nil
	}
	return nil, apperrors.Validation(apperrors.CodeUnknownCollection, "Unknown collection").
		WithResource(string(name)).
		Build()
}

func (c *sliceCollection[T, P]) Name() CollectionName { return c.name }

func (c *sliceCollection[T, P]) Len() int { return len(*c.items) }

func (c *sliceCollection[T, P]) List() []any {
	out := make([]any, 0, len(*c.items))
	for _, item := range *c.items {
		out = append(out, item)
	}
	return out
}

func (c *sliceCollection[T, P]) Get(id string) (any, error) {
	i := c.index(id)
	if i < 0 {
		return nil, c.notFound(id)
	}
	return (*c.items)[i], nil
}

func (c *sliceCollection[T, P]) Create(fields map[string]any, now time.Time) (any, error) {
	var item T
	if err := decodeFields(fields, &item); err != nil {
		return nil, err
	}
	ts := FormatTimestamp(now)
	P(&item).stamp(uuid.NewString(), ts, ts)
	if err := validation.Validate(&item); err != nil {
		return nil, err
	}
	*c.items = append(*c.items, item)
	return item, nil
}

func (c *sliceCollection[T, P]) Update(id string, fields map[string]any, now time.Time) (any, error) {
	i := c.index(id)
	if i < 0 {
		return nil, c.notFound(id)
	}
	current := (*c.items)[i]

	merged, err := toFields(current)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		if k == "id" || k == "createdAt" || k == "updatedAt" {
			continue
		}
		merged[k] = v
	}

	var next T
	if err := decodeFields(merged, &next); err != nil {
		return nil, err
	}
	P(&next).stamp(P(&current).itemID(), P(&current).created(), FormatTimestamp(now))
	if err := validation.Validate(&next); err != nil {
		return nil, err
	}
	(*c.items)[i] = next
	return next, nil
}

func (c *sliceCollection[T, P]) Delete(id string) error {
	i := c.index(id)
	if i < 0 {
		return c.notFound(id)
	}
	*c.items = append((*c.items)[:i:i], (*c.items)[i+1:]...)
	return nil
}

func (c *sliceCollection[T, P]) index(id string) int {
	for i := range *c.items {
		if P(&(*c.items)[i]).itemID() == id {
			return i
		}
	}
	return -1
}

func (c *sliceCollection[T, P]) notFound(id string) error {
	return apperrors.NotFound(apperrors.CodeItemNotFound, "Item not found").
		WithResource(string(c.name)).
		WithDetails(id).
		Build()
}

// ============================================================================
// JSON FIELD HELPERS
// ============================================================================

func decodeFields(fields map[string]any, target any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return invalidPayload(err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return invalidPayload(err)
	}
	return nil
}

func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(err, "encode item")
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Wrap(err, "encode item")
	}
	return out, nil
}

func invalidPayload(err error) error {
	return apperrors.Validation(apperrors.CodeInvalidItemPayload, "Invalid item payload").
		WithCause(err).
		WithDetails(err.Error()).
		Build()
}
