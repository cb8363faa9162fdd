package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/validation"
)

// SingletonName addresses one of the document's singleton objects.
type SingletonName string

const (
	SingletonGamification SingletonName = "gamification"
	SingletonFocusStats   SingletonName = "focusStats"
)

// ParseSingleton validates a singleton name.
func ParseSingleton(s string) (SingletonName, error) {
	switch SingletonName(s) {
	case SingletonGamification, SingletonFocusStats:
		return SingletonName(s), nil
	}
	return "", apperrors.Validation(apperrors.CodeUnknownSingleton, "Unknown singleton").
		WithResource(s).
		Build()
}

// Singleton returns the current value of a singleton.
func (d *Document) Singleton(name SingletonName) (any, error) {
	switch name {
	case SingletonGamification:
		return d.Gamification, nil
	case SingletonFocusStats:
		return d.FocusStats, nil
	}
	return nil, apperrors.Validation(apperrors.CodeUnknownSingleton, "Unknown singleton").
		WithResource(string(name)).
		Build()
}

// ReplaceSingleton replaces a singleton wholesale with the given fields.
func (d *Document) ReplaceSingleton(name SingletonName, fields map[string]any) (any, error) {
	switch name {
	case SingletonGamification:
		var stats GamificationStats
		if err := decodeFields(fields, &stats); err != nil {
			return nil, err
		}
		d.Gamification = stats
		return stats, nil
	case SingletonFocusStats:
		var stats FocusStats
		if err := decodeFields(fields, &stats); err != nil {
			return nil, err
		}
		d.FocusStats = stats
		return stats, nil
	}
	return nil, apperrors.Validation(apperrors.CodeUnknownSingleton, "Unknown singleton").
		WithResource(string(name)).
		Build()
}

// UpsertJournal writes the journal entry for fields["date"], creating it when
// the day has no entry yet. The boolean reports whether an entry was created.
func (d *Document) UpsertJournal(fields map[string]any, now time.Time) (JournalEntry, bool, error) {
	var entry JournalEntry
	if err := decodeFields(fields, &entry); err != nil {
		return JournalEntry{}, false, err
	}
	ts := FormatTimestamp(now)

	for i, existing := range d.Journal {
		if existing.Date != entry.Date {
			continue
		}
		entry.stamp(existing.ID, existing.CreatedAt, ts)
		if err := validation.Validate(&entry); err != nil {
			return JournalEntry{}, false, err
		}
		d.Journal[i] = entry
		return entry, false, nil
	}

	entry.stamp(uuid.NewString(), ts, ts)
	if err := validation.Validate(&entry); err != nil {
		return JournalEntry{}, false, err
	}
	d.Journal = append(d.Journal, entry)
	return entry, true, nil
}

// CompleteTask marks a task completed.
func (d *Document) CompleteTask(id string, now time.Time) (Task, error) {
	c, _ := d.Collection(CollectionTasks)
	v, err := c.Update(id, map[string]any{
		"completed":   true,
		"completedAt": FormatTimestamp(now),
	}, now)
	if err != nil {
		return Task{}, err
	}
	return v.(Task), nil
}

// CheckHabit records a completion of the habit on date (YYYY-MM-DD) and
// recomputes its streak. Checking the same date twice is a no-op.
func (d *Document) CheckHabit(id, date string, now time.Time) (Habit, error) {
	c, _ := d.Collection(CollectionHabits)
	v, err := c.Get(id)
	if err != nil {
		return Habit{}, err
	}
	habit := v.(Habit)
	if slices.Contains(habit.CompletedDates, date) {
		return habit, nil
	}

	dates := append(slices.Clone(habit.CompletedDates), date)
	slices.Sort(dates)

	updated, err := c.Update(id, map[string]any{
		"completedDates": dates,
		"streak":         streakEndingAt(dates, date),
	}, now)
	if err != nil {
		return Habit{}, err
	}
	return updated.(Habit), nil
}

// streakEndingAt counts consecutive days in sorted dates ending at last.
func streakEndingAt(dates []string, last string) int {
	day, err := time.Parse(DateLayout, last)
	if err != nil {
		return 0
	}
	streak := 0
	for {
		if _, found := slices.BinarySearch(dates, day.Format(DateLayout)); !found {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}
