package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/localprocess"
)

// LocalBackendName labels results served by the running desktop app.
const LocalBackendName = "local_process"

// LocalBackend forwards mutations to the desktop app through the bridge.
type LocalBackend struct {
	bridge *localprocess.Bridge
	clock  func() time.Time
}

// NewLocalBackend creates a backend over bridge.
func NewLocalBackend(bridge *localprocess.Bridge) *LocalBackend {
	return &LocalBackend{bridge: bridge, clock: time.Now}
}

// Name implements MutationBackend.
func (b *LocalBackend) Name() string { return LocalBackendName }

// Apply implements MutationBackend.
func (b *LocalBackend) Apply(ctx context.Context, m Mutation) (json.RawMessage, error) {
	collection := "/api/" + url.PathEscape(string(m.Collection))
	item := collection + "/" + url.PathEscape(m.ID)

	switch m.Op {
	case OpList:
		return b.bridge.Call(ctx, http.MethodGet, collection, nil)
	case OpGet:
		return b.bridge.Call(ctx, http.MethodGet, item, nil)
	case OpCreate:
		return b.bridge.Call(ctx, http.MethodPost, collection, m.Fields)
	case OpUpdate:
		return b.bridge.Call(ctx, http.MethodPut, item, m.Fields)
	case OpDelete:
		if _, err := b.bridge.Call(ctx, http.MethodDelete, item, nil); err != nil {
			return nil, err
		}
		return marshal(Deleted{ID: m.ID, Deleted: true})
	case OpUpsertJournal:
		return b.bridge.Call(ctx, http.MethodPut, "/api/journal/by-date/"+url.PathEscape(m.Date), m.Fields)
	case OpCompleteTask:
		return b.bridge.Call(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(m.ID), map[string]any{
			"completed":   true,
			"completedAt": domain.FormatTimestamp(b.clock()),
		})
	case OpCheckHabit:
		return b.checkHabit(ctx, m)
	case OpGetSingleton:
		return b.bridge.Call(ctx, http.MethodGet, "/api/singletons/"+url.PathEscape(string(m.Singleton)), nil)
	case OpPutSingleton:
		return b.bridge.Call(ctx, http.MethodPut, "/api/singletons/"+url.PathEscape(string(m.Singleton)), m.Fields)
	}
	return nil, unsupported(m.Op)
}

// checkHabit reads the habit, applies the check locally and writes back the
// dates and streak.
func (b *LocalBackend) checkHabit(ctx context.Context, m Mutation) (json.RawMessage, error) {
	path := "/api/habits/" + url.PathEscape(m.ID)
	raw, err := b.bridge.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var habit domain.Habit
	if err := json.Unmarshal(raw, &habit); err != nil {
		return nil, apperrors.Internal(apperrors.CodeLocalRejected, "Local process returned an unreadable habit").
			WithCause(err).
			Build()
	}

	scratch := domain.NewEmpty(b.clock())
	scratch.Habits = []domain.Habit{habit}
	checked, err := scratch.CheckHabit(m.ID, m.Date, b.clock())
	if err != nil {
		return nil, err
	}
	return b.bridge.Call(ctx, http.MethodPut, path, map[string]any{
		"completedDates": checked.CompletedDates,
		"streak":         checked.Streak,
	})
}
