package commands_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/cache"
	"bytepad-backend/internal/infrastructure/persistence/filestore"
	"bytepad-backend/internal/service/backend"
	"bytepad-backend/internal/service/commands"
	"bytepad-backend/internal/service/syncer"
)

type mockSync struct {
	mock.Mock
}

func (m *mockSync) Status() (syncer.Status, error) {
	args := m.Called()
	return args.Get(0).(syncer.Status), args.Error(1)
}

func (m *mockSync) Configure(ctx context.Context, req syncer.ConfigureRequest) (syncer.Status, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(syncer.Status), args.Error(1)
}

func (m *mockSync) CreateRemote(ctx context.Context) (*syncer.Result, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*syncer.Result)
	return res, args.Error(1)
}

func (m *mockSync) Pull(ctx context.Context, force bool) (*syncer.Result, error) {
	args := m.Called(ctx, force)
	res, _ := args.Get(0).(*syncer.Result)
	return res, args.Error(1)
}

func (m *mockSync) Push(ctx context.Context, force bool) (*syncer.Result, error) {
	args := m.Called(ctx, force)
	res, _ := args.Get(0).(*syncer.Result)
	return res, args.Error(1)
}

func (m *mockSync) SmartSync(ctx context.Context) (*syncer.Result, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*syncer.Result)
	return res, args.Error(1)
}

type runningState bool

func (r runningState) Running() bool { return bool(r) }

type fixture struct {
	store   *filestore.Store
	sync    *mockSync
	gateway *commands.Gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := filestore.New(t.TempDir(), zap.NewNop())
	_, err := store.Load(context.Background())
	require.NoError(t, err)

	chain := backend.NewChain(nil, nil, zap.NewNop(), backend.NewFileBackend(store))
	sync := &mockSync{}
	registry := commands.NewCatalog(commands.Dependencies{
		Backend:   chain,
		Sync:      sync,
		Scheduler: runningState(true),
		Clock:     func() time.Time { return time.Date(2024, 5, 17, 22, 0, 0, 0, time.UTC) },
	})
	results := cache.NewMemoryCache(100, 1<<20, zap.NewNop())
	return &fixture{
		store:   store,
		sync:    sync,
		gateway: commands.NewGateway(registry, results, commands.DefaultTTL, nil, nil, zap.NewNop()),
	}
}

func (f *fixture) doc(t *testing.T) *domain.Document {
	t.Helper()
	doc, err := f.store.Get()
	require.NoError(t, err)
	return doc
}

func TestCatalog_CreateNoteIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	args := map[string]any{"title": "Groceries", "content": "milk, eggs", "tags": []any{"home"}}

	first, err := f.gateway.Execute(ctx, "create_note", args)
	require.NoError(t, err)
	second, err := f.gateway.Execute(ctx, "create_note", map[string]any{
		"tags": []any{"home"}, "content": "milk, eggs", "title": "Groceries",
	})
	require.NoError(t, err)

	assert.True(t, first.Success)
	assert.Equal(t, "Created note", first.Message)
	assert.Equal(t, first, second)
	require.Len(t, f.doc(t).Notes, 1)

	var note domain.Note
	require.NoError(t, json.Unmarshal(first.Data, &note))
	assert.Equal(t, f.doc(t).Notes[0].ID, note.ID)
}

func TestCatalog_ArgumentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		args    map[string]any
	}{
		{"missing title", "create_task", map[string]any{"priority": "P1"}},
		{"bad priority", "create_task", map[string]any{"title": "x", "priority": "urgent"}},
		{"unknown argument", "create_task", map[string]any{"title": "x", "owner": "me"}},
		{"wrong type", "create_focus_session", map[string]any{"durationMinutes": "long"}},
		{"note needs title or content", "create_note", map[string]any{"pinned": true}},
		{"bad date", "write_journal", map[string]any{"content": "x", "date": "17/05/2024"}},
		{"bad color", "create_idea", map[string]any{"title": "x", "color": "blue"}},
		{"unknown collection", "list_items", map[string]any{"collection": "recipes"}},
		{"empty update", "update_item", map[string]any{"collection": "notes", "id": "n1", "fields": map[string]any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gateway.Execute(ctx, tt.command, tt.args)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
	assert.Zero(t, f.doc(t).TotalItems())
}

func TestCatalog_WriteJournalDefaultsToToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.gateway.Execute(ctx, "write_journal", map[string]any{"content": "Good day", "mood": 4})
	require.NoError(t, err)
	assert.Equal(t, "Journal entry saved for 2024-05-17", first.Message)

	_, err = f.gateway.Execute(ctx, "write_journal", map[string]any{"content": "Better day", "date": "2024-05-17"})
	require.NoError(t, err)

	doc := f.doc(t)
	require.Len(t, doc.Journal, 1)
	assert.Equal(t, "Better day", doc.Journal[0].Content)
}

func TestCatalog_ItemCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.gateway.Execute(ctx, "create_habit", map[string]any{"name": "Stretch", "frequency": "daily"})
	require.NoError(t, err)
	var habit domain.Habit
	require.NoError(t, json.Unmarshal(created.Data, &habit))

	_, err = f.gateway.Execute(ctx, "check_habit", map[string]any{"id": habit.ID, "date": "2024-05-16"})
	require.NoError(t, err)
	checked, err := f.gateway.Execute(ctx, "check_habit", map[string]any{"id": habit.ID})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(checked.Data, &habit))
	assert.Equal(t, []string{"2024-05-16", "2024-05-17"}, habit.CompletedDates)
	assert.Equal(t, 2, habit.Streak)

	updated, err := f.gateway.Execute(ctx, "update_item", map[string]any{
		"collection": "habits", "id": habit.ID, "fields": map[string]any{"category": "health"},
	})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(updated.Data, &habit))
	assert.Equal(t, "health", habit.Category)

	listed, err := f.gateway.Execute(ctx, "list_items", map[string]any{"collection": "habits"})
	require.NoError(t, err)
	assert.Equal(t, "1 habits", listed.Message)

	_, err = f.gateway.Execute(ctx, "delete_item", map[string]any{"collection": "habits", "id": habit.ID})
	require.NoError(t, err)
	_, err = f.gateway.Execute(ctx, "get_item", map[string]any{"collection": "habits", "id": habit.ID})
	assert.True(t, apperrors.IsNotFound(err))
}

type mockApplier struct {
	mock.Mock
}

func (m *mockApplier) Apply(ctx context.Context, mut backend.Mutation) (*backend.Result, error) {
	args := m.Called(ctx, mut)
	res, _ := args.Get(0).(*backend.Result)
	return res, args.Error(1)
}

func TestCatalog_ListItemsRejectsMalformedBackendData(t *testing.T) {
	applier := &mockApplier{}
	applier.On("Apply", mock.Anything, backend.Mutation{Op: backend.OpList, Collection: domain.CollectionNotes}).
		Return(&backend.Result{Data: json.RawMessage(`{"not":"a list"}`)}, nil)

	registry := commands.NewCatalog(commands.Dependencies{Backend: applier, Sync: &mockSync{}, Scheduler: runningState(false)})
	cmd, ok := registry.Get("list_items")
	require.True(t, ok)

	_, err := cmd.Run(context.Background(), map[string]any{"collection": "notes"})
	require.Error(t, err)
	ue, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInternal, ue.Code)
	assert.Equal(t, "notes", ue.Resource)
	applier.AssertExpectations(t)
}

func TestCatalog_CompleteTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.gateway.Execute(ctx, "create_task", map[string]any{"title": "File taxes", "dueDate": "2024-06-01"})
	require.NoError(t, err)
	var task domain.Task
	require.NoError(t, json.Unmarshal(created.Data, &task))

	done, err := f.gateway.Execute(ctx, "complete_task", map[string]any{"id": task.ID})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(done.Data, &task))
	assert.True(t, task.Completed)
	assert.NotEmpty(t, task.CompletedAt)
}

func TestCatalog_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gateway.Execute(ctx, "update_gamification", map[string]any{
		"stats": map[string]any{"level": 3, "xp": 420},
	})
	require.NoError(t, err)

	resp, err := f.gateway.Execute(ctx, "get_stats", nil)
	require.NoError(t, err)
	var stats struct {
		Gamification domain.GamificationStats `json:"gamification"`
		FocusStats   domain.FocusStats        `json:"focusStats"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, 3, stats.Gamification.Level)
	assert.Equal(t, 420, stats.Gamification.XP)
}

func TestCatalog_SyncCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sync.On("Status").Return(syncer.Status{Configured: true, HasToken: true, GistID: "g1", LocalItems: 7}, nil)
	resp, err := f.gateway.Execute(ctx, "sync_status", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sync configured", resp.Message)
	assert.JSONEq(t, `{"configured":true,"hasToken":true,"gistId":"g1","autoSync":false,
		"intervalMinutes":0,"localItems":7,"autoSyncRunning":true}`, string(resp.Data))

	f.sync.On("Pull", mock.Anything, true).Return(&syncer.Result{Action: syncer.ActionPull, Message: "Pulled 5 items"}, nil)
	resp, err = f.gateway.Execute(ctx, "sync_pull", map[string]any{"force": true})
	require.NoError(t, err)
	assert.Equal(t, "Pulled 5 items", resp.Message)

	guard := apperrors.DataLossRisk(5, 20, "Remote has far fewer items than local").Build()
	f.sync.On("Push", mock.Anything, false).Return(nil, guard)
	_, err = f.gateway.Execute(ctx, "sync_push", nil)
	assert.True(t, apperrors.IsDataLossRisk(err))

	interval := 15
	f.sync.On("Configure", mock.Anything, syncer.ConfigureRequest{IntervalMinutes: &interval}).
		Return(syncer.Status{IntervalMinutes: 15}, nil)
	resp, err = f.gateway.Execute(ctx, "sync_configure", map[string]any{"intervalMinutes": 15})
	require.NoError(t, err)
	assert.Equal(t, "Sync configuration saved", resp.Message)

	f.sync.AssertExpectations(t)
}

func TestCatalog_ListDescribesParams(t *testing.T) {
	f := newFixture(t)
	list := f.gateway.Registry().List()
	require.NotEmpty(t, list)

	byName := map[string]commands.Command{}
	for _, cmd := range list {
		byName[cmd.Name] = cmd
	}
	for _, name := range []string{
		"create_note", "create_task", "create_habit", "create_bookmark", "create_idea",
		"create_daily_note", "create_focus_session", "write_journal",
		"list_items", "get_item", "update_item", "delete_item", "complete_task", "check_habit",
		"get_stats", "update_gamification", "update_focus_stats",
		"sync_status", "sync_configure", "sync_create_remote", "sync_pull", "sync_push", "sync_smart",
	} {
		assert.Contains(t, byName, name)
	}

	task := byName["create_task"]
	assert.True(t, task.Creation)
	require.NotEmpty(t, task.Params)
	assert.Equal(t, commands.Param{Name: "title", Type: "string", Description: "Task title", Required: true}, task.Params[0])
	assert.False(t, byName["sync_smart"].Creation)
}
