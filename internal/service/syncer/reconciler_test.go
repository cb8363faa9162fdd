package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bytepad-backend/internal/config"
	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/persistence/filestore"
)

const testToken = "token-1"

type fakeRemote struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	readErr  error
	readHook func()
	writes   atomic.Int32
	nextID   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]*domain.Document)}
}

func (f *fakeRemote) ValidateCredential(ctx context.Context, token string) error {
	if token != testToken {
		return apperrors.Auth(apperrors.CodeRemoteAuthFailed, "bad token").Build()
	}
	return nil
}

func (f *fakeRemote) ValidateRemoteAccessible(ctx context.Context, token, gistID string) error {
	if err := f.ValidateCredential(ctx, token); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[gistID]; !ok {
		return apperrors.NotFound(apperrors.CodeRemoteNotFound, "missing").Build()
	}
	return nil
}

func (f *fakeRemote) Create(ctx context.Context, token string, doc *domain.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("gist-%d", f.nextID)
	f.docs[id] = doc.Clone()
	return id, nil
}

func (f *fakeRemote) Read(ctx context.Context, token, gistID string) (*domain.Document, error) {
	if f.readHook != nil {
		f.readHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	doc, ok := f.docs[gistID]
	if !ok {
		return nil, apperrors.NotFound(apperrors.CodeRemoteNotFound, "missing").Build()
	}
	return doc.Clone(), nil
}

func (f *fakeRemote) Write(ctx context.Context, token, gistID string, doc *domain.Document) error {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[gistID] = doc.Clone()
	return nil
}

func (f *fakeRemote) get(id string) *domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id]
}

// makeDoc builds a document with n notes stamped at lastModified.
func makeDoc(n int, lastModified string) *domain.Document {
	doc := domain.NewEmpty(time.Time{})
	for i := 0; i < n; i++ {
		doc.Notes = append(doc.Notes, domain.Note{ID: fmt.Sprintf("n%d", i), Title: fmt.Sprintf("note %d", i)})
	}
	doc.LastModified = lastModified
	return doc
}

type fixture struct {
	store      *filestore.Store
	remote     *fakeRemote
	syncConfig *config.SyncConfigStore
	reconciler *Reconciler
}

func newFixture(t *testing.T, local *domain.Document) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	store := filestore.New(dir, zap.NewNop(), filestore.WithClock(func() time.Time {
		return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}))
	_, err := store.Load(ctx)
	require.NoError(t, err)
	if local != nil {
		require.NoError(t, store.Replace(ctx, local))
	}

	syncConfig := config.NewSyncConfigStore(dir)
	require.NoError(t, syncConfig.Save(config.SyncConfig{Token: testToken, GistID: "gist-main", IntervalMinutes: 5}))

	remote := newFakeRemote()
	return &fixture{
		store:      store,
		remote:     remote,
		syncConfig: syncConfig,
		reconciler: NewReconciler(store, remote, syncConfig, nil, nil, zap.NewNop()),
	}
}

func (f *fixture) localDoc(t *testing.T) *domain.Document {
	doc, err := f.store.Get()
	require.NoError(t, err)
	return doc
}

func TestCheckGuard(t *testing.T) {
	tests := []struct {
		name     string
		incoming int
		existing int
		force    bool
		blocked  bool
	}{
		{name: "much smaller incoming", incoming: 5, existing: 20, blocked: true},
		{name: "exactly half", incoming: 10, existing: 20},
		{name: "small existing dataset", incoming: 0, existing: 10},
		{name: "just above threshold", incoming: 5, existing: 11, blocked: true},
		{name: "forced", incoming: 0, existing: 100, force: true},
		{name: "growing", incoming: 30, existing: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckGuard(tt.incoming, tt.existing, tt.force, "Pull")
			if !tt.blocked {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsDataLossRisk(err))
		})
	}
}

func TestPull_GuardBlocksShrinkingLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, makeDoc(20, "2024-05-01T10:00:00.000Z"))
	f.remote.docs["gist-main"] = makeDoc(5, "2024-05-02T10:00:00.000Z")

	_, err := f.reconciler.Pull(ctx, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsDataLossRisk(err))
	ue, _ := apperrors.As(err)
	assert.Equal(t, 5, ue.Metadata["incomingItems"])
	assert.Equal(t, 20, ue.Metadata["existingItems"])
	assert.Equal(t, 20, f.localDoc(t).TotalItems(), "local untouched")

	res, err := f.reconciler.Pull(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, ActionPull, res.Action)
	assert.Equal(t, 5, f.localDoc(t).TotalItems())
	assert.NotEmpty(t, f.syncConfig.Get().LastSync)
}

func TestPush_GuardBlocksShrinkingRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, makeDoc(5, "2024-05-02T10:00:00.000Z"))
	f.remote.docs["gist-main"] = makeDoc(20, "2024-05-01T10:00:00.000Z")

	_, err := f.reconciler.Push(ctx, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsDataLossRisk(err))
	assert.Equal(t, int32(0), f.remote.writes.Load())

	res, err := f.reconciler.Push(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, ActionPush, res.Action)
	assert.Equal(t, 5, f.remote.get("gist-main").TotalItems())
}

func TestPush_MissingRemoteSkipsGuard(t *testing.T) {
	f := newFixture(t, makeDoc(3, "2024-05-02T10:00:00.000Z"))

	res, err := f.reconciler.Push(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, ActionPush, res.Action)
	assert.Equal(t, 3, f.remote.get("gist-main").TotalItems())
}

func TestSync_UnreadableRemoteIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, makeDoc(3, "2024-01-01T00:00:00.000Z"))
	f.remote.docs["gist-main"] = makeDoc(20, "2024-01-02T00:00:00.000Z")
	f.remote.readErr = apperrors.Validation(apperrors.CodeRemoteBadPayload, "Remote copy is not a valid document").Build()

	_, err := f.reconciler.SmartSync(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsDataLossRisk(err))
	ue, _ := apperrors.As(err)
	assert.Equal(t, "gist-main", ue.Resource)
	cause, ok := apperrors.As(ue.Cause)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeRemoteBadPayload, cause.Code)

	_, err = f.reconciler.Push(ctx, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsDataLossRisk(err))

	assert.Equal(t, int32(0), f.remote.writes.Load())
	assert.Equal(t, 20, f.remote.get("gist-main").TotalItems())
	assert.Equal(t, 3, f.localDoc(t).TotalItems())

	res, err := f.reconciler.Push(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, ActionPush, res.Action)
	assert.Equal(t, 3, f.remote.get("gist-main").TotalItems())
}

func TestSmartSync_DecisionTable(t *testing.T) {
	const (
		older = "2024-05-01T10:00:00.000Z"
		newer = "2024-05-01T10:00:00.001Z"
	)
	tests := []struct {
		name        string
		local       *domain.Document
		remote      *domain.Document
		readErr     error
		want        Action
		wantErr     func(error) bool
		localAfter  int
		remoteAfter int
	}{
		{
			name:   "remote newer pulls",
			local:  makeDoc(4, older),
			remote: makeDoc(6, newer),
			want:   ActionPull, localAfter: 6, remoteAfter: 6,
		},
		{
			name:   "local newer pushes",
			local:  makeDoc(7, newer),
			remote: makeDoc(6, older),
			want:   ActionPush, localAfter: 7, remoteAfter: 7,
		},
		{
			name:   "equal timestamps do nothing",
			local:  makeDoc(2, older),
			remote: makeDoc(3, older),
			want:   ActionNone, localAfter: 2, remoteAfter: 3,
		},
		{
			name:  "missing remote bootstraps by push",
			local: makeDoc(2, older),
			want:  ActionPush, localAfter: 2, remoteAfter: 2,
		},
		{
			name:    "unparsable remote is refused",
			local:   makeDoc(2, older),
			readErr: apperrors.Validation(apperrors.CodeRemoteBadPayload, "bad").Build(),
			wantErr: apperrors.IsDataLossRisk, localAfter: 2,
		},
		{
			name:    "auth failure is returned",
			local:   makeDoc(2, older),
			readErr: apperrors.Auth(apperrors.CodeRemoteAuthFailed, "bad").Build(),
			wantErr: apperrors.IsAuth, localAfter: 2,
		},
		{
			name:    "network failure is returned",
			local:   makeDoc(2, older),
			readErr: apperrors.Network(apperrors.CodeRemoteUnavailable, "down").Build(),
			wantErr: apperrors.IsNetwork, localAfter: 2,
		},
		{
			name:    "newer but much smaller remote is guarded",
			local:   makeDoc(20, older),
			remote:  makeDoc(5, newer),
			wantErr: apperrors.IsDataLossRisk, localAfter: 20, remoteAfter: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.local)
			if tt.remote != nil {
				f.remote.docs["gist-main"] = tt.remote
			}
			f.remote.readErr = tt.readErr

			res, err := f.reconciler.SmartSync(context.Background())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, res.Action)
			}

			assert.Equal(t, tt.localAfter, f.localDoc(t).TotalItems())
			if remote := f.remote.get("gist-main"); remote != nil {
				assert.Equal(t, tt.remoteAfter, remote.TotalItems())
			} else {
				assert.Zero(t, tt.remoteAfter)
			}
		})
	}
}

func TestSmartSync_PullKeepsRemoteTimestamp(t *testing.T) {
	f := newFixture(t, makeDoc(1, "2024-05-01T10:00:00.000Z"))
	f.remote.docs["gist-main"] = makeDoc(2, "2024-05-03T08:30:00.000Z")

	res, err := f.reconciler.SmartSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, ActionPull, res.Action)
	assert.Equal(t, "2024-05-03T08:30:00.000Z", f.localDoc(t).LastModified)

	res, err = f.reconciler.SmartSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionNone, res.Action, "a pull does not trigger a push back")
}

func TestSmartSync_SingleFlight(t *testing.T) {
	f := newFixture(t, makeDoc(1, "2024-05-01T10:00:00.000Z"))
	f.remote.docs["gist-main"] = makeDoc(1, "2024-05-01T10:00:00.000Z")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.remote.readHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	done := make(chan *Result, 1)
	go func() {
		res, err := f.reconciler.SmartSync(context.Background())
		assert.NoError(t, err)
		done <- res
	}()

	<-entered
	res, err := f.reconciler.SmartSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, res.Action)

	close(release)
	first := <-done
	assert.Equal(t, ActionNone, first.Action)
	assert.Equal(t, int32(0), f.remote.writes.Load())
}

func TestSync_RequiresCredentials(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.syncConfig.Save(config.SyncConfig{GistID: "gist-main"}))

	_, err := f.reconciler.SmartSync(context.Background())
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.reconciler.Pull(context.Background(), false)
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.reconciler.Push(context.Background(), false)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateRemote(t *testing.T) {
	f := newFixture(t, makeDoc(4, "2024-05-01T10:00:00.000Z"))
	require.NoError(t, f.syncConfig.Save(config.SyncConfig{Token: testToken}))

	var notified config.SyncConfig
	f.reconciler.OnConfigChange(func(cfg config.SyncConfig) { notified = cfg })

	res, err := f.reconciler.CreateRemote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, res.Action)
	assert.Equal(t, "gist-1", res.GistID)
	assert.Equal(t, "gist-1", f.syncConfig.Get().GistID)
	assert.Equal(t, "gist-1", notified.GistID)
	assert.Equal(t, 4, f.remote.get("gist-1").TotalItems())

	_, err = f.reconciler.CreateRemote(context.Background())
	require.Error(t, err, "second remote is refused while one is configured")
}

func TestConfigure(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.syncConfig.Save(config.SyncConfig{}))
	f.remote.docs["gist-9"] = makeDoc(0, "")

	bad := "wrong"
	_, err := f.reconciler.Configure(context.Background(), ConfigureRequest{Token: &bad})
	assert.True(t, apperrors.IsAuth(err))
	assert.Empty(t, f.syncConfig.Get().Token)

	token, gist, auto, interval := testToken, "gist-9", true, 0
	var notified atomic.Bool
	f.reconciler.OnConfigChange(func(cfg config.SyncConfig) { notified.Store(cfg.AutoSyncReady()) })

	status, err := f.reconciler.Configure(context.Background(), ConfigureRequest{
		Token:           &token,
		GistID:          &gist,
		AutoSync:        &auto,
		IntervalMinutes: &interval,
	})
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.True(t, status.HasToken)
	assert.Equal(t, config.MinSyncInterval, status.IntervalMinutes)
	assert.True(t, notified.Load())

	missing := "gist-404"
	_, err = f.reconciler.Configure(context.Background(), ConfigureRequest{GistID: &missing})
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, "gist-9", f.syncConfig.Get().GistID)
}
