package localapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bytepad-backend/internal/infrastructure/persistence/filestore"
	"bytepad-backend/internal/interfaces/http/localapi"
	"bytepad-backend/internal/service/backend"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestHandler(t *testing.T) (http.Handler, *filestore.Store) {
	t.Helper()
	store := filestore.New(t.TempDir(), zap.NewNop())
	_, err := store.Load(context.Background())
	require.NoError(t, err)
	return localapi.NewHandler(backend.NewFileBackend(store), nil), store
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestLocalAPI_Health(t *testing.T) {
	h, _ := newTestHandler(t)

	code, env := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestLocalAPI_CollectionLifecycle(t *testing.T) {
	h, store := newTestHandler(t)

	code, env := do(t, h, http.MethodPost, "/api/notes", `{"title":"Groceries","content":"milk"}`)
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)

	code, env = do(t, h, http.MethodPut, "/api/notes/"+created.ID, `{"title":"Shopping"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"Shopping"`)

	code, env = do(t, h, http.MethodGet, "/api/notes", "")
	require.Equal(t, http.StatusOK, code)
	var notes []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &notes))
	assert.Len(t, notes, 1)

	code, _ = do(t, h, http.MethodDelete, "/api/notes/"+created.ID, "")
	assert.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodGet, "/api/notes/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	doc, err := store.Get()
	require.NoError(t, err)
	assert.Empty(t, doc.Notes)
}

func TestLocalAPI_JournalAndSingletons(t *testing.T) {
	h, _ := newTestHandler(t)

	code, env := do(t, h, http.MethodPut, "/api/journal/by-date/2024-05-17", `{"content":"Calm day","mood":4}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Contains(t, string(env.Data), `"date":"2024-05-17"`)

	code, _ = do(t, h, http.MethodPut, "/api/journal/by-date/2024-05-17", `{"content":"Busy evening"}`)
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, h, http.MethodGet, "/api/journal", "")
	require.Equal(t, http.StatusOK, code)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Busy evening", entries[0]["content"])

	code, _ = do(t, h, http.MethodGet, "/api/singletons/gamification", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodGet, "/api/singletons/unknown", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLocalAPI_RejectsBadRequests(t *testing.T) {
	h, _ := newTestHandler(t)

	code, env := do(t, h, http.MethodGet, "/api/recipes", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	code, _ = do(t, h, http.MethodPost, "/api/tasks", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, code)
}
