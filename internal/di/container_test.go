package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bytepad-backend/internal/config"
	"bytepad-backend/pkg/api"
)

func testConfig(t *testing.T, localURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Logging.Level = "error"
	cfg.LocalProcess.BaseURL = localURL
	cfg.LocalProcess.Enabled = localURL != ""
	return cfg
}

func newTestContainer(t *testing.T, cfg *config.Config, opts Options) *Container {
	t.Helper()
	c, cleanup, err := InitializeContainer(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Shutdown()
		cleanup()
	})
	return c
}

func postCommand(t *testing.T, h http.Handler, name, body string) (*httptest.ResponseRecorder, api.CommandResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/commands/"+name, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp api.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestContainer_CommandsFallBackToFileStore(t *testing.T) {
	c := newTestContainer(t, testConfig(t, ""), Options{Version: "test"})

	w, resp := postCommand(t, c.Router, "create_note", `{"title":"Groceries","content":"milk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	_, again := postCommand(t, c.Router, "create_note", `{"content":"milk","title":"Groceries"}`)
	assert.Equal(t, resp, again)

	doc, err := c.Store.Get()
	require.NoError(t, err)
	assert.Len(t, doc.Notes, 1)
}

func TestContainer_CommandErrorsMapToStatus(t *testing.T) {
	c := newTestContainer(t, testConfig(t, ""), Options{})

	w, resp := postCommand(t, c.Router, "create_task", `{"priority":"P1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION", resp.Error.Type)

	w, _ = postCommand(t, c.Router, "get_item", `{"collection":"notes","id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = postCommand(t, c.Router, "create_note", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = postCommand(t, c.Router, "sync_pull", ``)
	assert.Equal(t, http.StatusBadRequest, w.Code, "sync without credentials")
	assert.False(t, resp.Success)
}

func TestContainer_CommandsPreferTheDesktopApp(t *testing.T) {
	app := newTestContainer(t, testConfig(t, ""), Options{Authoritative: true})
	appServer := httptest.NewServer(app.LocalAPI)
	t.Cleanup(appServer.Close)

	c := newTestContainer(t, testConfig(t, appServer.URL), Options{})
	w, resp := postCommand(t, c.Router, "create_task", `{"title":"Ship it"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	appDoc, err := app.Store.Get()
	require.NoError(t, err)
	assert.Len(t, appDoc.Tasks, 1, "the running app owns the write")

	ownDoc, err := c.Store.Get()
	require.NoError(t, err)
	assert.Empty(t, ownDoc.Tasks)
}

func TestContainer_ListCommandsAndHealth(t *testing.T) {
	c := newTestContainer(t, testConfig(t, ""), Options{Version: "1.2.3"})

	w := httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/commands", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Success bool `json:"success"`
		Data    []struct {
			Name     string `json:"name"`
			Creation bool   `json:"creation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.True(t, listed.Success)
	assert.Len(t, listed.Data, len(c.Registry.List()))

	w = httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
	assert.Contains(t, w.Body.String(), `"store"`)

	w = httptest.NewRecorder()
	c.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bytepad_http_requests_total{method="GET",route="/api/commands",status="200"}`)
}

func TestContainer_AuthoritativeSkipsTheBridge(t *testing.T) {
	c := newTestContainer(t, testConfig(t, "http://127.0.0.1:1"), Options{Authoritative: true})

	res, err := c.Gateway.Execute(context.Background(), "create_idea", map[string]any{"title": "Kite"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	var listed []map[string]any
	out, err := c.Gateway.Execute(context.Background(), "list_items", map[string]any{"collection": "ideas"})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out.Data, &listed))
	assert.Len(t, listed, 1)
}
