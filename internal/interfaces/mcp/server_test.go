package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcppkg "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/service/commands"
	"bytepad-backend/pkg/api"
)

type stubExecutor struct {
	gotName string
	gotArgs map[string]any
	resp    api.CommandResponse
	err     error
}

func (s *stubExecutor) Execute(ctx context.Context, name string, args map[string]any) (api.CommandResponse, error) {
	s.gotName, s.gotArgs = name, args
	return s.resp, s.err
}

func resultText(t *testing.T, res *mcppkg.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := mcppkg.AsTextContent(res.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	registry := commands.NewRegistry()
	require.NoError(t, registry.Register(commands.Command{Name: "create_note", Description: "Create a note"}))
	srv := NewServer(registry, &stubExecutor{}, "test", nil)
	assert.NotNil(t, srv)
}

func TestToolForDescribesParams(t *testing.T) {
	tool := toolFor(commands.Command{
		Name:        "create_task",
		Description: "Create a task",
		Creation:    true,
		Params: []commands.Param{
			{Name: "title", Type: "string", Description: "Task title", Required: true},
			{Name: "tags", Type: "array", Description: "Tags"},
			{Name: "force", Type: "boolean"},
			{Name: "durationMinutes", Type: "number"},
			{Name: "fields", Type: "object"},
		},
	})

	assert.Equal(t, "create_task", tool.Name)
	assert.Equal(t, "Create a task", tool.Description)
	assert.Equal(t, []string{"title"}, tool.InputSchema.Required)
	require.Len(t, tool.InputSchema.Properties, 5)

	title := tool.InputSchema.Properties["title"].(map[string]any)
	assert.Equal(t, "string", title["type"])
	tags := tool.InputSchema.Properties["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, "boolean", tool.InputSchema.Properties["force"].(map[string]any)["type"])
	assert.Equal(t, "number", tool.InputSchema.Properties["durationMinutes"].(map[string]any)["type"])
	assert.Equal(t, "object", tool.InputSchema.Properties["fields"].(map[string]any)["type"])

	require.NotNil(t, tool.Annotations.IdempotentHint)
	assert.True(t, *tool.Annotations.IdempotentHint)
	require.NotNil(t, tool.Annotations.ReadOnlyHint)
	assert.False(t, *tool.Annotations.ReadOnlyHint)
}

func TestHandlerReturnsCommandResponse(t *testing.T) {
	exec := &stubExecutor{resp: api.CommandResponse{
		Success: true,
		Message: "Created note",
		Data:    json.RawMessage(`{"id":"n1"}`),
	}}
	h := handlerFor("create_note", exec, nil)

	req := mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: map[string]any{"title": "Groceries"}}}
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"success":true,"message":"Created note","data":{"id":"n1"}}`, resultText(t, res))
	assert.Equal(t, "create_note", exec.gotName)
	assert.Equal(t, map[string]any{"title": "Groceries"}, exec.gotArgs)
}

func TestHandlerReportsFailuresAsToolErrors(t *testing.T) {
	exec := &stubExecutor{err: apperrors.DataLossRisk(5, 20, "Remote has far fewer items than local").Build()}
	h := handlerFor("sync_pull", exec, nil)

	res, err := h(context.Background(), mcppkg.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var body api.CommandResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, string(apperrors.ErrorTypeDataLossRisk), body.Error.Type)
}
