// Package mcp exposes every command as a Model Context Protocol tool over
// stdio, so agents can drive bytepad the same way the HTTP API does.
package mcp

import (
	"context"
	"encoding/json"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"bytepad-backend/internal/service/commands"
	"bytepad-backend/pkg/api"
)

const serverName = "bytepad"

// serverInstructions is returned to clients in the initialize response.
const serverInstructions = `bytepad stores notes, tasks, habits, journal entries, bookmarks, ideas, ` +
	`daily note cards and focus sessions. Creating the same item twice within a few minutes ` +
	`returns the first result instead of a duplicate. Sync tools mirror the dataset to a ` +
	`private GitHub gist; pass force only after checking the item counts in a refused sync.`

// Executor runs a named command.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (api.CommandResponse, error)
}

// NewServer registers one tool per command in registry. Calls go through exec
// so creation tools are deduplicated.
func NewServer(registry *commands.Registry, exec Executor, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
		server.WithRecovery(),
	)

	for _, cmd := range registry.List() {
		srv.AddTool(toolFor(cmd), handlerFor(cmd.Name, exec, logger))
	}
	return srv
}

// ServeStdio serves srv on in/out until ctx is done or in is closed. Nothing
// else may write to out.
func ServeStdio(ctx context.Context, srv *server.MCPServer, in io.Reader, out io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	stdio := server.NewStdioServer(srv)
	stdio.SetErrorLogger(zap.NewStdLog(logger.Named("mcp")))
	return stdio.Listen(ctx, in, out)
}

func toolFor(cmd commands.Command) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(cmd.Description),
		mcp.WithReadOnlyHintAnnotation(cmd.ReadOnly),
		mcp.WithDestructiveHintAnnotation(cmd.Name == "delete_item" || cmd.Name == "sync_pull" || cmd.Name == "sync_push"),
		mcp.WithIdempotentHintAnnotation(cmd.ReadOnly || cmd.Creation),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	for _, p := range cmd.Params {
		opts = append(opts, paramOption(p))
	}
	return mcp.NewTool(cmd.Name, opts...)
}

func paramOption(p commands.Param) mcp.ToolOption {
	props := []mcp.PropertyOption{mcp.Description(p.Description)}
	if p.Required {
		props = append(props, mcp.Required())
	}
	switch p.Type {
	case "string":
		return mcp.WithString(p.Name, props...)
	case "number":
		return mcp.WithNumber(p.Name, props...)
	case "boolean":
		return mcp.WithBoolean(p.Name, props...)
	case "array":
		props = append(props, mcp.Items(map[string]any{"type": "string"}))
		return mcp.WithArray(p.Name, props...)
	default:
		return mcp.WithObject(p.Name, props...)
	}
}

// handlerFor returns the command response as JSON text. Command failures are
// tool errors carrying the failure body, never protocol errors.
func handlerFor(name string, exec Executor, logger *zap.Logger) server.ToolHandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := exec.Execute(ctx, name, req.GetArguments())
		if err != nil {
			logger.Debug("Tool call failed", zap.String("tool", name), zap.Error(err))
			body, _ := json.Marshal(api.CommandFailure(err))
			return mcp.NewToolResultError(string(body)), nil
		}
		body, err := json.Marshal(resp)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}
