// Package handlers serves the HTTP command API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/service/commands"
	"bytepad-backend/pkg/api"
)

// maxArgumentBytes bounds the request body of a command call.
const maxArgumentBytes = 1 << 20

// CommandHandler exposes the command gateway over HTTP.
type CommandHandler struct {
	gateway *commands.Gateway
	logger  *zap.Logger
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(gateway *commands.Gateway, logger *zap.Logger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{gateway: gateway, logger: logger.Named("http.commands")}
}

// Execute handles POST /api/commands/{name}. The body is the JSON argument
// object; an empty body means no arguments.
func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var args map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxArgumentBytes))
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		api.WriteCommandResult(w, api.CommandResponse{},
			apperrors.Validation(apperrors.CodeInvalidArguments, "Arguments must be a JSON object").
				WithOperation(name).
				WithCause(err).
				Build())
		return
	}

	resp, err := h.gateway.Execute(r.Context(), name, args)
	if err != nil && (apperrors.IsNotInitialized(err) || apperrors.TypeOf(err) == apperrors.ErrorTypeInternal) {
		apperrors.LogError(h.logger, err, "Command failed with internal error", zap.String("command", name))
	}
	api.WriteCommandResult(w, resp, err)
}

// List handles GET /api/commands.
func (h *CommandHandler) List(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.gateway.Registry().List())
}
