// Package localapi serves the desktop app's local HTTP contract over a
// MutationBackend. It lets this process stand in for the app, and gives the
// bridge a real peer in tests.
package localapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/infrastructure/localprocess"
	"bytepad-backend/internal/middleware"
	"bytepad-backend/internal/service/backend"
	"bytepad-backend/pkg/api"
)

// Handler serves the local-process endpoints.
type Handler struct {
	backend backend.MutationBackend
	logger  *zap.Logger
}

// NewHandler creates the local-process router over b.
func NewHandler(b backend.MutationBackend, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{backend: b, logger: logger.Named("localapi")}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get(strings.TrimPrefix(localprocess.HealthPath, "/api"), h.health)
		r.Put("/journal/by-date/{date}", h.upsertJournal)
		r.Get("/singletons/{name}", h.getSingleton)
		r.Put("/singletons/{name}", h.putSingleton)

		r.Get("/{collection}", h.list)
		r.Post("/{collection}", h.create)
		r.Get("/{collection}/{id}", h.get)
		r.Put("/{collection}/{id}", h.update)
		r.Delete("/{collection}/{id}", h.remove)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.collectionOp(w, r, backend.OpList, http.StatusOK)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.collectionOp(w, r, backend.OpGet, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.collectionOp(w, r, backend.OpCreate, http.StatusCreated)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	h.collectionOp(w, r, backend.OpUpdate, http.StatusOK)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	h.collectionOp(w, r, backend.OpDelete, http.StatusOK)
}

func (h *Handler) collectionOp(w http.ResponseWriter, r *http.Request, op backend.Op, status int) {
	collection, err := domain.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	m := backend.Mutation{Op: op, Collection: collection, ID: chi.URLParam(r, "id")}
	if op == backend.OpCreate || op == backend.OpUpdate {
		if m.Fields, err = decodeBody(r); err != nil {
			api.WriteError(w, err)
			return
		}
	}
	h.apply(w, r, m, status)
}

func (h *Handler) upsertJournal(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeBody(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	h.apply(w, r, backend.Mutation{
		Op:     backend.OpUpsertJournal,
		Date:   chi.URLParam(r, "date"),
		Fields: fields,
	}, http.StatusOK)
}

func (h *Handler) getSingleton(w http.ResponseWriter, r *http.Request) {
	name, err := domain.ParseSingleton(chi.URLParam(r, "name"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	h.apply(w, r, backend.Mutation{Op: backend.OpGetSingleton, Singleton: name}, http.StatusOK)
}

func (h *Handler) putSingleton(w http.ResponseWriter, r *http.Request) {
	name, err := domain.ParseSingleton(chi.URLParam(r, "name"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	fields, err := decodeBody(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	h.apply(w, r, backend.Mutation{Op: backend.OpPutSingleton, Singleton: name, Fields: fields}, http.StatusOK)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, m backend.Mutation, status int) {
	data, err := h.backend.Apply(r.Context(), m)
	if err != nil {
		h.logger.Debug("Local API request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		api.WriteError(w, err)
		return
	}
	api.Success(w, status, data)
}

func decodeBody(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	err := json.NewDecoder(r.Body).Decode(&fields)
	if errors.Is(err, io.EOF) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, apperrors.Validation(apperrors.CodeInvalidItemPayload, "Request body is not a JSON object").
			WithCause(err).
			Build()
	}
	return fields, nil
}
