package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/auth"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/realtime"
	"github.com/sakif/manhwee/internal/service"
	"github.com/sakif/manhwee/internal/view"
)

// ItemHandler serves the collection API. Every route runs behind
// auth.RequireSession, so the session is always in the request context;
// the handler opens a CollectionStore bound to it per request.
//
// DEPENDENCY CHAIN:
//   - collections *service.Collections → per-owner snapshots and mutations
//   - hub *realtime.Hub                → WebSocket fan-out for /api/items/stream
type ItemHandler struct {
	collections *service.Collections
	hub         *realtime.Hub
	logger      *slog.Logger
}

// NewItemHandler creates an ItemHandler. hub must already be subscribed to
// collections; the handler only joins and leaves streams.
func NewItemHandler(collections *service.Collections, hub *realtime.Hub, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		collections: collections,
		hub:         hub,
		logger:      logger,
	}
}

// store opens the caller's collection. A request that somehow reached here
// without a session gets AuthRequired from the store itself.
func (h *ItemHandler) store(r *http.Request) (*service.CollectionStore, *model.Session) {
	session, _ := auth.SessionFromContext(r.Context())
	return h.collections.Open(session), session
}

// HandleList returns the owner's items through the view pipeline.
//
// HTTP: GET /api/items?sort=title-asc&type=Seinen%20(M)&status=Reading&rating=4&q=solo
//
// Unknown sort keys, types, statuses or ratings are a 400; a query that
// matches nothing is an empty list.
func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	vs, err := view.ParseViewState(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	store, session := h.store(r)
	items, err := store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view.New(session, vs).Apply(items))
}

// HandleGetByID returns a single item.
//
// HTTP: GET /api/items/{id}
func (h *ItemHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	store, _ := h.store(r)
	item, err := store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleCreate adds an item from a draft.
//
// HTTP: POST /api/items
// REQUEST BODY: {"title": "Solo Leveling", "status": "Reading", "rating": "5", "genres": "Action, Fantasy"}
//
// Every field is optional. Numbers may be sent as strings and genres as a
// comma-separated string, the way an HTML form submits them.
func (h *ItemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if err := decodeJSON(r, &draft); err != nil {
		h.logger.Warn("invalid item JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	store, _ := h.store(r)
	item, err := store.Create(r.Context(), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// HandleUpdate replaces an item's fields with the draft's.
//
// HTTP: PUT /api/items/{id}
func (h *ItemHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var draft model.Draft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, err)
		return
	}

	store, _ := h.store(r)
	item, err := store.Update(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type coverOffsetRequest struct {
	CoverOffset *model.FlexInt `json:"coverOffset"`
}

// HandleSetCoverOffset stores the cover crop position.
//
// HTTP: PUT /api/items/{id}/cover-offset
// REQUEST BODY: {"coverOffset": -120}
//
// Values outside [-300, 100] are clamped, not rejected.
func (h *ItemHandler) HandleSetCoverOffset(w http.ResponseWriter, r *http.Request) {
	var req coverOffsetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.CoverOffset == nil {
		writeError(w, apperror.ValidationFailed("coverOffset", "coverOffset is required"))
		return
	}

	store, _ := h.store(r)
	item, err := store.SetCoverOffset(r.Context(), chi.URLParam(r, "id"), int(*req.CoverOffset))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleDelete removes an item.
//
// HTTP: DELETE /api/items/{id}
func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	store, _ := h.store(r)
	if err := store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats aggregates the owner's whole collection. Filters never apply
// here; the statistics page always describes everything.
//
// HTTP: GET /api/stats
func (h *ItemHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	store, _ := h.store(r)
	items, err := store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view.Aggregate(items))
}
