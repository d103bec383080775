package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/vectora/internal/api/middlewares"
	"github.com/markdave123-py/vectora/internal/services"
)

type CollectionHandler struct {
	collections *services.CollectionService
	ledger      *services.LedgerService
}

func NewCollectionHandler(collections *services.CollectionService, ledger *services.LedgerService) *CollectionHandler {
	return &CollectionHandler{collections: collections, ledger: ledger}
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Visibility  string `json:"visibility"`
	Description string `json:"description"`
}

type updateCollectionRequest struct {
	Description  *string  `json:"description"`
	Visibility   *string  `json:"visibility"`
	AllowedUsers []string `json:"allowed_users"`
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	col, err := h.collections.Create(r.Context(), caller, req.Name, req.Visibility, req.Description)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(col)
}

// List serves both anonymous and authenticated callers; anonymous callers
// see the public subset only.
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	cols, err := h.collections.ListAccessible(r.Context(), caller)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cols)
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	name := chi.URLParam(r, "name")

	col, err := h.collections.Get(r.Context(), caller, name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(col)
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	name := chi.URLParam(r, "name")

	var req updateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	col, err := h.collections.UpdateSettings(r.Context(), caller, name, req.Description, req.Visibility, req.AllowedUsers)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(col)
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if err := h.collections.Delete(r.Context(), caller, name); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Uploads lists the append-only ingestion history for a collection.
func (h *CollectionHandler) Uploads(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	name := chi.URLParam(r, "name")

	// Visibility gate first: history leaks document ids.
	if _, err := h.collections.Get(r.Context(), caller, name); err != nil {
		writeServiceError(w, err)
		return
	}

	recs, err := h.ledger.HistoryByCollection(r.Context(), name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// writeServiceError maps service-level sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrCollectionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
