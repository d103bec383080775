package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/vectora/internal/api/middlewares"
	"github.com/markdave123-py/vectora/internal/services"
)

type DocumentHandler struct {
	documents *services.DocumentService
	ledger    *services.LedgerService
}

func NewDocumentHandler(documents *services.DocumentService, ledger *services.LedgerService) *DocumentHandler {
	return &DocumentHandler{documents: documents, ledger: ledger}
}

// Upload stores the file body in object storage and registers the document
// row. Ingestion into a collection is a separate, explicit call.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	r.ParseMultipartForm(52 << 20)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Base strips any path components a hostile client might send.
	filename := filepath.Base(header.Filename)

	doc, err := h.documents.UploadAndCreate(r.Context(), caller.UserID, filename, contentType, data, "upload")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	documents, err := h.documents.ListByUser(r.Context(), caller.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(documents)
}

// Uploads lists every ingestion attempt recorded for one of the caller's
// documents, newest first.
func (h *DocumentHandler) Uploads(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	docID := chi.URLParam(r, "id")

	doc, err := h.documents.Get(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil || doc.UserID != caller.UserID {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	recs, err := h.ledger.HistoryByDocument(r.Context(), docID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}
