package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/vectora/internal/api/middlewares"
	"github.com/markdave123-py/vectora/internal/core/ingestion_engine"
	"github.com/markdave123-py/vectora/internal/services"
)

type IngestHandler struct {
	collections *services.CollectionService
	ingestor    *ingestion_engine.DocumentIngestor
	sampler     *services.SamplerService
}

func NewIngestHandler(collections *services.CollectionService, ingestor *ingestion_engine.DocumentIngestor, sampler *services.SamplerService) *IngestHandler {
	return &IngestHandler{collections: collections, ingestor: ingestor, sampler: sampler}
}

type ingestRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// Ingest runs the pipeline for the given documents and streams progress as
// Server-Sent Events. The pipeline publishes synchronously, so the handler
// keeps draining the stream even after the client goes away; a dropped
// consumer never stalls or corrupts processing.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	name := chi.URLParam(r, "name")

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.DocumentIDs) == 0 {
		http.Error(w, "document_ids is required", http.StatusBadRequest)
		return
	}

	if _, err := h.collections.Get(r.Context(), caller, name); err != nil {
		writeServiceError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	stream := ingestion_engine.NewStream()

	// Detach the run from the request context: a client disconnect must not
	// cancel ingestion mid-document.
	go h.ingestor.Run(context.Background(), name, req.DocumentIDs, stream)

	clientGone := false
	for ev := range stream.Events() {
		if clientGone {
			continue // drain so the pipeline never blocks on publish
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			clientGone = true
			continue
		}
		flusher.Flush()
	}
}

type sampleRequest struct {
	DocumentIDs []string `json:"document_ids"`
	MaxTokens   int      `json:"max_tokens"`
	TopK        int      `json:"top_k"`
}

// Sample returns representative content from a collection's documents,
// reassembled in reading order under the caller's token budget.
func (h *IngestHandler) Sample(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	name := chi.URLParam(r, "name")

	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 2000
	}

	if _, err := h.collections.Get(r.Context(), caller, name); err != nil {
		writeServiceError(w, err)
		return
	}

	content, err := h.sampler.Sample(r.Context(), name, req.DocumentIDs, req.MaxTokens, req.TopK)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"content": content})
}
