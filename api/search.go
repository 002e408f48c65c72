package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quantfolio/guidelines/internal/retrieval"
)

// SearchHandler serves retrieval queries.
type SearchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(searcher Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{searcher: searcher, logger: logger}
}

// RegisterRoutes registers search routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
}

// SearchRequest is the JSON body for /api/search.
type SearchRequest struct {
	Query        string   `json:"query"`
	CollectionID string   `json:"collection_id,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	TopK         int      `json:"top_k,omitempty"`
	Threshold    *float64 `json:"threshold,omitempty"`
}

// SearchResponse is the JSON reply for /api/search.
type SearchResponse struct {
	Hits []retrieval.Hit `json:"hits"`
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}

	rreq := retrieval.Request{
		Query:        req.Query,
		CollectionID: req.CollectionID,
		Mode:         req.Mode,
		TopK:         req.TopK,
	}
	if req.Threshold != nil {
		rreq = rreq.WithThreshold(*req.Threshold)
	}

	hits, err := h.searcher.Search(r.Context(), rreq)
	switch {
	case errors.Is(err, retrieval.ErrNoRelevantRules):
		writeJSON(w, http.StatusOK, SearchResponse{Hits: []retrieval.Hit{}})
		return
	case errors.Is(err, retrieval.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, "unknown_mode", err.Error())
		return
	case err != nil:
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "search could not be completed")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Hits: hits})
}
