package api

import (
	"log/slog"
	"net/http"

	"github.com/quantfolio/guidelines/internal/session"
	"github.com/quantfolio/guidelines/internal/store"
)

// CatalogHandler serves collection listing/deletion and store stats.
type CatalogHandler struct {
	catalog  Catalog
	sessions SessionStore
	logger   *slog.Logger
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(catalog Catalog, sessions SessionStore, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, sessions: sessions, logger: logger}
}

// RegisterRoutes registers catalog routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/collections", h.list)
	mux.HandleFunc("DELETE /api/collections/{id}", h.delete)
	mux.HandleFunc("GET /api/stats", h.stats)
}

// CollectionsResponse is the JSON reply for collection listing.
type CollectionsResponse struct {
	Collections []store.Collection `json:"collections"`
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	collections, err := h.catalog.ListCollections(r.Context())
	if err != nil {
		h.logger.Error("failed to list collections", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "collections could not be listed")
		return
	}
	if collections == nil {
		collections = []store.Collection{}
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{Collections: collections})
}

func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCollection(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete collection", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "collection could not be deleted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StatsResponse combines store and session counts.
type StatsResponse struct {
	Store    *store.Stats  `json:"store"`
	Sessions session.Stats `json:"sessions"`
}

func (h *CatalogHandler) stats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := h.catalog.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read store stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "stats could not be read")
		return
	}
	sessionStats, err := h.sessions.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read session stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "stats could not be read")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Store: storeStats, Sessions: sessionStats})
}
