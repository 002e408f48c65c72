package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/quantfolio/guidelines/internal/session"
)

// SessionHandler serves session lifecycle endpoints.
type SessionHandler struct {
	sessions SessionStore
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("GET /api/sessions/{id}/history", h.history)
	mux.HandleFunc("PATCH /api/sessions/{id}/context", h.updateContext)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// CreateSessionRequest is the JSON body for creating a session.
type CreateSessionRequest struct {
	Context map[string]string `json:"context,omitempty"`
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
			return
		}
	}

	id, err := h.sessions.Create(r.Context(), req.Context)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "session_create_failed", "session could not be created")
		return
	}

	info, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load created session", "error", err)
		writeError(w, http.StatusInternalServerError, "session_create_failed", "session could not be created")
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	info, err := h.sessions.Get(r.Context(), r.PathValue("id"))
	if h.handleSessionErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HistoryResponse is the JSON reply for session history.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

// history returns the retained turns, optionally capped to the most
// recent N via ?limit=N.
func (h *SessionHandler) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	turns, err := h.sessions.History(r.Context(), id, limit)
	if h.handleSessionErr(w, err) {
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Turns: turns})
}

// UpdateContextRequest is the JSON body for a context merge. Empty
// values delete their keys.
type UpdateContextRequest struct {
	Context map[string]string `json:"context"`
}

func (h *SessionHandler) updateContext(w http.ResponseWriter, r *http.Request) {
	var req UpdateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.Context) == 0 {
		writeError(w, http.StatusBadRequest, "empty_context", "context entries are required")
		return
	}

	id := r.PathValue("id")
	if err := h.sessions.UpdateContext(r.Context(), id, req.Context); h.handleSessionErr(w, err) {
		return
	}

	info, err := h.sessions.Get(r.Context(), id)
	if h.handleSessionErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete session", "error", err)
		writeError(w, http.StatusInternalServerError, "session_delete_failed", "session could not be deleted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionErr writes an error response when err is non-nil and
// reports whether it did.
func (h *SessionHandler) handleSessionErr(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist or has expired")
		return true
	default:
		h.logger.Error("session operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session_failed", "session operation failed")
		return true
	}
}
