package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/quantfolio/guidelines/internal/agent"
	"github.com/quantfolio/guidelines/internal/session"
)

// AskHandler serves conversational question answering.
type AskHandler struct {
	asker  Asker
	logger *slog.Logger
}

// NewAskHandler creates an ask handler.
func NewAskHandler(asker Asker, logger *slog.Logger) *AskHandler {
	return &AskHandler{asker: asker, logger: logger}
}

// RegisterRoutes registers ask routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.ask)
}

func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req agent.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}

	resp, err := h.asker.Ask(r.Context(), req)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist or has expired")
		return
	case err != nil:
		h.logger.Error("ask failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ask_failed", "question could not be answered")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
