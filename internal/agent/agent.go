// Package agent orchestrates question answering: it resolves the
// conversation session, plans the search query, retrieves relevant
// rules, asks the summarizer for a grounded answer and records the
// exchange in the session.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantfolio/guidelines/internal/answer"
	"github.com/quantfolio/guidelines/internal/retrieval"
	"github.com/quantfolio/guidelines/internal/session"
)

// collectionKey is the session context key holding the collection a
// conversation is scoped to.
const collectionKey = "collection_id"

// Retriever is the slice of the retrieval engine the agent needs.
type Retriever interface {
	Search(ctx context.Context, req retrieval.Request) ([]retrieval.Hit, error)
}

// AskRequest is one question against the guideline store.
type AskRequest struct {
	// SessionID continues an existing conversation; empty starts a new
	// one.
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
	// CollectionID scopes retrieval; empty falls back to the session's
	// remembered collection, then to all collections.
	CollectionID string `json:"collection_id,omitempty"`
	Mode         string `json:"mode,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
}

// AskResponse is the agent's reply.
type AskResponse struct {
	SessionID string          `json:"session_id"`
	Answer    string          `json:"answer"`
	Hits      []retrieval.Hit `json:"hits,omitempty"`
	// Degraded is true when the summarizer failed and Answer fell back
	// to a plain listing of the retrieved rules.
	Degraded bool `json:"degraded,omitempty"`
}

// Agent answers questions over the guideline store.
type Agent struct {
	retriever  Retriever
	summarizer answer.Summarizer
	sessions   session.Backend
	planner    Planner
	logger     *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithPlanner adds a query-planning step ahead of retrieval. Without
// one, the raw question is the search query.
func WithPlanner(p Planner) Option {
	return func(a *Agent) { a.planner = p }
}

// New creates an Agent. logger may be nil.
func New(retriever Retriever, summarizer answer.Summarizer, sessions session.Backend, logger *slog.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Agent{
		retriever:  retriever,
		summarizer: summarizer,
		sessions:   sessions,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers one question. A question that matches no rules gets a
// plain "nothing found" answer, and a summarizer failure degrades to a
// rule listing; both still record the exchange, so only session and
// retrieval infrastructure failures surface as errors.
func (a *Agent) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	sessionID, sessionContext, err := a.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	collectionID := req.CollectionID
	if collectionID == "" {
		collectionID = sessionContext[collectionKey]
	}

	history, err := a.sessions.History(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	searchQuery, instruction, topK := a.plan(ctx, req, history)

	resp := &AskResponse{SessionID: sessionID}

	hits, err := a.retriever.Search(ctx, retrieval.Request{
		Query:        searchQuery,
		CollectionID: collectionID,
		Mode:         req.Mode,
		TopK:         topK,
	})
	switch {
	case errors.Is(err, retrieval.ErrNoRelevantRules):
		resp.Answer = "I could not find any guidelines relevant to your question."
	case err != nil:
		return nil, fmt.Errorf("retrieval failed: %w", err)
	default:
		resp.Hits = hits
		resp.Answer, resp.Degraded = a.summarize(ctx, req.Question, instruction, hits, history)
	}

	if err := a.recordExchange(ctx, sessionID, req.Question, resp.Answer); err != nil {
		return nil, err
	}
	if req.CollectionID != "" {
		if err := a.sessions.UpdateContext(ctx, sessionID, map[string]string{collectionKey: req.CollectionID}); err != nil {
			return nil, fmt.Errorf("failed to update session context: %w", err)
		}
	}

	a.logger.Info("answered question",
		"session_id", sessionID,
		"collection_id", collectionID,
		"hits", len(resp.Hits),
		"degraded", resp.Degraded)
	return resp, nil
}

// resolveSession returns the session to use, creating one when the
// request names none.
func (a *Agent) resolveSession(ctx context.Context, req AskRequest) (string, map[string]string, error) {
	if req.SessionID == "" {
		var initial map[string]string
		if req.CollectionID != "" {
			initial = map[string]string{collectionKey: req.CollectionID}
		}
		id, err := a.sessions.Create(ctx, initial)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create session: %w", err)
		}
		return id, initial, nil
	}

	info, err := a.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve session %q: %w", req.SessionID, err)
	}
	return info.ID, info.Context, nil
}

// plan runs the query planner when one is configured. Planning failures
// fall back to the raw question; an explicit request TopK always wins
// over the plan's suggestion.
func (a *Agent) plan(ctx context.Context, req AskRequest, history []session.Turn) (searchQuery, instruction string, topK int) {
	searchQuery, topK = req.Question, req.TopK
	if a.planner == nil {
		return searchQuery, "", topK
	}

	plan, err := a.planner.Plan(ctx, req.Question, history)
	if err != nil {
		a.logger.Warn("query planning failed, using raw question", "error", err)
		return searchQuery, "", topK
	}

	if plan.SearchQuery != "" {
		searchQuery = plan.SearchQuery
	}
	if topK == 0 {
		topK = plan.TopK
	}
	return searchQuery, plan.Instruction, topK
}

// summarize asks the model for a grounded answer, degrading to a plain
// rule listing when the model fails.
func (a *Agent) summarize(ctx context.Context, question, instruction string, hits []retrieval.Hit, history []session.Turn) (string, bool) {
	text, err := a.summarizer.Summarize(ctx, question, instruction, hits, history)
	if err == nil {
		return text, false
	}

	a.logger.Warn("summarizer failed, returning rule listing", "error", err)
	var b strings.Builder
	b.WriteString("I found these guidelines but could not generate a summary:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "- [%s] %s\n", h.Rule.RuleID, h.Rule.Body)
	}
	return b.String(), true
}

func (a *Agent) recordExchange(ctx context.Context, sessionID, question, reply string) error {
	if err := a.sessions.Append(ctx, sessionID, session.Turn{Role: "user", Content: question}); err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}
	if err := a.sessions.Append(ctx, sessionID, session.Turn{Role: "assistant", Content: reply}); err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}
