package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantfolio/guidelines/internal/extract"
	"github.com/quantfolio/guidelines/internal/llm"
	"github.com/quantfolio/guidelines/internal/session"
)

// Plan is the retrieval strategy derived from a raw question.
type Plan struct {
	// SearchQuery is the question rewritten for retrieval: follow-up
	// references resolved against the conversation, filler stripped.
	SearchQuery string `json:"search_query"`
	// Instruction tells the summarizer how to frame the answer, e.g.
	// "compare the two limits the user asked about".
	Instruction string `json:"summary_instruction"`
	// TopK is the suggested result count; zero defers to the default.
	TopK int `json:"top_k"`
}

// Planner turns a question plus conversation history into a Plan.
type Planner interface {
	Plan(ctx context.Context, question string, history []session.Turn) (*Plan, error)
}

const plannerPrompt = `You are a query planner for an investment-guideline search engine.
Rewrite the user's question into a search query over guideline text. Resolve references
to the earlier conversation (e.g. "that limit", "what about bonds?") into a self-contained query.
Respond with a single JSON object and nothing else:
{"search_query": "...", "summary_instruction": "...", "top_k": <1-20>}
summary_instruction is one sentence telling an analyst how to frame the answer.`

// ModelPlanner implements Planner on top of an llm.Provider.
type ModelPlanner struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewModelPlanner creates a model-backed planner. logger may be nil.
func NewModelPlanner(provider llm.Provider, logger *slog.Logger) *ModelPlanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelPlanner{provider: provider, logger: logger}
}

// Plan implements Planner.
func (p *ModelPlanner) Plan(ctx context.Context, question string, history []session.Turn) (*Plan, error) {
	var b strings.Builder
	b.WriteString(plannerPrompt)
	if len(history) > 0 {
		b.WriteString("\n\nCONVERSATION SO FAR\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}
	fmt.Fprintf(&b, "\nQUESTION\n%s\n", question)

	text, err := p.provider.GenerateText(ctx, llm.Request{
		Prompt:      b.String(),
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("query planning failed: %w", err)
	}

	raw, err := extract.ExtractJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("unplannable model output: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("malformed plan: %w", err)
	}

	plan.SearchQuery = strings.TrimSpace(plan.SearchQuery)
	if plan.SearchQuery == "" {
		plan.SearchQuery = question
	}
	if plan.TopK < 0 {
		plan.TopK = 0
	}

	p.logger.Debug("planned query",
		"search_query", plan.SearchQuery, "top_k", plan.TopK)
	return &plan, nil
}
