package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quantfolio/guidelines/internal/llm"
	"github.com/quantfolio/guidelines/internal/log"
	"github.com/quantfolio/guidelines/internal/session"
)

func TestPlanParsesModelOutput(t *testing.T) {
	mock := &llm.Mock{Response: "```json\n" +
		`{"search_query": "issuer concentration limit", "summary_instruction": "State the limit.", "top_k": 5}` +
		"\n```"}
	p := NewModelPlanner(mock, log.NewNop())

	plan, err := p.Plan(context.Background(), "how much per issuer?", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.SearchQuery != "issuer concentration limit" || plan.Instruction != "State the limit." || plan.TopK != 5 {
		t.Errorf("plan = %+v", plan)
	}
}

func TestPlanIncludesHistoryForFollowUps(t *testing.T) {
	mock := &llm.Mock{Response: `{"search_query": "bond rating floor", "top_k": 4}`}
	p := NewModelPlanner(mock, log.NewNop())

	history := []session.Turn{
		{Role: "user", Content: "what is the minimum rating?"},
		{Role: "assistant", Content: "BBB [V-D-1]."},
	}
	if _, err := p.Plan(context.Background(), "and for bonds?", history); err != nil {
		t.Fatalf("Plan: %v", err)
	}

	prompt := mock.Requests()[0].Prompt
	for _, want := range []string{
		"user: what is the minimum rating?",
		"assistant: BBB [V-D-1].",
		"and for bonds?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
}

func TestPlanBlankQueryFallsBackToQuestion(t *testing.T) {
	mock := &llm.Mock{Response: `{"search_query": "  ", "top_k": 3}`}
	p := NewModelPlanner(mock, log.NewNop())

	plan, err := p.Plan(context.Background(), "issuer limits?", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.SearchQuery != "issuer limits?" {
		t.Errorf("SearchQuery = %q, want the raw question", plan.SearchQuery)
	}
}

func TestPlanNegativeTopKClamped(t *testing.T) {
	mock := &llm.Mock{Response: `{"search_query": "q", "top_k": -2}`}
	p := NewModelPlanner(mock, log.NewNop())

	plan, err := p.Plan(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.TopK != 0 {
		t.Errorf("TopK = %d, want 0", plan.TopK)
	}
}

func TestPlanMalformedOutput(t *testing.T) {
	mock := &llm.Mock{Response: "I cannot help with that."}
	p := NewModelPlanner(mock, log.NewNop())

	if _, err := p.Plan(context.Background(), "q", nil); err == nil {
		t.Error("expected error for output without a JSON object")
	}
}

func TestPlanProviderFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	mock := &llm.Mock{Respond: func(llm.Request) (string, error) { return "", boom }}
	p := NewModelPlanner(mock, log.NewNop())

	if _, err := p.Plan(context.Background(), "q", nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}
