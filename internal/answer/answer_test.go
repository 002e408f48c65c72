package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quantfolio/guidelines/internal/llm"
	"github.com/quantfolio/guidelines/internal/log"
	"github.com/quantfolio/guidelines/internal/retrieval"
	"github.com/quantfolio/guidelines/internal/session"
	"github.com/quantfolio/guidelines/internal/store"
)

func hits() []retrieval.Hit {
	return []retrieval.Hit{
		{Rule: store.Rule{RuleID: "V-C-3", Body: "Max 5% per issuer.", Provenance: "Part V.C.3, page 8"}},
		{Rule: store.Rule{RuleID: "V-C-4", Body: "Hedging only."}},
	}
}

func TestSummarizePromptContents(t *testing.T) {
	mock := &llm.Mock{Response: "The limit is 5% per issuer [V-C-3]."}
	s := NewModelSummarizer(mock, log.NewNop())

	history := []session.Turn{
		{Role: "user", Content: "what about derivatives?"},
		{Role: "assistant", Content: "Hedging only [V-C-4]."},
	}
	got, err := s.Summarize(context.Background(), "And issuer limits?", "", hits(), history)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "The limit is 5% per issuer [V-C-3]." {
		t.Errorf("answer = %q", got)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider calls = %d", len(reqs))
	}
	prompt := reqs[0].Prompt
	for _, want := range []string{
		"[V-C-3, Part V.C.3, page 8] Max 5% per issuer.",
		"[V-C-4] Hedging only.",
		"user: what about derivatives?",
		"And issuer limits?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
}

func TestSummarizeNoHistory(t *testing.T) {
	mock := &llm.Mock{Response: "Answer."}
	s := NewModelSummarizer(mock, log.NewNop())

	if _, err := s.Summarize(context.Background(), "q", "", hits(), nil); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	prompt := mock.Requests()[0].Prompt
	if strings.Contains(prompt, "CONVERSATION SO FAR") {
		t.Error("empty history should not add a conversation section")
	}
	if strings.Contains(prompt, "INSTRUCTION") {
		t.Error("empty instruction should not add an instruction section")
	}
}

func TestSummarizeWithInstruction(t *testing.T) {
	mock := &llm.Mock{Response: "Answer."}
	s := NewModelSummarizer(mock, log.NewNop())

	if _, err := s.Summarize(context.Background(), "q", "Compare the two limits.", hits(), nil); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !strings.Contains(mock.Requests()[0].Prompt, "INSTRUCTION\nCompare the two limits.") {
		t.Errorf("prompt missing instruction section:\n%s", mock.Requests()[0].Prompt)
	}
}

func TestSummarizeNoRules(t *testing.T) {
	s := NewModelSummarizer(&llm.Mock{}, log.NewNop())
	if _, err := s.Summarize(context.Background(), "q", "", nil, nil); err == nil {
		t.Error("expected error with no rules")
	}
}

func TestSummarizeProviderFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	mock := &llm.Mock{Respond: func(llm.Request) (string, error) { return "", boom }}
	s := NewModelSummarizer(mock, log.NewNop())

	if _, err := s.Summarize(context.Background(), "q", "", hits(), nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}

func TestSummarizeEmptyModelOutput(t *testing.T) {
	mock := &llm.Mock{Respond: func(llm.Request) (string, error) { return "   ", nil }}
	s := NewModelSummarizer(mock, log.NewNop())

	if _, err := s.Summarize(context.Background(), "q", "", hits(), nil); err == nil {
		t.Error("expected error for blank model output")
	}
}
