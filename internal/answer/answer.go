// Package answer turns retrieved rules plus conversation history into a
// grounded natural-language reply.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantfolio/guidelines/internal/llm"
	"github.com/quantfolio/guidelines/internal/retrieval"
	"github.com/quantfolio/guidelines/internal/session"
)

// Summarizer produces an answer grounded exclusively in the supplied
// rules. History gives conversational context for follow-up questions;
// instruction optionally tells the model how to frame the answer and
// may be empty.
type Summarizer interface {
	Summarize(ctx context.Context, question, instruction string, hits []retrieval.Hit, history []session.Turn) (string, error)
}

const summaryPreamble = `You are a compliance analyst answering questions about investment guidelines.
Answer the question using ONLY the guidelines listed below. Do not invent rules or cite anything not listed.
Cite each guideline you rely on by its reference in square brackets, e.g. [V-C-3].
If the guidelines do not cover the question, say so plainly.
Be concise and factual.`

// ModelSummarizer implements Summarizer on top of an llm.Provider.
type ModelSummarizer struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewModelSummarizer creates a model-backed summarizer. logger may be nil.
func NewModelSummarizer(provider llm.Provider, logger *slog.Logger) *ModelSummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSummarizer{provider: provider, logger: logger}
}

// Summarize implements Summarizer.
func (s *ModelSummarizer) Summarize(ctx context.Context, question, instruction string, hits []retrieval.Hit, history []session.Turn) (string, error) {
	if len(hits) == 0 {
		return "", fmt.Errorf("no rules to summarize")
	}

	text, err := s.provider.GenerateText(ctx, llm.Request{
		Prompt:      buildPrompt(question, instruction, hits, history),
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}

	s.logger.Debug("summarized answer", "rules", len(hits), "history_turns", len(history))
	return strings.TrimSpace(text), nil
}

func buildPrompt(question, instruction string, hits []retrieval.Hit, history []session.Turn) string {
	var b strings.Builder
	b.WriteString(summaryPreamble)
	b.WriteString("\n\nGUIDELINES\n")
	for _, h := range hits {
		ref := h.Rule.RuleID
		if h.Rule.Provenance != "" {
			ref = fmt.Sprintf("%s, %s", h.Rule.RuleID, h.Rule.Provenance)
		}
		fmt.Fprintf(&b, "[%s] %s\n", ref, h.Rule.Body)
	}

	if len(history) > 0 {
		b.WriteString("\nCONVERSATION SO FAR\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}

	if instruction != "" {
		fmt.Fprintf(&b, "\nINSTRUCTION\n%s\n", instruction)
	}

	fmt.Fprintf(&b, "\nQUESTION\n%s\n", question)
	return b.String()
}
