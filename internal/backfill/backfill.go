// Package backfill fills in missing rule embeddings. Ingestion writes
// rules without vectors; this service finds them in stable batches,
// embeds a composite text per rule and writes the vector back. A rule
// whose embedding fails stays unembedded and is retried on a later run.
package backfill

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"

	"github.com/quantfolio/guidelines/internal/store"
)

// DefaultBatchSize is how many unembedded rules one fetch pulls.
const DefaultBatchSize = 50

// RecordSource is the slice of the record store backfill needs.
type RecordSource interface {
	FindRulesMissingEmbedding(ctx context.Context, limit int, docID, afterCollection, afterRule string) ([]store.Rule, error)
	CountRulesMissingEmbedding(ctx context.Context, docID string) (int, error)
	SetEmbedding(ctx context.Context, collectionID, ruleID string, vector []float32) error
}

// Report summarizes one backfill run.
type Report struct {
	// Embedded is the number of rules that received a vector.
	Embedded int `json:"embedded"`
	// Failed is the number of rules whose embedding call or vector
	// write failed; they remain unembedded.
	Failed int `json:"failed"`
	// Remaining is the number of rules still missing an embedding when
	// the run stopped.
	Remaining int `json:"remaining"`
}

// Service embeds rules that are missing vectors.
type Service struct {
	records   RecordSource
	embedder  ai.Embedder
	batchSize int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBatchSize overrides the fetch batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New creates a backfill Service. logger may be nil.
func New(records RecordSource, embedder ai.Embedder, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		records:   records,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run embeds every rule currently missing a vector, optionally scoped to
// one document. Failures are isolated per rule: one bad rule never
// aborts the run. Fetches paginate by keyset over the stable rule order,
// advancing past failed rules too, so a persistently failing rule never
// starves the rules behind it and the run always terminates.
func (s *Service) Run(ctx context.Context, docID string) (*Report, error) {
	report := &Report{}
	var afterCollection, afterRule string

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rules, err := s.records.FindRulesMissingEmbedding(ctx, s.batchSize, docID, afterCollection, afterRule)
		if err != nil {
			return report, fmt.Errorf("failed to fetch unembedded rules: %w", err)
		}
		if len(rules) == 0 {
			break
		}

		for _, r := range rules {
			afterCollection, afterRule = r.CollectionID, r.RuleID

			if err := s.embedRule(ctx, r); err != nil {
				s.logger.Warn("failed to embed rule",
					"collection_id", r.CollectionID, "rule_id", r.RuleID, "error", err)
				report.Failed++
				continue
			}
			report.Embedded++
		}
	}

	remaining, err := s.records.CountRulesMissingEmbedding(ctx, docID)
	if err != nil {
		return report, fmt.Errorf("failed to count remaining unembedded rules: %w", err)
	}
	report.Remaining = remaining

	s.logger.Info("backfill run complete",
		"embedded", report.Embedded, "failed", report.Failed,
		"remaining", report.Remaining, "doc_id", docID)
	return report, nil
}

// embedRule embeds one rule's composite text and persists the vector.
func (s *Service) embedRule(ctx context.Context, r store.Rule) error {
	dim := int32(store.VectorDimension)
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(CompositeText(r))}},
		},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return fmt.Errorf("embedding call failed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return fmt.Errorf("embedder returned no embeddings")
	}

	return s.records.SetEmbedding(ctx, r.CollectionID, r.RuleID, resp.Embeddings[0].Embedding)
}

// CompositeText builds the text that gets embedded for a rule. It folds
// the rule's hierarchy context into the text so that vectors capture
// where a rule lives, not just what it says. Blank fields embed as
// "N/A" to keep the template shape constant.
func CompositeText(r store.Rule) string {
	collection := r.CollectionName
	if collection == "" {
		collection = r.CollectionID
	}
	return fmt.Sprintf("Collection: %s; Part: %s; Section: %s; Subsection: %s; Guideline: %s",
		orNA(collection), orNA(r.Part), orNA(r.Section), orNA(r.Subsection), orNA(r.Body))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
