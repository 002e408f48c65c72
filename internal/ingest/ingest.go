// Package ingest coordinates the document ingestion pipeline: extraction
// of structured rules from raw document bytes, followed by a durable
// replace-on-reingestion write into the record store.
//
// Ingesting the same document twice never duplicates rules: the new rule
// set supersedes the old one wholesale, and superseded rules (including
// any the new extraction no longer produces) disappear.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfolio/guidelines/internal/extract"
	"github.com/quantfolio/guidelines/internal/store"
)

// ErrValidationRejected indicates the extractor processed the document
// but judged it not to be a policy document. Nothing was written.
var ErrValidationRejected = errors.New("document rejected by validation")

// ErrNoIdentity indicates extraction produced no collection or document
// identity and the caller supplied none. Nothing was written.
var ErrNoIdentity = errors.New("document identity could not be determined")

// DefaultExtractTimeout bounds a single extraction call.
const DefaultExtractTimeout = 120 * time.Second

// RecordWriter is the slice of the record store ingestion needs.
type RecordWriter interface {
	GetDocument(ctx context.Context, docID string) (*store.Document, error)
	UpsertCollection(ctx context.Context, id, name string) error
	UpsertDocument(ctx context.Context, doc store.Document) error
	ReplaceRulesForDocument(ctx context.Context, docID, collectionID string, rules []store.Rule) error
}

// Result reports the outcome of a successful ingestion.
type Result struct {
	CollectionID string `json:"collection_id"`
	DocumentID   string `json:"doc_id"`
	RuleCount    int    `json:"rule_count"`
	// Reingested is true when the document existed before this call and
	// its previous rule set was replaced.
	Reingested bool `json:"reingested"`
	// EmbedDeferred is always true: rules land without embeddings and
	// the backfill worker fills them in later.
	EmbedDeferred bool `json:"embed_deferred"`
}

// Coordinator runs the ingestion pipeline.
type Coordinator struct {
	extractor      extract.Extractor
	writer         RecordWriter
	extractTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExtractTimeout overrides the per-document extraction deadline.
func WithExtractTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.extractTimeout = d
		}
	}
}

// New creates an ingestion Coordinator. logger may be nil.
func New(extractor extract.Extractor, writer RecordWriter, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		extractor:      extractor,
		writer:         writer,
		extractTimeout: DefaultExtractTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest runs extraction over documentBytes and persists the result.
//
// A rejected document returns ErrValidationRejected with the extractor's
// summary attached; this is a normal outcome and leaves the store
// untouched. Extraction or storage failures also leave the previous
// state of the document (if any) fully intact.
func (c *Coordinator) Ingest(ctx context.Context, documentBytes []byte, hints extract.Hints) (*Result, error) {
	extractCtx, cancel := context.WithTimeout(ctx, c.extractTimeout)
	defer cancel()

	res, err := c.extractor.Extract(extractCtx, documentBytes, hints)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	if !res.IsValid {
		c.logger.Info("document rejected", "reason", res.ValidationSummary)
		return nil, fmt.Errorf("%w: %s", ErrValidationRejected, res.ValidationSummary)
	}
	if res.CollectionID == "" || res.DocumentID == "" {
		return nil, ErrNoIdentity
	}

	existing, err := c.writer.GetDocument(ctx, res.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for prior ingestion: %w", err)
	}

	if err := c.writer.UpsertCollection(ctx, res.CollectionID, res.CollectionName); err != nil {
		return nil, err
	}
	if err := c.writer.UpsertDocument(ctx, store.Document{
		ID:            res.DocumentID,
		CollectionID:  res.CollectionID,
		Name:          res.DocumentName,
		EffectiveDate: res.EffectiveDate,
		Digest:        res.Digest,
	}); err != nil {
		return nil, err
	}

	rules := toStoreRules(res)
	if err := c.writer.ReplaceRulesForDocument(ctx, res.DocumentID, res.CollectionID, rules); err != nil {
		return nil, err
	}

	c.logger.Info("ingested document",
		"collection_id", res.CollectionID,
		"doc_id", res.DocumentID,
		"rules", len(rules),
		"reingested", existing != nil)

	return &Result{
		CollectionID:  res.CollectionID,
		DocumentID:    res.DocumentID,
		RuleCount:     len(rules),
		Reingested:    existing != nil,
		EmbedDeferred: true,
	}, nil
}

func toStoreRules(res *extract.Result) []store.Rule {
	rules := make([]store.Rule, 0, len(res.Rules))
	for _, r := range res.Rules {
		rules = append(rules, store.Rule{
			CollectionID:   res.CollectionID,
			RuleID:         r.RuleID,
			DocID:          res.DocumentID,
			Part:           r.Part,
			Section:        r.Section,
			Subsection:     r.Subsection,
			Body:           r.Body,
			Page:           r.Page,
			Provenance:     r.Provenance,
			StructuredData: r.StructuredData,
		})
	}
	return rules
}
