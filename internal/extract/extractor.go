package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quantfolio/guidelines/internal/llm"
)

// extractionPrompt instructs the model to analyze a policy document and
// emit a single JSON object. Extraction must be bound to the input
// document; the validity verdict gates everything downstream.
const extractionPrompt = `You are an expert in investment policy statement (IPS) analysis.
You will receive one policy document. Your output MUST be a single valid JSON object, nothing else.

STRICT INSTRUCTIONS
- Extraction must be 100% bound to the input document. Do not add, infer, or guess information from outside it.
- If the document is not a policy/guideline document, set "is_valid" to false and explain why in "validation_summary"; leave "guidelines" empty.
- Preserve hierarchy exactly (Part, Section, Subsection, Annexes, tables).
- Split compound guidelines into separate atomic rules.
- Preserve verbatim rule text; correct only obvious OCR typos.
- For table rows, put a plain human-readable sentence in "text" and the parsed fields in "structured".

Output object:
{
  "is_valid": bool,
  "validation_summary": string,
  "collection_id": string,      // stable slug for the policy owner, e.g. "fund-x"
  "collection_name": string,
  "doc_id": string,             // stable slug for this document
  "doc_name": string,
  "doc_date": string|null,      // effective date, YYYY-MM-DD
  "digest": string,             // short human-readable summary of the document
  "guidelines": [
    {
      "rule_id": string,        // e.g. "V-C-3-a"
      "part": string,
      "section": string,
      "subsection": string|null,
      "text": string,
      "page": int,
      "provenance": string,     // e.g. "Part V.C.3.a, page 8"
      "structured": object|null
    }
  ]
}`

// wireResult is the JSON payload the model emits.
type wireResult struct {
	IsValid           bool            `json:"is_valid"`
	ValidationSummary string          `json:"validation_summary"`
	CollectionID      string          `json:"collection_id"`
	CollectionName    string          `json:"collection_name"`
	DocID             string          `json:"doc_id"`
	DocName           string          `json:"doc_name"`
	DocDate           string          `json:"doc_date"`
	Digest            string          `json:"digest"`
	Guidelines        []ExtractedRule `json:"guidelines"`
}

// ModelExtractor implements Extractor on top of an llm.Provider.
type ModelExtractor struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewModelExtractor creates an extractor backed by the given provider.
func NewModelExtractor(provider llm.Provider, logger *slog.Logger) *ModelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelExtractor{provider: provider, logger: logger}
}

// Extract implements Extractor. Caller-supplied hints override the
// identities the model infers from the document.
func (e *ModelExtractor) Extract(ctx context.Context, documentBytes []byte, hints Hints) (*Result, error) {
	raw, err := e.provider.GenerateText(ctx, llm.Request{
		Prompt:      extractionPrompt,
		Blobs:       []llm.Blob{{MIMEType: "application/pdf", Data: documentBytes}},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	payload, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed extraction output: %w", err)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("failed to decode extraction output: %w", err)
	}

	result := &Result{
		IsValid:           wire.IsValid,
		ValidationSummary: wire.ValidationSummary,
		CollectionID:      wire.CollectionID,
		CollectionName:    wire.CollectionName,
		DocumentID:        wire.DocID,
		DocumentName:      wire.DocName,
		Digest:            wire.Digest,
		Rules:             wire.Guidelines,
	}

	if wire.DocDate != "" {
		if d, err := time.Parse("2006-01-02", wire.DocDate); err == nil {
			result.EffectiveDate = &d
		} else {
			e.logger.Warn("unparseable document date", "doc_date", wire.DocDate)
		}
	}

	applyHints(result, hints)
	fillRuleIDs(result)

	e.logger.Debug("extraction complete",
		"is_valid", result.IsValid,
		"collection_id", result.CollectionID,
		"doc_id", result.DocumentID,
		"rules", len(result.Rules))
	return result, nil
}

// applyHints overrides model-inferred identities with caller-supplied
// ones and fills sensible display-name defaults.
func applyHints(r *Result, h Hints) {
	if h.CollectionID != "" {
		r.CollectionID = h.CollectionID
	}
	if h.CollectionName != "" {
		r.CollectionName = h.CollectionName
	}
	if h.DocumentID != "" {
		r.DocumentID = h.DocumentID
	}
	if h.DocumentName != "" {
		r.DocumentName = h.DocumentName
	}

	if r.CollectionName == "" {
		r.CollectionName = r.CollectionID
	}
	if r.DocumentName == "" {
		r.DocumentName = r.DocumentID
	}
}

// fillRuleIDs assigns a stable derived key to any rule the model left
// unkeyed, and normalizes whitespace in keys it did emit.
func fillRuleIDs(r *Result) {
	for i := range r.Rules {
		rule := &r.Rules[i]
		rule.RuleID = strings.TrimSpace(rule.RuleID)
		if rule.RuleID == "" {
			rule.RuleID = RuleID(r.DocumentID, rule.Section, rule.Body)
		}
	}
}
