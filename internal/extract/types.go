// Package extract defines the document-extraction collaborator contract
// and a generative-model-backed implementation of it.
//
// Extraction turns raw policy document bytes into a structured result:
// a validity verdict, identity hints for the owning collection and
// document, and zero or more extracted rules with provenance.
package extract

import (
	"context"
	"encoding/json"
	"time"
)

// ExtractedRule is one atomic policy statement pulled out of a document.
type ExtractedRule struct {
	RuleID         string          `json:"rule_id"`
	Part           string          `json:"part"`
	Section        string          `json:"section"`
	Subsection     string          `json:"subsection"`
	Body           string          `json:"text"`
	Page           int             `json:"page"`
	Provenance     string          `json:"provenance"`
	StructuredData json.RawMessage `json:"structured,omitempty"`
}

// Result is the outcome of one extraction call.
//
// IsValid=false is a normal outcome, not an error: the document was
// processed but rejected (e.g. not a policy document at all). In that
// case ValidationSummary explains why and Rules is empty.
type Result struct {
	IsValid           bool
	ValidationSummary string
	CollectionID      string
	CollectionName    string
	DocumentID        string
	DocumentName      string
	EffectiveDate     *time.Time
	Digest            string
	Rules             []ExtractedRule
}

// Hints carries caller-supplied identity overrides. Non-empty fields win
// over whatever the extractor infers from the document itself.
type Hints struct {
	CollectionID   string
	CollectionName string
	DocumentID     string
	DocumentName   string
}

// Extractor is the external collaborator that turns document bytes into
// a structured Result. Implementations must honor ctx deadlines; a
// timed-out extraction surfaces as an error, never a partial Result.
type Extractor interface {
	Extract(ctx context.Context, documentBytes []byte, hints Hints) (*Result, error)
}
