package store

import (
	"encoding/json"
	"time"
)

// VectorDimension is the fixed width of the rule.embedding column.
// Every stored vector must have exactly this many components; the
// embedder model is configured to truncate its output to match.
const VectorDimension = 768

// Collection is a named grouping of rules belonging to one policy owner
// (e.g. one fund). Created on first ingestion, never deleted automatically.
type Collection struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Document is one ingested source file's current, authoritative metadata.
// No history is kept: a second ingestion under the same ID fully
// supersedes the first.
type Document struct {
	ID            string
	CollectionID  string
	Name          string
	EffectiveDate *time.Time
	Digest        string
	IngestedAt    time.Time
}

// Rule is one extracted, atomic policy statement. Identity is the
// (CollectionID, RuleID) composite; DocID is denormalized for provenance
// and for replace-on-reingestion deletes.
//
// CollectionName is populated by read queries that join the collection
// table; it is never written.
type Rule struct {
	CollectionID   string
	RuleID         string
	DocID          string
	Part           string
	Section        string
	Subsection     string
	Body           string
	Page           int
	Provenance     string
	StructuredData json.RawMessage
	HasEmbedding   bool
	CollectionName string
}

// SearchHit is one similarity- or text-search result.
// Similarity is cosine similarity in [0,1] for vector hits and zero for
// plain text matches.
type SearchHit struct {
	Rule       Rule
	Similarity float64
}

// Stats reports store-level counts for operational visibility.
type Stats struct {
	Collections       int64 `json:"collections"`
	Documents         int64 `json:"documents"`
	Rules             int64 `json:"rules"`
	RulesMissingEmbed int64 `json:"rules_missing_embedding"`
}
