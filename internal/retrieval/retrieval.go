// Package retrieval answers "which rules matter for this question" over
// the record store. It supports pure vector search, pure text search,
// and a hybrid mode that backstops vector recall with substring matches.
//
// Ranking is deterministic: the same store state and query always yield
// the same ordered result, with rule keys breaking every tie.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"

	"github.com/quantfolio/guidelines/internal/store"
)

// Search modes.
const (
	ModeSemantic = "semantic"
	ModeText     = "text"
	ModeHybrid   = "hybrid"
)

// Defaults applied when a Request leaves fields zero.
const (
	DefaultTopK      = 8
	DefaultThreshold = 0.35
)

// ErrNoRelevantRules indicates the query matched nothing above the
// similarity threshold (and, in hybrid/text mode, no text hits either).
var ErrNoRelevantRules = errors.New("no relevant rules found")

// ErrUnknownMode indicates the requested search mode is not supported.
var ErrUnknownMode = errors.New("unknown search mode")

// Searcher is the slice of the record store retrieval needs.
type Searcher interface {
	SimilaritySearch(ctx context.Context, queryVector []float32, topK int, collectionID string) ([]store.SearchHit, error)
	TextSearch(ctx context.Context, queryText, collectionID string, limit int) ([]store.SearchHit, error)
}

// Request describes one retrieval call.
type Request struct {
	Query        string
	CollectionID string // empty searches all collections
	Mode         string // defaults to ModeHybrid
	TopK         int    // defaults to DefaultTopK
	Threshold    float64
	// thresholdSet distinguishes an explicit zero threshold from an
	// unset one; use WithThreshold to set it.
	thresholdSet bool
}

// WithThreshold returns a copy of the request with an explicit
// similarity threshold, including zero.
func (r Request) WithThreshold(t float64) Request {
	r.Threshold = t
	r.thresholdSet = true
	return r
}

// Hit is one retrieved rule with its ranking signals.
type Hit struct {
	Rule store.Rule `json:"rule"`
	// Similarity is the cosine similarity to the query, zero for hits
	// found only by text match.
	Similarity float64 `json:"similarity"`
	// TextMatches counts query occurrences in the rule body; zero for
	// hits found only by vector search.
	TextMatches int `json:"text_matches,omitempty"`
	// Source is "semantic" or "text", naming which search produced the
	// hit (semantic wins when both did).
	Source string `json:"source"`
}

// Engine runs retrieval queries.
type Engine struct {
	searcher  Searcher
	embedder  ai.Embedder
	threshold float64
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultThreshold overrides the similarity threshold applied to
// requests that do not set one.
func WithDefaultThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// New creates a retrieval Engine. logger may be nil.
func New(searcher Searcher, embedder ai.Embedder, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		searcher:  searcher,
		embedder:  embedder,
		threshold: DefaultThreshold,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs one retrieval request and returns at most TopK hits.
// Returns ErrNoRelevantRules when nothing qualifies.
func (e *Engine) Search(ctx context.Context, req Request) ([]Hit, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if req.Mode == "" {
		req.Mode = ModeHybrid
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	if !req.thresholdSet && req.Threshold == 0 {
		req.Threshold = e.threshold
	}

	var hits []Hit
	var err error
	switch req.Mode {
	case ModeSemantic:
		hits, err = e.semantic(ctx, req)
	case ModeText:
		hits, err = e.text(ctx, req)
	case ModeHybrid:
		hits, err = e.hybrid(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		return nil, fmt.Errorf("%w for query %q", ErrNoRelevantRules, req.Query)
	}
	if len(hits) > req.TopK {
		hits = hits[:req.TopK]
	}

	e.logger.Debug("retrieval complete",
		"mode", req.Mode, "collection_id", req.CollectionID, "hits", len(hits))
	return hits, nil
}

// semantic embeds the query and returns vector hits above the threshold,
// already ordered by the store (similarity desc, rule key asc).
func (e *Engine) semantic(ctx context.Context, req Request) ([]Hit, error) {
	vec, err := e.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	raw, err := e.searcher.SimilaritySearch(ctx, vec, req.TopK, req.CollectionID)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, h := range raw {
		if h.Similarity < req.Threshold {
			continue
		}
		hits = append(hits, Hit{Rule: h.Rule, Similarity: h.Similarity, Source: ModeSemantic})
	}
	return hits, nil
}

// text returns substring hits ranked by match count descending, rule key
// ascending.
func (e *Engine) text(ctx context.Context, req Request) ([]Hit, error) {
	raw, err := e.searcher.TextSearch(ctx, req.Query, req.CollectionID, req.TopK)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, Hit{
			Rule:        h.Rule,
			TextMatches: countMatches(h.Rule.Body, req.Query),
			Source:      ModeText,
		})
	}
	sortTextHits(hits)
	return hits, nil
}

// hybrid runs both searches and merges: semantic hits first in their
// store order, then text-only hits ranked by match count. A rule found
// by both keeps its semantic rank and similarity.
func (e *Engine) hybrid(ctx context.Context, req Request) ([]Hit, error) {
	semHits, err := e.semantic(ctx, req)
	if err != nil {
		return nil, err
	}

	textHits, err := e.text(ctx, req)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(semHits))
	for _, h := range semHits {
		seen[ruleKey(h.Rule)] = true
	}

	merged := semHits
	for _, h := range textHits {
		if seen[ruleKey(h.Rule)] {
			continue
		}
		merged = append(merged, h)
	}
	return merged, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	dim := int32(store.VectorDimension)
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("embedder returned no embeddings")
	}
	return resp.Embeddings[0].Embedding, nil
}

func sortTextHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].TextMatches != hits[j].TextMatches {
			return hits[i].TextMatches > hits[j].TextMatches
		}
		return ruleKey(hits[i].Rule) < ruleKey(hits[j].Rule)
	})
}

func countMatches(body, query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	return strings.Count(strings.ToLower(body), q)
}

func ruleKey(r store.Rule) string {
	return r.CollectionID + "/" + r.RuleID
}
