package testutil

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/quantfolio/guidelines/internal/llm"
)

// Embedder is a deterministic ai.Embedder for tests. Default vectors
// come from llm.MockEmbedder, so the same input text always produces
// the same unit-length vector and lexically similar texts land nearby,
// which is enough to exercise similarity ranking without a live model.
//
// Err, Dimension and Vectors allow tests to force failures, dimension
// mismatches, or fixed outputs per input text.
type Embedder struct {
	Err       error                // returned verbatim when set
	Dimension int                  // defaults to 768
	Vectors   map[string][]float32 // exact overrides keyed by input text

	Calls  int
	Inputs []string
}

// Name implements ai.Embedder.
func (e *Embedder) Name() string { return "test-embedder" }

// Register implements ai.Embedder; no-op for tests.
func (e *Embedder) Register(r api.Registry) {}

// Embed implements ai.Embedder.
func (e *Embedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}

	fallback := &llm.MockEmbedder{Dimension: e.Dimension}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := ""
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		e.Inputs = append(e.Inputs, text)

		if vec, ok := e.Vectors[text]; ok {
			resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
			continue
		}

		inner, err := fallback.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{{Content: []*ai.Part{ai.NewTextPart(text)}}},
		})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, inner.Embeddings[0])
	}
	return resp, nil
}
