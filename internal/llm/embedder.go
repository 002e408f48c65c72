package llm

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder is an offline ai.Embedder for development without API
// credentials. Identical texts always get identical unit-length vectors,
// so similarity search behaves deterministically end to end.
type MockEmbedder struct {
	// Dimension of produced vectors; defaults to 768.
	Dimension int
}

// Name implements ai.Embedder.
func (e *MockEmbedder) Name() string { return "mock-embedder" }

// Register implements ai.Embedder; nothing to register.
func (e *MockEmbedder) Register(r api.Registry) {}

// Embed implements ai.Embedder.
func (e *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim := e.Dimension
	if dim == 0 {
		dim = 768
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := ""
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: hashVector(text, dim)})
	}
	return resp, nil
}

// hashVector folds character trigrams into a normalized vector, so
// lexically similar texts land closer together than unrelated ones.
func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if text == "" {
		vec[0] = 1
		return vec
	}

	bump := func(s string) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s))
		vec[h.Sum32()%uint32(dim)]++ // #nosec G115 -- dim is a small positive value
	}
	for i := 0; i+3 <= len(text); i++ {
		bump(text[i : i+3])
	}
	if len(text) < 3 {
		bump(text)
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
