// Package llm models generative AI providers as a capability interface.
//
// Components depend on Provider, never on a concrete vendor SDK, and the
// active provider is chosen from an explicit priority list at startup —
// there is no process-wide mutable provider state.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Provider identifiers accepted in the priority list.
const (
	NameGemini = "gemini"
	NameMock   = "mock"
)

// ErrNoProvider indicates no provider in the priority list could be
// initialized.
var ErrNoProvider = errors.New("no usable LLM provider")

// Blob is a binary attachment to a generation request (e.g. a PDF).
type Blob struct {
	MIMEType string
	Data     []byte
}

// Request is a single text-generation request.
type Request struct {
	Prompt      string
	Blobs       []Blob
	Temperature float32
}

// Provider generates text from a prompt plus optional binary attachments.
// Implementations must honor ctx cancellation and deadlines.
type Provider interface {
	Name() string
	GenerateText(ctx context.Context, req Request) (string, error)
}

// Select walks the priority list and returns the first provider that can
// be initialized. Gemini requires GEMINI_API_KEY; the mock provider is
// always available and is conventionally listed last as a fallback.
func Select(ctx context.Context, priority []string, model string, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, name := range priority {
		switch name {
		case NameGemini:
			if os.Getenv("GEMINI_API_KEY") == "" {
				logger.Debug("skipping gemini provider, GEMINI_API_KEY not set")
				continue
			}
			p, err := NewGemini(ctx, model)
			if err != nil {
				logger.Warn("gemini provider unavailable", "error", err)
				continue
			}
			logger.Info("selected LLM provider", "provider", NameGemini, "model", model)
			return p, nil
		case NameMock:
			logger.Info("selected LLM provider", "provider", NameMock)
			return &Mock{}, nil
		default:
			return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, name)
		}
	}
	return nil, fmt.Errorf("%w: tried %v", ErrNoProvider, priority)
}
