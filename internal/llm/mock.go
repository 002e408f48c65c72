package llm

import (
	"context"
	"sync"
)

// Mock is an offline Provider for development and tests. Responses come
// from Respond when set, otherwise from the Response string, otherwise a
// fixed placeholder.
//
// Mock is safe for concurrent use.
type Mock struct {
	Response string
	Respond  func(req Request) (string, error)

	mu       sync.Mutex
	requests []Request
}

// Name implements Provider.
func (m *Mock) Name() string { return NameMock }

// GenerateText implements Provider.
func (m *Mock) GenerateText(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(req)
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return "mock response", nil
}

// Requests returns a copy of every request seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
