package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/quantfolio/guidelines/internal/log"
)

func TestSelectFallsBackToMock(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	p, err := Select(context.Background(), []string{NameGemini, NameMock}, "gemini-2.5-flash", log.NewNop())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p.Name() != NameMock {
		t.Errorf("provider = %s, want mock", p.Name())
	}
}

func TestSelectUnknownProvider(t *testing.T) {
	_, err := Select(context.Background(), []string{"claude"}, "m", log.NewNop())
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestSelectEmptyList(t *testing.T) {
	_, err := Select(context.Background(), nil, "m", log.NewNop())
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestMockRecordsRequests(t *testing.T) {
	m := &Mock{Response: "hello"}

	got, err := m.GenerateText(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "hello" {
		t.Errorf("response = %q", got)
	}
	if reqs := m.Requests(); len(reqs) != 1 || reqs[0].Prompt != "hi" {
		t.Errorf("requests = %+v", m.Requests())
	}
}

func TestMockHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Mock{}
	if _, err := m.GenerateText(ctx, Request{Prompt: "hi"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
