package query

import (
	"context"
	"sync"

	"github.com/graphweave/graphweave/internal/core/model"
)

// MockLLMClient returns a canned response, or delegates to Responder when
// set, and counts invocations.
type MockLLMClient struct {
	Response  string
	Err       error
	Responder func(prompt string) (string, error)

	mu    sync.Mutex
	calls int
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Responder != nil {
		return m.Responder(prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSummarySource serves a fixed summary set.
type MockSummarySource struct {
	Summaries map[string]*model.CommunitySummary
}

func (m *MockSummarySource) AvailableSummaries(ctx context.Context) map[string]*model.CommunitySummary {
	return m.Summaries
}
