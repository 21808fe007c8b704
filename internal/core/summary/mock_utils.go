package summary

import (
	"context"
	"sync"
	"time"

	"github.com/graphweave/graphweave/internal/core/model"
)

// MockLLMClient returns a canned response and counts invocations.
type MockLLMClient struct {
	Response string
	Err      error

	mu    sync.Mutex
	calls int
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
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

// MockStore is an in-memory Store that can be forced to fail.
type MockStore struct {
	mu        sync.Mutex
	FailWrites bool

	Runs      []*model.DetectionRun
	Summaries map[string]*model.CommunitySummary
}

func NewMockStore() *MockStore {
	return &MockStore{Summaries: make(map[string]*model.CommunitySummary)}
}

func (m *MockStore) StoreDetectionRun(ctx context.Context, result *model.DetectionResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return "", errMockWrite
	}
	run := &model.DetectionRun{
		RunID:       "run-" + time.Now().Format("150405.000000000"),
		Result:      *result,
		PersistedAt: time.Now().UTC(),
	}
	m.Runs = append(m.Runs, run)
	return run.RunID, nil
}

func (m *MockStore) GetLatestDetectionRun(ctx context.Context) (*model.DetectionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Runs) == 0 {
		return nil, nil
	}
	return m.Runs[len(m.Runs)-1], nil
}

func (m *MockStore) GetCommunitiesByRunID(ctx context.Context, runID string) ([]model.Community, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.Runs {
		if run.RunID == runID {
			return run.Result.Communities, nil
		}
	}
	return nil, nil
}

func (m *MockStore) StoreSummary(ctx context.Context, communityID string, summary *model.CommunitySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errMockWrite
	}
	m.Summaries[communityID] = summary
	return nil
}

func (m *MockStore) StoreSummariesBatch(ctx context.Context, summaries map[string]*model.CommunitySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errMockWrite
	}
	for id, s := range summaries {
		m.Summaries[id] = s
	}
	return nil
}

func (m *MockStore) GetSummary(ctx context.Context, communityID string) (*model.CommunitySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Summaries[communityID], nil
}

func (m *MockStore) GetAllSummaries(ctx context.Context) (map[string]*model.CommunitySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.CommunitySummary, len(m.Summaries))
	for id, s := range m.Summaries {
		out[id] = s
	}
	return out, nil
}

func (m *MockStore) Close() error { return nil }

type mockWriteError struct{}

func (mockWriteError) Error() string { return "mock store: writes disabled" }

var errMockWrite = mockWriteError{}

// MockAccessor serves a fixed snapshot, mirroring the community package's
// test fixture.
type MockAccessor struct {
	Snapshot   *model.GraphSnapshot
	ChangedIDs []string
	Err        error
}

func (m *MockAccessor) GetAllEntities(ctx context.Context, limit int) (*model.GraphSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Snapshot == nil {
		return &model.GraphSnapshot{}, nil
	}
	return m.Snapshot, nil
}

func (m *MockAccessor) GetSubgraph(ctx context.Context, nodeIDs []string) (*model.GraphSnapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	keep := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		keep[id] = true
	}
	sub := &model.GraphSnapshot{}
	if m.Snapshot != nil {
		for _, n := range m.Snapshot.Nodes {
			if keep[n.ID] {
				sub.Nodes = append(sub.Nodes, n)
			}
		}
		for _, e := range m.Snapshot.Edges {
			if keep[e.Source] && keep[e.Target] {
				sub.Edges = append(sub.Edges, e)
			}
		}
	}
	return sub, nil
}

func (m *MockAccessor) GetEntityIDsChangedSince(ctx context.Context, since time.Time) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ChangedIDs, nil
}

func (m *MockAccessor) UpdateEntityImportance(ctx context.Context, score model.ImportanceScore, updatedAt time.Time) error {
	return nil
}
