package community

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/core/model"
)

// MockAccessor serves a fixed snapshot and changed-id list in place of the
// graph store.
type MockAccessor struct {
	Snapshot   *model.GraphSnapshot
	ChangedIDs []string
	Err        error

	UpdatedImportance []model.ImportanceScore
	UpdateErrFor      map[string]error
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
	if err := m.UpdateErrFor[score.ID]; err != nil {
		return err
	}
	m.UpdatedImportance = append(m.UpdatedImportance, score)
	return nil
}
