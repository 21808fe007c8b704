package importance

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/core/model"
)

// MockAccessor serves a fixed snapshot and records importance write-backs.
type MockAccessor struct {
	Snapshot *model.GraphSnapshot
	Err      error

	FetchCount   int
	Updated      []model.ImportanceScore
	UpdateErrFor map[string]error
}

func (m *MockAccessor) GetAllEntities(ctx context.Context, limit int) (*model.GraphSnapshot, error) {
	m.FetchCount++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Snapshot == nil {
		return &model.GraphSnapshot{}, nil
	}
	return m.Snapshot, nil
}

func (m *MockAccessor) GetSubgraph(ctx context.Context, nodeIDs []string) (*model.GraphSnapshot, error) {
	return m.GetAllEntities(ctx, 0)
}

func (m *MockAccessor) GetEntityIDsChangedSince(ctx context.Context, since time.Time) ([]string, error) {
	return nil, nil
}

func (m *MockAccessor) UpdateEntityImportance(ctx context.Context, score model.ImportanceScore, updatedAt time.Time) error {
	if err := m.UpdateErrFor[score.ID]; err != nil {
		return err
	}
	m.Updated = append(m.Updated, score)
	return nil
}
