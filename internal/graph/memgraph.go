package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/graphweave/graphweave/internal/core/model"
	"github.com/graphweave/graphweave/internal/driver"
)

// DefaultEntityLimit bounds unqualified full-graph fetches.
const DefaultEntityLimit = 100000

// Service is the Memgraph-backed Accessor.
type Service struct {
	driver driver.GraphDriver
}

func NewService(d driver.GraphDriver) *Service {
	return &Service{driver: d}
}

func (s *Service) GetAllEntities(ctx context.Context, limit int) (*model.GraphSnapshot, error) {
	if limit <= 0 {
		limit = DefaultEntityLimit
	}

	nodeRes, err := s.driver.ExecuteQuery(ctx, driver.GetAllEntitiesQuery, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}

	edgeRes, err := s.driver.ExecuteQuery(ctx, driver.GetAllEdgesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch edges: %w", err)
	}

	return &model.GraphSnapshot{
		Nodes: recordsToEntities(nodeRes.Records),
		Edges: recordsToEdges(edgeRes.Records),
	}, nil
}

func (s *Service) GetSubgraph(ctx context.Context, nodeIDs []string) (*model.GraphSnapshot, error) {
	if len(nodeIDs) == 0 {
		return &model.GraphSnapshot{}, nil
	}

	params := map[string]interface{}{"ids": nodeIDs}

	nodeRes, err := s.driver.ExecuteQuery(ctx, driver.GetSubgraphNodesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subgraph nodes: %w", err)
	}

	edgeRes, err := s.driver.ExecuteQuery(ctx, driver.GetSubgraphEdgesQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subgraph edges: %w", err)
	}

	return &model.GraphSnapshot{
		Nodes: recordsToEntities(nodeRes.Records),
		Edges: recordsToEdges(edgeRes.Records),
	}, nil
}

func (s *Service) GetEntityIDsChangedSince(ctx context.Context, since time.Time) ([]string, error) {
	res, err := s.driver.ExecuteQuery(ctx, driver.GetChangedEntityIDsQuery, map[string]interface{}{
		"since": since.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changed entities: %w", err)
	}

	ids := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		if id := recordString(rec, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Service) UpdateEntityImportance(ctx context.Context, score model.ImportanceScore, updatedAt time.Time) error {
	_, err := s.driver.ExecuteQuery(ctx, driver.UpdateEntityImportanceQuery, map[string]interface{}{
		"id":         score.ID,
		"importance": score.Importance,
		"rank":       score.Rank,
		"percentile": score.Percentile,
		"updated_at": updatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to update importance for %s: %w", score.ID, err)
	}
	return nil
}

func recordsToEntities(records []*db.Record) []model.Entity {
	nodes := make([]model.Entity, 0, len(records))
	for _, rec := range records {
		node := model.Entity{
			ID:           recordString(rec, "id"),
			Name:         recordString(rec, "name"),
			Type:         recordString(rec, "type"),
			Description:  recordString(rec, "description"),
			Confidence:   recordFloat(rec, "confidence"),
			MentionCount: int(recordFloat(rec, "mention_count")),
		}
		if node.ID == "" {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func recordsToEdges(records []*db.Record) []model.Edge {
	edges := make([]model.Edge, 0, len(records))
	for _, rec := range records {
		edge := model.Edge{
			Source:     recordString(rec, "source"),
			Target:     recordString(rec, "target"),
			Type:       recordString(rec, "type"),
			SourceName: recordString(rec, "source_name"),
			TargetName: recordString(rec, "target_name"),
		}
		if edge.Source == "" || edge.Target == "" {
			continue
		}
		edges = append(edges, edge)
	}
	return edges
}

func recordString(rec *db.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordFloat(rec *db.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
