// Package graph exposes the knowledge-graph store to the core as a snapshot
// accessor. The core never sees Cypher or driver records; it gets plain
// node/edge value structs.
package graph

import (
	"context"
	"time"

	"github.com/graphweave/graphweave/internal/core/model"
)

// Accessor is the read (plus importance write-back) surface of the graph
// store. Implementations: the Memgraph service below, in-memory fixtures in
// tests.
type Accessor interface {
	// GetAllEntities returns the full node/edge listing. limit <= 0 means
	// no limit.
	GetAllEntities(ctx context.Context, limit int) (*model.GraphSnapshot, error)

	// GetSubgraph returns the induced subgraph over the given node ids:
	// only those nodes, and only edges with both endpoints among them.
	GetSubgraph(ctx context.Context, nodeIDs []string) (*model.GraphSnapshot, error)

	// GetEntityIDsChangedSince returns ids of entities created or updated
	// at or after the given instant.
	GetEntityIDsChangedSince(ctx context.Context, since time.Time) ([]string, error)

	// UpdateEntityImportance writes importance properties back onto one
	// entity node.
	UpdateEntityImportance(ctx context.Context, score model.ImportanceScore, updatedAt time.Time) error
}
