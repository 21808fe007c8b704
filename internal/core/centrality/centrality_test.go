package centrality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/core/model"
)

func snapshotFromEdges(nodeIDs []string, pairs [][2]string) *model.GraphSnapshot {
	snap := &model.GraphSnapshot{}
	for _, id := range nodeIDs {
		snap.Nodes = append(snap.Nodes, model.Entity{ID: id, Name: id})
	}
	for _, p := range pairs {
		snap.Edges = append(snap.Edges, model.Edge{Source: p[0], Target: p[1]})
	}
	return snap
}

func TestPageRank_EmptyGraph(t *testing.T) {
	result, err := PageRank(context.Background(), &model.GraphSnapshot{}, DefaultPageRankConfig())
	require.NoError(t, err)
	assert.Empty(t, result.Scores)
	assert.True(t, result.Converged)
}

func TestPageRank_CycleIsUniform(t *testing.T) {
	// Directed 4-cycle: every node has identical in/out structure.
	snap := snapshotFromEdges(
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}},
	)

	result, err := PageRank(context.Background(), snap, DefaultPageRankConfig())
	require.NoError(t, err)
	assert.True(t, result.Converged)
	for id, score := range result.Scores {
		assert.InDelta(t, 0.25, score, 1e-6, "node %s", id)
	}
}

func TestPageRank_HubOutranksLeaves(t *testing.T) {
	// Everything points at "hub".
	snap := snapshotFromEdges(
		[]string{"hub", "x", "y", "z"},
		[][2]string{{"x", "hub"}, {"y", "hub"}, {"z", "hub"}},
	)

	result, err := PageRank(context.Background(), snap, DefaultPageRankConfig())
	require.NoError(t, err)
	for _, leaf := range []string{"x", "y", "z"} {
		assert.Greater(t, result.Scores["hub"], result.Scores[leaf])
	}
}

func TestBetweenness_StarCenterDominates(t *testing.T) {
	snap := snapshotFromEdges(
		[]string{"center", "a", "b", "c", "d"},
		[][2]string{{"center", "a"}, {"center", "b"}, {"center", "c"}, {"center", "d"}},
	)

	result, err := Betweenness(context.Background(), snap, BetweennessConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.Scores["center"])
	for _, leaf := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, 0.0, result.Scores[leaf])
	}
}

func TestBetweenness_PathMiddleHighest(t *testing.T) {
	// a - b - c: b sits on the only a..c shortest path.
	snap := snapshotFromEdges(
		[]string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "c"}},
	)

	result, err := Betweenness(context.Background(), snap, BetweennessConfig{})
	require.NoError(t, err)
	assert.Greater(t, result.Scores["b"], result.Scores["a"])
	assert.Greater(t, result.Scores["b"], result.Scores["c"])
}

func TestBetweenness_EmptyGraph(t *testing.T) {
	result, err := Betweenness(context.Background(), &model.GraphSnapshot{}, BetweennessConfig{})
	require.NoError(t, err)
	assert.Empty(t, result.Scores)
}
