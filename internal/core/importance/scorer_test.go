package importance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/core/model"
)

func starSnapshot() *model.GraphSnapshot {
	return &model.GraphSnapshot{
		Nodes: []model.Entity{
			{ID: "hub", Name: "Hub", Type: "Organization", MentionCount: 10},
			{ID: "a", Name: "A", Type: "Person", MentionCount: 1},
			{ID: "b", Name: "B", Type: "Person", MentionCount: 2},
			{ID: "c", Name: "C", Type: "Person", MentionCount: 3},
		},
		Edges: []model.Edge{
			{Source: "a", Target: "hub"},
			{Source: "b", Target: "hub"},
			{Source: "c", Target: "hub"},
			{Source: "hub", Target: "a"},
		},
	}
}

func TestNormalizeScores_Idempotent(t *testing.T) {
	scores := map[string]float64{"a": 0.0, "b": 0.25, "c": 1.0}
	normalized := NormalizeScores(scores)

	for id, v := range scores {
		assert.InDelta(t, v, normalized[id], 1e-12)
	}
}

func TestNormalizeScores_AllEqual(t *testing.T) {
	normalized := NormalizeScores(map[string]float64{"a": 7, "b": 7, "c": 7})
	for id, v := range normalized {
		assert.Equal(t, 0.5, v, "id %s", id)
	}
}

func TestNormalizeScores_Empty(t *testing.T) {
	assert.Empty(t, NormalizeScores(map[string]float64{}))
}

func TestCalculateImportance_CompositeIsWeightedSum(t *testing.T) {
	scorer := NewScorer(&MockAccessor{Snapshot: starSnapshot()}, Config{CacheTTL: time.Minute})

	noRenorm := false
	result, err := scorer.CalculateImportance(context.Background(), Options{Normalize: &noRenorm})
	require.NoError(t, err)

	weights := model.DefaultWeights()
	for _, entry := range result.RankedEntities {
		expected := weights.PageRank*entry.Components.PageRank +
			weights.Betweenness*entry.Components.Betweenness +
			weights.MentionFrequency*entry.Components.MentionFrequency
		assert.InDelta(t, expected, entry.Importance, 1e-12, "entity %s", entry.ID)
	}
}

func TestCalculateImportance_RanksAndPercentiles(t *testing.T) {
	scorer := NewScorer(&MockAccessor{Snapshot: starSnapshot()}, Config{CacheTTL: time.Minute})

	result, err := scorer.CalculateImportance(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, result.RankedEntities, 4)

	// Hub dominates every component on this fixture.
	assert.Equal(t, "hub", result.RankedEntities[0].ID)
	assert.Equal(t, 1, result.RankedEntities[0].Rank)
	assert.Equal(t, 75.0, result.RankedEntities[0].Percentile)
	assert.Equal(t, 0.0, result.RankedEntities[3].Percentile)

	for i := 1; i < len(result.RankedEntities); i++ {
		assert.GreaterOrEqual(t,
			result.RankedEntities[i-1].Importance,
			result.RankedEntities[i].Importance)
	}
}

func TestCalculateImportance_WeightOverrideChangesRanking(t *testing.T) {
	// b and c differ only in mention count; zeroing the mention weight and
	// everything except betweenness collapses them to a tie broken by id,
	// while a mention-only blend must put c above b.
	snapshot := starSnapshot()

	mentionOnly := &model.Weights{MentionFrequency: 1}
	scorer := NewScorer(&MockAccessor{Snapshot: snapshot}, Config{CacheTTL: time.Minute})
	result, err := scorer.CalculateImportance(context.Background(), Options{Weights: mentionOnly})
	require.NoError(t, err)

	position := make(map[string]int)
	for _, entry := range result.RankedEntities {
		position[entry.ID] = entry.Rank
	}
	assert.Less(t, position["c"], position["b"])
	assert.Less(t, position["b"], position["a"])
}

func TestNewScorer_ConfiguredWeightsAreTheDefault(t *testing.T) {
	// Weights supplied at construction time must shape every call that
	// carries no per-call override, exactly like an explicit Options blend.
	mentionOnly := &model.Weights{MentionFrequency: 1}
	scorer := NewScorer(&MockAccessor{Snapshot: starSnapshot()}, Config{
		CacheTTL: time.Minute,
		Weights:  mentionOnly,
	})

	result, err := scorer.CalculateImportance(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, *mentionOnly, result.Metadata.Weights)

	position := make(map[string]int)
	for _, entry := range result.RankedEntities {
		position[entry.ID] = entry.Rank
	}
	assert.Less(t, position["c"], position["b"])
	assert.Less(t, position["b"], position["a"])
}

func TestCalculateImportance_CacheAndForceRefresh(t *testing.T) {
	accessor := &MockAccessor{Snapshot: starSnapshot()}
	scorer := NewScorer(accessor, Config{CacheTTL: time.Minute})

	_, err := scorer.CalculateImportance(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, accessor.FetchCount)

	cached, err := scorer.CalculateImportance(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, accessor.FetchCount, "second call must be served from cache")
	assert.True(t, cached.Metadata.FromCache)

	fresh, err := scorer.CalculateImportance(context.Background(), Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, accessor.FetchCount)
	assert.False(t, fresh.Metadata.FromCache)
}

func TestCalculateImportance_EmptyGraph(t *testing.T) {
	scorer := NewScorer(&MockAccessor{}, Config{CacheTTL: time.Minute})

	result, err := scorer.CalculateImportance(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Scores)
	assert.Empty(t, result.RankedEntities)
}

func TestUpdateEntityImportanceScores_BestEffort(t *testing.T) {
	accessor := &MockAccessor{
		Snapshot:     starSnapshot(),
		UpdateErrFor: map[string]error{"b": assert.AnError},
	}
	scorer := NewScorer(accessor, Config{CacheTTL: time.Minute})

	result, err := scorer.UpdateEntityImportanceScores(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, accessor.Updated, 3)
}
