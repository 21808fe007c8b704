package summary

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/core/community"
	"github.com/graphweave/graphweave/internal/core/model"
)

const mockSummaryJSON = `{"title": "Research Cluster", "summary": "A tightly knit group of researchers and their lab."}`

// twoTriangles: {A,B,C} and {D,E,F} joined by the bridge edge C-D.
func twoTriangles() *model.GraphSnapshot {
	return &model.GraphSnapshot{
		Nodes: []model.Entity{
			{ID: "A", Name: "Alice", Type: "Person"},
			{ID: "B", Name: "Bob", Type: "Person"},
			{ID: "C", Name: "Carol", Type: "Person"},
			{ID: "D", Name: "Delta Labs", Type: "Organization"},
			{ID: "E", Name: "Echo Corp", Type: "Organization"},
			{ID: "F", Name: "Foxtrot Inc", Type: "Organization"},
		},
		Edges: []model.Edge{
			{Source: "A", Target: "B", Type: "KNOWS"},
			{Source: "B", Target: "C", Type: "KNOWS"},
			{Source: "C", Target: "A", Type: "KNOWS"},
			{Source: "C", Target: "D", Type: "WORKS_AT"},
			{Source: "D", Target: "E", Type: "PARTNER_OF"},
			{Source: "E", Target: "F", Type: "PARTNER_OF"},
			{Source: "F", Target: "D", Type: "PARTNER_OF"},
		},
	}
}

func newTestPipeline(accessor *MockAccessor, llm *MockLLMClient, store *MockStore, cfg Config) *Pipeline {
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = time.Millisecond // keep tests fast
	}
	detector := community.NewDetector(accessor, community.Config{})
	return NewPipeline(detector, accessor, llm, store, config.SummaryPrompts{}, cfg)
}

func TestGenerateAllSummaries_EndToEnd(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	store := NewMockStore()
	p := newTestPipeline(accessor, llm, store, Config{MinCommunitySize: 2})

	result, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	require.Len(t, result.Summaries, 2)
	for id, s := range result.Summaries {
		assert.Equal(t, id, s.CommunityID)
		assert.Equal(t, 3, s.MemberCount)
		assert.Equal(t, "Research Cluster", s.Title)
		assert.False(t, s.Fallback)
		assert.Equal(t, 3, s.RelationshipCount, "each triangle keeps its three internal edges")
	}
	assert.Equal(t, 2, result.Metadata.Generated)
	assert.Equal(t, 2, llm.Calls())

	// Detection run and summaries were persisted.
	assert.Len(t, store.Runs, 1)
	assert.Len(t, store.Summaries, 2)
	assert.NotEmpty(t, result.Metadata.RunID)
}

func TestGenerateAllSummaries_FiltersSmallCommunities(t *testing.T) {
	snap := twoTriangles()
	snap.Nodes = append(snap.Nodes, model.Entity{ID: "Z", Name: "Zed", Type: "Person"})

	accessor := &MockAccessor{Snapshot: snap}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{MinCommunitySize: 2})

	result, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	assert.Len(t, result.Summaries, 2, "the singleton Z community is skipped")
	assert.Equal(t, 3, result.Metadata.CommunityCount)
}

func TestGenerateAllSummaries_FallbackOnCompletionFailure(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Err: assert.AnError}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{})

	result, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err, "completion failure must never fail summarization")

	require.Len(t, result.Summaries, 2)
	assert.Equal(t, 2, result.Metadata.Fallbacks)
	for _, s := range result.Summaries {
		assert.True(t, s.Fallback)
		assert.NotEmpty(t, s.Title)
		assert.NotEmpty(t, s.Summary)
		assert.Contains(t, s.Title, "Community")
		assert.LessOrEqual(t, len(s.KeyEntities), 5)
	}
}

func TestFallbackSummary_NamelessMembers(t *testing.T) {
	p := newTestPipeline(&MockAccessor{}, &MockLLMClient{}, NewMockStore(), Config{})

	c := model.Community{
		StableID:     "c-anon",
		Size:         2,
		Members:      []model.Member{{ID: "x1", Type: "Person"}, {ID: "x2", Type: "Person"}},
		TypeCounts:   map[string]int{"Person": 2},
		DominantType: "Person",
	}
	s := p.fallbackSummary(c, 1)

	assert.True(t, s.Fallback)
	assert.NotEmpty(t, s.Summary)
	assert.NotContains(t, s.Summary, "Key members", "no member list without member names")
	assert.Empty(t, s.KeyEntities)
}

func TestGenerateAllSummaries_FallbackOnMalformedJSON(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: "sorry, I cannot help with that"}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{})

	result, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	for _, s := range result.Summaries {
		assert.True(t, s.Fallback)
	}
}

func TestGenerateAllSummaries_PersistenceFailureIsNonFatal(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	store := NewMockStore()
	store.FailWrites = true
	p := newTestPipeline(accessor, llm, store, Config{})

	result, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err, "persistence is best-effort")
	assert.Len(t, result.Summaries, 2)
	assert.Empty(t, result.Metadata.RunID)
}

func TestSummaryCache_HitWithinTTL(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{CacheTTL: time.Minute})

	first, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, llm.Calls())

	second, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, llm.Calls(), "cached summaries must not re-invoke the completion client")
	assert.Equal(t, 2, second.Metadata.FromCache)
	for id, s := range second.Summaries {
		assert.Same(t, first.Summaries[id], s, "cache hit returns the identical object")
	}
}

func TestSummaryCache_ExpiryTriggersRegeneration(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{CacheTTL: 10 * time.Millisecond})

	_, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, llm.Calls())

	time.Sleep(20 * time.Millisecond)

	_, err = p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, llm.Calls(), "expired entries regenerate")
}

func TestSummaryCache_InsertionOrderEviction(t *testing.T) {
	cache := newSummaryCache(2, time.Minute)
	cache.Set("first", &model.CommunitySummary{CommunityID: "first"})
	cache.Set("second", &model.CommunitySummary{CommunityID: "second"})
	cache.Set("third", &model.CommunitySummary{CommunityID: "third"})

	_, ok := cache.Get("first")
	assert.False(t, ok, "oldest inserted entry is evicted")
	_, ok = cache.Get("second")
	assert.True(t, ok)
	_, ok = cache.Get("third")
	assert.True(t, ok)
}

func TestUpdateSummariesIncremental_SkipsWhenNothingChanged(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	store := NewMockStore()
	p := newTestPipeline(accessor, llm, store, Config{})

	_, err := p.GenerateAllSummaries(context.Background(), GenerateOptions{})
	require.NoError(t, err)
	callsAfterFull := llm.Calls()

	accessor.ChangedIDs = nil
	result, err := p.UpdateSummariesIncremental(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Metadata.Skipped)
	assert.Len(t, result.Summaries, 2)
	assert.Equal(t, callsAfterFull, llm.Calls(), "no regeneration on a no-op update")
}

func TestUpdateSummariesIncremental_FallsBackToFullRegeneration(t *testing.T) {
	// No persisted run: the incremental path errors internally and the
	// pipeline transparently runs a full generation instead.
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{})

	result, err := p.UpdateSummariesIncremental(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Summaries, 2)
	assert.False(t, result.Metadata.Skipped)
}

func TestGenerateSummariesForSubgraph_StableIDs(t *testing.T) {
	accessor := &MockAccessor{Snapshot: twoTriangles()}
	llm := &MockLLMClient{Response: mockSummaryJSON}
	p := newTestPipeline(accessor, llm, NewMockStore(), Config{})

	snap := twoTriangles()
	first := p.GenerateSummariesForSubgraph(context.Background(), snap.Nodes, snap.Edges)
	require.Len(t, first, 2)

	// Same member set presented in a different order: identical keys.
	reversed := make([]model.Entity, 0, len(snap.Nodes))
	for i := len(snap.Nodes) - 1; i >= 0; i-- {
		reversed = append(reversed, snap.Nodes[i])
	}
	second := p.GenerateSummariesForSubgraph(context.Background(), reversed, snap.Edges)
	require.Len(t, second, 2)

	for id := range first {
		_, ok := second[id]
		assert.True(t, ok, "stable id %s must persist across calls", id)
	}
}

func TestGenerateSummariesForSubgraph_EmptyInput(t *testing.T) {
	p := newTestPipeline(&MockAccessor{}, &MockLLMClient{Response: mockSummaryJSON}, NewMockStore(), Config{})

	result := p.GenerateSummariesForSubgraph(context.Background(), nil, nil)
	assert.Empty(t, result)
}

func TestCommunityEdges_MatchesByIDOrName(t *testing.T) {
	c := model.Community{
		Members: []model.Member{
			{ID: "A", Name: "Alice"},
			{ID: "B", Name: "Bob"},
		},
	}
	edges := []model.Edge{
		{Source: "A", Target: "B"},                                    // by id
		{Source: "Alice", Target: "Bob"},                              // ids carry names
		{Source: "A", Target: "x-9", TargetName: "Bob"},               // name rescue
		{Source: "A", Target: "C", TargetName: "Carol"},               // outsider
	}

	kept := communityEdges(c, edges)
	assert.Len(t, kept, 3)
}
