package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/core/model"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult() *model.DetectionResult {
	members := []model.Member{
		{ID: "a", Name: "A", Type: "Person"},
		{ID: "b", Name: "B", Type: "Person"},
	}
	return &model.DetectionResult{
		Communities: []model.Community{
			{
				ID:           0,
				StableID:     model.StableCommunityID(members),
				Size:         2,
				Members:      members,
				TypeCounts:   map[string]int{"Person": 2},
				DominantType: "Person",
			},
		},
		Modularity: 0.42,
		Metadata:   model.DetectionMetadata{NodeCount: 2, EdgeCount: 1, Resolution: 1.0},
	}
}

func TestDetectionRunRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.GetLatestDetectionRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store has no latest run")

	result := sampleResult()
	runID, err := store.StoreDetectionRun(ctx, result)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	latest, err = store.GetLatestDetectionRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, runID, latest.RunID)
	assert.Equal(t, result.Modularity, latest.Result.Modularity)
	assert.Equal(t, result.Communities, latest.Result.Communities)

	communities, err := store.GetCommunitiesByRunID(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, result.Communities, communities)
}

func TestLatestRunPointsToNewestRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreDetectionRun(ctx, sampleResult())
	require.NoError(t, err)

	second := sampleResult()
	second.Modularity = 0.9
	secondID, err := store.StoreDetectionRun(ctx, second)
	require.NoError(t, err)

	latest, err := store.GetLatestDetectionRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, secondID, latest.RunID)
	assert.Equal(t, 0.9, latest.Result.Modularity)
}

func TestSummaryRoundTripAndSupersede(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.GetSummary(ctx, "c-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	summary := &model.CommunitySummary{
		CommunityID:  "c-abc",
		Title:        "Research Group",
		Summary:      "A cluster of researchers.",
		MemberCount:  3,
		DominantType: "Person",
		GeneratedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.StoreSummary(ctx, summary.CommunityID, summary))

	got, err := store.GetSummary(ctx, "c-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Research Group", got.Title)

	// A regenerated summary supersedes the stored one.
	summary.Title = "Updated Research Group"
	require.NoError(t, store.StoreSummary(ctx, summary.CommunityID, summary))
	got, err = store.GetSummary(ctx, "c-abc")
	require.NoError(t, err)
	assert.Equal(t, "Updated Research Group", got.Title)
}

func TestStoreSummariesBatchAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := map[string]*model.CommunitySummary{
		"c-1": {CommunityID: "c-1", Title: "One", Summary: "first"},
		"c-2": {CommunityID: "c-2", Title: "Two", Summary: "second"},
	}
	require.NoError(t, store.StoreSummariesBatch(ctx, batch))

	all, err := store.GetAllSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "One", all["c-1"].Title)
	assert.Equal(t, "Two", all["c-2"].Title)
}
