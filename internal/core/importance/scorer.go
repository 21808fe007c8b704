// Package importance computes composite entity-importance scores from
// PageRank, betweenness centrality, and mention frequency.
package importance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/internal/core/centrality"
	"github.com/graphweave/graphweave/internal/core/model"
	"github.com/graphweave/graphweave/internal/graph"
)

// DefaultCacheTTL is how long a full scoring result is served from cache.
const DefaultCacheTTL = 5 * time.Minute

// Options tunes a single scoring call.
type Options struct {
	// Weights overrides the component blend for this call. Nil uses the
	// scorer's configured defaults.
	Weights *model.Weights

	// Normalize re-normalizes the composite to [0,1]. Default true, so the
	// zero value of Options must not disable it; see withDefaults.
	Normalize *bool

	// ForceRefresh bypasses the result cache.
	ForceRefresh bool
}

// Config tunes the scorer. Zero values fall back to defaults.
type Config struct {
	// CacheTTL is how long a full scoring result is served from cache.
	CacheTTL time.Duration

	// Weights is the component blend applied when a call carries no
	// override. Nil uses model.DefaultWeights.
	Weights *model.Weights
}

// Scorer computes and caches importance scores over the full graph.
type Scorer struct {
	graph    graph.Accessor
	cacheTTL time.Duration
	defaults model.Weights

	mu       sync.Mutex
	cached   *model.ImportanceResult
	cachedAt time.Time
}

func NewScorer(accessor graph.Accessor, cfg Config) *Scorer {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	defaults := model.DefaultWeights()
	if cfg.Weights != nil {
		defaults = *cfg.Weights
	}
	return &Scorer{graph: accessor, cacheTTL: cfg.CacheTTL, defaults: defaults}
}

// CalculateImportance runs PageRank and betweenness concurrently over the
// full graph, blends them with mention frequency, and ranks every entity.
// The whole result is recomputed each call unless a cached one is fresh.
func (s *Scorer) CalculateImportance(ctx context.Context, opts Options) (*model.ImportanceResult, error) {
	weights, normalize := opts.withDefaults(s.defaults)

	if !opts.ForceRefresh {
		s.mu.Lock()
		if s.cached != nil && time.Since(s.cachedAt) < s.cacheTTL {
			cached := *s.cached
			cached.Metadata.FromCache = true
			s.mu.Unlock()
			return &cached, nil
		}
		s.mu.Unlock()
	}

	start := time.Now()
	snapshot, err := s.graph.GetAllEntities(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph for importance scoring: %w", err)
	}

	if len(snapshot.Nodes) == 0 {
		return &model.ImportanceResult{
			Scores:         map[string]float64{},
			RankedEntities: []model.ImportanceScore{},
			Metadata: model.ImportanceMetadata{
				Weights:      weights,
				Normalized:   normalize,
				CalculatedAt: time.Now().UTC(),
			},
		}, nil
	}

	var prScores, bcScores map[string]float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := centrality.PageRank(gctx, snapshot, centrality.DefaultPageRankConfig())
		if err != nil {
			return fmt.Errorf("pagerank failed: %w", err)
		}
		prScores = result.Scores
		return nil
	})
	g.Go(func() error {
		result, err := centrality.Betweenness(gctx, snapshot, centrality.BetweennessConfig{})
		if err != nil {
			return fmt.Errorf("betweenness failed: %w", err)
		}
		bcScores = result.Scores
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mfScores := make(map[string]float64, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		mentions := node.MentionCount
		if mentions <= 0 {
			mentions = 1
		}
		mfScores[node.ID] = float64(mentions)
	}

	pr := NormalizeScores(prScores)
	bc := NormalizeScores(bcScores)
	mf := NormalizeScores(mfScores)

	composite := make(map[string]float64, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		composite[node.ID] = weights.PageRank*pr[node.ID] +
			weights.Betweenness*bc[node.ID] +
			weights.MentionFrequency*mf[node.ID]
	}
	if normalize {
		composite = NormalizeScores(composite)
	}

	ranked := make([]model.ImportanceScore, 0, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		ranked = append(ranked, model.ImportanceScore{
			ID:         node.ID,
			Name:       node.Name,
			Type:       node.Type,
			Importance: composite[node.ID],
			Components: model.ImportanceComponents{
				PageRank:         pr[node.ID],
				Betweenness:      bc[node.ID],
				MentionFrequency: mf[node.ID],
			},
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Importance != ranked[j].Importance {
			return ranked[i].Importance > ranked[j].Importance
		}
		return ranked[i].ID < ranked[j].ID
	})

	n := len(ranked)
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Percentile = float64(n-ranked[i].Rank) / float64(n) * 100
	}

	result := &model.ImportanceResult{
		Scores:         composite,
		RankedEntities: ranked,
		Metadata: model.ImportanceMetadata{
			NodeCount:    n,
			Weights:      weights,
			Normalized:   normalize,
			Duration:     time.Since(start),
			CalculatedAt: time.Now().UTC(),
		},
	}

	s.mu.Lock()
	s.cached = result
	s.cachedAt = time.Now()
	s.mu.Unlock()

	slog.Info("importance: scoring complete", "nodes", n, "duration", result.Metadata.Duration)
	return result, nil
}

// UpdateResult reports the write-back outcome.
type UpdateResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// UpdateEntityImportanceScores writes importance, rank, and percentile back
// onto every graph node. Best-effort: single-node failures are counted, not
// propagated.
func (s *Scorer) UpdateEntityImportanceScores(ctx context.Context) (*UpdateResult, error) {
	result, err := s.CalculateImportance(ctx, Options{})
	if err != nil {
		return nil, err
	}

	updatedAt := time.Now().UTC()
	out := &UpdateResult{}
	for _, score := range result.RankedEntities {
		if err := s.graph.UpdateEntityImportance(ctx, score, updatedAt); err != nil {
			slog.Warn("importance: failed to update entity", "id", score.ID, "error", err)
			out.Failed++
			continue
		}
		out.Updated++
	}

	slog.Info("importance: write-back complete", "updated", out.Updated, "failed", out.Failed)
	return out, nil
}

// NormalizeScores min-max normalizes a score map to [0,1]. When every value
// is identical there is no spread to scale by, so everything maps to 0.5.
func NormalizeScores(scores map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	first := true
	var min, max float64
	for _, v := range scores {
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		for id := range scores {
			out[id] = 0.5
		}
		return out
	}

	span := max - min
	for id, v := range scores {
		out[id] = (v - min) / span
	}
	return out
}

func (o Options) withDefaults(base model.Weights) (model.Weights, bool) {
	weights := base
	if o.Weights != nil {
		weights = *o.Weights
	}
	normalize := true
	if o.Normalize != nil {
		normalize = *o.Normalize
	}
	return weights, normalize
}
