// Package centrality holds the graph centrality utilities the importance
// scorer fans out to. Both algorithms operate on an in-memory snapshot and
// never touch the graph store themselves.
package centrality

import (
	"context"
	"math"

	"github.com/graphweave/graphweave/internal/core/model"
)

// PageRankConfig controls the power-iteration loop.
type PageRankConfig struct {
	Iterations    int
	DampingFactor float64
	Tolerance     float64
}

// DefaultPageRankConfig returns the standard PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		Iterations:    20,
		DampingFactor: 0.85,
		Tolerance:     1e-6,
	}
}

// PageRankResult holds per-node scores plus convergence info.
type PageRankResult struct {
	Scores     map[string]float64
	Iterations int
	Converged  bool
}

// PageRank computes PageRank over the snapshot's directed edges. Scores are
// normalized to sum to 1.
func PageRank(ctx context.Context, snapshot *model.GraphSnapshot, config PageRankConfig) (*PageRankResult, error) {
	n := len(snapshot.Nodes)
	if n == 0 {
		return &PageRankResult{Scores: map[string]float64{}, Converged: true}, nil
	}

	nodeIndex := make(map[string]int, n)
	for i, node := range snapshot.Nodes {
		nodeIndex[node.ID] = i
	}

	// inLinks[i] = indices of nodes linking to i; edges with endpoints
	// outside the snapshot are ignored.
	inLinks := make([][]int, n)
	outDegree := make([]int, n)
	for _, e := range snapshot.Edges {
		si, okS := nodeIndex[e.Source]
		ti, okT := nodeIndex[e.Target]
		if !okS || !okT || si == ti {
			continue
		}
		inLinks[ti] = append(inLinks[ti], si)
		outDegree[si]++
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}

	d := config.DampingFactor
	teleport := (1.0 - d) / float64(n)

	newScores := make([]float64, n)
	converged := false
	iterations := 0

	for iterations = 0; iterations < config.Iterations; iterations++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Mass from dangling nodes is redistributed uniformly.
		dangling := 0.0
		for i := 0; i < n; i++ {
			if outDegree[i] == 0 {
				dangling += scores[i]
			}
		}
		danglingShare := d * dangling / float64(n)

		for i := 0; i < n; i++ {
			sum := 0.0
			for _, j := range inLinks[i] {
				sum += scores[j] / float64(outDegree[j])
			}
			newScores[i] = teleport + danglingShare + d*sum
		}

		maxDiff := 0.0
		for i := range scores {
			if diff := math.Abs(newScores[i] - scores[i]); diff > maxDiff {
				maxDiff = diff
			}
		}

		scores, newScores = newScores, scores
		if maxDiff < config.Tolerance {
			converged = true
			iterations++
			break
		}
	}

	scoreMap := make(map[string]float64, n)
	sum := 0.0
	for i, node := range snapshot.Nodes {
		scoreMap[node.ID] = scores[i]
		sum += scores[i]
	}
	if sum > 0 {
		for id := range scoreMap {
			scoreMap[id] /= sum
		}
	}

	return &PageRankResult{
		Scores:     scoreMap,
		Iterations: iterations,
		Converged:  converged,
	}, nil
}
