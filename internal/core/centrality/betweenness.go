package centrality

import (
	"context"
	"math/rand"

	"github.com/graphweave/graphweave/internal/core/model"
)

// BetweennessConfig controls the Brandes accumulation. SampleSize > 0 caps
// how many source nodes are expanded; 0 runs the exact algorithm.
type BetweennessConfig struct {
	SampleSize int
}

// BetweennessResult holds per-node betweenness scores, normalized so the
// maximum is 1.
type BetweennessResult struct {
	Scores  map[string]float64
	Sampled bool
}

// Betweenness computes (optionally sampled) betweenness centrality over the
// snapshot treated as an undirected graph, using Brandes' dependency
// accumulation over BFS shortest paths.
func Betweenness(ctx context.Context, snapshot *model.GraphSnapshot, config BetweennessConfig) (*BetweennessResult, error) {
	n := len(snapshot.Nodes)
	if n == 0 {
		return &BetweennessResult{Scores: map[string]float64{}}, nil
	}

	nodeIndex := make(map[string]int, n)
	for i, node := range snapshot.Nodes {
		nodeIndex[node.ID] = i
	}

	adj := make([][]int, n)
	for _, e := range snapshot.Edges {
		si, okS := nodeIndex[e.Source]
		ti, okT := nodeIndex[e.Target]
		if !okS || !okT || si == ti {
			continue
		}
		adj[si] = append(adj[si], ti)
		adj[ti] = append(adj[ti], si)
	}

	sources := make([]int, n)
	for i := range sources {
		sources[i] = i
	}
	sampled := false
	if config.SampleSize > 0 && config.SampleSize < n {
		perm := rand.Perm(n)
		sources = perm[:config.SampleSize]
		sampled = true
	}

	scores := make([]float64, n)
	dist := make([]int, n)
	paths := make([]float64, n)
	delta := make([]float64, n)
	pred := make([][]int, n)

	for _, source := range sources {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for i := 0; i < n; i++ {
			dist[i] = -1
			paths[i] = 0
			delta[i] = 0
			pred[i] = pred[i][:0]
		}
		dist[source] = 0
		paths[source] = 1

		queue := []int{source}
		order := []int{source}
		for len(queue) > 0 {
			curr := queue[0]
			queue = queue[1:]
			for _, next := range adj[curr] {
				if dist[next] < 0 {
					dist[next] = dist[curr] + 1
					queue = append(queue, next)
					order = append(order, next)
				}
				if dist[next] == dist[curr]+1 {
					paths[next] += paths[curr]
					pred[next] = append(pred[next], curr)
				}
			}
		}

		// Accumulate dependencies in reverse BFS order.
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range pred[w] {
				if paths[w] > 0 {
					delta[v] += (paths[v] / paths[w]) * (1 + delta[w])
				}
			}
			if w != source {
				scores[w] += delta[w]
			}
		}
	}

	// Normalize so the most central node scores 1; raw Brandes values are
	// scale-dependent and useless for cross-graph comparison.
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	scoreMap := make(map[string]float64, n)
	for i, node := range snapshot.Nodes {
		if maxScore > 0 {
			scoreMap[node.ID] = scores[i] / maxScore
		} else {
			scoreMap[node.ID] = 0
		}
	}

	return &BetweennessResult{Scores: scoreMap, Sampled: sampled}, nil
}
