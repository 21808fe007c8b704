// Package community partitions the knowledge graph into communities by
// greedy modularity optimization (Louvain method) and exposes full,
// incremental, smart, and subgraph detection modes.
package community

import (
	"math"
	"sort"

	"github.com/graphweave/graphweave/internal/core/model"
)

// minGain is the smallest modularity improvement that counts as progress,
// both for individual node moves and across aggregation levels.
const minGain = 1e-9

// weightedGraph is the compact index-based view the optimizer runs on.
// Parallel edges stack their weights, so repeated relationships between the
// same pair count as a stronger connection.
type weightedGraph struct {
	n        int
	weights  []map[int]float64 // neighbor -> weight, excluding self
	selfLoop []float64
	degree   []float64 // weighted degree; self-loops count twice
	m        float64   // total edge weight including self-loops
}

func buildWeightedGraph(nodes []model.Entity, edges []model.Edge) (*weightedGraph, map[string]int) {
	index := make(map[string]int, len(nodes))
	for i, node := range nodes {
		index[node.ID] = i
	}

	g := &weightedGraph{
		n:        len(nodes),
		weights:  make([]map[int]float64, len(nodes)),
		selfLoop: make([]float64, len(nodes)),
		degree:   make([]float64, len(nodes)),
	}
	for i := range g.weights {
		g.weights[i] = make(map[int]float64)
	}

	for _, e := range edges {
		si, okS := index[e.Source]
		ti, okT := index[e.Target]
		if !okS || !okT {
			continue
		}
		if si == ti {
			g.selfLoop[si]++
			g.degree[si] += 2
			g.m++
			continue
		}
		g.weights[si][ti]++
		g.weights[ti][si]++
		g.degree[si]++
		g.degree[ti]++
		g.m++
	}

	return g, index
}

// oneLevel runs local move passes until no node improves modularity or the
// pass cap is hit. Returns the per-node community assignment and whether any
// move happened at all.
func (g *weightedGraph) oneLevel(resolution float64, maxPasses int) ([]int, bool) {
	commOf := make([]int, g.n)
	tot := make([]float64, g.n)
	for i := 0; i < g.n; i++ {
		commOf[i] = i
		tot[i] = g.degree[i]
	}

	if g.m == 0 {
		return commOf, false
	}
	m2 := 2 * g.m

	moved := false
	for pass := 0; pass < maxPasses; pass++ {
		passMoves := 0

		for i := 0; i < g.n; i++ {
			current := commOf[i]
			ki := g.degree[i]

			// Weight from i to each neighboring community.
			neighWeight := make(map[int]float64, len(g.weights[i]))
			for j, w := range g.weights[i] {
				neighWeight[commOf[j]] += w
			}

			// Remove i from its community, then compare the gain of
			// re-inserting it everywhere, its own community included.
			tot[current] -= ki

			bestComm := current
			bestGain := neighWeight[current] - resolution*tot[current]*ki/m2

			// Sorted candidate order keeps ties deterministic.
			candidates := make([]int, 0, len(neighWeight))
			for c := range neighWeight {
				if c != current {
					candidates = append(candidates, c)
				}
			}
			sort.Ints(candidates)

			for _, c := range candidates {
				gain := neighWeight[c] - resolution*tot[c]*ki/m2
				if gain > bestGain+minGain {
					bestGain = gain
					bestComm = c
				}
			}

			tot[bestComm] += ki
			if bestComm != current {
				commOf[i] = bestComm
				passMoves++
			}
		}

		if passMoves == 0 {
			break
		}
		moved = true
	}

	return commOf, moved
}

// renumber maps community labels onto 0..k-1 in first-appearance order.
func renumber(partition []int) ([]int, int) {
	remap := make(map[int]int)
	out := make([]int, len(partition))
	next := 0
	for i, c := range partition {
		id, ok := remap[c]
		if !ok {
			id = next
			remap[c] = id
			next++
		}
		out[i] = id
	}
	return out, next
}

// aggregate coarsens the graph: one super-node per community, edge weights
// summed across the original edges between the two groups, intra-community
// weight folded into self-loops.
func (g *weightedGraph) aggregate(partition []int, k int) *weightedGraph {
	coarse := &weightedGraph{
		n:        k,
		weights:  make([]map[int]float64, k),
		selfLoop: make([]float64, k),
		degree:   make([]float64, k),
		m:        g.m,
	}
	for i := range coarse.weights {
		coarse.weights[i] = make(map[int]float64)
	}

	for i := 0; i < g.n; i++ {
		ci := partition[i]
		coarse.selfLoop[ci] += g.selfLoop[i]
		for j, w := range g.weights[i] {
			if j < i {
				continue // each undirected edge once
			}
			cj := partition[j]
			if ci == cj {
				coarse.selfLoop[ci] += w
			} else {
				coarse.weights[ci][cj] += w
				coarse.weights[cj][ci] += w
			}
		}
	}

	for i := 0; i < k; i++ {
		d := 2 * coarse.selfLoop[i]
		for _, w := range coarse.weights[i] {
			d += w
		}
		coarse.degree[i] = d
	}

	return coarse
}

// modularity computes Q for the given partition:
// Q = sum_c [ in_c/2m - resolution*(tot_c/2m)^2 ].
func (g *weightedGraph) modularity(partition []int, resolution float64) float64 {
	if g.m == 0 {
		return 0
	}
	m2 := 2 * g.m

	in := make(map[int]float64)
	tot := make(map[int]float64)
	for i := 0; i < g.n; i++ {
		c := partition[i]
		tot[c] += g.degree[i]
		in[c] += 2 * g.selfLoop[i]
		for j, w := range g.weights[i] {
			if partition[j] == c {
				in[c] += w // both directions visited, so intra edges double
			}
		}
	}

	q := 0.0
	for c, totC := range tot {
		q += in[c]/m2 - resolution*math.Pow(totC/m2, 2)
	}
	return q
}

// louvain runs the full multi-level optimization and returns the final
// top-level assignment for every original node, plus Q and the number of
// aggregation levels used.
func louvain(g *weightedGraph, resolution float64, maxPasses, maxLevels int) ([]int, float64, int) {
	assignment := make([]int, g.n)
	for i := range assignment {
		assignment[i] = i
	}
	if g.n == 0 {
		return assignment, 0, 0
	}

	current := g
	levels := 0
	prevQ := math.Inf(-1)

	for level := 0; level < maxLevels; level++ {
		partition, moved := current.oneLevel(resolution, maxPasses)
		partition, k := renumber(partition)
		q := current.modularity(partition, resolution)

		if level > 0 && (!moved || q-prevQ < minGain) {
			break
		}

		// Unfold: map original nodes through this level's partition.
		for i := range assignment {
			assignment[i] = partition[assignment[i]]
		}
		levels++
		prevQ = q

		if !moved || k == current.n {
			break
		}
		current = current.aggregate(partition, k)
	}

	final, _ := renumber(assignment)
	return final, g.modularity(final, resolution), levels
}
