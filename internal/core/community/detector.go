package community

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/graphweave/graphweave/internal/core/model"
	"github.com/graphweave/graphweave/internal/graph"
)

// Config tunes the detection engine. Zero values fall back to defaults.
type Config struct {
	// Resolution scales the null-model term of the modularity gain.
	// > 1 biases toward more, smaller communities. Default 1.0.
	Resolution float64

	// MaxPasses caps local-move passes per aggregation level.
	MaxPasses int

	// MaxLevels caps aggregation levels.
	MaxLevels int

	// IncrementalHopRadius is how far from a changed node the incremental
	// re-partition region extends. Tunable, not a hidden constant.
	IncrementalHopRadius int

	// IncrementalThreshold is the changed-node fraction above which smart
	// detection falls back to a full run.
	IncrementalThreshold float64
}

func (c Config) withDefaults() Config {
	if c.Resolution <= 0 {
		c.Resolution = 1.0
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 10
	}
	if c.MaxLevels <= 0 {
		c.MaxLevels = 5
	}
	if c.IncrementalHopRadius <= 0 {
		c.IncrementalHopRadius = 2
	}
	if c.IncrementalThreshold <= 0 {
		c.IncrementalThreshold = 0.2
	}
	return c
}

// Detector runs Louvain-style community detection against the graph store.
type Detector struct {
	graph graph.Accessor
	cfg   Config
}

func NewDetector(accessor graph.Accessor, cfg Config) *Detector {
	return &Detector{graph: accessor, cfg: cfg.withDefaults()}
}

// Detect fetches the full graph and partitions it. resolution <= 0 uses the
// configured default.
func (d *Detector) Detect(ctx context.Context, resolution float64) (*model.DetectionResult, error) {
	snapshot, err := d.graph.GetAllEntities(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph for detection: %w", err)
	}
	return d.DetectSnapshot(snapshot, resolution), nil
}

// DetectSnapshot partitions an already-fetched snapshot. An empty snapshot
// yields an empty community list and modularity 0, never an error.
func (d *Detector) DetectSnapshot(snapshot *model.GraphSnapshot, resolution float64) *model.DetectionResult {
	if resolution <= 0 {
		resolution = d.cfg.Resolution
	}
	start := time.Now()

	if snapshot == nil || len(snapshot.Nodes) == 0 {
		return &model.DetectionResult{
			Communities: []model.Community{},
			Modularity:  0,
			Assignments: map[string]int{},
			Metadata: model.DetectionMetadata{
				Resolution: resolution,
				DetectedAt: time.Now().UTC(),
			},
		}
	}

	g, _ := buildWeightedGraph(snapshot.Nodes, snapshot.Edges)
	assignment, modularity, levels := louvain(g, resolution, d.cfg.MaxPasses, d.cfg.MaxLevels)

	result := &model.DetectionResult{
		Communities: buildCommunities(snapshot.Nodes, assignment),
		Modularity:  modularity,
		Assignments: make(map[string]int, len(snapshot.Nodes)),
		Metadata: model.DetectionMetadata{
			NodeCount:  len(snapshot.Nodes),
			EdgeCount:  len(snapshot.Edges),
			Resolution: resolution,
			Levels:     levels,
			Duration:   time.Since(start),
			DetectedAt: time.Now().UTC(),
		},
	}
	for i, node := range snapshot.Nodes {
		result.Assignments[node.ID] = assignment[i]
	}

	slog.Info("community: detection complete",
		"nodes", len(snapshot.Nodes),
		"edges", len(snapshot.Edges),
		"communities", len(result.Communities),
		"modularity", modularity,
		"resolution", resolution)

	return result
}

// DetectSubgraph restricts detection to the induced subgraph over nodeIDs.
// Used for query-time community detection over a retrieved context window.
func (d *Detector) DetectSubgraph(ctx context.Context, nodeIDs []string, resolution float64) (*model.DetectionResult, error) {
	snapshot, err := d.graph.GetSubgraph(ctx, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load subgraph for detection: %w", err)
	}
	return d.DetectSnapshot(snapshot, resolution), nil
}

// DetectSmart inspects the change volume since the previous run and picks
// between full and incremental detection. With no previous result it always
// runs full; with no changes it returns the previous result untouched with
// NoChanges set.
func (d *Detector) DetectSmart(ctx context.Context, previous *model.DetectionResult, since time.Time) (*model.DetectionResult, error) {
	if previous == nil {
		return d.Detect(ctx, 0)
	}
	if previous.Metadata.NodeCount == 0 {
		return d.Detect(ctx, previous.Metadata.Resolution)
	}

	changed, err := d.graph.GetEntityIDsChangedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load changed entities: %w", err)
	}

	if len(changed) == 0 {
		unchanged := *previous
		unchanged.Metadata.NoChanges = true
		unchanged.Metadata.Incremental = true
		unchanged.ChangedCommunities = nil
		return &unchanged, nil
	}

	fraction := float64(len(changed)) / float64(previous.Metadata.NodeCount)
	if fraction > d.cfg.IncrementalThreshold {
		slog.Info("community: change volume too high for incremental run",
			"changed", len(changed), "previous_nodes", previous.Metadata.NodeCount)
		// A full re-run still supersedes the previous partition, so it must
		// keep that run's granularity.
		return d.Detect(ctx, previous.Metadata.Resolution)
	}

	return d.detectIncremental(ctx, previous, changed)
}

// DetectIncremental re-partitions only the neighborhood of nodes changed
// since the given instant, carrying unaffected communities over unchanged.
func (d *Detector) DetectIncremental(ctx context.Context, previous *model.DetectionResult, since time.Time) (*model.DetectionResult, error) {
	if previous == nil {
		return d.Detect(ctx, 0)
	}
	changed, err := d.graph.GetEntityIDsChangedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load changed entities: %w", err)
	}
	if len(changed) == 0 {
		unchanged := *previous
		unchanged.Metadata.NoChanges = true
		unchanged.Metadata.Incremental = true
		unchanged.ChangedCommunities = nil
		return &unchanged, nil
	}
	return d.detectIncremental(ctx, previous, changed)
}

func (d *Detector) detectIncremental(ctx context.Context, previous *model.DetectionResult, changed []string) (*model.DetectionResult, error) {
	start := time.Now()

	snapshot, err := d.graph.GetAllEntities(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph for incremental detection: %w", err)
	}

	adjacency := buildAdjacency(snapshot.Edges)
	affected := expandRegion(changed, adjacency, d.cfg.IncrementalHopRadius)

	prevAssignments := previous.Assignments
	if prevAssignments == nil {
		prevAssignments = assignmentsFromCommunities(previous.Communities)
	}

	// Every community touching the affected region dissolves and gets
	// re-partitioned together with any brand-new nodes.
	dissolved := make(map[int]bool)
	for id := range affected {
		if c, ok := prevAssignments[id]; ok {
			dissolved[c] = true
		}
	}

	region := make(map[string]bool, len(affected))
	for id := range affected {
		region[id] = true
	}
	maxPrevID := 0
	for _, c := range previous.Communities {
		if c.ID > maxPrevID {
			maxPrevID = c.ID
		}
		if dissolved[c.ID] {
			for _, m := range c.Members {
				region[m.ID] = true
			}
		}
	}
	// Nodes absent from the previous run are new; they always join the
	// re-partition region.
	for _, node := range snapshot.Nodes {
		if _, ok := prevAssignments[node.ID]; !ok {
			region[node.ID] = true
		}
	}

	var regionNodes []model.Entity
	var regionEdges []model.Edge
	for _, node := range snapshot.Nodes {
		if region[node.ID] {
			regionNodes = append(regionNodes, node)
		}
	}
	for _, e := range snapshot.Edges {
		if region[e.Source] && region[e.Target] {
			regionEdges = append(regionEdges, e)
		}
	}

	sub := d.DetectSnapshot(&model.GraphSnapshot{Nodes: regionNodes, Edges: regionEdges}, previous.Metadata.Resolution)

	// Carried-over communities keep their ids; re-partitioned ones get
	// fresh ids above the previous maximum.
	result := &model.DetectionResult{
		Assignments: make(map[string]int, len(snapshot.Nodes)),
		Metadata: model.DetectionMetadata{
			NodeCount:   len(snapshot.Nodes),
			EdgeCount:   len(snapshot.Edges),
			Resolution:  previous.Metadata.Resolution,
			Incremental: true,
			DetectedAt:  time.Now().UTC(),
		},
	}

	for _, c := range previous.Communities {
		if dissolved[c.ID] {
			continue
		}
		result.Communities = append(result.Communities, c)
		for _, m := range c.Members {
			result.Assignments[m.ID] = c.ID
		}
	}

	nextID := maxPrevID + 1
	for _, c := range sub.Communities {
		c.ID = nextID
		nextID++
		result.Communities = append(result.Communities, c)
		result.ChangedCommunities = append(result.ChangedCommunities, c.ID)
		for _, m := range c.Members {
			result.Assignments[m.ID] = c.ID
		}
	}

	g, index := buildWeightedGraph(snapshot.Nodes, snapshot.Edges)
	partition := make([]int, len(snapshot.Nodes))
	for id, c := range result.Assignments {
		if i, ok := index[id]; ok {
			partition[i] = c
		}
	}
	compact, _ := renumber(partition)
	result.Modularity = g.modularity(compact, previous.Metadata.Resolution)
	result.Metadata.Duration = time.Since(start)

	slog.Info("community: incremental detection complete",
		"changed", len(changed),
		"region", len(regionNodes),
		"carried_over", len(result.Communities)-len(sub.Communities),
		"repartitioned", len(sub.Communities))

	return result, nil
}

// buildCommunities groups nodes by assignment and fills in the per-community
// statistics. Members are sorted by id, which also pins down the dominant
// type tie-break: the first type to reach the max count in member order wins.
func buildCommunities(nodes []model.Entity, assignment []int) []model.Community {
	groups := make(map[int][]model.Entity)
	for i, node := range nodes {
		groups[assignment[i]] = append(groups[assignment[i]], node)
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	communities := make([]model.Community, 0, len(ids))
	for _, id := range ids {
		members := groups[id]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

		c := model.Community{
			ID:         id,
			Size:       len(members),
			Members:    make([]model.Member, 0, len(members)),
			TypeCounts: make(map[string]int),
		}
		maxCount := 0
		for _, node := range members {
			c.Members = append(c.Members, model.Member{ID: node.ID, Name: node.Name, Type: node.Type})
			c.TypeCounts[node.Type]++
			if c.TypeCounts[node.Type] > maxCount {
				maxCount = c.TypeCounts[node.Type]
				c.DominantType = node.Type
			}
		}
		c.StableID = model.StableCommunityID(c.Members)
		communities = append(communities, c)
	}
	return communities
}

func assignmentsFromCommunities(communities []model.Community) map[string]int {
	out := make(map[string]int)
	for _, c := range communities {
		for _, m := range c.Members {
			out[m.ID] = c.ID
		}
	}
	return out
}

func buildAdjacency(edges []model.Edge) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}
	return adj
}

// expandRegion grows the changed-node set outward by the hop radius.
func expandRegion(changed []string, adjacency map[string][]string, hops int) map[string]bool {
	region := make(map[string]bool, len(changed))
	frontier := make([]string, 0, len(changed))
	for _, id := range changed {
		region[id] = true
		frontier = append(frontier, id)
	}

	for hop := 0; hop < hops; hop++ {
		var next []string
		for _, id := range frontier {
			for _, neighbor := range adjacency[id] {
				if !region[neighbor] {
					region[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return region
}
