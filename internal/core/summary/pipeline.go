// Package summary drives LLM summarization of detected communities: bounded
// prompt assembly, batched generation with deterministic fallbacks, caching,
// and best-effort persistence.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/core/common"
	"github.com/graphweave/graphweave/internal/core/community"
	"github.com/graphweave/graphweave/internal/core/model"
	"github.com/graphweave/graphweave/internal/graph"
	"github.com/graphweave/graphweave/internal/llm"
	"github.com/graphweave/graphweave/internal/storage"
)

// Config tunes the pipeline. Zero values fall back to defaults.
type Config struct {
	MinCommunitySize         int
	BatchSize                int
	BatchDelay               time.Duration
	CacheSize                int
	CacheTTL                 time.Duration
	MaxEntitiesInPrompt      int
	MaxRelationshipsInPrompt int
	MaxSummaryTokens         int
}

func (c Config) withDefaults() Config {
	if c.MinCommunitySize <= 0 {
		c.MinCommunitySize = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 500 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 100
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.MaxEntitiesInPrompt <= 0 {
		c.MaxEntitiesInPrompt = 50
	}
	if c.MaxRelationshipsInPrompt <= 0 {
		c.MaxRelationshipsInPrompt = 100
	}
	if c.MaxSummaryTokens <= 0 {
		c.MaxSummaryTokens = 300
	}
	return c
}

// Pipeline generates, caches, and persists community summaries.
type Pipeline struct {
	detector *community.Detector
	graph    graph.Accessor
	llm      llm.Client
	store    storage.Store
	prompts  config.SummaryPrompts
	cfg      Config
	cache    *summaryCache
}

func NewPipeline(detector *community.Detector, accessor graph.Accessor, llmClient llm.Client, store storage.Store, prompts config.SummaryPrompts, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		detector: detector,
		graph:    accessor,
		llm:      llmClient,
		store:    store,
		prompts:  prompts,
		cfg:      cfg,
		cache:    newSummaryCache(cfg.CacheSize, cfg.CacheTTL),
	}
}

// GenerateOptions tunes one generation pass.
type GenerateOptions struct {
	Resolution       float64
	MinCommunitySize int
}

// BatchMetadata describes a generation pass.
type BatchMetadata struct {
	CommunityCount int           `json:"community_count"`
	Generated      int           `json:"generated"`
	FromCache      int           `json:"from_cache"`
	Fallbacks      int           `json:"fallbacks"`
	Skipped        bool          `json:"skipped,omitempty"`
	RunID          string        `json:"run_id,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// BatchResult is the output of a generation pass, keyed by stable community
// id.
type BatchResult struct {
	Summaries map[string]*model.CommunitySummary `json:"summaries"`
	Metadata  BatchMetadata                      `json:"metadata"`
}

type summaryPayload struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

const defaultCommunityPrompt = `You are summarizing one community of a knowledge graph.

Entities:
%s
Relationships within the community:
%s
Entity type distribution: %s

Write a JSON object with exactly two fields:
"title": a short descriptive name for this community (under 10 words),
"summary": what connects these entities and why the group matters (under 500 characters).
Respond with only the JSON object.`

// GenerateAllSummaries detects communities over the full graph and generates
// a summary for every community at or above the size threshold. Generation
// runs in fixed-size concurrent batches with a stagger between batches to
// throttle the completion service. Detection errors propagate; per-community
// generation failures degrade to deterministic fallback summaries;
// persistence failures are logged and swallowed.
func (p *Pipeline) GenerateAllSummaries(ctx context.Context, opts GenerateOptions) (*BatchResult, error) {
	start := time.Now()

	snapshot, err := p.graph.GetAllEntities(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph for summarization: %w", err)
	}

	detection := p.detector.DetectSnapshot(snapshot, opts.Resolution)
	result, err := p.generateForDetection(ctx, detection, snapshot.Edges, opts)
	if err != nil {
		return nil, err
	}

	p.persist(ctx, detection, result)
	result.Metadata.Duration = time.Since(start)
	return result, nil
}

// UpdateSummariesIncremental regenerates summaries only for communities
// changed since the last persisted run. Any failure along the incremental
// path falls back to a full GenerateAllSummaries call; incremental problems
// must never block summary availability.
func (p *Pipeline) UpdateSummariesIncremental(ctx context.Context) (*BatchResult, error) {
	result, err := p.updateIncremental(ctx)
	if err != nil {
		slog.Warn("summary: incremental update failed, regenerating everything", "error", err)
		return p.GenerateAllSummaries(ctx, GenerateOptions{})
	}
	return result, nil
}

func (p *Pipeline) updateIncremental(ctx context.Context) (*BatchResult, error) {
	start := time.Now()

	run, err := p.store.GetLatestDetectionRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last detection run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("no previous detection run")
	}

	detection, err := p.detector.DetectSmart(ctx, &run.Result, run.PersistedAt)
	if err != nil {
		return nil, fmt.Errorf("smart detection failed: %w", err)
	}

	if detection.Metadata.NoChanges {
		existing, err := p.store.GetAllSummaries(ctx)
		if err != nil {
			slog.Warn("summary: failed to read stored summaries, serving cache", "error", err)
			existing = p.cache.Snapshot()
		}
		return &BatchResult{
			Summaries: existing,
			Metadata: BatchMetadata{
				CommunityCount: len(detection.Communities),
				Skipped:        true,
				Duration:       time.Since(start),
			},
		}, nil
	}

	snapshot, err := p.graph.GetAllEntities(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph edges: %w", err)
	}

	changed := make(map[int]bool, len(detection.ChangedCommunities))
	for _, id := range detection.ChangedCommunities {
		changed[id] = true
	}

	result := &BatchResult{Summaries: make(map[string]*model.CommunitySummary)}
	var regenerate []model.Community

	for _, c := range detection.Communities {
		if c.Size < p.cfg.MinCommunitySize {
			continue
		}
		if !detection.Metadata.Incremental || changed[c.ID] {
			regenerate = append(regenerate, c)
			continue
		}
		// Unchanged community: keep whatever summary already exists.
		if cached, ok := p.cache.Get(c.StableID); ok {
			result.Summaries[c.StableID] = cached
			result.Metadata.FromCache++
			continue
		}
		if stored, err := p.store.GetSummary(ctx, c.StableID); err == nil && stored != nil {
			result.Summaries[c.StableID] = stored
			p.cache.Set(c.StableID, stored)
			result.Metadata.FromCache++
			continue
		}
		regenerate = append(regenerate, c)
	}

	fresh := p.generateBatches(ctx, regenerate, snapshot.Edges, result)
	result.Metadata.CommunityCount = len(detection.Communities)

	// Persist the new run but only the newly generated summaries.
	if _, err := p.store.StoreDetectionRun(ctx, detection); err != nil {
		slog.Warn("summary: failed to persist detection run", "error", err)
	}
	if len(fresh) > 0 {
		if err := p.store.StoreSummariesBatch(ctx, fresh); err != nil {
			slog.Warn("summary: failed to persist summaries", "error", err)
		}
	}

	result.Metadata.Duration = time.Since(start)
	return result, nil
}

// GenerateSummariesForSubgraph runs lazy, query-time summarization over a
// caller-provided entity/relationship window. Community ids from subgraph
// detection are not stable across calls, so summaries key by the content
// hash of the member set. This sits on a synchronous query path: any failure
// yields an empty result, never an error.
func (p *Pipeline) GenerateSummariesForSubgraph(ctx context.Context, nodes []model.Entity, edges []model.Edge) map[string]*model.CommunitySummary {
	detection := p.detector.DetectSnapshot(&model.GraphSnapshot{Nodes: nodes, Edges: edges}, 0)

	var eligible []model.Community
	for _, c := range detection.Communities {
		if c.Size >= p.cfg.MinCommunitySize {
			eligible = append(eligible, c)
		}
	}

	result := &BatchResult{Summaries: make(map[string]*model.CommunitySummary)}
	p.generateBatches(ctx, eligible, edges, result)
	return result.Summaries
}

// AvailableSummaries merges persisted summaries with fresher cached ones,
// for consumers like the global query engine.
func (p *Pipeline) AvailableSummaries(ctx context.Context) map[string]*model.CommunitySummary {
	out, err := p.store.GetAllSummaries(ctx)
	if err != nil {
		slog.Warn("summary: failed to list stored summaries", "error", err)
		out = make(map[string]*model.CommunitySummary)
	}
	for id, s := range p.cache.Snapshot() {
		out[id] = s
	}
	return out
}

func (p *Pipeline) generateForDetection(ctx context.Context, detection *model.DetectionResult, edges []model.Edge, opts GenerateOptions) (*BatchResult, error) {
	minSize := opts.MinCommunitySize
	if minSize <= 0 {
		minSize = p.cfg.MinCommunitySize
	}

	var eligible []model.Community
	for _, c := range detection.Communities {
		if c.Size >= minSize {
			eligible = append(eligible, c)
		}
	}

	result := &BatchResult{
		Summaries: make(map[string]*model.CommunitySummary),
		Metadata:  BatchMetadata{CommunityCount: len(detection.Communities)},
	}
	p.generateBatches(ctx, eligible, edges, result)
	return result, nil
}

// generateBatches walks the communities in fixed-size batches, generating
// summaries concurrently within a batch and sleeping between batches.
// Returns the summaries generated fresh on this call (cache hits excluded).
func (p *Pipeline) generateBatches(ctx context.Context, communities []model.Community, edges []model.Edge, result *BatchResult) map[string]*model.CommunitySummary {
	fresh := make(map[string]*model.CommunitySummary)
	var mu sync.Mutex

	for i := 0; i < len(communities); i += p.cfg.BatchSize {
		end := i + p.cfg.BatchSize
		if end > len(communities) {
			end = len(communities)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, c := range communities[i:end] {
			c := c
			g.Go(func() error {
				if cached, ok := p.cache.Get(c.StableID); ok {
					mu.Lock()
					result.Summaries[c.StableID] = cached
					result.Metadata.FromCache++
					mu.Unlock()
					return nil
				}

				rels := communityEdges(c, edges)
				s := p.summarizeCommunity(gctx, c, rels)
				p.cache.Set(c.StableID, s)

				mu.Lock()
				result.Summaries[c.StableID] = s
				result.Metadata.Generated++
				if s.Fallback {
					result.Metadata.Fallbacks++
				}
				fresh[c.StableID] = s
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; failures become fallbacks

		if end < len(communities) {
			time.Sleep(p.cfg.BatchDelay)
		}
	}

	return fresh
}

// summarizeCommunity never fails: completion or parse errors degrade to the
// deterministic fallback summary.
func (p *Pipeline) summarizeCommunity(ctx context.Context, c model.Community, rels []model.Edge) *model.CommunitySummary {
	payload, err := p.generateSingleSummary(ctx, c, rels)
	if err != nil {
		slog.Warn("summary: generation failed, using fallback",
			"community", c.StableID, "error", err)
		return p.fallbackSummary(c, len(rels))
	}

	return &model.CommunitySummary{
		CommunityID:       c.StableID,
		Title:             payload.Title,
		Summary:           payload.Summary,
		MemberCount:       c.Size,
		DominantType:      c.DominantType,
		TypeCounts:        c.TypeCounts,
		RelationshipCount: len(rels),
		KeyEntities:       keyEntities(c),
		GeneratedAt:       time.Now().UTC(),
	}
}

func (p *Pipeline) generateSingleSummary(ctx context.Context, c model.Community, rels []model.Edge) (*summaryPayload, error) {
	entityLines := make([]string, 0, len(c.Members))
	for i, m := range c.Members {
		if i >= p.cfg.MaxEntitiesInPrompt {
			break
		}
		entityLines = append(entityLines, fmt.Sprintf("- %s (%s)", m.Name, m.Type))
	}

	relLines := make([]string, 0, len(rels))
	for i, e := range rels {
		if i >= p.cfg.MaxRelationshipsInPrompt {
			break
		}
		relLines = append(relLines, fmt.Sprintf("- %s -[%s]-> %s", edgeName(e.SourceName, e.Source), e.Type, edgeName(e.TargetName, e.Target)))
	}

	template := p.prompts.Community
	if template == "" {
		template = defaultCommunityPrompt
	}
	prompt := fmt.Sprintf(template,
		strings.Join(entityLines, "\n"),
		strings.Join(relLines, "\n"),
		typeHistogram(c.TypeCounts))

	response, err := p.llm.Complete(ctx, prompt, p.cfg.MaxSummaryTokens)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	payload, err := common.ParseJSON[summaryPayload](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	if payload.Title == "" || payload.Summary == "" {
		return nil, fmt.Errorf("summary response missing title or summary")
	}
	return &payload, nil
}

func (p *Pipeline) fallbackSummary(c model.Community, relCount int) *model.CommunitySummary {
	key := keyEntities(c)
	text := fmt.Sprintf("A community of %d entities, mostly of type %s.", c.Size, c.DominantType)
	if len(key) > 0 {
		text += fmt.Sprintf(" Key members: %s.", strings.Join(key, ", "))
	}
	return &model.CommunitySummary{
		CommunityID: c.StableID,
		Title:       fmt.Sprintf("%s Community", c.DominantType),
		Summary:     text,
		MemberCount:       c.Size,
		DominantType:      c.DominantType,
		TypeCounts:        c.TypeCounts,
		RelationshipCount: relCount,
		KeyEntities:       key,
		GeneratedAt:       time.Now().UTC(),
		Fallback:          true,
	}
}

func (p *Pipeline) persist(ctx context.Context, detection *model.DetectionResult, result *BatchResult) {
	runID, err := p.store.StoreDetectionRun(ctx, detection)
	if err != nil {
		slog.Warn("summary: failed to persist detection run", "error", err)
	} else {
		result.Metadata.RunID = runID
	}

	if len(result.Summaries) == 0 {
		return
	}
	if err := p.store.StoreSummariesBatch(ctx, result.Summaries); err != nil {
		slog.Warn("summary: failed to persist summaries", "error", err)
	}
}

// communityEdges keeps the edges with both endpoints inside the community.
// Membership matches by id or by name, tolerating id/name mismatches between
// detection output and edge data.
func communityEdges(c model.Community, edges []model.Edge) []model.Edge {
	ids := make(map[string]bool, len(c.Members))
	names := make(map[string]bool, len(c.Members))
	for _, m := range c.Members {
		if m.ID != "" {
			ids[m.ID] = true
		}
		if m.Name != "" {
			names[m.Name] = true
		}
	}

	inCommunity := func(id, name string) bool {
		return ids[id] || names[id] || (name != "" && names[name])
	}

	var out []model.Edge
	for _, e := range edges {
		if inCommunity(e.Source, e.SourceName) && inCommunity(e.Target, e.TargetName) {
			out = append(out, e)
		}
	}
	return out
}

func keyEntities(c model.Community) []string {
	names := make([]string, 0, 5)
	for _, m := range c.Members {
		if len(names) == 5 {
			break
		}
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

func edgeName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func typeHistogram(counts map[string]int) string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s: %d", t, counts[t]))
	}
	return strings.Join(parts, ", ")
}
