// Package query answers whole-graph questions over community summaries with
// a map-reduce scheme: independent per-community partial answers, then one
// synthesis call over the informative partials.
package query

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
	"github.com/graphweave/graphweave/internal/core/model"
	"github.com/graphweave/graphweave/internal/llm"
)

// SummarySource supplies the current community summaries, freshest first.
// Satisfied by the summarization pipeline.
type SummarySource interface {
	AvailableSummaries(ctx context.Context) map[string]*model.CommunitySummary
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	MaxCommunities  int
	TopPartials     int
	MaxAnswerTokens int
}

func (c Config) withDefaults() Config {
	if c.MaxCommunities <= 0 {
		c.MaxCommunities = 10
	}
	if c.TopPartials <= 0 {
		c.TopPartials = 5
	}
	if c.MaxAnswerTokens <= 0 {
		c.MaxAnswerTokens = 800
	}
	return c
}

// Engine runs global queries against community summaries.
type Engine struct {
	summaries SummarySource
	llm       llm.Client
	prompts   config.SummaryPrompts
	cfg       Config
}

func NewEngine(summaries SummarySource, llmClient llm.Client, prompts config.SummaryPrompts, cfg Config) *Engine {
	return &Engine{
		summaries: summaries,
		llm:       llmClient,
		prompts:   prompts,
		cfg:       cfg.withDefaults(),
	}
}

const noContextAnswer = "No relevant context was found in the graph's community summaries for this query."

const defaultPartialPrompt = `You are answering a question using a single community of a knowledge graph.

Community: %s
Summary: %s
Key entities: %s

Question: %s

State what relevant information this community provides for the question.
If it provides none, respond with exactly "no relevant information".`

const defaultSynthesisPrompt = `Synthesize one coherent answer to the question below using only the numbered sources. Cite sources inline as [Source N].

Question: %s

%s`

// MapCommunitiesToPartialAnswers asks the completion client, per community,
// what that community contributes to the query. Communities are taken in
// descending member-count order up to MaxCommunities. A failed completion
// drops that community from the result; it never fails the phase.
func (e *Engine) MapCommunitiesToPartialAnswers(ctx context.Context, query string) []model.PartialAnswer {
	candidates := e.topCommunities(ctx)
	if len(candidates) == 0 {
		return nil
	}

	template := e.prompts.PartialAnswer
	if template == "" {
		template = defaultPartialPrompt
	}

	partials := make([]model.PartialAnswer, 0, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range candidates {
		s := s
		g.Go(func() error {
			prompt := fmt.Sprintf(template,
				s.Title, s.Summary, strings.Join(s.KeyEntities, ", "), query)

			answer, err := e.llm.Complete(gctx, prompt, e.cfg.MaxAnswerTokens)
			if err != nil {
				slog.Warn("query: partial answer failed", "community", s.CommunityID, "error", err)
				return nil
			}

			mu.Lock()
			partials = append(partials, model.PartialAnswer{
				CommunityID: s.CommunityID,
				Title:       s.Title,
				Answer:      strings.TrimSpace(answer),
				Relevance:   lexicalRelevance(query, s),
				MemberCount: s.MemberCount,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(partials, func(i, j int) bool {
		if partials[i].Relevance != partials[j].Relevance {
			return partials[i].Relevance > partials[j].Relevance
		}
		return partials[i].CommunityID < partials[j].CommunityID
	})
	return partials
}

// ReducePartialAnswers filters out non-informative partials, keeps the top
// TopPartials by relevance, and synthesizes one answer over them. With no
// informative partials it returns the fixed no-context answer at confidence
// zero without touching the completion client.
func (e *Engine) ReducePartialAnswers(ctx context.Context, query string, partials []model.PartialAnswer) *model.GlobalAnswer {
	informative := make([]model.PartialAnswer, 0, len(partials))
	for _, p := range partials {
		if isInformative(p.Answer) {
			informative = append(informative, p)
		}
	}

	if len(informative) == 0 {
		return &model.GlobalAnswer{
			Query:      query,
			Answer:     noContextAnswer,
			Confidence: 0,
		}
	}

	sort.Slice(informative, func(i, j int) bool {
		if informative[i].Relevance != informative[j].Relevance {
			return informative[i].Relevance > informative[j].Relevance
		}
		return informative[i].CommunityID < informative[j].CommunityID
	})
	if len(informative) > e.cfg.TopPartials {
		informative = informative[:e.cfg.TopPartials]
	}

	answer := e.synthesize(ctx, query, informative)
	return &model.GlobalAnswer{
		Query:      query,
		Answer:     answer,
		Confidence: confidence(informative),
		Sources:    informative,
	}
}

// GlobalQuery runs the map phase then the reduce phase and aggregates timing
// into the answer's metadata.
func (e *Engine) GlobalQuery(ctx context.Context, query string) *model.GlobalAnswer {
	mapStart := time.Now()
	partials := e.MapCommunitiesToPartialAnswers(ctx, query)
	mapDuration := time.Since(mapStart)

	reduceStart := time.Now()
	answer := e.ReducePartialAnswers(ctx, query, partials)
	answer.Metadata = model.QueryMetadata{
		CommunitiesQueried: len(partials),
		PartialsKept:       len(answer.Sources),
		MapDuration:        mapDuration,
		ReduceDuration:     time.Since(reduceStart),
	}

	slog.Info("query: global query answered",
		"communities", len(partials),
		"sources", len(answer.Sources),
		"confidence", answer.Confidence)
	return answer
}

// synthesize builds the numbered-source prompt and asks for one coherent
// answer. On completion failure it degrades to stitching the sources
// together so the caller still gets a usable answer.
func (e *Engine) synthesize(ctx context.Context, query string, sources []model.PartialAnswer) string {
	var b strings.Builder
	for i, p := range sources {
		fmt.Fprintf(&b, "[Source %d] %s: %s\n", i+1, p.Title, p.Answer)
	}

	template := e.prompts.Synthesis
	if template == "" {
		template = defaultSynthesisPrompt
	}
	prompt := fmt.Sprintf(template, query, b.String())

	answer, err := e.llm.Complete(ctx, prompt, e.cfg.MaxAnswerTokens)
	if err != nil {
		slog.Warn("query: synthesis failed, returning stitched sources", "error", err)
		return strings.TrimSpace(b.String())
	}
	return strings.TrimSpace(answer)
}

// topCommunities returns up to MaxCommunities summaries, largest communities
// first.
func (e *Engine) topCommunities(ctx context.Context) []*model.CommunitySummary {
	available := e.summaries.AvailableSummaries(ctx)

	all := make([]*model.CommunitySummary, 0, len(available))
	for _, s := range available {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].MemberCount != all[j].MemberCount {
			return all[i].MemberCount > all[j].MemberCount
		}
		return all[i].CommunityID < all[j].CommunityID
	})

	if len(all) > e.cfg.MaxCommunities {
		all = all[:e.cfg.MaxCommunities]
	}
	return all
}

// isInformative rejects empty answers, a bare "none", and answers that open
// by declaring no relevant information.
func isInformative(answer string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(answer))
	if trimmed == "" || strings.Trim(trimmed, ".") == "none" {
		return false
	}
	head := trimmed
	if len(head) > 60 {
		head = head[:60]
	}
	return !strings.Contains(head, "no relevant information")
}

// lexicalRelevance scores a summary against the query: the fraction of query
// words longer than three characters that appear in the summary's title,
// body, or key entity names.
func lexicalRelevance(query string, s *model.CommunitySummary) float64 {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0
	}

	haystack := strings.ToLower(s.Title + " " + s.Summary + " " + strings.Join(s.KeyEntities, " "))

	found := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 3 && strings.Contains(haystack, w) {
			found++
		}
	}
	return float64(found) / float64(len(words))
}

// confidence blends average relevance with source count, saturating at three
// sources, capped at 1.
func confidence(sources []model.PartialAnswer) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, p := range sources {
		sum += p.Relevance
	}
	avg := sum / float64(len(sources))

	coverage := float64(len(sources)) / 3
	if coverage > 1 {
		coverage = 1
	}

	c := avg*0.6 + coverage*0.4
	if c > 1 {
		c = 1
	}
	return c
}
