package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphweave/graphweave/internal/config"
	"github.com/graphweave/graphweave/internal/core/model"
)

func summaryFixture() map[string]*model.CommunitySummary {
	return map[string]*model.CommunitySummary{
		"c-research": {
			CommunityID: "c-research",
			Title:       "Machine Learning Research Group",
			Summary:     "Researchers collaborating on machine learning papers and benchmarks.",
			KeyEntities: []string{"Alice", "Bob"},
			MemberCount: 8,
		},
		"c-infra": {
			CommunityID: "c-infra",
			Title:       "Infrastructure Team",
			Summary:     "Engineers operating deployment pipelines and storage clusters.",
			KeyEntities: []string{"Carol"},
			MemberCount: 5,
		},
		"c-sales": {
			CommunityID: "c-sales",
			Title:       "Sales Partners",
			Summary:     "Regional partners handling enterprise contracts.",
			KeyEntities: []string{"Delta Labs"},
			MemberCount: 3,
		},
	}
}

func newTestEngine(source SummarySource, llm *MockLLMClient, cfg Config) *Engine {
	return NewEngine(source, llm, config.SummaryPrompts{}, cfg)
}

func TestReducePartialAnswers_EmptyInputGuard(t *testing.T) {
	llm := &MockLLMClient{Response: "should never be asked"}
	e := newTestEngine(&MockSummarySource{}, llm, Config{})

	answer := e.ReducePartialAnswers(context.Background(), "what is going on", nil)

	require.NotNil(t, answer)
	assert.Equal(t, 0.0, answer.Confidence)
	assert.Equal(t, noContextAnswer, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, 0, llm.Calls(), "no completion call on empty input")
}

func TestReducePartialAnswers_AllNonInformativeGuard(t *testing.T) {
	llm := &MockLLMClient{Response: "should never be asked"}
	e := newTestEngine(&MockSummarySource{}, llm, Config{})

	partials := []model.PartialAnswer{
		{CommunityID: "a", Answer: ""},
		{CommunityID: "b", Answer: "none"},
		{CommunityID: "c", Answer: "None."},
		{CommunityID: "d", Answer: "There is no relevant information in this community."},
	}
	answer := e.ReducePartialAnswers(context.Background(), "anything", partials)

	assert.Equal(t, 0.0, answer.Confidence)
	assert.Equal(t, noContextAnswer, answer.Answer)
	assert.Equal(t, 0, llm.Calls())
}

func TestReducePartialAnswers_KeepsTopPartialsByRelevance(t *testing.T) {
	llm := &MockLLMClient{Response: "combined answer [Source 1]"}
	e := newTestEngine(&MockSummarySource{}, llm, Config{TopPartials: 2})

	partials := []model.PartialAnswer{
		{CommunityID: "low", Answer: "some detail", Relevance: 0.1},
		{CommunityID: "high", Answer: "key detail", Relevance: 0.9},
		{CommunityID: "mid", Answer: "another detail", Relevance: 0.5},
	}
	answer := e.ReducePartialAnswers(context.Background(), "q", partials)

	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "high", answer.Sources[0].CommunityID)
	assert.Equal(t, "mid", answer.Sources[1].CommunityID)
	assert.Equal(t, "combined answer [Source 1]", answer.Answer)
	assert.Equal(t, 1, llm.Calls())
}

func TestReducePartialAnswers_ConfidenceFormula(t *testing.T) {
	llm := &MockLLMClient{Response: "answer"}
	e := newTestEngine(&MockSummarySource{}, llm, Config{})

	partials := []model.PartialAnswer{
		{CommunityID: "a", Answer: "x", Relevance: 0.5},
		{CommunityID: "b", Answer: "y", Relevance: 0.7},
	}
	answer := e.ReducePartialAnswers(context.Background(), "q", partials)

	// avg relevance 0.6, coverage 2/3.
	assert.InDelta(t, 0.6*0.6+(2.0/3.0)*0.4, answer.Confidence, 1e-9)
}

func TestReducePartialAnswers_ConfidenceSaturates(t *testing.T) {
	llm := &MockLLMClient{Response: "answer"}
	e := newTestEngine(&MockSummarySource{}, llm, Config{})

	var partials []model.PartialAnswer
	for i := 0; i < 5; i++ {
		partials = append(partials, model.PartialAnswer{
			CommunityID: fmt.Sprintf("c%d", i), Answer: "x", Relevance: 1.0,
		})
	}
	answer := e.ReducePartialAnswers(context.Background(), "q", partials)
	assert.Equal(t, 1.0, answer.Confidence)
}

func TestReducePartialAnswers_SynthesisFailureDegrades(t *testing.T) {
	llm := &MockLLMClient{Err: assert.AnError}
	e := newTestEngine(&MockSummarySource{}, llm, Config{})

	partials := []model.PartialAnswer{
		{CommunityID: "a", Title: "Team A", Answer: "relevant detail", Relevance: 0.5},
	}
	answer := e.ReducePartialAnswers(context.Background(), "q", partials)

	assert.Contains(t, answer.Answer, "[Source 1]")
	assert.Contains(t, answer.Answer, "relevant detail")
	assert.Greater(t, answer.Confidence, 0.0)
}

func TestMapCommunitiesToPartialAnswers_TopNByMemberCount(t *testing.T) {
	llm := &MockLLMClient{Response: "this community covers the topic"}
	e := newTestEngine(&MockSummarySource{Summaries: summaryFixture()}, llm, Config{MaxCommunities: 2})

	partials := e.MapCommunitiesToPartialAnswers(context.Background(), "machine learning research")

	require.Len(t, partials, 2)
	ids := []string{partials[0].CommunityID, partials[1].CommunityID}
	assert.Contains(t, ids, "c-research")
	assert.Contains(t, ids, "c-infra")
	assert.NotContains(t, ids, "c-sales", "the smallest community is cut by the top-N selection")
	assert.Equal(t, 2, llm.Calls())
}

func TestMapCommunitiesToPartialAnswers_LexicalRelevance(t *testing.T) {
	llm := &MockLLMClient{Response: "detail"}
	e := newTestEngine(&MockSummarySource{Summaries: summaryFixture()}, llm, Config{})

	partials := e.MapCommunitiesToPartialAnswers(context.Background(), "machine learning research")

	byID := make(map[string]model.PartialAnswer, len(partials))
	for _, p := range partials {
		byID[p.CommunityID] = p
	}

	// All three words appear in the research community's text, none in sales.
	assert.InDelta(t, 1.0, byID["c-research"].Relevance, 1e-9)
	assert.Equal(t, 0.0, byID["c-sales"].Relevance)
	assert.Equal(t, "c-research", partials[0].CommunityID, "partials come back sorted by relevance")
}

func TestMapCommunitiesToPartialAnswers_DropsFailedCompletions(t *testing.T) {
	llm := &MockLLMClient{Responder: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Infrastructure Team") {
			return "", assert.AnError
		}
		return "useful detail", nil
	}}
	e := newTestEngine(&MockSummarySource{Summaries: summaryFixture()}, llm, Config{})

	partials := e.MapCommunitiesToPartialAnswers(context.Background(), "q")

	assert.Len(t, partials, 2, "a failed completion drops only its community")
	for _, p := range partials {
		assert.NotEqual(t, "c-infra", p.CommunityID)
	}
}

func TestMapCommunitiesToPartialAnswers_NoSummaries(t *testing.T) {
	llm := &MockLLMClient{Response: "detail"}
	e := newTestEngine(&MockSummarySource{}, llm, Config{})

	partials := e.MapCommunitiesToPartialAnswers(context.Background(), "q")
	assert.Empty(t, partials)
	assert.Equal(t, 0, llm.Calls())
}

func TestGlobalQuery_EndToEnd(t *testing.T) {
	llm := &MockLLMClient{Responder: func(prompt string) (string, error) {
		if strings.Contains(prompt, "[Source 1]") {
			return "The research group leads the machine learning work [Source 1].", nil
		}
		return "this community runs the machine learning effort", nil
	}}
	e := newTestEngine(&MockSummarySource{Summaries: summaryFixture()}, llm, Config{})

	answer := e.GlobalQuery(context.Background(), "who works on machine learning")

	require.NotNil(t, answer)
	assert.Equal(t, "who works on machine learning", answer.Query)
	assert.Contains(t, answer.Answer, "[Source 1]")
	assert.Equal(t, 3, answer.Metadata.CommunitiesQueried)
	assert.Equal(t, 3, answer.Metadata.PartialsKept)
	assert.Greater(t, answer.Confidence, 0.0)
}

func TestGlobalQuery_NoInformativePartials(t *testing.T) {
	llm := &MockLLMClient{Response: "no relevant information"}
	e := newTestEngine(&MockSummarySource{Summaries: summaryFixture()}, llm, Config{})

	answer := e.GlobalQuery(context.Background(), "completely unrelated topic")

	assert.Equal(t, noContextAnswer, answer.Answer)
	assert.Equal(t, 0.0, answer.Confidence)
	assert.Equal(t, 3, answer.Metadata.CommunitiesQueried)
	assert.Equal(t, 0, answer.Metadata.PartialsKept)
	assert.Equal(t, 3, llm.Calls(), "synthesis is skipped, only the map calls run")
}

func TestIsInformative(t *testing.T) {
	assert.False(t, isInformative(""))
	assert.False(t, isInformative("  none  "))
	assert.False(t, isInformative("NONE."))
	assert.False(t, isInformative("No relevant information found here."))
	assert.True(t, isInformative("The community connects Alice and Bob."))
	assert.True(t, isInformative("None of the members are executives, but Alice leads research."))
}
