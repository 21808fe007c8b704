package model

import "time"

// ImportanceComponents holds the three normalized sub-scores the composite
// importance is blended from.
type ImportanceComponents struct {
	PageRank         float64 `json:"page_rank"`
	Betweenness      float64 `json:"betweenness"`
	MentionFrequency float64 `json:"mention_frequency"`
}

// ImportanceScore is one entity's composite importance. Rank 1 is the most
// important entity; Percentile is (n-rank)/n*100.
type ImportanceScore struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Type       string               `json:"type"`
	Importance float64              `json:"importance"`
	Components ImportanceComponents `json:"components"`
	Rank       int                  `json:"rank"`
	Percentile float64              `json:"percentile"`
}

// ImportanceResult is a full scoring pass over the graph.
type ImportanceResult struct {
	Scores         map[string]float64 `json:"scores"`
	RankedEntities []ImportanceScore  `json:"ranked_entities"`
	Metadata       ImportanceMetadata `json:"metadata"`
}

// ImportanceMetadata describes a scoring pass.
type ImportanceMetadata struct {
	NodeCount    int           `json:"node_count"`
	Weights      Weights       `json:"weights"`
	Normalized   bool          `json:"normalized"`
	FromCache    bool          `json:"from_cache,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	CalculatedAt time.Time     `json:"calculated_at"`
}

// Weights blends the importance components. The defaults sum to 1 so the
// composite stays in [0,1]; callers overriding them are not forced to.
type Weights struct {
	PageRank         float64 `json:"page_rank"`
	Betweenness      float64 `json:"betweenness"`
	MentionFrequency float64 `json:"mention_frequency"`
}

// DefaultWeights returns the standard component blend.
func DefaultWeights() Weights {
	return Weights{PageRank: 0.4, Betweenness: 0.35, MentionFrequency: 0.25}
}
