package model

import "time"

// CommunitySummary is the generated description of one community. A new
// generation for the same community supersedes the old record; summaries are
// never edited in place.
type CommunitySummary struct {
	CommunityID       string         `json:"community_id"`
	Title             string         `json:"title"`
	Summary           string         `json:"summary"`
	MemberCount       int            `json:"member_count"`
	DominantType      string         `json:"dominant_type"`
	TypeCounts        map[string]int `json:"type_counts"`
	RelationshipCount int            `json:"relationship_count"`
	KeyEntities       []string       `json:"key_entities"`
	GeneratedAt       time.Time      `json:"generated_at"`
	Fallback          bool           `json:"fallback,omitempty"`
}

// PartialAnswer is one community's contribution to a global query (the map
// phase output).
type PartialAnswer struct {
	CommunityID string  `json:"community_id"`
	Title       string  `json:"title"`
	Answer      string  `json:"answer"`
	Relevance   float64 `json:"relevance"`
	MemberCount int     `json:"member_count"`
}

// GlobalAnswer is the synthesized reduce-phase output.
type GlobalAnswer struct {
	Query      string          `json:"query"`
	Answer     string          `json:"answer"`
	Confidence float64         `json:"confidence"`
	Sources    []PartialAnswer `json:"sources"`
	Metadata   QueryMetadata   `json:"metadata"`
}

// QueryMetadata aggregates timing from the map and reduce phases.
type QueryMetadata struct {
	CommunitiesQueried int           `json:"communities_queried"`
	PartialsKept       int           `json:"partials_kept"`
	MapDuration        time.Duration `json:"map_duration_ns"`
	ReduceDuration     time.Duration `json:"reduce_duration_ns"`
}
