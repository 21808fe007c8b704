package model

// Entity is a knowledge-graph node as returned by the graph store.
// Importance fields are the only ones this service ever writes back.
type Entity struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Description  string  `json:"description,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	MentionCount int     `json:"mention_count"`

	Importance           float64 `json:"importance,omitempty"`
	ImportanceRank       int     `json:"importance_rank,omitempty"`
	ImportancePercentile float64 `json:"importance_percentile,omitempty"`
}

// Edge is a knowledge-graph relationship. Read-only from this service.
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Type       string `json:"type"`
	SourceName string `json:"source_name,omitempty"`
	TargetName string `json:"target_name,omitempty"`
}

// GraphSnapshot is a point-in-time node/edge listing of the graph or a
// subgraph of it.
type GraphSnapshot struct {
	Nodes []Entity `json:"nodes"`
	Edges []Edge   `json:"edges"`
}
