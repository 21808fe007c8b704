package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type StorageConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

type DetectionConfig struct {
	Resolution           float64 `toml:"resolution"`
	MaxPasses            int     `toml:"max_passes"`
	MaxLevels            int     `toml:"max_levels"`
	IncrementalHopRadius int     `toml:"incremental_hop_radius"`
	IncrementalThreshold float64 `toml:"incremental_threshold"`
}

// ImportanceConfig weights are pointers so an explicit 0 in the file is
// distinguishable from an unset field.
type ImportanceConfig struct {
	CacheTTLSeconds   int      `toml:"cache_ttl_seconds"`
	PageRankWeight    *float64 `toml:"page_rank_weight"`
	BetweennessWeight *float64 `toml:"betweenness_weight"`
	MentionWeight     *float64 `toml:"mention_weight"`
}

type SummaryConfig struct {
	MinCommunitySize         int `toml:"min_community_size"`
	BatchSize                int `toml:"batch_size"`
	BatchDelayMillis         int `toml:"batch_delay_millis"`
	CacheSize                int `toml:"cache_size"`
	CacheTTLSeconds          int `toml:"cache_ttl_seconds"`
	MaxEntitiesInPrompt      int `toml:"max_entities_in_prompt"`
	MaxRelationshipsInPrompt int `toml:"max_relationships_in_prompt"`
	MaxSummaryTokens         int `toml:"max_summary_tokens"`
}

type QueryConfig struct {
	MaxCommunities  int `toml:"max_communities"`
	TopPartials     int `toml:"top_partials"`
	MaxAnswerTokens int `toml:"max_answer_tokens"`
}

type SummaryPrompts struct {
	Community     string `toml:"community"`
	PartialAnswer string `toml:"partial_answer"`
	Synthesis     string `toml:"synthesis"`
}

type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Memgraph   MemgraphConfig   `toml:"memgraph"`
	Storage    StorageConfig    `toml:"storage"`
	Detection  DetectionConfig  `toml:"detection"`
	Importance ImportanceConfig `toml:"importance"`
	Summary    SummaryConfig    `toml:"summary"`
	Query      QueryConfig      `toml:"query"`
	Prompts    SummaryPrompts   `toml:"prompts"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return &cfg, nil
}
