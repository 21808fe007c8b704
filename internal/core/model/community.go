package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// Member is the slice of an entity a community record keeps.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Community is one partition cell of a detection run. IDs are run-scoped and
// not comparable across runs; StableID is, and is what caches and storage
// key by.
type Community struct {
	ID           int            `json:"id"`
	StableID     string         `json:"stable_id"`
	Size         int            `json:"size"`
	Members      []Member       `json:"members"`
	TypeCounts   map[string]int `json:"type_counts"`
	DominantType string         `json:"dominant_type"`
}

// DetectionMetadata describes how a detection run was produced.
type DetectionMetadata struct {
	NodeCount   int           `json:"node_count"`
	EdgeCount   int           `json:"edge_count"`
	Resolution  float64       `json:"resolution"`
	Levels      int           `json:"levels"`
	Incremental bool          `json:"incremental"`
	NoChanges   bool          `json:"no_changes,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// DetectionResult is the full output of one detection run. Assignments is a
// reverse index from entity id to run-scoped community id.
type DetectionResult struct {
	Communities        []Community       `json:"communities"`
	Modularity         float64           `json:"modularity"`
	Assignments        map[string]int    `json:"assignments,omitempty"`
	ChangedCommunities []int             `json:"changed_communities,omitempty"`
	Metadata           DetectionMetadata `json:"metadata"`
}

// DetectionRun is a persisted detection result with its storage identity.
type DetectionRun struct {
	RunID      string          `json:"run_id"`
	Result     DetectionResult `json:"result"`
	PersistedAt time.Time      `json:"persisted_at"`
}

// StableCommunityID derives a deterministic community identity from the
// member set: sha256 over the sorted member ids (names fill in for members
// without ids), truncated. Run-scoped integer ids are useless as cache keys;
// this hash is the same for the same member set on every run.
func StableCommunityID(members []Member) string {
	keys := make([]string, 0, len(members))
	for _, m := range members {
		k := m.ID
		if k == "" {
			k = m.Name
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return "c-" + hex.EncodeToString(h.Sum(nil))[:16]
}
