// Package storage persists detection runs and community summaries. The core
// treats persistence as best-effort: callers log failures and keep serving
// from memory.
package storage

import (
	"context"

	"github.com/graphweave/graphweave/internal/core/model"
)

// Store is the durable key-value collaborator. Detection runs are immutable
// records; summaries are superseded in place by community id.
type Store interface {
	// StoreDetectionRun persists a detection result as a new immutable run
	// and returns its run id.
	StoreDetectionRun(ctx context.Context, result *model.DetectionResult) (string, error)

	// GetLatestDetectionRun returns the most recently stored run, or nil
	// when none exists.
	GetLatestDetectionRun(ctx context.Context) (*model.DetectionRun, error)

	// GetCommunitiesByRunID returns the communities recorded in a run.
	GetCommunitiesByRunID(ctx context.Context, runID string) ([]model.Community, error)

	// StoreSummary persists one summary keyed by stable community id.
	StoreSummary(ctx context.Context, communityID string, summary *model.CommunitySummary) error

	// StoreSummariesBatch persists several summaries in one transaction.
	StoreSummariesBatch(ctx context.Context, summaries map[string]*model.CommunitySummary) error

	// GetSummary returns the stored summary for a community, or nil when
	// none exists.
	GetSummary(ctx context.Context, communityID string) (*model.CommunitySummary, error)

	// GetAllSummaries returns every stored summary keyed by community id.
	GetAllSummaries(ctx context.Context) (map[string]*model.CommunitySummary, error)

	Close() error
}
