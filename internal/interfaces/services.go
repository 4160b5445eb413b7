// Package interfaces defines service contracts for FolioSync
package interfaces

import (
	"context"

	"github.com/foliosync/foliosync/internal/models"
)

// TrackerService runs sync cycles and reports engine state
type TrackerService interface {
	// SyncNow runs one full sync cycle. At most one cycle runs at a time;
	// concurrent callers receive ErrSyncInProgress instead of blocking.
	SyncNow(ctx context.Context) (*models.SyncResult, error)

	// Status reports the snapshot summary and per-source health from cached
	// state only. It never touches the network and never fails.
	Status(ctx context.Context) *models.TrackerStatus

	// RunAnalytics aggregates the stored series over a trailing window of
	// days. Zero means the default window; out-of-range values are rejected
	// with a validation error.
	RunAnalytics(ctx context.Context, days int) (*models.AnalyticsReport, error)
}
