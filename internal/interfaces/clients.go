// Package interfaces defines service contracts for FolioSync
package interfaces

import (
	"context"

	"github.com/foliosync/foliosync/internal/models"
)

// SheetClient provides access to the spreadsheet source
type SheetClient interface {
	// FetchRange retrieves a tabular range. The first row is the header row,
	// returned normalized; zero data rows is a valid empty result.
	FetchRange(ctx context.Context, spreadsheetID, readRange string) (*models.SheetData, error)

	// CheckReachable performs a lightweight metadata probe without reading values
	CheckReachable(ctx context.Context, spreadsheetID string) error
}

// TimeSeriesClient provides access to the time-series store
type TimeSeriesClient interface {
	// Ping verifies the store answers at all
	Ping(ctx context.Context) error

	// EnsureDatabase creates the database when it does not exist yet
	EnsureDatabase(ctx context.Context, name string) error

	// WritePoints persists a batch of records, retrying transient failures
	WritePoints(ctx context.Context, database string, points []models.Point) error

	// QueryDailyMeans returns the daily mean of one field over a trailing
	// window, oldest first, skipping empty day buckets
	QueryDailyMeans(ctx context.Context, database, measurement, field string, days int) ([]models.Sample, error)
}
