package tracker

import (
	"context"
	"fmt"

	"github.com/foliosync/foliosync/internal/models"
)

// Analytics window bounds in days
const (
	DefaultAnalyticsDays = 30
	MaxAnalyticsDays     = 365
)

// RunAnalytics summarizes stored portfolio value over a trailing window.
// A days value of 0 selects the default window; values outside [1, 365]
// are rejected. Fewer than 2 stored samples produce an incomplete report,
// not an error.
func (s *Service) RunAnalytics(ctx context.Context, days int) (*models.AnalyticsReport, error) {
	if days == 0 {
		days = DefaultAnalyticsDays
	}
	if days < 1 || days > MaxAnalyticsDays {
		return nil, models.NewValidationError(
			fmt.Sprintf("days must be between 1 and %d, got %d", MaxAnalyticsDays, days))
	}

	samples, err := s.store.QueryDailyMeans(ctx, s.config.TimeSeries.Database,
		models.MeasurementPortfolio, models.FieldTotalValue, days)
	s.health.Record(models.SourceTimeSeries, err)
	if err != nil {
		return nil, err
	}

	report := models.NewAnalyticsReport(days, samples)

	s.logger.Info().
		Int("days", days).
		Int("samples", len(samples)).
		Bool("complete", report.Complete).
		Msg("Analytics computed")

	return report, nil
}
