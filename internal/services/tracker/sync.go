package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliosync/foliosync/internal/models"
)

// SyncNow runs one full sync cycle: fetch the sheet, convert rows, persist
// points, refresh the cache. At most one cycle runs at a time; a concurrent
// caller gets ErrSyncInProgress back immediately.
func (s *Service) SyncNow(ctx context.Context) (*models.SyncResult, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.syncing.Store(false)

	started := time.Now()
	s.mu.Lock()
	s.state.lastAttempt = started
	s.mu.Unlock()

	result, err := s.runCycle(ctx, started)
	if err != nil {
		s.recordFailure(err)
		s.logger.Warn().
			Str("kind", string(models.KindOf(err))).
			Err(err).
			Msg("Sync failed")
		return nil, err
	}

	s.recordSuccess()
	return result, nil
}

func (s *Service) runCycle(ctx context.Context, started time.Time) (*models.SyncResult, error) {
	if !s.config.Sheet.Configured() {
		s.health.SetConfigured(models.SourceSheet, false)
		return nil, models.NewValidationError("sheet source not configured")
	}

	s.logger.Info().
		Str("spreadsheet", s.config.Sheet.SpreadsheetID).
		Str("range", s.config.Sheet.ReadRange).
		Msg("Sync started")

	data, err := s.sheet.FetchRange(ctx, s.config.Sheet.SpreadsheetID, s.config.Sheet.ReadRange)
	s.health.Record(models.SourceSheet, err)
	if err != nil {
		// Nothing to write, but keep the store status current
		s.health.Record(models.SourceTimeSeries, s.store.Ping(ctx))
		return nil, err
	}

	snapshot, skipped, err := s.buildSnapshot(data)
	if err != nil {
		return nil, err
	}

	points := buildPoints(snapshot)
	writeErr := s.persist(ctx, points)
	s.health.Record(models.SourceTimeSeries, writeErr)
	if writeErr != nil {
		// The fetched data is still the freshest view we have
		if s.config.Sync.UpdateDisplayOnWriteFailure {
			s.cache.Set(snapshot)
		}
		return nil, writeErr
	}

	s.cache.Set(snapshot)

	result := &models.SyncResult{
		Snapshot:      snapshot,
		RowsRead:      len(data.Rows),
		RowsSkipped:   skipped,
		PointsWritten: len(points),
		Duration:      time.Since(started),
		CompletedAt:   time.Now(),
	}
	result.DurationMS = result.Duration.Milliseconds()

	s.logger.Info().
		Int("rows", result.RowsRead).
		Int("skipped", result.RowsSkipped).
		Int("points", result.PointsWritten).
		Str("total_value", snapshot.TotalValue.String()).
		Int64("duration_ms", result.DurationMS).
		Msg("Sync complete")

	return result, nil
}

// buildSnapshot converts sheet rows into a snapshot. Unparseable rows are
// skipped and counted, not fatal; a header row that cannot satisfy the
// required fields is.
func (s *Service) buildSnapshot(data *models.SheetData) (*models.PortfolioSnapshot, int, error) {
	idx := s.columns.Resolve(data.Headers)
	if !idx.HasRequired() {
		return nil, 0, models.NewSchemaError(models.SourceSheet,
			fmt.Sprintf("required columns missing: %s", strings.Join(idx.MissingRequired(), ", ")), nil)
	}

	positions := make([]models.Position, 0, len(data.Rows))
	var authoritativeTotal *decimal.Decimal
	skipped := 0

	for i, row := range data.Rows {
		if idx.IsTotalRow(row) {
			authoritativeTotal = models.TotalRowValue(row, idx)
			continue
		}
		pos, err := models.ParsePosition(row, idx)
		if err != nil {
			skipped++
			// +2: rows are 1-based in the sheet and follow the header
			s.logger.Debug().Int("row", i+2).Err(err).Msg("Row skipped")
			continue
		}
		positions = append(positions, *pos)
	}

	snapshot := models.NewSnapshot(positions, authoritativeTotal, data.FetchedAt)
	for _, warning := range snapshot.Warnings {
		s.logger.Warn().Str("warning", warning).Msg("Snapshot consistency")
	}

	return snapshot, skipped, nil
}

// persist makes sure the database exists, then writes the batch
func (s *Service) persist(ctx context.Context, points []models.Point) error {
	database := s.config.TimeSeries.Database
	if err := s.store.EnsureDatabase(ctx, database); err != nil {
		return err
	}
	return s.store.WritePoints(ctx, database, points)
}

// buildPoints converts a snapshot into store points, one per position plus a
// portfolio-level rollup
func buildPoints(snapshot *models.PortfolioSnapshot) []models.Point {
	points := make([]models.Point, 0, len(snapshot.Positions)+1)

	for _, p := range snapshot.Positions {
		quantity, _ := p.Quantity.Float64()
		price, _ := p.Price.Float64()
		value, _ := p.Value.Float64()
		change, _ := p.Change.Float64()

		points = append(points, models.Point{
			Measurement: models.MeasurementPositions,
			Tags:        map[string]string{"symbol": p.Symbol},
			Fields: map[string]interface{}{
				"quantity": quantity,
				"price":    price,
				"value":    value,
				"change":   change,
			},
			Time: snapshot.CapturedAt,
		})
	}

	totalValue, _ := snapshot.TotalValue.Float64()
	points = append(points, models.Point{
		Measurement: models.MeasurementPortfolio,
		Fields: map[string]interface{}{
			models.FieldTotalValue: totalValue,
			"position_count":       snapshot.PositionCount,
		},
		Time: snapshot.CapturedAt,
	})

	return points
}
