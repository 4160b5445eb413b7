// Package tracker implements the portfolio sync engine: it pulls holdings
// from the sheet source, persists them to the time-series store, and answers
// status and analytics requests from cached state.
package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foliosync/foliosync/internal/common"
	"github.com/foliosync/foliosync/internal/interfaces"
	"github.com/foliosync/foliosync/internal/models"
)

// ErrSyncInProgress is returned to a caller requesting a sync while another
// one is running. The caller is told immediately, it never blocks or joins.
var ErrSyncInProgress = errors.New("sync already in progress")

// syncState is the mutex-guarded record of recent cycle outcomes
type syncState struct {
	lastAttempt         time.Time
	lastSuccess         time.Time
	lastError           string
	consecutiveFailures int
}

// Service implements TrackerService
type Service struct {
	config  *common.Config
	sheet   interfaces.SheetClient
	store   interfaces.TimeSeriesClient
	columns models.ColumnMapping
	cache   *SnapshotCache
	health  *HealthBoard
	logger  *common.Logger
	version string

	syncing atomic.Bool
	mu      sync.Mutex
	state   syncState
}

// NewService creates a new tracker service
func NewService(
	config *common.Config,
	sheet interfaces.SheetClient,
	store interfaces.TimeSeriesClient,
	logger *common.Logger,
	version string,
) *Service {
	s := &Service{
		config:  config,
		sheet:   sheet,
		store:   store,
		columns: models.DefaultColumnMapping().Merge(config.Columns),
		cache:   NewSnapshotCache(),
		health:  NewHealthBoard(),
		logger:  logger,
		version: version,
	}

	s.health.SetConfigured(models.SourceSheet, config.Sheet.Configured())
	s.health.SetConfigured(models.SourceTimeSeries, config.TimeSeries.Configured())

	return s
}

// Status assembles the current engine status from cached state. It performs
// no network I/O and cannot fail.
func (s *Service) Status(ctx context.Context) *models.TrackerStatus {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	status := &models.TrackerStatus{
		State:       models.SyncStateIdle,
		Health:      s.health.Snapshot(),
		LastAttempt: state.lastAttempt,
		LastError:   state.lastError,
		Version:     s.version,
		StoreCompat: models.StoreCompat,
	}

	switch {
	case !s.config.Sheet.Configured():
		status.State = models.SyncStateUnconfigured
	case s.syncing.Load():
		status.State = models.SyncStateSyncing
	case state.consecutiveFailures > 0:
		status.State = models.SyncStateDegraded
	}

	snapshot, ok := s.cache.Get()
	if !ok {
		return status
	}

	status.HasSnapshot = true
	status.TotalValue = snapshot.TotalValue
	status.PositionCount = snapshot.PositionCount
	status.DailyChange = snapshot.DailyChange
	status.DailyChangePercent = snapshot.DailyChangePercent
	status.LastUpdate = snapshot.CapturedAt

	// Displayed data is stale when a later cycle failed to refresh it, or
	// when the engine has silently missed enough scheduled cycles.
	failedSinceCapture := state.consecutiveFailures > 0 && state.lastAttempt.After(snapshot.CapturedAt)
	ttl := s.config.Sync.GetInterval() * common.StaleAfterIntervals
	status.Stale = failedSinceCapture || !common.IsFresh(snapshot.CapturedAt, ttl)

	return status
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.lastSuccess = time.Now()
	s.state.lastError = ""
	s.state.consecutiveFailures = 0
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.lastError = err.Error()
	s.state.consecutiveFailures++
}

// Ensure Service implements TrackerService
var _ interfaces.TrackerService = (*Service)(nil)
