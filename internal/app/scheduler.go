package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/foliosync/foliosync/internal/common"
	"github.com/foliosync/foliosync/internal/interfaces"
	"github.com/foliosync/foliosync/internal/services/tracker"
)

// runScheduler drives the periodic sync cycle. An on-start run happens before
// the ticker when configured; auto=false skips the recurring loop entirely.
func runScheduler(ctx context.Context, svc interfaces.TrackerService, cfg common.SyncConfig, logger *common.Logger) {
	if cfg.OnStart {
		runScheduledSync(ctx, svc, logger)
	}

	if !cfg.Auto {
		logger.Info().Msg("Sync scheduler: auto sync disabled")
		return
	}

	interval := cfg.GetInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("Sync scheduler: started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Sync scheduler: stopped")
			return
		case <-ticker.C:
			runScheduledSync(ctx, svc, logger)
		}
	}
}

// runScheduledSync executes one sync cycle with panic recovery so a failing
// cycle never kills the scheduler loop.
func runScheduledSync(ctx context.Context, svc interfaces.TrackerService, logger *common.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in scheduled sync")
		}
	}()

	start := time.Now()

	result, err := svc.SyncNow(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrSyncInProgress) {
			logger.Debug().Msg("Scheduled sync: skipped, another sync is running")
			return
		}
		logger.Warn().Err(err).Msg("Scheduled sync: failed")
		return
	}

	logger.Info().
		Int("positions", len(result.Snapshot.Positions)).
		Int("points", result.PointsWritten).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled sync: complete")
}
