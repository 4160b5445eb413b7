package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foliosync/foliosync/internal/clients/influx"
	"github.com/foliosync/foliosync/internal/clients/sheets"
	"github.com/foliosync/foliosync/internal/common"
	"github.com/foliosync/foliosync/internal/interfaces"
	"github.com/foliosync/foliosync/internal/services/tracker"
)

// App holds the initialized config, clients, and tracker service.
// It is the shared core behind cmd/foliosync-server.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	SheetClient interfaces.SheetClient
	StoreClient interfaces.TimeSeriesClient
	Tracker     interfaces.TrackerService
	StartupTime time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes the config, clients, and tracker service.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	// Get binary directory for self-contained operation
	binDir := getBinaryDir()

	// Load configuration - check provided path, FOLIO_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "foliosync.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/foliosync.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative credentials path to binary directory
	if config.Sheet.CredentialsFile != "" && !filepath.IsAbs(config.Sheet.CredentialsFile) {
		config.Sheet.CredentialsFile = filepath.Join(binDir, config.Sheet.CredentialsFile)
	}

	// Initialize logger
	logger := common.NewLogger(config.Logging.Level)

	if missing := config.ValidateRequired(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("Configuration incomplete - sync will be unavailable until provided")
	}

	// Load sheet credentials. Unusable credential material downgrades the
	// source to unconfigured so status reports it instead of failing syncs.
	creds := loadSheetCredentials(config.Sheet, logger)
	if creds == nil && config.Sheet.Configured() {
		config.Sheet.CredentialsFile = ""
		config.Sheet.CredentialsJSON = ""
	}

	sheetClient := sheets.NewClient(creds,
		sheets.WithLogger(logger),
		sheets.WithRateLimit(config.Sheet.RateLimit),
		sheets.WithTimeout(config.Sheet.GetTimeout()),
	)

	storeClient := influx.NewClient(
		influx.WithBaseURL(config.TimeSeries.URL),
		influx.WithCredentials(config.TimeSeries.Username, config.TimeSeries.Password),
		influx.WithLogger(logger),
		influx.WithRateLimit(config.TimeSeries.RateLimit),
		influx.WithTimeout(config.TimeSeries.GetTimeout()),
	)

	trackerService := tracker.NewService(config, sheetClient, storeClient, logger, common.GetVersion())

	a := &App{
		Config:      config,
		Logger:      logger,
		SheetClient: sheetClient,
		StoreClient: storeClient,
		Tracker:     trackerService,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// loadSheetCredentials resolves the service account identity, preferring
// inline JSON over the credentials file. A nil return means no usable
// credentials are available.
func loadSheetCredentials(cfg common.SheetConfig, logger *common.Logger) *sheets.ServiceAccount {
	switch {
	case cfg.CredentialsJSON != "":
		creds, err := sheets.LoadServiceAccount([]byte(cfg.CredentialsJSON))
		if err != nil {
			logger.Warn().Err(err).Msg("Inline sheet credentials rejected - sheet source disabled")
			return nil
		}
		return creds
	case cfg.CredentialsFile != "":
		creds, err := sheets.LoadServiceAccountFile(cfg.CredentialsFile)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.CredentialsFile).Msg("Sheet credentials file rejected - sheet source disabled")
			return nil
		}
		return creds
	default:
		return nil
	}
}

// Close releases background resources held by the App.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
}

// StartScheduler launches the background sync loop.
func (a *App) StartScheduler() {
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	go runScheduler(schedulerCtx, a.Tracker, a.Config.Sync, a.Logger)
}
