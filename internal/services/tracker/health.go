package tracker

import (
	"sync"
	"time"

	"github.com/foliosync/foliosync/internal/models"
)

// HealthBoard keeps the last known status of each external source. Statuses
// are written as sync cycles interact with the sources and read by status
// requests, which never probe the sources themselves.
type HealthBoard struct {
	mu      sync.RWMutex
	sources map[string]models.SourceStatus
}

// NewHealthBoard creates a board with no sources registered
func NewHealthBoard() *HealthBoard {
	return &HealthBoard{sources: make(map[string]models.SourceStatus)}
}

// SetConfigured registers whether a source has usable configuration
func (b *HealthBoard) SetConfigured(source string, configured bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := b.sources[source]
	status.Configured = configured
	b.sources[source] = status
}

// Record stores the outcome of the latest real interaction with a source
func (b *HealthBoard) Record(source string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := b.sources[source]
	status.LastChecked = time.Now()
	if err == nil {
		status.Reachable = true
		status.ErrorKind = models.ErrorKindNone
		status.LastError = ""
	} else {
		status.Reachable = false
		status.ErrorKind = models.KindOf(err)
		status.LastError = err.Error()
	}
	b.sources[source] = status
}

// Snapshot returns the aggregate health. Healthy is the AND of reachability
// over configured sources; unconfigured sources are listed but excluded.
func (b *HealthBoard) Snapshot() models.SystemHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	health := models.SystemHealth{
		Sources: make(map[string]models.SourceStatus, len(b.sources)),
	}

	configured := 0
	reachable := 0
	for name, status := range b.sources {
		health.Sources[name] = status
		if !status.Configured {
			continue
		}
		configured++
		if status.Reachable {
			reachable++
		}
	}

	health.Healthy = configured > 0 && reachable == configured
	return health
}
