package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source names tracked by the health board
const (
	SourceSheet      = "sheet"
	SourceTimeSeries = "timeseries"
)

// Sync engine states surfaced by status
const (
	SyncStateIdle         = "idle"
	SyncStateSyncing      = "syncing"
	SyncStateDegraded     = "degraded"
	SyncStateUnconfigured = "unconfigured"
)

// ErrorKind classifies a sync failure
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindAuth         ErrorKind = "auth"
	ErrorKindConnectivity ErrorKind = "connectivity"
	ErrorKindSchema       ErrorKind = "schema"
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindProvisioning ErrorKind = "provisioning"
	ErrorKindWriteFailed  ErrorKind = "write_failed"
)

// SourceStatus is the cached health record for one external source. It is a
// plain value built from the most recent real interaction with the source;
// reading it never triggers a probe.
type SourceStatus struct {
	Configured  bool      `json:"configured"`
	Reachable   bool      `json:"reachable"`
	LastChecked time.Time `json:"last_checked,omitempty"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// SystemHealth aggregates per-source statuses. Healthy is the AND over
// configured sources only; unconfigured sources are reported but excluded.
type SystemHealth struct {
	Healthy bool                    `json:"healthy"`
	Sources map[string]SourceStatus `json:"sources"`
}

// TrackerStatus is the full get-status payload. Assembled entirely from
// cached state, so producing it can never fail.
type TrackerStatus struct {
	State              string          `json:"state"`
	Health             SystemHealth    `json:"health"`
	HasSnapshot        bool            `json:"has_snapshot"`
	TotalValue         decimal.Decimal `json:"total_value"`
	PositionCount      int             `json:"position_count"`
	DailyChange        decimal.Decimal `json:"daily_change"`
	DailyChangePercent decimal.Decimal `json:"daily_change_percent"`
	LastUpdate         time.Time       `json:"last_update,omitempty"`
	LastAttempt        time.Time       `json:"last_attempt,omitempty"`
	LastError          string          `json:"last_error,omitempty"`
	Stale              bool            `json:"stale"`
	Version            string          `json:"version"`
	StoreCompat        string          `json:"store_compat"`
}
