// Package models defines data structures for FolioSync
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents one holding row from the portfolio sheet
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Change   decimal.Decimal `json:"change"` // daily change as reported by the sheet, zero when absent
}

// PortfolioSnapshot is the normalized result of one successful sync cycle
type PortfolioSnapshot struct {
	TotalValue         decimal.Decimal `json:"total_value"`
	PositionCount      int             `json:"position_count"`
	Positions          []Position      `json:"positions"`
	DailyChange        decimal.Decimal `json:"daily_change"`
	DailyChangePercent decimal.Decimal `json:"daily_change_percent"`
	CapturedAt         time.Time       `json:"captured_at"`
	Warnings           []string        `json:"warnings,omitempty"` // e.g. total row disagreeing with the computed sum
}

// NewSnapshot builds a snapshot from converted positions. When the sheet
// supplies an authoritative total row its value wins over the computed sum;
// a disagreement beyond 0.01 is recorded as a warning.
func NewSnapshot(positions []Position, authoritativeTotal *decimal.Decimal, capturedAt time.Time) *PortfolioSnapshot {
	computed := decimal.Zero
	change := decimal.Zero
	for _, p := range positions {
		computed = computed.Add(p.Value)
		change = change.Add(p.Change)
	}

	snap := &PortfolioSnapshot{
		TotalValue:    computed,
		PositionCount: len(positions),
		Positions:     positions,
		DailyChange:   change,
		CapturedAt:    capturedAt,
	}

	if authoritativeTotal != nil {
		if computed.Sub(*authoritativeTotal).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
			snap.Warnings = append(snap.Warnings,
				"sheet total "+authoritativeTotal.String()+" disagrees with computed total "+computed.String())
		}
		snap.TotalValue = *authoritativeTotal
	}

	prior := snap.TotalValue.Sub(change)
	if !prior.IsZero() {
		snap.DailyChangePercent = change.Div(prior).Mul(decimal.NewFromInt(100)).Round(4)
	}

	return snap
}

// Copy returns a deep copy so cached snapshots cannot be mutated by readers
func (s *PortfolioSnapshot) Copy() *PortfolioSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Positions = make([]Position, len(s.Positions))
	copy(out.Positions, s.Positions)
	if s.Warnings != nil {
		out.Warnings = make([]string, len(s.Warnings))
		copy(out.Warnings, s.Warnings)
	}
	return &out
}

// SyncResult summarizes one sync cycle
type SyncResult struct {
	Snapshot      *PortfolioSnapshot `json:"snapshot,omitempty"`
	RowsRead      int                `json:"rows_read"`
	RowsSkipped   int                `json:"rows_skipped"`
	PointsWritten int                `json:"points_written"`
	Duration      time.Duration      `json:"-"`
	DurationMS    int64              `json:"duration_ms"`
	CompletedAt   time.Time          `json:"completed_at"`
}
