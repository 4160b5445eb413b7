package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testPositions() []Position {
	return []Position{
		{
			Symbol:   "AAPL",
			Quantity: decimal.RequireFromString("10"),
			Price:    decimal.RequireFromString("150.50"),
			Value:    decimal.RequireFromString("1505"),
			Change:   decimal.RequireFromString("5.2"),
		},
		{
			Symbol:   "GOOGL",
			Quantity: decimal.RequireFromString("5"),
			Price:    decimal.RequireFromString("2800"),
			Value:    decimal.RequireFromString("14000"),
			Change:   decimal.RequireFromString("-12.5"),
		},
	}
}

func TestNewSnapshot_Totals(t *testing.T) {
	snap := NewSnapshot(testPositions(), nil, time.Now())

	if got, want := snap.TotalValue.String(), "15505"; got != want {
		t.Errorf("TotalValue = %s, want %s", got, want)
	}
	if snap.PositionCount != 2 {
		t.Errorf("PositionCount = %d, want 2", snap.PositionCount)
	}
	if got, want := snap.DailyChange.String(), "-7.3"; got != want {
		t.Errorf("DailyChange = %s, want %s", got, want)
	}
	if got, want := snap.DailyChangePercent.StringFixed(4), "-0.0471"; got != want {
		t.Errorf("DailyChangePercent = %s, want %s", got, want)
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", snap.Warnings)
	}
}

func TestNewSnapshot_AuthoritativeTotalWins(t *testing.T) {
	authoritative := decimal.RequireFromString("15500")
	snap := NewSnapshot(testPositions(), &authoritative, time.Now())

	if got, want := snap.TotalValue.String(), "15500"; got != want {
		t.Errorf("TotalValue = %s, want authoritative %s", got, want)
	}
	if len(snap.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one consistency warning", snap.Warnings)
	}
}

func TestNewSnapshot_AuthoritativeTotalWithinTolerance(t *testing.T) {
	authoritative := decimal.RequireFromString("15505.005")
	snap := NewSnapshot(testPositions(), &authoritative, time.Now())

	if got, want := snap.TotalValue.String(), "15505.005"; got != want {
		t.Errorf("TotalValue = %s, want %s", got, want)
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none within tolerance", snap.Warnings)
	}
}

func TestNewSnapshot_Empty(t *testing.T) {
	snap := NewSnapshot(nil, nil, time.Now())

	if !snap.TotalValue.IsZero() {
		t.Errorf("TotalValue = %s, want 0", snap.TotalValue)
	}
	if snap.PositionCount != 0 {
		t.Errorf("PositionCount = %d, want 0", snap.PositionCount)
	}
	if !snap.DailyChangePercent.IsZero() {
		t.Errorf("DailyChangePercent = %s, want 0", snap.DailyChangePercent)
	}
}

func TestSnapshotCopy_Isolated(t *testing.T) {
	snap := NewSnapshot(testPositions(), nil, time.Now())
	dup := snap.Copy()

	dup.Positions[0].Symbol = "MUTATED"
	dup.Warnings = append(dup.Warnings, "extra")

	if snap.Positions[0].Symbol != "AAPL" {
		t.Errorf("original mutated through copy: %s", snap.Positions[0].Symbol)
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("original warnings mutated through copy: %v", snap.Warnings)
	}
}

func TestSnapshotCopy_Nil(t *testing.T) {
	var snap *PortfolioSnapshot
	if snap.Copy() != nil {
		t.Error("Copy of nil snapshot should be nil")
	}
}
