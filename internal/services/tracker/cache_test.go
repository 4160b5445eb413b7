package tracker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliosync/foliosync/internal/models"
)

func cachedSnapshot(total string) *models.PortfolioSnapshot {
	positions := []models.Position{
		{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), Price: decimal.RequireFromString("150.50"), Value: decimal.RequireFromString(total)},
	}
	return models.NewSnapshot(positions, nil, time.Now())
}

func TestSnapshotCache_Empty(t *testing.T) {
	cache := NewSnapshotCache()

	if _, ok := cache.Get(); ok {
		t.Error("expected no snapshot in a fresh cache")
	}
	if !cache.LastUpdate().IsZero() {
		t.Error("expected zero last update in a fresh cache")
	}
}

func TestSnapshotCache_SetAndGet(t *testing.T) {
	cache := NewSnapshotCache()
	cache.Set(cachedSnapshot("1505"))

	got, ok := cache.Get()
	if !ok {
		t.Fatal("expected a cached snapshot")
	}
	if got.TotalValue.String() != "1505" {
		t.Errorf("TotalValue = %s, want 1505", got.TotalValue)
	}
	if cache.LastUpdate().IsZero() {
		t.Error("expected last update to be set")
	}
}

func TestSnapshotCache_GetReturnsCopy(t *testing.T) {
	cache := NewSnapshotCache()
	cache.Set(cachedSnapshot("1505"))

	first, _ := cache.Get()
	first.Positions[0].Symbol = "MUTATED"
	first.TotalValue = decimal.Zero

	second, _ := cache.Get()
	if second.Positions[0].Symbol != "AAPL" {
		t.Errorf("cached position mutated through a reader copy: %s", second.Positions[0].Symbol)
	}
	if second.TotalValue.String() != "1505" {
		t.Errorf("cached total mutated through a reader copy: %s", second.TotalValue)
	}
}

func TestSnapshotCache_NilSetIgnored(t *testing.T) {
	cache := NewSnapshotCache()
	cache.Set(cachedSnapshot("1505"))

	cache.Set(nil)

	got, ok := cache.Get()
	if !ok || got.TotalValue.String() != "1505" {
		t.Error("nil Set should leave the cached snapshot in place")
	}
}
