package whale

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

func testAdjuster(t *testing.T) (*ProbabilityAdjuster, *time.Time) {
	t.Helper()
	a := NewProbabilityAdjuster(config.Default().Whale)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }
	return a, &clock
}

func buyWhale(assetID string, depthPercent float64) types.WhaleTradeRecord {
	return types.WhaleTradeRecord{
		AssetID:      assetID,
		Side:         types.BUY,
		DepthPercent: depthPercent,
		Notional:     decimal.NewFromInt(5000),
	}
}

// TestAdjusterDecaySchedule reproduces spec §8 scenario 6 literally: a
// full-strength BUY whale signal adjusts base by +whaleWeight immediately,
// by half that after one half-life, and evicts entirely past maxSignalAge.
func TestAdjusterDecaySchedule(t *testing.T) {
	a, clock := testAdjuster(t)

	sig := a.RecordWhaleTrade(buyWhale("tokenA", 20))
	if sig.Direction != 1 {
		t.Fatalf("Direction = %v, want 1", sig.Direction)
	}
	if sig.Strength != 1 {
		t.Fatalf("Strength = %v, want 1", sig.Strength)
	}

	got := a.GetAdjustedProbability("tokenA", 0.50)
	if want := 0.65; absDiff(got, want) > 1e-9 {
		t.Errorf("immediate adjusted probability = %v, want %v", got, want)
	}

	*clock = clock.Add(300 * time.Second)
	got = a.GetAdjustedProbability("tokenA", 0.50)
	if want := 0.575; absDiff(got, want) > 1e-9 {
		t.Errorf("after one half-life = %v, want %v", got, want)
	}

	*clock = clock.Add(1501 * time.Second) // total 1801s, past maxSignalAge (1800s)
	got = a.GetAdjustedProbability("tokenA", 0.50)
	if want := 0.50; absDiff(got, want) > 1e-9 {
		t.Errorf("after maxSignalAge = %v, want %v", got, want)
	}

	if _, ok := a.GetWhaleActivity("tokenA"); ok {
		t.Error("expected signal to be evicted past maxSignalAge")
	}
}

func TestAdjusterClampsToRange(t *testing.T) {
	a, _ := testAdjuster(t)
	a.RecordWhaleTrade(buyWhale("tokenA", 1000)) // strength clamps to 1

	got := a.GetAdjustedProbability("tokenA", 0.95)
	if got > 0.99 {
		t.Errorf("adjusted probability = %v, want <= 0.99", got)
	}
}

func TestAdjusterBlendsRepeatedSameDirectionTowardOne(t *testing.T) {
	a, _ := testAdjuster(t)

	var last types.WhaleSignal
	for i := 0; i < 5; i++ {
		last = a.RecordWhaleTrade(buyWhale("tokenA", 20))
	}
	if last.Strength < 0.9 {
		t.Errorf("strength after repeated whale trades = %v, want close to 1", last.Strength)
	}
	if last.Direction <= 0 {
		t.Errorf("direction = %v, want positive", last.Direction)
	}
}

func TestAdjusterNoSignalReturnsBase(t *testing.T) {
	a, _ := testAdjuster(t)
	if got := a.GetAdjustedProbability("unknown", 0.42); got != 0.42 {
		t.Errorf("GetAdjustedProbability with no signal = %v, want 0.42", got)
	}
}

func TestAdjusterCleanupDropsExpired(t *testing.T) {
	a, clock := testAdjuster(t)
	a.RecordWhaleTrade(buyWhale("tokenA", 20))
	*clock = clock.Add(2 * time.Hour)

	if n := a.Cleanup(); n != 1 {
		t.Errorf("Cleanup() = %d, want 1", n)
	}
	if _, ok := a.GetWhaleActivity("tokenA"); ok {
		t.Error("expected signal gone after cleanup")
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
