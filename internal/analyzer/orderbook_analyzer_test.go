package analyzer

import (
	"testing"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/pkg/types"
)

func lvl(price, size string) orderbook.Level {
	return orderbook.Level{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

func TestAnalyzeOrderBookBasicStats(t *testing.T) {
	t.Parallel()
	snap := Snapshot{
		Bids: []orderbook.Level{lvl("0.49", "100")},
		Asks: []orderbook.Level{lvl("0.51", "100")},
	}

	a := AnalyzeOrderBook(snap)

	if !a.MidPrice.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("MidPrice = %v, want 0.5", a.MidPrice)
	}
	if !a.Spread.Equal(decimal.RequireFromString("0.02")) {
		t.Errorf("Spread = %v, want 0.02", a.Spread)
	}
	if a.Imbalance != 0 {
		t.Errorf("Imbalance = %v, want 0 (equal depth)", a.Imbalance)
	}
}

func TestAnalyzeOrderBookMomentumFavorsBidWhenCloser(t *testing.T) {
	t.Parallel()
	snap := Snapshot{
		Bids: []orderbook.Level{lvl("0.49", "100"), lvl("0.48", "100")},
		Asks: []orderbook.Level{lvl("0.51", "100"), lvl("0.80", "100")},
	}

	a := AnalyzeOrderBook(snap)
	if a.Momentum <= 0 {
		t.Errorf("Momentum = %v, want > 0 (bid depth sits closer to mid)", a.Momentum)
	}
}

func TestAnalyzeOrderBookEmptyBookIsZeroValue(t *testing.T) {
	t.Parallel()
	a := AnalyzeOrderBook(Snapshot{})
	if !a.MidPrice.IsZero() || a.Momentum != 0 || a.Imbalance != 0 {
		t.Errorf("expected zero-value analysis for empty book, got %+v", a)
	}
}

func TestCalculateLiquidityImpactEmptyBook(t *testing.T) {
	t.Parallel()
	impact := CalculateLiquidityImpact(decimal.RequireFromString("10"), types.BUY, Snapshot{})
	if impact.ImpactPercent != 100 || impact.Slippage != 100 || impact.LevelsConsumed != 0 {
		t.Errorf("expected {100,100,0,0} for empty book, got %+v", impact)
	}
}

func TestCalculateLiquidityImpactConsumesMultipleLevels(t *testing.T) {
	t.Parallel()
	snap := Snapshot{
		Asks: []orderbook.Level{lvl("0.50", "10"), lvl("0.51", "10"), lvl("0.52", "100")},
	}

	impact := CalculateLiquidityImpact(decimal.RequireFromString("15"), types.BUY, snap)
	if impact.LevelsConsumed != 2 {
		t.Errorf("LevelsConsumed = %d, want 2", impact.LevelsConsumed)
	}
	wantAvg := decimal.RequireFromString("10").Mul(decimal.RequireFromString("0.50")).
		Add(decimal.RequireFromString("5").Mul(decimal.RequireFromString("0.51"))).
		Div(decimal.RequireFromString("15"))
	if !impact.AvgFillPrice.Equal(wantAvg) {
		t.Errorf("AvgFillPrice = %v, want %v", impact.AvgFillPrice, wantAvg)
	}
}

func TestCalculateLiquidityImpactSellSideWalksBidsDescending(t *testing.T) {
	t.Parallel()
	snap := Snapshot{
		Bids: []orderbook.Level{lvl("0.50", "10"), lvl("0.48", "100")},
	}
	impact := CalculateLiquidityImpact(decimal.RequireFromString("5"), types.SELL, snap)
	if impact.LevelsConsumed != 1 {
		t.Errorf("LevelsConsumed = %d, want 1", impact.LevelsConsumed)
	}
	if !impact.AvgFillPrice.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("AvgFillPrice = %v, want 0.50", impact.AvgFillPrice)
	}
}

func TestDetectLargeOrdersFiltersAndSorts(t *testing.T) {
	t.Parallel()
	snap := Snapshot{
		Bids: []orderbook.Level{lvl("0.49", "50"), lvl("0.48", "5")},
		Asks: []orderbook.Level{lvl("0.51", "200")},
	}

	orders := DetectLargeOrders(snap, decimal.RequireFromString("10"))
	if len(orders) != 2 {
		t.Fatalf("expected 2 large orders, got %d", len(orders))
	}
	if orders[0].Size.LessThan(orders[1].Size) {
		t.Error("expected orders sorted by size desc")
	}
	if orders[0].Side != types.SELL {
		t.Errorf("largest order side = %v, want SELL", orders[0].Side)
	}
}
