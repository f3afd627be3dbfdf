package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/pkg/types"
)

func bookWithAsks(t *testing.T, levels []types.PriceLevel) *orderbook.OrderBook {
	t.Helper()
	book := orderbook.NewOrderBook("tokenT")
	book.InitializeFromSnapshot(nil, levels, time.Now(), "")
	return book
}

func TestLiquidityImpactDetectsAboveThreshold(t *testing.T) {
	asks := []types.PriceLevel{
		{Price: decimal.NewFromFloat(0.60), Size: decimal.NewFromInt(10)},
		{Price: decimal.NewFromFloat(0.70), Size: decimal.NewFromInt(100)},
	}
	book := bookWithAsks(t, asks)

	proc := NewLiquidityImpactProcessor(config.Default().Signals.LiquidityImpact)
	trade := types.Trade{Side: types.BUY, Size: decimal.NewFromInt(50)}

	res, err := proc.Process(Context{Trade: &trade, Book: book})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Detected {
		t.Fatal("expected detection: 50-size buy walks into the second level")
	}
	if res.Severity != types.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH given >5%% price impact", res.Severity)
	}
}

func TestLiquidityImpactNilInputsAreNoop(t *testing.T) {
	proc := NewLiquidityImpactProcessor(config.Default().Signals.LiquidityImpact)
	res, err := proc.Process(Context{})
	if err != nil || res.Detected {
		t.Errorf("expected no-op, got %+v, err=%v", res, err)
	}
}
