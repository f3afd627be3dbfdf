package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

func TestWalletAccuracyHighWinRateDetected(t *testing.T) {
	tracker := testWalletTracker()
	trade := types.Trade{Maker: "0xacc", Size: decimal.NewFromInt(10), Timestamp: time.Now()}
	if err := tracker.TrackTrade(trade); err != nil {
		t.Fatalf("TrackTrade: %v", err)
	}
	for i := 0; i < 25; i++ {
		if err := tracker.UpdateOnResolution("0xacc", true, decimal.NewFromInt(5)); err != nil {
			t.Fatalf("UpdateOnResolution: %v", err)
		}
	}

	proc := NewWalletAccuracyProcessor(config.Default().Signals.WalletAccuracy, tracker)
	res, err := proc.Process(Context{Trade: &trade})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Detected {
		t.Fatal("expected detection for a 100% win-rate wallet with 25 resolved positions")
	}
	if res.Severity != types.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH", res.Severity)
	}
}

func TestWalletAccuracyInsufficientSampleNotDetected(t *testing.T) {
	tracker := testWalletTracker()
	trade := types.Trade{Maker: "0xacc", Size: decimal.NewFromInt(10), Timestamp: time.Now()}
	if err := tracker.TrackTrade(trade); err != nil {
		t.Fatalf("TrackTrade: %v", err)
	}
	for i := 0; i < 5; i++ {
		_ = tracker.UpdateOnResolution("0xacc", true, decimal.NewFromInt(5))
	}

	proc := NewWalletAccuracyProcessor(config.Default().Signals.WalletAccuracy, tracker)
	res, err := proc.Process(Context{Trade: &trade})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Detected {
		t.Error("expected no detection below minResolvedPositions")
	}
}
