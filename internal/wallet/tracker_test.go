package wallet

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

func testTracker() *Tracker {
	return NewTracker(config.Default().Wallet, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTrackTradeCreatesProfile(t *testing.T) {
	t.Parallel()
	tr := testTracker()

	trade := types.Trade{Maker: "0xabc", Size: decimal.RequireFromString("10"), Timestamp: time.Now()}
	if err := tr.TrackTrade(trade); err != nil {
		t.Fatalf("TrackTrade: %v", err)
	}

	p, ok := tr.Profile("0xabc")
	if !ok {
		t.Fatal("expected profile to exist")
	}
	if p.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", p.TotalTrades)
	}
	if !p.TotalVolume.Equal(decimal.RequireFromString("10")) {
		t.Errorf("TotalVolume = %v, want 10", p.TotalVolume)
	}
}

func TestTrackTradeRejectsEmptyAddress(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	err := tr.TrackTrade(types.Trade{Size: decimal.RequireFromString("1"), Timestamp: time.Now()})
	if err == nil {
		t.Fatal("expected error for trade with no maker/taker")
	}
}

func TestTrackTradeAccumulatesAverages(t *testing.T) {
	t.Parallel()
	tr := testTracker()

	now := time.Now()
	_ = tr.TrackTrade(types.Trade{Maker: "0xabc", Size: decimal.RequireFromString("10"), Timestamp: now})
	_ = tr.TrackTrade(types.Trade{Maker: "0xabc", Size: decimal.RequireFromString("20"), Timestamp: now.Add(time.Minute)})

	p, _ := tr.Profile("0xabc")
	if p.TotalTrades != 2 {
		t.Fatalf("TotalTrades = %d, want 2", p.TotalTrades)
	}
	if !p.AvgTradeSize.Equal(decimal.RequireFromString("15")) {
		t.Errorf("AvgTradeSize = %v, want 15", p.AvgTradeSize)
	}
	if !p.MaxTradeSize.Equal(decimal.RequireFromString("20")) {
		t.Errorf("MaxTradeSize = %v, want 20", p.MaxTradeSize)
	}
}

func TestIsFreshByAge(t *testing.T) {
	t.Parallel()
	now := time.Now()
	p := types.WalletProfile{FirstTradeAt: now.AddDate(0, 0, -1), TotalTrades: 50}
	if !IsFresh(p, 7, 10, now) {
		t.Error("expected wallet traded 1 day ago to be fresh (age < maxAgeDays)")
	}
}

func TestIsFreshByTradeCount(t *testing.T) {
	t.Parallel()
	now := time.Now()
	p := types.WalletProfile{FirstTradeAt: now.AddDate(0, 0, -30), TotalTrades: 2}
	if !IsFresh(p, 7, 10, now) {
		t.Error("expected wallet with 2 trades to be fresh (trades < maxTrades)")
	}
}

func TestIsFreshFalseWhenNeitherConditionHolds(t *testing.T) {
	t.Parallel()
	now := time.Now()
	p := types.WalletProfile{FirstTradeAt: now.AddDate(0, 0, -30), TotalTrades: 50}
	if IsFresh(p, 7, 10, now) {
		t.Error("expected old, high-trade-count wallet to not be fresh")
	}
}

func TestUpdateOnResolutionFlagsHighWinRate(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	_ = tr.TrackTrade(types.Trade{Maker: "0xabc", Size: decimal.RequireFromString("1"), Timestamp: time.Now()})

	for i := 0; i < 20; i++ {
		if err := tr.UpdateOnResolution("0xabc", true, decimal.NewFromInt(10)); err != nil {
			t.Fatalf("UpdateOnResolution: %v", err)
		}
	}

	p, _ := tr.Profile("0xabc")
	if p.ResolvedPositions != 20 || p.Wins != 20 {
		t.Fatalf("expected 20 resolved/20 wins, got %+v", p)
	}
	if p.WinRate != 1.0 {
		t.Errorf("WinRate = %v, want 1.0", p.WinRate)
	}
	if !p.HasFlag("high_win_rate") {
		t.Error("expected high_win_rate flag")
	}
	if p.RiskScore <= 0 {
		t.Errorf("RiskScore = %v, want > 0", p.RiskScore)
	}
}

func TestUpdateOnResolutionUnknownAddress(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	if err := tr.UpdateOnResolution("0xdead", true, decimal.Zero); err == nil {
		t.Fatal("expected error for unknown address")
	}
}

func TestRiskScoreNeverExceeds100(t *testing.T) {
	t.Parallel()
	tr := testTracker()
	_ = tr.TrackTrade(types.Trade{Maker: "0xabc", Size: decimal.RequireFromString("1000"), Timestamp: time.Now()})
	_ = tr.TrackTrade(types.Trade{Maker: "0xabc", Size: decimal.RequireFromString("0.01"), Timestamp: time.Now()})

	for i := 0; i < 30; i++ {
		_ = tr.UpdateOnResolution("0xabc", true, decimal.NewFromInt(100))
	}

	p, _ := tr.Profile("0xabc")
	if p.RiskScore > 100 {
		t.Errorf("RiskScore = %v, want <= 100", p.RiskScore)
	}
}
