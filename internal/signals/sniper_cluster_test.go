package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

type fakeHistory struct {
	trades []types.Trade
}

func (f *fakeHistory) TradesForMarket(tokenID string, since time.Time) []types.Trade {
	var out []types.Trade
	for _, tr := range f.trades {
		if tr.AssetID == tokenID && !tr.Timestamp.Before(since) {
			out = append(out, tr)
		}
	}
	return out
}

// TestSniperClusterDetection reproduces spec §8 scenario 4 literally.
func TestSniperClusterDetection(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{trades: []types.Trade{
		{AssetID: "tokenT", Maker: "0xa", Side: types.BUY, Size: decimal.NewFromInt(100), Timestamp: now},
		{AssetID: "tokenT", Maker: "0xb", Side: types.BUY, Size: decimal.NewFromInt(150), Timestamp: now.Add(45 * time.Second)},
		{AssetID: "tokenT", Maker: "0xc", Side: types.BUY, Size: decimal.NewFromInt(200), Timestamp: now.Add(90 * time.Second)},
	}}

	proc := NewSniperClusterProcessor(config.Default().Signals.SniperCluster, history, nil)
	proc.now = func() time.Time { return now.Add(2 * time.Minute) }

	res, err := proc.Process(Context{Market: types.Market{TokenID: "tokenT"}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Detected {
		t.Fatal("expected detection")
	}
	if res.Direction != types.DirYES {
		t.Errorf("Direction = %v, want YES", res.Direction)
	}
	if res.Severity != types.SeverityMedium {
		t.Errorf("Severity = %v, want MEDIUM", res.Severity)
	}
	if got := res.Metadata["clusterSize"]; got != 3 {
		t.Errorf("clusterSize = %v, want 3", got)
	}
	if got := res.Metadata["totalVolume"]; got != 450.0 {
		t.Errorf("totalVolume = %v, want 450", got)
	}
}

func TestSniperClusterBelowMinWalletsNotDetected(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{trades: []types.Trade{
		{AssetID: "tokenT", Maker: "0xa", Side: types.BUY, Size: decimal.NewFromInt(100), Timestamp: now},
		{AssetID: "tokenT", Maker: "0xb", Side: types.BUY, Size: decimal.NewFromInt(150), Timestamp: now.Add(30 * time.Second)},
	}}

	proc := NewSniperClusterProcessor(config.Default().Signals.SniperCluster, history, nil)
	proc.now = func() time.Time { return now.Add(time.Minute) }

	res, err := proc.Process(Context{Market: types.Market{TokenID: "tokenT"}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Detected {
		t.Error("expected no detection below minWallets")
	}
}

func TestSniperClusterEmptyTokenIDIsNoop(t *testing.T) {
	proc := NewSniperClusterProcessor(config.Default().Signals.SniperCluster, &fakeHistory{}, nil)
	res, err := proc.Process(Context{Market: types.Market{}})
	if err != nil || res.Detected {
		t.Errorf("expected no-op for empty token id, got %+v, err=%v", res, err)
	}
}
