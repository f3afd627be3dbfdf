package orderbook

import (
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/normalize"
	"polymarket-surveillance/pkg/types"
)

func testManager() *Manager {
	return NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleBookSnapshotEmitsInitializedOnce(t *testing.T) {
	t.Parallel()
	m := testManager()

	var initCount, updateCount int
	m.OnInitialized(func(string) { initCount++ })
	m.OnUpdated(func(string) { updateCount++ })

	msg := normalize.M{"asset_id": "asset-1"}
	bids := []types.PriceLevel{{Price: decimal.RequireFromString("0.4"), Size: decimal.RequireFromString("1")}}

	m.HandleBookSnapshot(msg, bids, nil, time.Now(), "h1")
	m.HandleBookSnapshot(msg, bids, nil, time.Now(), "h2")

	if initCount != 1 {
		t.Errorf("initCount = %d, want 1", initCount)
	}
	if updateCount != 2 {
		t.Errorf("updateCount = %d, want 2", updateCount)
	}
}

func TestHandleBookSnapshotDropsMissingAssetID(t *testing.T) {
	t.Parallel()
	m := testManager()
	var updateCount int
	m.OnUpdated(func(string) { updateCount++ })

	m.HandleBookSnapshot(normalize.M{}, nil, nil, time.Now(), "h")

	if updateCount != 0 {
		t.Errorf("expected no update emitted for missing asset id, got %d", updateCount)
	}
}

func TestHandlePriceChangeDiscardsPreSnapshotDeltas(t *testing.T) {
	t.Parallel()
	m := testManager()
	var updateCount int
	m.OnUpdated(func(string) { updateCount++ })

	m.HandlePriceChange([]PriceChangeMsg{
		{AssetID: "asset-1", Side: types.BUY, Price: decimal.RequireFromString("0.4"), Size: decimal.RequireFromString("1")},
	}, time.Now())

	if updateCount != 0 {
		t.Errorf("expected delta on uninitialized book to be discarded, got %d updates", updateCount)
	}
}

func TestHandlePriceChangeAppliesToInitializedBook(t *testing.T) {
	t.Parallel()
	m := testManager()

	m.HandleBookSnapshot(normalize.M{"asset_id": "asset-1"},
		[]types.PriceLevel{{Price: decimal.RequireFromString("0.4"), Size: decimal.RequireFromString("1")}},
		nil, time.Now(), "h")

	var updateCount int
	m.OnUpdated(func(string) { updateCount++ })

	m.HandlePriceChange([]PriceChangeMsg{
		{AssetID: "asset-1", Side: types.BUY, Price: decimal.RequireFromString("0.41"), Size: decimal.RequireFromString("2")},
	}, time.Now())

	if updateCount != 1 {
		t.Errorf("updateCount = %d, want 1", updateCount)
	}

	book, ok := m.Get("asset-1")
	if !ok {
		t.Fatal("expected book to exist")
	}
	bids, _ := book.GetDepth(10)
	if len(bids) != 2 {
		t.Errorf("expected 2 bid levels after delta, got %d", len(bids))
	}
}

func TestResetClearsBooks(t *testing.T) {
	t.Parallel()
	m := testManager()
	m.HandleBookSnapshot(normalize.M{"asset_id": "asset-1"}, nil, nil, time.Now(), "h")

	m.Reset()

	if _, ok := m.Get("asset-1"); ok {
		t.Error("expected book to be gone after Reset")
	}
}
