package storage

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestRecordPatternPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := New(dir, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p := types.DetectedPattern{ID: "p1", Type: "whale", AssetID: "tokenT", Severity: types.SeverityHigh, DetectedAt: time.Now()}
	s.RecordPattern(p)

	reloaded, err := New(dir, logger)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	got := reloaded.Patterns()
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("Patterns() after reload = %+v, want [p1]", got)
	}
}

func TestLoadPatternsMissingFileIsEmpty(t *testing.T) {
	s := testStore(t)
	if got := s.Patterns(); len(got) != 0 {
		t.Errorf("Patterns() = %v, want empty", got)
	}
}

func TestRecordWhaleTradeCapsAt10000(t *testing.T) {
	s := testStore(t)
	for i := 0; i < whaleTradesCap+10; i++ {
		s.RecordWhaleTrade(types.WhaleTradeRecord{ID: "w", AssetID: "tokenT", Timestamp: time.Now()})
	}
	if got := len(s.WhaleTrades()); got != whaleTradesCap {
		t.Errorf("len(WhaleTrades()) = %d, want %d", got, whaleTradesCap)
	}
}

func TestTradeHistoryFIFOCap(t *testing.T) {
	s := testStore(t)
	now := time.Now()
	for i := 0; i < tradeHistoryCap+5; i++ {
		s.RecordTrade(types.Trade{
			AssetID: "tokenT", Size: decimal.NewFromInt(1),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}
	trades := s.TradesForMarket("tokenT", now.Add(-time.Hour))
	if len(trades) != tradeHistoryCap {
		t.Fatalf("len(trades) = %d, want %d", len(trades), tradeHistoryCap)
	}
	if want := now.Add(5 * time.Second); !trades[0].Timestamp.Equal(want) {
		t.Errorf("oldest retained trade at %v, want %v (first 5 evicted)", trades[0].Timestamp, want)
	}
}

func TestTradesForMarketFiltersByAssetAndTime(t *testing.T) {
	s := testStore(t)
	now := time.Now()
	s.RecordTrade(types.Trade{AssetID: "tokenA", Timestamp: now.Add(-time.Hour)})
	s.RecordTrade(types.Trade{AssetID: "tokenB", Timestamp: now})
	s.RecordTrade(types.Trade{AssetID: "tokenA", Timestamp: now.Add(-10 * time.Hour)})

	got := s.TradesForMarket("tokenA", now.Add(-2*time.Hour))
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (old tokenA trade excluded by since)", len(got))
	}
}

func TestAppendSignalAndSummary(t *testing.T) {
	s := testStore(t)
	_ = s.AppendSignal(types.Signal{EventID: "e1", SignalType: "whale", Adjustment: 0.1})
	_ = s.AppendSignal(types.Signal{EventID: "e1", SignalType: "timing", Adjustment: 0.2})
	_ = s.AppendSignal(types.Signal{EventID: "e2", SignalType: "whale", Adjustment: 0.5})

	summary := s.GetSignalsSummary("e1")
	if summary.Count != 2 {
		t.Errorf("Count = %d, want 2", summary.Count)
	}
	if summary.AdjustmentSum < 0.299 || summary.AdjustmentSum > 0.301 {
		t.Errorf("AdjustmentSum = %v, want ~0.3", summary.AdjustmentSum)
	}
}

func TestArticleSecondaryIndexes(t *testing.T) {
	s := testStore(t)
	s.UpsertArticle(Article{ID: "a1", EventID: "e1", Slug: "whale-alert"})
	s.UpsertArticle(Article{ID: "a2", EventID: "e1", Slug: "sniper-cluster"})

	byEvent := s.GetArticlesByEventID("e1")
	if len(byEvent) != 2 {
		t.Fatalf("GetArticlesByEventID = %d articles, want 2", len(byEvent))
	}

	bySlug, ok := s.GetArticleBySlug("whale-alert")
	if !ok || bySlug.ID != "a1" {
		t.Errorf("GetArticleBySlug = %+v, ok=%v, want a1", bySlug, ok)
	}
}

func TestSnapshotHistoryRingBuffer(t *testing.T) {
	s := testStore(t)
	for i := 0; i < orderbookSnapshotCap+5; i++ {
		s.RecordSnapshot(types.OrderbookSnapshotRecord{AssetID: "tokenT", RecordedAt: time.Now()})
	}
	if got := len(s.SnapshotHistory("tokenT")); got != orderbookSnapshotCap {
		t.Errorf("len(SnapshotHistory) = %d, want %d", got, orderbookSnapshotCap)
	}
}

func TestMarketCache(t *testing.T) {
	s := testStore(t)
	s.UpsertMarket(types.Market{TokenID: "tokenT", EventID: "e1", Probability: 0.5})

	got, ok := s.GetMarketByTokenID("tokenT")
	if !ok || got.EventID != "e1" {
		t.Fatalf("GetMarketByTokenID = %+v, ok=%v, want e1", got, ok)
	}
	if ids := s.ActiveTokenIDs(); len(ids) != 1 || ids[0] != "tokenT" {
		t.Errorf("ActiveTokenIDs = %v, want [tokenT]", ids)
	}
}

func TestListEventsFilter(t *testing.T) {
	s := testStore(t)
	s.UpsertEvent(types.Event{ID: "e1"})
	s.UpsertEvent(types.Event{ID: "e2"})

	got := s.ListEvents(func(e types.Event) bool { return e.ID == "e1" })
	if len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("ListEvents filter = %+v, want [e1]", got)
	}
}
