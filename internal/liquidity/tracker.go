// Package liquidity maintains a per-asset ring buffer of order-book
// snapshots and derives liquidity-change, drop, and trend signals from it
// (spec §4.6).
package liquidity

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/pkg/types"
)

const ringCapacity = 100

// Tracker holds one ring buffer of OrderbookSnapshotRecord per asset.
type Tracker struct {
	mu        sync.Mutex
	snapshots map[string][]types.OrderbookSnapshotRecord
}

// NewTracker creates an empty liquidity tracker.
func NewTracker() *Tracker {
	return &Tracker{snapshots: make(map[string][]types.OrderbookSnapshotRecord)}
}

// RecordSnapshot derives depth/best/mid stats from bids/asks (already
// filtered to positive-price/size levels by the caller's ingress layer) and
// appends to the asset's ring buffer, evicting the oldest on overflow.
func (t *Tracker) RecordSnapshot(assetID string, bids, asks []types.PriceLevel, recordedAt time.Time) types.OrderbookSnapshotRecord {
	bidDepth := sumSizes(bids)
	askDepth := sumSizes(asks)

	var bestBid, bestAsk decimal.Decimal
	if len(bids) > 0 {
		bestBid = bids[0].Price
	}
	if len(asks) > 0 {
		bestAsk = asks[0].Price
	}

	mid := decimal.Zero
	switch {
	case bestBid.Sign() > 0 && bestAsk.Sign() > 0:
		mid = bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	case bestBid.Sign() > 0:
		mid = bestBid
	case bestAsk.Sign() > 0:
		mid = bestAsk
	}

	rec := types.OrderbookSnapshotRecord{
		AssetID:    assetID,
		Bids:       bids,
		Asks:       asks,
		BidDepth:   bidDepth,
		AskDepth:   askDepth,
		TotalDepth: bidDepth.Add(askDepth),
		BestBid:    bestBid,
		BestAsk:    bestAsk,
		MidPrice:   mid,
		BidLevels:  len(bids),
		AskLevels:  len(asks),
		RecordedAt: recordedAt,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	buf := append(t.snapshots[assetID], rec)
	if len(buf) > ringCapacity {
		buf = buf[len(buf)-ringCapacity:]
	}
	t.snapshots[assetID] = buf
	return rec
}

func sumSizes(levels []types.PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Size)
	}
	return total
}

// LiquidityChange is the delta between the two most recent snapshots.
type LiquidityChange struct {
	BidDepthDelta   decimal.Decimal
	AskDepthDelta   decimal.Decimal
	TotalDepthDelta decimal.Decimal
	ChangePercent   float64
}

// CalculateLiquidityChange requires >=2 snapshots for assetID; returns
// ok=false otherwise.
func (t *Tracker) CalculateLiquidityChange(assetID string) (LiquidityChange, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := t.snapshots[assetID]
	if len(buf) < 2 {
		return LiquidityChange{}, false
	}
	prev := buf[len(buf)-2]
	curr := buf[len(buf)-1]

	pct := 0.0
	if prev.TotalDepth.Sign() != 0 {
		pct, _ = curr.TotalDepth.Sub(prev.TotalDepth).Div(prev.TotalDepth).Mul(decimal.NewFromInt(100)).Float64()
	}

	return LiquidityChange{
		BidDepthDelta:   curr.BidDepth.Sub(prev.BidDepth),
		AskDepthDelta:   curr.AskDepth.Sub(prev.AskDepth),
		TotalDepthDelta: curr.TotalDepth.Sub(prev.TotalDepth),
		ChangePercent:   pct,
	}, true
}

// DetectLiquidityDrop reports whether the most recent change's changePercent
// fell below -threshold (default 20).
func (t *Tracker) DetectLiquidityDrop(assetID string, threshold float64) bool {
	change, ok := t.CalculateLiquidityChange(assetID)
	if !ok {
		return false
	}
	return change.ChangePercent < -threshold
}

// Trend is the classification returned by GetLiquidityTrend.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// GetLiquidityTrend splits the most recent count snapshots chronologically
// into two halves, compares mean total depth, and classifies the move using
// a +/-10% band.
func (t *Tracker) GetLiquidityTrend(assetID string, count int) (Trend, bool) {
	t.mu.Lock()
	buf := t.snapshots[assetID]
	t.mu.Unlock()

	if count > len(buf) {
		count = len(buf)
	}
	if count < 2 {
		return "", false
	}

	window := buf[len(buf)-count:]
	mid := len(window) / 2
	if mid == 0 {
		return "", false
	}
	firstHalf := window[:mid]
	secondHalf := window[mid:]

	firstMean := meanTotalDepth(firstHalf)
	secondMean := meanTotalDepth(secondHalf)

	if firstMean == 0 {
		return TrendStable, true
	}
	change := (secondMean - firstMean) / firstMean
	switch {
	case change > 0.10:
		return TrendIncreasing, true
	case change < -0.10:
		return TrendDecreasing, true
	default:
		return TrendStable, true
	}
}

func meanTotalDepth(recs []types.OrderbookSnapshotRecord) float64 {
	if len(recs) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.TotalDepth)
	}
	mean, _ := sum.Div(decimal.NewFromInt(int64(len(recs)))).Float64()
	return mean
}
