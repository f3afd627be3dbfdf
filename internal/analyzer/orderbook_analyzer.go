// Package analyzer derives higher-level order-book metrics — weighted
// momentum, simulated trade impact, and large-order detection (spec §4.7) —
// from the bid/ask snapshots produced by internal/orderbook.
package analyzer

import (
	"sort"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/pkg/types"
)

// Snapshot is the minimal order-book view the analyzer operates on: bids
// sorted descending by price, asks sorted ascending by price.
type Snapshot struct {
	Bids []orderbook.Level
	Asks []orderbook.Level
}

// Analysis is the result of analyzeOrderBook.
type Analysis struct {
	BestBid       decimal.Decimal
	BestAsk       decimal.Decimal
	MidPrice      decimal.Decimal
	Spread        decimal.Decimal
	SpreadPercent float64
	BidDepth      decimal.Decimal
	AskDepth      decimal.Decimal
	TotalDepth    decimal.Decimal
	Imbalance     float64
	Momentum      float64
}

// AnalyzeOrderBook computes depth, spread, imbalance and weighted momentum.
// Momentum weights each level by size * 1/(1+|price-mid|/mid); it lies in
// [-1, 1], positive when bid-side weighted volume dominates.
func AnalyzeOrderBook(snap Snapshot) Analysis {
	var a Analysis

	if len(snap.Bids) > 0 {
		a.BestBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		a.BestAsk = snap.Asks[0].Price
	}

	switch {
	case a.BestBid.Sign() > 0 && a.BestAsk.Sign() > 0:
		a.MidPrice = a.BestBid.Add(a.BestAsk).Div(decimal.NewFromInt(2))
		a.Spread = a.BestAsk.Sub(a.BestBid)
		if a.MidPrice.Sign() != 0 {
			a.SpreadPercent, _ = a.Spread.Div(a.MidPrice).Mul(decimal.NewFromInt(100)).Float64()
		}
	case a.BestBid.Sign() > 0:
		a.MidPrice = a.BestBid
	case a.BestAsk.Sign() > 0:
		a.MidPrice = a.BestAsk
	}

	a.BidDepth = sumLevels(snap.Bids)
	a.AskDepth = sumLevels(snap.Asks)
	a.TotalDepth = a.BidDepth.Add(a.AskDepth)

	if a.TotalDepth.Sign() != 0 {
		a.Imbalance, _ = a.BidDepth.Sub(a.AskDepth).Div(a.TotalDepth).Float64()
	}

	mid, _ := a.MidPrice.Float64()
	if mid != 0 {
		weightedBid := weightedVolume(snap.Bids, mid)
		weightedAsk := weightedVolume(snap.Asks, mid)
		total := weightedBid + weightedAsk
		if total != 0 {
			a.Momentum = (weightedBid - weightedAsk) / total
		}
	}

	return a
}

func sumLevels(levels []orderbook.Level) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Size)
	}
	return total
}

func weightedVolume(levels []orderbook.Level, mid float64) float64 {
	total := 0.0
	for _, l := range levels {
		price, _ := l.Price.Float64()
		size, _ := l.Size.Float64()
		dist := 0.0
		if mid != 0 {
			dist = absFloat(price-mid) / mid
		}
		total += size * (1 / (1 + dist))
	}
	return total
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// LiquidityImpact is the result of simulating a trade's consumption of the
// opposite side of the book.
type LiquidityImpact struct {
	ImpactPercent  float64
	Slippage       float64
	LevelsConsumed int
	AvgFillPrice   decimal.Decimal
}

// CalculateLiquidityImpact simulates a market order of tradeSize on side,
// consuming asks ascending for a buy or bids descending for a sell, and
// reports the resulting price impact and slippage against the best price on
// the consumed side at the start of the walk.
func CalculateLiquidityImpact(tradeSize decimal.Decimal, side types.Side, snap Snapshot) LiquidityImpact {
	var levels []orderbook.Level
	if side == types.BUY {
		levels = snap.Asks
	} else {
		levels = snap.Bids
	}

	if len(levels) == 0 {
		return LiquidityImpact{ImpactPercent: 100, Slippage: 100, LevelsConsumed: 0, AvgFillPrice: decimal.Zero}
	}

	startPrice := levels[0].Price
	remaining := tradeSize
	filledNotional := decimal.Zero
	filledSize := decimal.Zero
	lastFillPrice := startPrice
	levelsConsumed := 0

	for _, lvl := range levels {
		if remaining.Sign() <= 0 {
			break
		}
		fillSize := lvl.Size
		if fillSize.GreaterThan(remaining) {
			fillSize = remaining
		}
		filledNotional = filledNotional.Add(fillSize.Mul(lvl.Price))
		filledSize = filledSize.Add(fillSize)
		lastFillPrice = lvl.Price
		remaining = remaining.Sub(fillSize)
		levelsConsumed++
	}

	avgFillPrice := decimal.Zero
	if filledSize.Sign() > 0 {
		avgFillPrice = filledNotional.Div(filledSize)
	}

	impactPercent := 0.0
	slippage := 0.0
	if startPrice.Sign() != 0 {
		impactPercent, _ = lastFillPrice.Sub(startPrice).Abs().Div(startPrice).Mul(decimal.NewFromInt(100)).Float64()
		slippage, _ = avgFillPrice.Sub(startPrice).Abs().Div(startPrice).Mul(decimal.NewFromInt(100)).Float64()
	}

	return LiquidityImpact{
		ImpactPercent:  impactPercent,
		Slippage:       slippage,
		LevelsConsumed: levelsConsumed,
		AvgFillPrice:   avgFillPrice,
	}
}

// LargeOrder is a single book level flagged as unusually large.
type LargeOrder struct {
	Side           types.Side
	Price          decimal.Decimal
	Size           decimal.Decimal
	PercentOfDepth float64
}

// DetectLargeOrders returns levels on either side with size >= threshold,
// tagged with their share of that side's total depth, sorted by size desc.
func DetectLargeOrders(snap Snapshot, threshold decimal.Decimal) []LargeOrder {
	bidDepth := sumLevels(snap.Bids)
	askDepth := sumLevels(snap.Asks)

	var out []LargeOrder
	out = append(out, largeOrdersForSide(snap.Bids, types.BUY, bidDepth, threshold)...)
	out = append(out, largeOrdersForSide(snap.Asks, types.SELL, askDepth, threshold)...)

	sort.Slice(out, func(i, j int) bool { return out[i].Size.GreaterThan(out[j].Size) })
	return out
}

func largeOrdersForSide(levels []orderbook.Level, side types.Side, depth, threshold decimal.Decimal) []LargeOrder {
	var out []LargeOrder
	for _, lvl := range levels {
		if lvl.Size.LessThan(threshold) {
			continue
		}
		pct := 0.0
		if depth.Sign() != 0 {
			pct, _ = lvl.Size.Div(depth).Mul(decimal.NewFromInt(100)).Float64()
		}
		out = append(out, LargeOrder{Side: side, Price: lvl.Price, Size: lvl.Size, PercentOfDepth: pct})
	}
	return out
}
