// Package orderbook maintains a local mirror of the order book for each
// traded asset (spec §4.4).
//
// OrderBook keeps bid/ask levels as a price->size mapping plus a sorted
// sequence of prices per side (bids descending, asks ascending), updated
// from REST snapshots and WS snapshot/delta frames. Manager owns
// one OrderBook per asset, constructed lazily on first mention.
package orderbook

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/pkg/types"
)

// OrderBook mirrors the order book for a single asset. Safe for concurrent
// use; all mutation and reads hold mu.
type OrderBook struct {
	mu sync.RWMutex

	AssetID string

	bids map[string]decimal.Decimal // price.String() -> size
	asks map[string]decimal.Decimal

	sortedBidPrices []decimal.Decimal // descending
	sortedAskPrices []decimal.Decimal // ascending

	LastTimestamp time.Time
	SnapshotHash  string
	Initialized   bool
}

// NewOrderBook creates an empty, uninitialized book for assetID.
func NewOrderBook(assetID string) *OrderBook {
	return &OrderBook{
		AssetID: assetID,
		bids:    make(map[string]decimal.Decimal),
		asks:    make(map[string]decimal.Decimal),
	}
}

// InitializeFromSnapshot clears both sides and rebuilds them from a full
// snapshot, dropping any level with non-positive price or size. Marks the
// book Initialized.
func (b *OrderBook) InitializeFromSnapshot(bids, asks []types.PriceLevel, timestamp time.Time, hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[string]decimal.Decimal)
	b.asks = make(map[string]decimal.Decimal)

	b.sortedBidPrices = buildSide(b.bids, bids)
	b.sortedAskPrices = buildSide(b.asks, asks)

	sort.Slice(b.sortedBidPrices, func(i, j int) bool { return b.sortedBidPrices[i].GreaterThan(b.sortedBidPrices[j]) })
	sort.Slice(b.sortedAskPrices, func(i, j int) bool { return b.sortedAskPrices[i].LessThan(b.sortedAskPrices[j]) })

	b.LastTimestamp = timestamp
	b.SnapshotHash = hash
	b.Initialized = true
}

func buildSide(mapping map[string]decimal.Decimal, levels []types.PriceLevel) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Price.Sign() <= 0 || lvl.Size.Sign() <= 0 {
			continue
		}
		key := lvl.Price.String()
		if _, exists := mapping[key]; !exists {
			prices = append(prices, lvl.Price)
		}
		mapping[key] = lvl.Size
	}
	return prices
}

// ApplyPriceChange applies a single incremental delta. If size is zero the
// price is removed from both the mapping and sorted sequence; otherwise a
// new price is binary-inserted at the correct position, or an existing
// price's size is overwritten in place (sorted sequence unchanged).
func (b *OrderBook) ApplyPriceChange(side types.Side, price, size decimal.Decimal, timestamp time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applyPriceChangeLocked(side, price, size, timestamp)
}

func (b *OrderBook) applyPriceChangeLocked(side types.Side, price, size decimal.Decimal, timestamp time.Time) {
	mapping, sorted, ascending := b.sideLocked(side)
	key := price.String()

	if size.Sign() == 0 {
		if _, ok := mapping[key]; ok {
			delete(mapping, key)
			idx := findPrice(sorted, price, ascending)
			if idx >= 0 {
				sorted = append(sorted[:idx], sorted[idx+1:]...)
			}
		}
	} else {
		if _, exists := mapping[key]; !exists {
			idx := insertionIndex(sorted, price, ascending)
			sorted = append(sorted, decimal.Decimal{})
			copy(sorted[idx+1:], sorted[idx:])
			sorted[idx] = price
		}
		mapping[key] = size
	}

	b.setSideLocked(side, mapping, sorted)
	b.LastTimestamp = timestamp
}

// PriceChange is one incremental delta for ApplyPriceChanges.
type PriceChange struct {
	Side  types.Side
	Price decimal.Decimal
	Size  decimal.Decimal
}

// ApplyPriceChanges applies a list of deltas in order. Non-list/nil input is
// a no-op (spec §4.4); callers should pre-filter to []PriceChange.
func (b *OrderBook) ApplyPriceChanges(changes []PriceChange, timestamp time.Time) {
	if len(changes) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range changes {
		b.applyPriceChangeLocked(c.Side, c.Price, c.Size, timestamp)
	}
}

func (b *OrderBook) sideLocked(side types.Side) (map[string]decimal.Decimal, []decimal.Decimal, bool) {
	if side == types.BUY {
		return b.bids, b.sortedBidPrices, false
	}
	return b.asks, b.sortedAskPrices, true
}

func (b *OrderBook) setSideLocked(side types.Side, mapping map[string]decimal.Decimal, sorted []decimal.Decimal) {
	if side == types.BUY {
		b.bids = mapping
		b.sortedBidPrices = sorted
	} else {
		b.asks = mapping
		b.sortedAskPrices = sorted
	}
}

// findPrice returns the index of price within sorted (respecting the
// side's order), or -1 if absent.
func findPrice(sorted []decimal.Decimal, price decimal.Decimal, ascending bool) int {
	for i, p := range sorted {
		if p.Equal(price) {
			return i
		}
	}
	_ = ascending
	return -1
}

// insertionIndex returns where price should be inserted to keep sorted in
// the side's order (ascending for asks, descending for bids).
func insertionIndex(sorted []decimal.Decimal, price decimal.Decimal, ascending bool) int {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		var before bool
		if ascending {
			before = sorted[mid].LessThan(price)
		} else {
			before = sorted[mid].GreaterThan(price)
		}
		if before {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Level is a single (price, size) pair returned by derived-read methods.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BestBid returns the highest bid, or false if the book has no bids.
func (b *OrderBook) BestBid() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestLocked(b.sortedBidPrices, b.bids)
}

// BestAsk returns the lowest ask, or false if the book has no asks.
func (b *OrderBook) BestAsk() (Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestLocked(b.sortedAskPrices, b.asks)
}

func (b *OrderBook) bestLocked(sorted []decimal.Decimal, mapping map[string]decimal.Decimal) (Level, bool) {
	if len(sorted) == 0 {
		return Level{}, false
	}
	price := sorted[0]
	return Level{Price: price, Size: mapping[price.String()]}, true
}

// Spread is the derived bid/ask spread of a book.
type Spread struct {
	Spread        decimal.Decimal
	MidPrice      decimal.Decimal
	SpreadPercent float64
}

// GetSpread computes spread/mid/spreadPercent, never dividing by zero.
func (b *OrderBook) GetSpread() Spread {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()

	switch {
	case hasBid && hasAsk:
		spread := ask.Price.Sub(bid.Price)
		mid := bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
		pct := 0.0
		if mid.Sign() != 0 {
			pct, _ = spread.Div(mid).Mul(decimal.NewFromInt(100)).Float64()
		}
		return Spread{Spread: spread, MidPrice: mid, SpreadPercent: pct}
	case hasBid:
		return Spread{MidPrice: bid.Price}
	case hasAsk:
		return Spread{MidPrice: ask.Price}
	default:
		return Spread{}
	}
}

// GetDepth returns the first n entries of each side.
func (b *OrderBook) GetDepth(n int) (bids, asks []Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bids = depthLocked(b.sortedBidPrices, b.bids, n)
	asks = depthLocked(b.sortedAskPrices, b.asks, n)
	return
}

func depthLocked(sorted []decimal.Decimal, mapping map[string]decimal.Decimal, n int) []Level {
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]Level, 0, n)
	for i := 0; i < n; i++ {
		price := sorted[i]
		out = append(out, Level{Price: price, Size: mapping[price.String()]})
	}
	return out
}

// GetFullBook returns every level on both sides plus the last timestamp and
// snapshot hash.
func (b *OrderBook) GetFullBook() (bids, asks []Level, lastTimestamp time.Time, hash string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bids = depthLocked(b.sortedBidPrices, b.bids, len(b.sortedBidPrices))
	asks = depthLocked(b.sortedAskPrices, b.asks, len(b.sortedAskPrices))
	return bids, asks, b.LastTimestamp, b.SnapshotHash
}

// GetImbalance returns (bidTotal-askTotal)/(bidTotal+askTotal) in [-1,1]; 0
// on an empty book.
func (b *OrderBook) GetImbalance() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bidTotal := totalLocked(b.bids)
	askTotal := totalLocked(b.asks)
	denom := bidTotal.Add(askTotal)
	if denom.Sign() == 0 {
		return 0
	}
	imbalance, _ := bidTotal.Sub(askTotal).Div(denom).Float64()
	return imbalance
}

func totalLocked(mapping map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, size := range mapping {
		total = total.Add(size)
	}
	return total
}

// Stats aggregates book-wide counts and totals.
type Stats struct {
	BidLevels     int
	AskLevels     int
	BidDepth      decimal.Decimal
	AskDepth      decimal.Decimal
	TotalDepth    decimal.Decimal
	Spread        Spread
	Imbalance     float64
}

// GetStats returns aggregate counts/totals plus derived spread/imbalance.
func (b *OrderBook) GetStats() Stats {
	b.mu.RLock()
	bidLevels := len(b.sortedBidPrices)
	askLevels := len(b.sortedAskPrices)
	bidDepth := totalLocked(b.bids)
	askDepth := totalLocked(b.asks)
	b.mu.RUnlock()

	return Stats{
		BidLevels:  bidLevels,
		AskLevels:  askLevels,
		BidDepth:   bidDepth,
		AskDepth:   askDepth,
		TotalDepth: bidDepth.Add(askDepth),
		Spread:     b.GetSpread(),
		Imbalance:  b.GetImbalance(),
	}
}
