// Package whale detects unusually large trades relative to book depth and
// maintains a per-asset, time-decaying probability-adjustment signal derived
// from them (spec §4.8).
package whale

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/pkg/types"
)

// Detector flags trades whose notional and book-depth share both clear
// thresholds, using the live order book for context.
type Detector struct {
	cfg    config.WhaleConfig
	books  *orderbook.Manager
	logger *slog.Logger
}

// NewDetector creates a whale trade detector backed by the shared order
// book manager.
func NewDetector(cfg config.WhaleConfig, books *orderbook.Manager, logger *slog.Logger) *Detector {
	return &Detector{cfg: cfg, books: books, logger: logger.With("component", "whale_detector")}
}

// AnalyzeTrade requires an initialized book for the trade's asset. It
// returns ok=false when the trade fails the notional or depth-percent gate,
// or when no book is available yet.
func (d *Detector) AnalyzeTrade(trade types.Trade) (types.WhaleTradeRecord, bool) {
	book, ok := d.books.Get(trade.AssetID)
	if !ok || !book.Initialized {
		return types.WhaleTradeRecord{}, false
	}

	notional := trade.Notional()
	minNotional := decimal.NewFromFloat(d.cfg.MinNotionalUSD)
	if notional.LessThan(minNotional) {
		return types.WhaleTradeRecord{}, false
	}

	stats := book.GetStats()
	var relevantDepth decimal.Decimal
	if trade.Side == types.BUY {
		relevantDepth = stats.AskDepth
	} else {
		relevantDepth = stats.BidDepth
	}
	if relevantDepth.Sign() == 0 {
		return types.WhaleTradeRecord{}, false
	}

	depthPercent, _ := trade.Size.Div(relevantDepth).Mul(decimal.NewFromInt(100)).Float64()
	if depthPercent < d.cfg.DepthThresholdPercent {
		return types.WhaleTradeRecord{}, false
	}

	rec := types.WhaleTradeRecord{
		ID:            uuid.NewString(),
		AssetID:       trade.AssetID,
		Price:         trade.Price,
		Size:          trade.Size,
		Side:          trade.Side,
		Notional:      notional,
		DepthPercent:  depthPercent,
		BookDepth:     relevantDepth,
		Spread:        stats.Spread.Spread,
		SpreadPercent: stats.Spread.SpreadPercent,
		MidPrice:      stats.Spread.MidPrice,
		Imbalance:     stats.Imbalance,
		Timestamp:     trade.Timestamp,
	}

	d.logger.Info("whale trade detected", "assetId", trade.AssetID, "notional", notional.String(), "depthPercent", depthPercent)
	return rec, true
}
