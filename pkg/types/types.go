// Package types defines the shared data structures used across all packages.
//
// This is the common vocabulary for the surveillance engine — assets, order
// book levels, trades, wallet profiles, and the records the detectors and
// storage layer exchange. It has no dependencies on internal packages, so it
// can be imported by any layer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a trade or order-book level: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Direction is the outcome-token direction a detected pattern or trade leans
// toward. YES/NO apply to binary-outcome trades; BUY/SELL are used when the
// detector only has order-book side information.
type Direction string

const (
	DirYES  Direction = "YES"
	DirNO   Direction = "NO"
	DirBuy  Direction = "BUY"
	DirSell Direction = "SELL"
)

// Severity is the qualitative weight assigned to a detected pattern.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// PriceLevel is a single bid or ask level: price and size are both positive;
// size == 0 means "remove this level" on a delta.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Trade is the canonical, ingress-normalized representation of an executed
// trade. Raw feed/REST records carry synonym field names (see
// internal/normalize) that are resolved into this shape at the boundary.
type Trade struct {
	ID        string          `json:"id"`
	AssetID   string          `json:"assetId"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Side      Side            `json:"side"`
	Maker     string          `json:"maker"`
	Taker     string          `json:"taker"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notional returns price * size for this trade.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Size)
}

// SuspiciousFlag is a single named risk flag raised against a wallet.
type SuspiciousFlag struct {
	Flag     string         `json:"flag"`
	AddedAt  time.Time      `json:"addedAt"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// WalletProfile is the accumulated trading history and risk assessment for
// one on-chain address. Addresses are always stored lower-cased.
type WalletProfile struct {
	Address           string           `json:"address"`
	FirstTradeAt      time.Time        `json:"firstTradeAt"`
	LastTradeAt       time.Time        `json:"lastTradeAt"`
	TotalTrades       int              `json:"totalTrades"`
	TotalVolume       decimal.Decimal  `json:"totalVolume"`
	AvgTradeSize      decimal.Decimal  `json:"avgTradeSize"`
	MaxTradeSize      decimal.Decimal  `json:"maxTradeSize"`
	ResolvedPositions int              `json:"resolvedPositions"`
	Wins              int              `json:"wins"`
	Losses            int              `json:"losses"`
	WinRate           float64          `json:"winRate"`
	AvgProfit         decimal.Decimal  `json:"avgProfit"`
	RiskScore         float64          `json:"riskScore"`
	SuspiciousFlags   []SuspiciousFlag `json:"suspiciousFlags"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// HasFlag reports whether the profile already carries the named flag.
func (p *WalletProfile) HasFlag(name string) bool {
	for _, f := range p.SuspiciousFlags {
		if f.Flag == name {
			return true
		}
	}
	return false
}

// OrderbookSnapshotRecord is a point-in-time liquidity sample kept by the
// liquidity tracker's per-asset ring buffer.
type OrderbookSnapshotRecord struct {
	AssetID    string          `json:"assetId"`
	Bids       []PriceLevel    `json:"bids"`
	Asks       []PriceLevel    `json:"asks"`
	BidDepth   decimal.Decimal `json:"bidDepth"`
	AskDepth   decimal.Decimal `json:"askDepth"`
	TotalDepth decimal.Decimal `json:"totalDepth"`
	BestBid    decimal.Decimal `json:"bestBid"`
	BestAsk    decimal.Decimal `json:"bestAsk"`
	MidPrice   decimal.Decimal `json:"midPrice"`
	BidLevels  int             `json:"bidLevels"`
	AskLevels  int             `json:"askLevels"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// DetectedPattern is a persisted detection emitted by the signal registry.
type DetectedPattern struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	EventID    string         `json:"eventId"`
	AssetID    string         `json:"assetId"`
	Confidence float64        `json:"confidence"`
	Direction  Direction      `json:"direction,omitempty"`
	Severity   Severity       `json:"severity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TradeID    string         `json:"tradeId,omitempty"`
	DetectedAt time.Time      `json:"detectedAt"`
}

// WhaleTradeRecord is a persisted whale-trade detection with full book
// context captured at detection time.
type WhaleTradeRecord struct {
	ID            string          `json:"id"`
	AssetID       string          `json:"assetId"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	Side          Side            `json:"side"`
	Notional      decimal.Decimal `json:"notional"`
	DepthPercent  float64         `json:"depthPercent"`
	BookDepth     decimal.Decimal `json:"bookDepth"`
	Spread        decimal.Decimal `json:"spread"`
	SpreadPercent float64         `json:"spreadPercent"`
	MidPrice      decimal.Decimal `json:"midPrice"`
	Imbalance     float64         `json:"imbalance"`
	Timestamp     time.Time       `json:"timestamp"`
}

// WhaleSignal is the in-memory, time-decaying per-asset whale signal
// maintained by the probability adjuster.
type WhaleSignal struct {
	Direction     float64   `json:"direction"` // [-1, +1]
	Strength      float64   `json:"strength"`  // [0, 1]
	Timestamp     time.Time `json:"timestamp"`
	Trades        int       `json:"trades"`
	TotalNotional float64   `json:"totalNotional"`
	NetDirection  float64   `json:"netDirection"`
}

// FundingEvent is an externally-sourced funding transfer used by the
// wallet-cluster discovery logic. Funding events are supplied by an
// external collaborator; this engine never mines them from chain data.
type FundingEvent struct {
	Address   string          `json:"address"`
	Source    string          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Signal is the record the signal registry persists for each detection
// produced by processEvent (spec §4.10). It differs from DetectedPattern in
// carrying the processor's weight and the resulting probability adjustment,
// not just the raw detection.
type Signal struct {
	ID         string         `json:"id"`
	EventID    string         `json:"eventId"`
	SignalType string         `json:"signalType"`
	Severity   Severity       `json:"severity"`
	Confidence float64        `json:"confidence"`
	Direction  Direction      `json:"direction,omitempty"`
	Weight     float64        `json:"weight"`
	Adjustment float64        `json:"adjustment"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TradeID    string         `json:"tradeId,omitempty"`
	DetectedAt time.Time      `json:"detectedAt"`
}

// Market is the minimal market metadata a signal processor needs: enough
// context to judge liquidity, resolution timing, and token identity. It is
// supplied by the event/market store, an external collaborator in this
// engine's scope (see spec §1); only the fields the detectors read are kept.
type Market struct {
	EventID        string
	ConditionID    string
	TokenID        string
	Liquidity      decimal.Decimal
	Volume24h      decimal.Decimal
	Probability    float64
	EndDate        *time.Time
	ResolutionDate *time.Time
}

// Event is the minimal event metadata a batch processor needs.
type Event struct {
	ID string
}
