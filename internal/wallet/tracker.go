// Package wallet tracks per-address trading history, risk scoring, and
// suspicious-pattern flags (spec §4.5), plus funding-based cluster
// discovery in funding.go.
package wallet

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

// FlagWeight is the risk-score contribution of a named suspicious flag.
var FlagWeight = map[string]float64{
	"high_win_rate":            10,
	"fresh_wallet_large_trade": 8,
	"sniper_cluster_member":    8,
	"unusual_timing":           6,
	"liquidity_impact":         6,
	"coordinated_trading":      10,
	"rapid_position_close":     5,
}

const defaultFlagWeight = 3

// Tracker owns per-address profiles and risk scoring.
type Tracker struct {
	mu       sync.Mutex
	profiles map[string]*types.WalletProfile
	cfg      config.WalletConfig
	logger   *slog.Logger

	onProfileUpdated func(*types.WalletProfile)
}

// NewTracker creates an empty wallet tracker.
func NewTracker(cfg config.WalletConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		profiles: make(map[string]*types.WalletProfile),
		cfg:      cfg,
		logger:   logger.With("component", "wallet_tracker"),
	}
}

// OnProfileUpdated registers a callback fired after every trackTrade.
func (t *Tracker) OnProfileUpdated(fn func(*types.WalletProfile)) { t.onProfileUpdated = fn }

// Profile returns a copy of the address's profile, if known.
func (t *Tracker) Profile(address string) (types.WalletProfile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.profiles[normalizeAddr(address)]
	if !ok {
		return types.WalletProfile{}, false
	}
	return *p, true
}

func normalizeAddr(s string) string { return s }

// TrackTrade resolves the wallet address from the trade, updates its
// profile, runs suspicious-pattern checks, recomputes risk score.
func (t *Tracker) TrackTrade(trade types.Trade) error {
	address := resolveAddress(trade)
	if address == "" {
		return fmt.Errorf("track trade: no wallet address on trade")
	}

	tradeSize := tradeSize(trade)

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.profiles[address]
	if !ok {
		p = &types.WalletProfile{
			Address:      address,
			FirstTradeAt: trade.Timestamp,
			CreatedAt:    time.Now(),
		}
		t.profiles[address] = p
	}

	p.TotalTrades++
	p.TotalVolume = p.TotalVolume.Add(tradeSize)
	p.LastTradeAt = trade.Timestamp
	if p.FirstTradeAt.IsZero() || trade.Timestamp.Before(p.FirstTradeAt) {
		p.FirstTradeAt = trade.Timestamp
	}
	if p.TotalTrades > 0 {
		p.AvgTradeSize = p.TotalVolume.Div(decimal.NewFromInt(int64(p.TotalTrades)))
	}
	if tradeSize.GreaterThan(p.MaxTradeSize) {
		p.MaxTradeSize = tradeSize
	}

	t.checkSuspiciousPatterns(p, tradeSize)
	t.recomputeRiskScore(p)
	p.UpdatedAt = time.Now()

	if t.onProfileUpdated != nil {
		cp := *p
		t.onProfileUpdated(&cp)
	}
	return nil
}

func resolveAddress(trade types.Trade) string {
	if trade.Maker != "" {
		return trade.Maker
	}
	return trade.Taker
}

func tradeSize(trade types.Trade) decimal.Decimal {
	if trade.Size.Sign() > 0 {
		return trade.Size
	}
	return decimal.Zero
}

// IsFresh implements the freshness rule shared across processors: a wallet
// is fresh iff walletAgeDays < maxAgeDays OR totalTrades < maxTrades.
func IsFresh(p types.WalletProfile, maxAgeDays float64, maxTrades int, now time.Time) bool {
	ageDays := now.Sub(p.FirstTradeAt).Hours() / 24
	return ageDays < maxAgeDays || p.TotalTrades < maxTrades
}

func (t *Tracker) checkSuspiciousPatterns(p *types.WalletProfile, tradeSize decimal.Decimal) {
	minTradeSize := decimal.NewFromFloat(0.02)

	if IsFresh(*p, 7, 10, time.Now()) && tradeSize.GreaterThanOrEqual(minTradeSize) {
		addFlagIfAbsent(p, "fresh_wallet_large_trade", nil)
	}
	if p.AvgTradeSize.Sign() > 0 && tradeSize.GreaterThan(p.AvgTradeSize.Mul(decimal.NewFromInt(5))) {
		addFlagIfAbsent(p, "unusual_trade_size", nil)
	}
}

func addFlagIfAbsent(p *types.WalletProfile, flag string, metadata map[string]any) {
	if p.HasFlag(flag) {
		return
	}
	p.SuspiciousFlags = append(p.SuspiciousFlags, types.SuspiciousFlag{
		Flag:     flag,
		AddedAt:  time.Now(),
		Metadata: metadata,
	})
}

// UpdateOnResolution records a resolved position's outcome, recomputes
// winRate and avgProfit, and flags sustained high accuracy.
func (t *Tracker) UpdateOnResolution(address string, won bool, profit decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.profiles[address]
	if !ok {
		return fmt.Errorf("update on resolution: unknown address %q", address)
	}

	prevResolved := p.ResolvedPositions
	p.ResolvedPositions++
	if won {
		p.Wins++
	} else {
		p.Losses++
	}
	if p.ResolvedPositions > 0 {
		p.WinRate = float64(p.Wins) / float64(p.ResolvedPositions)
	}

	prevAvg, _ := p.AvgProfit.Float64()
	newAvg := (prevAvg*float64(prevResolved) + mustFloat(profit)) / float64(p.ResolvedPositions)
	p.AvgProfit = decimal.NewFromFloat(newAvg)

	if p.ResolvedPositions >= t.minResolvedPositions() && p.WinRate >= t.minWinRate() {
		addFlagIfAbsent(p, "high_win_rate", map[string]any{"winRate": p.WinRate, "resolvedPositions": p.ResolvedPositions})
	}

	t.recomputeRiskScore(p)
	p.UpdatedAt = time.Now()
	return nil
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (t *Tracker) minResolvedPositions() int { return 20 }
func (t *Tracker) minWinRate() float64       { return 0.7 }

// recomputeRiskScore implements spec §4.5's additive, capped risk score.
func (t *Tracker) recomputeRiskScore(p *types.WalletProfile) {
	score := 0.0

	if p.ResolvedPositions >= t.minResolvedPositions() {
		if p.WinRate >= 0.9 {
			score += 30
		} else if p.WinRate >= t.minWinRate() {
			frac := (p.WinRate - t.minWinRate()) / (0.9 - t.minWinRate())
			score += 15 + frac*15
		}
	}

	minTradeSize := 0.02
	if IsFresh(*p, 7, 10, time.Now()) {
		avg, _ := p.AvgTradeSize.Float64()
		if avg >= minTradeSize {
			mult := math.Min(avg/minTradeSize, 5)
			score += 5 * mult
		}
	}

	avg, _ := p.AvgTradeSize.Float64()
	max, _ := p.MaxTradeSize.Float64()
	if avg > 0 {
		ratio := max / avg
		switch {
		case ratio > 10:
			score += 20
		case ratio > 5:
			score += 10
		case ratio > 3:
			score += 5
		}
	}

	for _, f := range p.SuspiciousFlags {
		w, ok := FlagWeight[f.Flag]
		if !ok {
			w = defaultFlagWeight
		}
		score += w
	}

	if score > 100 {
		score = 100
	}
	p.RiskScore = score
}
