package signals

import (
	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/wallet"
	"polymarket-surveillance/pkg/types"
)

// FreshWalletProcessor flags a large trade relative to market liquidity
// placed by a wallet that is new or thinly-traded (spec §4.9).
type FreshWalletProcessor struct {
	cfg     config.FreshWalletConfig
	wallets *wallet.Tracker
}

// NewFreshWalletProcessor builds the fresh-wallet detector over the shared
// wallet tracker.
func NewFreshWalletProcessor(cfg config.FreshWalletConfig, wallets *wallet.Tracker) *FreshWalletProcessor {
	return &FreshWalletProcessor{cfg: cfg, wallets: wallets}
}

func (p *FreshWalletProcessor) Name() string    { return "fresh-wallet" }
func (p *FreshWalletProcessor) Kind() Kind       { return KindTrade }
func (p *FreshWalletProcessor) Weight() float64 { return p.cfg.Weight }

func (p *FreshWalletProcessor) Process(ctx Context) (Result, error) {
	if ctx.Trade == nil {
		return Result{}, nil
	}
	trade := *ctx.Trade

	address := trade.Maker
	if address == "" {
		address = trade.Taker
	}
	if address == "" || ctx.Market.Liquidity.Sign() <= 0 {
		return Result{}, nil
	}

	profile, ok := p.wallets.Profile(address)
	if !ok {
		profile = types.WalletProfile{Address: address, FirstTradeAt: trade.Timestamp, TotalTrades: 1}
	}

	if !wallet.IsFresh(profile, p.cfg.MaxAgeDays, p.cfg.MaxTrades, trade.Timestamp) {
		return Result{}, nil
	}

	liquidity, _ := ctx.Market.Liquidity.Float64()
	tradeSize, _ := trade.Size.Float64()
	if liquidity <= 0 {
		return Result{}, nil
	}
	liquidityPercent := tradeSize / liquidity
	if liquidityPercent < p.cfg.MinTradeSize {
		return Result{}, nil
	}

	ageDays := trade.Timestamp.Sub(profile.FirstTradeAt).Hours() / 24
	freshnessScore := (maxFloat(0, 1-ageDays/p.cfg.MaxAgeDays) + maxFloat(0, 1-float64(profile.TotalTrades)/float64(p.cfg.MaxTrades))) / 2
	sizeScore := clamp01((liquidityPercent - p.cfg.MinTradeSize) / (9 * p.cfg.MinTradeSize))
	confidence := 0.6*freshnessScore + 0.4*sizeScore

	severity := types.SeverityMedium
	if (ageDays < 1 || profile.TotalTrades < 3) && liquidityPercent > 5*p.cfg.MinTradeSize {
		severity = types.SeverityHigh
	}

	return Result{
		Detected:   true,
		Confidence: clamp01(confidence),
		Direction:  sideDirection(trade.Side),
		Severity:   severity,
		Metadata: map[string]any{
			"address":          address,
			"walletAgeDays":    ageDays,
			"totalTrades":      profile.TotalTrades,
			"liquidityPercent": liquidityPercent,
		},
	}, nil
}
