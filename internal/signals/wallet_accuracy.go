package signals

import (
	"math"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/wallet"
	"polymarket-surveillance/pkg/types"
)

// WalletAccuracyProcessor flags trades from wallets whose historical win
// rate is implausibly high given their sample size (spec §4.9).
type WalletAccuracyProcessor struct {
	cfg     config.WalletAccuracyConfig
	wallets *wallet.Tracker
}

// NewWalletAccuracyProcessor builds the wallet-accuracy detector over the
// shared wallet tracker.
func NewWalletAccuracyProcessor(cfg config.WalletAccuracyConfig, wallets *wallet.Tracker) *WalletAccuracyProcessor {
	return &WalletAccuracyProcessor{cfg: cfg, wallets: wallets}
}

func (p *WalletAccuracyProcessor) Name() string    { return "wallet-accuracy" }
func (p *WalletAccuracyProcessor) Kind() Kind       { return KindTrade }
func (p *WalletAccuracyProcessor) Weight() float64 { return p.cfg.Weight }

func (p *WalletAccuracyProcessor) Process(ctx Context) (Result, error) {
	if ctx.Trade == nil {
		return Result{}, nil
	}
	trade := *ctx.Trade

	address := trade.Maker
	if address == "" {
		address = trade.Taker
	}
	if address == "" {
		return Result{}, nil
	}

	profile, ok := p.wallets.Profile(address)
	if !ok {
		return Result{}, nil
	}

	if profile.WinRate <= p.cfg.MinWinRate || profile.ResolvedPositions < p.cfg.MinResolvedPositions {
		return Result{}, nil
	}

	z := (profile.WinRate - 0.5) / math.Sqrt(0.25/float64(profile.ResolvedPositions))
	confidence := clamp01(z / 3)

	severity := types.SeverityMedium
	if profile.WinRate > 0.85 || z > 3 {
		severity = types.SeverityHigh
	}

	return Result{
		Detected:   true,
		Confidence: confidence,
		Severity:   severity,
		Metadata: map[string]any{
			"address":           address,
			"winRate":           profile.WinRate,
			"resolvedPositions": profile.ResolvedPositions,
			"zScore":            z,
		},
	}, nil
}
