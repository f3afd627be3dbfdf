package signals

import (
	"polymarket-surveillance/internal/analyzer"
	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

// LiquidityImpactProcessor flags trades whose simulated fill consumes an
// unusually large share of the opposite side of the book (spec §4.9).
type LiquidityImpactProcessor struct {
	cfg config.LiquidityImpactConfig
}

// NewLiquidityImpactProcessor builds the liquidity-impact detector.
func NewLiquidityImpactProcessor(cfg config.LiquidityImpactConfig) *LiquidityImpactProcessor {
	return &LiquidityImpactProcessor{cfg: cfg}
}

func (p *LiquidityImpactProcessor) Name() string    { return "liquidity-impact" }
func (p *LiquidityImpactProcessor) Kind() Kind       { return KindTrade }
func (p *LiquidityImpactProcessor) Weight() float64 { return p.cfg.Weight }

func (p *LiquidityImpactProcessor) Process(ctx Context) (Result, error) {
	if ctx.Trade == nil || ctx.Book == nil {
		return Result{}, nil
	}
	trade := *ctx.Trade

	bids, asks, _, _ := ctx.Book.GetFullBook()
	snap := analyzer.Snapshot{Bids: bids, Asks: asks}
	impact := analyzer.CalculateLiquidityImpact(trade.Size, trade.Side, snap)

	if impact.ImpactPercent/100 <= p.cfg.Threshold {
		return Result{}, nil
	}

	confidence := clamp01(impact.ImpactPercent / 10)
	severity := types.SeverityMedium
	if impact.ImpactPercent > 5 {
		severity = types.SeverityHigh
	}

	return Result{
		Detected:   true,
		Confidence: confidence,
		Direction:  sideDirection(trade.Side),
		Severity:   severity,
		Metadata: map[string]any{
			"levelsConsumed": impact.LevelsConsumed,
			"avgFillPrice":   impact.AvgFillPrice.String(),
			"slippage":       impact.Slippage,
			"tradeSize":      trade.Size.String(),
		},
	}, nil
}
