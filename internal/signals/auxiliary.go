package signals

import (
	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

// VolumeSpikeProcessor flags markets whose 24h volume is large relative to
// their liquidity — a cheap market-level signal retained from the source
// alongside the hard-core detectors (spec §4.9's "auxiliary batch
// processors").
type VolumeSpikeProcessor struct {
	cfg config.VolumeSpikeConfig
}

func NewVolumeSpikeProcessor(cfg config.VolumeSpikeConfig) *VolumeSpikeProcessor {
	return &VolumeSpikeProcessor{cfg: cfg}
}

func (p *VolumeSpikeProcessor) Name() string    { return "volume-spike" }
func (p *VolumeSpikeProcessor) Kind() Kind       { return KindBatchOnly }
func (p *VolumeSpikeProcessor) Weight() float64 { return p.cfg.Weight }

func (p *VolumeSpikeProcessor) Process(ctx Context) (Result, error) {
	liquidity, _ := ctx.Market.Liquidity.Float64()
	if liquidity <= 0 {
		return Result{}, nil
	}
	volume, _ := ctx.Market.Volume24h.Float64()
	ratio := volume / liquidity
	if ratio <= p.cfg.VolumeLiquidityRatio {
		return Result{}, nil
	}

	severity := types.SeverityMedium
	if ratio > p.cfg.VolumeLiquidityRatio*2 {
		severity = types.SeverityHigh
	}

	return Result{
		Detected:   true,
		Confidence: clamp01(ratio / (p.cfg.VolumeLiquidityRatio * 2)),
		Severity:   severity,
		Metadata:   map[string]any{"volumeLiquidityRatio": ratio},
	}, nil
}

// ProbabilityExtremeProcessor flags markets trading near 0 or 1 — the
// clearest sign the market considers the outcome all but settled.
type ProbabilityExtremeProcessor struct {
	cfg config.ProbabilityExtremeConfig
}

func NewProbabilityExtremeProcessor(cfg config.ProbabilityExtremeConfig) *ProbabilityExtremeProcessor {
	return &ProbabilityExtremeProcessor{cfg: cfg}
}

func (p *ProbabilityExtremeProcessor) Name() string    { return "probability-extreme" }
func (p *ProbabilityExtremeProcessor) Kind() Kind       { return KindBatchOnly }
func (p *ProbabilityExtremeProcessor) Weight() float64 { return p.cfg.Weight }

func (p *ProbabilityExtremeProcessor) Process(ctx Context) (Result, error) {
	prob := ctx.Market.Probability
	if prob <= 0 || prob >= 1 {
		return Result{}, nil
	}
	distanceFromCenter := minFloat(prob, 1-prob)
	if distanceFromCenter >= p.cfg.Threshold {
		return Result{}, nil
	}

	direction := types.DirNO
	if prob >= 0.5 {
		direction = types.DirYES
	}

	severity := types.SeverityMedium
	if distanceFromCenter < p.cfg.Threshold/2 {
		severity = types.SeverityHigh
	}

	confidence := clamp01((p.cfg.Threshold - distanceFromCenter) / p.cfg.Threshold)

	return Result{
		Detected:   true,
		Confidence: confidence,
		Direction:  direction,
		Severity:   severity,
		Metadata:   map[string]any{"probability": prob},
	}, nil
}

// HighLiquidityProcessor flags markets with unusually deep books — a
// context signal for how much weight to give other detectors' size-based
// confidence scores.
type HighLiquidityProcessor struct {
	cfg config.HighLiquidityConfig
}

func NewHighLiquidityProcessor(cfg config.HighLiquidityConfig) *HighLiquidityProcessor {
	return &HighLiquidityProcessor{cfg: cfg}
}

func (p *HighLiquidityProcessor) Name() string    { return "high-liquidity" }
func (p *HighLiquidityProcessor) Kind() Kind       { return KindBatchOnly }
func (p *HighLiquidityProcessor) Weight() float64 { return p.cfg.Weight }

func (p *HighLiquidityProcessor) Process(ctx Context) (Result, error) {
	liquidity, _ := ctx.Market.Liquidity.Float64()
	if liquidity < p.cfg.Threshold {
		return Result{}, nil
	}

	severity := types.SeverityMedium
	if liquidity >= p.cfg.Threshold*2 {
		severity = types.SeverityHigh
	}

	return Result{
		Detected:   true,
		Confidence: clamp01(liquidity / (p.cfg.Threshold * 2)),
		Severity:   severity,
		Metadata:   map[string]any{"liquidity": liquidity},
	}, nil
}
