package signals

import (
	"math"
	"time"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

// TimingPatternProcessor flags markets approaching resolution where trade
// volume has concentrated sharply in the last 6 hours relative to the
// preceding 18 (spec §4.9). It is market-only: real-time trades don't
// change which window a trade falls in, so it runs off market/event
// context alone, in both batch and real-time dispatch.
type TimingPatternProcessor struct {
	cfg     config.TimingPatternConfig
	history TradeHistory
	now     func() time.Time
}

// NewTimingPatternProcessor builds the timing-pattern detector over the
// shared trade history reader.
func NewTimingPatternProcessor(cfg config.TimingPatternConfig, history TradeHistory) *TimingPatternProcessor {
	return &TimingPatternProcessor{cfg: cfg, history: history, now: time.Now}
}

func (p *TimingPatternProcessor) Name() string    { return "timing-pattern" }
func (p *TimingPatternProcessor) Kind() Kind       { return KindMarketOnly }
func (p *TimingPatternProcessor) Weight() float64 { return p.cfg.Weight }

func (p *TimingPatternProcessor) Process(ctx Context) (Result, error) {
	resolution := ctx.Market.EndDate
	if resolution == nil {
		resolution = ctx.Market.ResolutionDate
	}
	if resolution == nil {
		return Result{}, nil
	}

	now := p.now()
	hoursToResolution := resolution.Sub(now).Hours()
	if hoursToResolution > p.cfg.WindowHours {
		return Result{}, nil
	}

	trades := p.history.TradesForMarket(ctx.Market.TokenID, now.Add(-24*time.Hour))

	recentCutoff := now.Add(-6 * time.Hour)
	baselineCutoff := now.Add(-24 * time.Hour)

	var recentCount, baselineCount int
	var recentBuyVol, recentSellVol float64
	for _, tr := range trades {
		switch {
		case tr.Timestamp.After(recentCutoff) && !tr.Timestamp.After(now):
			recentCount++
			size, _ := tr.Size.Float64()
			if tr.Side == types.SELL {
				recentSellVol += size
			} else {
				recentBuyVol += size
			}
		case tr.Timestamp.After(baselineCutoff) && !tr.Timestamp.After(recentCutoff):
			baselineCount++
		}
	}

	var ratio float64
	recentRate := float64(recentCount) / 6
	baselineRate := float64(baselineCount) / 18
	switch {
	case baselineCount == 0 && recentCount > 0:
		ratio = math.Inf(1)
	case baselineCount == 0:
		ratio = 0
	default:
		ratio = recentRate / baselineRate
	}

	if !(ratio > p.cfg.ConcentrationThreshold) {
		return Result{}, nil
	}

	dominantSide := types.DirYES
	if recentSellVol > recentBuyVol {
		dominantSide = types.DirNO
	}

	confidence := 1.0
	if !math.IsInf(ratio, 1) {
		confidence = clamp01(ratio / 5)
	}

	severity := types.SeverityMedium
	if ratio > 4 {
		severity = types.SeverityHigh
	}

	return Result{
		Detected:   true,
		Confidence: confidence,
		Direction:  dominantSide,
		Severity:   severity,
		Metadata: map[string]any{
			"tradesLast6h":       recentCount,
			"tradesPrev18h":      baselineCount,
			"concentrationRatio": ratio,
			"dominantSide":       dominantSide,
			"hoursToResolution":  hoursToResolution,
		},
	}, nil
}
