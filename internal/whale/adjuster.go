package whale

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

// ProbabilityAdjuster blends a base probability with a time-decayed,
// per-asset whale signal (spec §4.8). One signal is held per asset and
// evicted once it exceeds maxSignalAge.
type ProbabilityAdjuster struct {
	mu      sync.Mutex
	signals map[string]*types.WhaleSignal
	cfg     config.WhaleConfig

	now func() time.Time
}

// NewProbabilityAdjuster creates an empty adjuster from the whale config's
// weight/decay/maxAge tunables.
func NewProbabilityAdjuster(cfg config.WhaleConfig) *ProbabilityAdjuster {
	return &ProbabilityAdjuster{
		signals: make(map[string]*types.WhaleSignal),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (a *ProbabilityAdjuster) halfLife() time.Duration {
	return time.Duration(a.cfg.DecayHalfLifeMs) * time.Millisecond
}

func (a *ProbabilityAdjuster) maxAge() time.Duration {
	return time.Duration(a.cfg.MaxSignalAgeMs) * time.Millisecond
}

func decayFactor(age, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	return math.Pow(0.5, age.Seconds()/halfLife.Seconds())
}

// RecordWhaleTrade folds a freshly-detected whale trade into the asset's
// signal: direction +1 for BUY / -1 for SELL, raw strength
// min(depthPercent/20, 1). Any existing signal is decayed by half before
// blending, so recent activity always outweighs stale activity.
func (a *ProbabilityAdjuster) RecordWhaleTrade(w types.WhaleTradeRecord) types.WhaleSignal {
	dir := 1.0
	if w.Side == types.SELL {
		dir = -1.0
	}
	strength := math.Min(w.DepthPercent/20, 1)

	a.mu.Lock()
	defer a.mu.Unlock()

	existing, ok := a.signals[w.AssetID]
	if !ok {
		sig := &types.WhaleSignal{
			Direction:     dir,
			Strength:      strength,
			Timestamp:     a.now(),
			Trades:        1,
			TotalNotional: mustFloat(w.Notional),
			NetDirection:  dir,
		}
		a.signals[w.AssetID] = sig
		return *sig
	}

	age := a.now().Sub(existing.Timestamp)
	oldStrength := existing.Strength * decayFactor(age, a.halfLife())
	oldDir := existing.Direction

	combinedStrength := math.Min(oldStrength*0.5+strength, 1)
	denom := oldStrength*0.5 + strength
	combinedDirection := dir
	if denom != 0 {
		combinedDirection = (oldDir*oldStrength*0.5 + dir*strength) / denom
	}

	existing.Direction = combinedDirection
	existing.Strength = combinedStrength
	existing.Timestamp = a.now()
	existing.Trades++
	existing.TotalNotional += mustFloat(w.Notional)
	existing.NetDirection = combinedDirection

	return *existing
}

// GetAdjustedProbability returns base adjusted by the asset's decayed whale
// signal, clamped to [0.01, 0.99]. Expired or absent signals return base
// unchanged; an expired signal is evicted as a side effect.
func (a *ProbabilityAdjuster) GetAdjustedProbability(assetID string, base float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	sig, ok := a.signals[assetID]
	if !ok {
		return base
	}

	age := a.now().Sub(sig.Timestamp)
	if age > a.maxAge() {
		delete(a.signals, assetID)
		return base
	}

	decay := decayFactor(age, a.halfLife())
	adjustment := sig.Direction * sig.Strength * decay * a.cfg.Weight
	return clamp(base+adjustment, 0.01, 0.99)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WhaleActivity is the decayed snapshot returned by GetWhaleActivity.
type WhaleActivity struct {
	EffectiveStrength float64
	NetDirection      float64
	Trades            int
	TotalNotional     float64
	AgeMs             int64
}

// GetWhaleActivity returns the asset's decayed signal summary, or
// ok=false if no signal is live (absent or expired).
func (a *ProbabilityAdjuster) GetWhaleActivity(assetID string) (WhaleActivity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sig, ok := a.signals[assetID]
	if !ok {
		return WhaleActivity{}, false
	}

	age := a.now().Sub(sig.Timestamp)
	if age > a.maxAge() {
		return WhaleActivity{}, false
	}

	return WhaleActivity{
		EffectiveStrength: sig.Strength * decayFactor(age, a.halfLife()),
		NetDirection:      sig.NetDirection,
		Trades:            sig.Trades,
		TotalNotional:     sig.TotalNotional,
		AgeMs:             age.Milliseconds(),
	}, true
}

// Cleanup drops every expired signal and returns the count removed.
func (a *ProbabilityAdjuster) Cleanup() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	now := a.now()
	for assetID, sig := range a.signals {
		if now.Sub(sig.Timestamp) > a.maxAge() {
			delete(a.signals, assetID)
			removed++
		}
	}
	return removed
}

// LoadFromHistory replays whale-trade records younger than maxSignalAge on
// startup, oldest first, so the in-memory signal reflects recent history
// without double-counting trades the process already knows about.
func (a *ProbabilityAdjuster) LoadFromHistory(records []types.WhaleTradeRecord) {
	cutoff := a.now().Add(-a.maxAge())
	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		a.RecordWhaleTrade(r)
	}
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
