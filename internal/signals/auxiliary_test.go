package signals

import (
	"testing"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

func TestVolumeSpikeDetectsHighRatio(t *testing.T) {
	proc := NewVolumeSpikeProcessor(config.Default().Signals.VolumeSpike)
	market := types.Market{Liquidity: decimal.NewFromInt(1000), Volume24h: decimal.NewFromInt(10000)}

	res, err := proc.Process(Context{Market: market})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Detected {
		t.Fatal("expected detection: volume 10x liquidity")
	}
}

func TestProbabilityExtremeDetectsNearOne(t *testing.T) {
	proc := NewProbabilityExtremeProcessor(config.Default().Signals.ProbabilityExtreme)
	res, err := proc.Process(Context{Market: types.Market{Probability: 0.97}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Detected {
		t.Fatal("expected detection near p=1")
	}
	if res.Direction != types.DirYES {
		t.Errorf("Direction = %v, want YES", res.Direction)
	}
}

func TestProbabilityExtremeIgnoresMidRange(t *testing.T) {
	proc := NewProbabilityExtremeProcessor(config.Default().Signals.ProbabilityExtreme)
	res, err := proc.Process(Context{Market: types.Market{Probability: 0.5}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Detected {
		t.Error("expected no detection at p=0.5")
	}
}

func TestHighLiquidityDetectsAboveThreshold(t *testing.T) {
	proc := NewHighLiquidityProcessor(config.Default().Signals.HighLiquidity)
	res, err := proc.Process(Context{Market: types.Market{Liquidity: decimal.NewFromInt(250000)}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.Detected {
		t.Fatal("expected detection above threshold")
	}
	if res.Severity != types.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH at 2.5x threshold", res.Severity)
	}
}
