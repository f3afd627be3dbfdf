package signals

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

type fakeSignalStore struct {
	saved []types.Signal
}

func (f *fakeSignalStore) AppendSignal(sig types.Signal) error {
	f.saved = append(f.saved, sig)
	return nil
}

type panickingProcessor struct{}

func (panickingProcessor) Name() string    { return "panicker" }
func (panickingProcessor) Kind() Kind      { return KindTrade }
func (panickingProcessor) Weight() float64 { return 0.5 }
func (panickingProcessor) Process(Context) (Result, error) {
	panic("boom")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryProcessEventPersistsDetections(t *testing.T) {
	store := &fakeSignalStore{}
	registry := NewRegistry(store, testLogger(),
		NewVolumeSpikeProcessor(config.Default().Signals.VolumeSpike),
		NewProbabilityExtremeProcessor(config.Default().Signals.ProbabilityExtreme),
	)

	market := types.Market{
		Liquidity:   decimal.NewFromInt(1000),
		Volume24h:   decimal.NewFromInt(10000),
		Probability: 0.97,
	}

	signals := registry.ProcessEvent(types.Event{ID: "e1"}, market)

	require.Len(t, signals, 2)
	assert.Len(t, store.saved, 2)
	for _, sig := range signals {
		assert.Equal(t, "e1", sig.EventID)
		assert.NotEmpty(t, sig.ID)
	}
}

func TestRegistryProcessEventSkipsTradeOnlyProcessors(t *testing.T) {
	store := &fakeSignalStore{}
	registry := NewRegistry(store, testLogger(), panickingProcessor{})

	signals := registry.ProcessEvent(types.Event{ID: "e1"}, types.Market{})

	assert.Empty(t, signals)
	assert.Empty(t, store.saved)
}

func TestRegistryProcessRealTimeTradeRecoversFromPanic(t *testing.T) {
	store := &fakeSignalStore{}
	registry := NewRegistry(store, testLogger(), panickingProcessor{})

	detections := registry.ProcessRealTimeTrade(types.Event{ID: "e1"}, types.Market{}, types.Trade{AssetID: "tokenT"}, nil)

	assert.Empty(t, detections, "panicking processor must not crash the pipeline or produce a detection")
}

func TestRegistryProcessRealTimeTradeSkipsBatchOnlyProcessors(t *testing.T) {
	store := &fakeSignalStore{}
	registry := NewRegistry(store, testLogger(), NewVolumeSpikeProcessor(config.Default().Signals.VolumeSpike))

	market := types.Market{Liquidity: decimal.NewFromInt(1000), Volume24h: decimal.NewFromInt(10000)}
	detections := registry.ProcessRealTimeTrade(types.Event{ID: "e1"}, market, types.Trade{AssetID: "tokenT"}, nil)

	assert.Empty(t, detections, "batch-only processors must not run from real-time dispatch")
}
