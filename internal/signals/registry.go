package signals

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/pkg/types"
)

// SignalStore is the persistence surface the registry writes detections to.
// Implemented by internal/storage.Store.
type SignalStore interface {
	AppendSignal(types.Signal) error
}

// Detection is one processor's result from real-time trade dispatch, kept
// alongside the processor's name/weight/adjustment so the stream processor
// can turn it into a persisted DetectedPattern (spec §4.11).
type Detection struct {
	ProcessorName string
	Weight        float64
	Adjustment    float64
	Result        Result
}

// Registry holds every registered processor and dispatches batch
// (processEvent) and real-time (processRealTimeTrade) processing across
// them per spec §4.10.
type Registry struct {
	processors []Processor
	store      SignalStore
	logger     *slog.Logger
}

// NewRegistry builds a registry over the given processors.
func NewRegistry(store SignalStore, logger *slog.Logger, processors ...Processor) *Registry {
	return &Registry{
		processors: processors,
		store:      store,
		logger:     logger.With("component", "signal_registry"),
	}
}

// ProcessEvent invokes every batch-compatible processor (market-only and
// batch-only kinds) against (event, market), persists a Signal record per
// detection, and returns the list.
func (r *Registry) ProcessEvent(event types.Event, market types.Market) []types.Signal {
	ctx := Context{Event: event, Market: market}

	var out []types.Signal
	for _, p := range r.processors {
		if p.Kind() == KindTrade {
			continue
		}

		res, err := r.runSafely(p, ctx)
		if err != nil {
			r.logger.Error("processor error", "processor", p.Name(), "error", err)
			continue
		}
		if !res.Detected {
			continue
		}

		sig := types.Signal{
			ID:         uuid.NewString(),
			EventID:    event.ID,
			SignalType: p.Name(),
			Severity:   res.Severity,
			Confidence: res.Confidence,
			Direction:  res.Direction,
			Weight:     p.Weight(),
			Adjustment: CalculateAdjustment(res, p.Weight()),
			Metadata:   res.Metadata,
			DetectedAt: time.Now(),
		}
		if err := r.store.AppendSignal(sig); err != nil {
			r.logger.Error("persist signal", "signalType", sig.SignalType, "error", err)
		}
		out = append(out, sig)
	}
	return out
}

// ProcessRealTimeTrade invokes every trade and market-only processor with
// the same (event, market, trade, book) context, skipping batch-only
// processors. Per-processor errors are caught, logged,
// and do not halt the pipeline.
func (r *Registry) ProcessRealTimeTrade(event types.Event, market types.Market, trade types.Trade, book *orderbook.OrderBook) []Detection {
	ctx := Context{Event: event, Market: market, Trade: &trade, Book: book}

	var out []Detection
	for _, p := range r.processors {
		if p.Kind() == KindBatchOnly {
			continue
		}

		res, err := r.runSafely(p, ctx)
		if err != nil {
			r.logger.Error("processor error", "processor", p.Name(), "error", err)
			continue
		}
		if !res.Detected {
			continue
		}

		out = append(out, Detection{
			ProcessorName: p.Name(),
			Weight:        p.Weight(),
			Adjustment:    CalculateAdjustment(res, p.Weight()),
			Result:        res,
		})
	}
	return out
}

// runSafely recovers a panicking processor into a ProcessorError (spec §7):
// the pipeline continues with whatever processors remain.
func (r *Registry) runSafely(p Processor, ctx Context) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processor %s panicked: %v", p.Name(), rec)
		}
	}()
	return p.Process(ctx)
}
