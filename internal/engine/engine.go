// Package engine wires together every subsystem (storage, order books,
// wallet/whale/liquidity trackers, the signal registry, the subscription
// client, the stream processor, and the status server) into the single
// runnable surveillance engine, mirroring the teacher's
// internal/engine/engine.go construction shape.
package engine

import (
	"log/slog"
	"time"

	"polymarket-surveillance/internal/api"
	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/exchange"
	"polymarket-surveillance/internal/liquidity"
	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/internal/signals"
	"polymarket-surveillance/internal/storage"
	"polymarket-surveillance/internal/stream"
	"polymarket-surveillance/internal/wallet"
	"polymarket-surveillance/internal/whale"
)

// Engine owns every subsystem's lifecycle: the stream processor and the
// status HTTP surface.
type Engine struct {
	cfg    config.Config
	logger *slog.Logger

	store     *storage.Store
	books     *orderbook.Manager
	processor *stream.Processor
	status    *api.Server
}

// New constructs every subsystem and wires them together. It does not
// start anything — call Start for that.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine")

	store, err := storage.New(cfg.Store.DataDir, logger)
	if err != nil {
		return nil, err
	}

	books := orderbook.NewManager(logger)
	liquidityTracker := liquidity.NewTracker()
	walletTracker := wallet.NewTracker(cfg.Wallet, logger)
	fundingAnalyzer := wallet.NewFundingAnalyzer()
	whaleDetector := whale.NewDetector(cfg.Whale, books, logger)
	adjuster := whale.NewProbabilityAdjuster(cfg.Whale)
	adjuster.LoadFromHistory(store.WhaleTrades())

	liquidityImpactProcessor := signals.NewLiquidityImpactProcessor(cfg.Signals.LiquidityImpact)

	registry := signals.NewRegistry(store, logger,
		signals.NewFreshWalletProcessor(cfg.Signals.FreshWallet, walletTracker),
		liquidityImpactProcessor,
		signals.NewWalletAccuracyProcessor(cfg.Signals.WalletAccuracy, walletTracker),
		signals.NewTimingPatternProcessor(cfg.Signals.TimingPattern, store),
		signals.NewSniperClusterProcessor(cfg.Signals.SniperCluster, store, fundingAnalyzer),
		signals.NewVolumeSpikeProcessor(cfg.Signals.VolumeSpike),
		signals.NewProbabilityExtremeProcessor(cfg.Signals.ProbabilityExtreme),
		signals.NewHighLiquidityProcessor(cfg.Signals.HighLiquidity),
	)

	sub := exchange.NewSubscriptionClient(
		cfg.Polymarket.WSURL,
		time.Duration(cfg.Realtime.HeartbeatIntervalMs)*time.Millisecond,
		cfg.Realtime.ReconnectAttempts,
		time.Duration(cfg.Realtime.ReconnectDelayMs)*time.Millisecond,
		logger,
	)
	rest := exchange.NewClient(cfg, logger)

	processor := stream.New(cfg, sub, rest, books, liquidityTracker, walletTracker, fundingAnalyzer, whaleDetector, adjuster, registry, liquidityImpactProcessor, store, logger)

	statusServer := api.NewServer(cfg.Status, processor, logger)

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		books:     books,
		processor: processor,
		status:    statusServer,
	}, nil
}

// Start starts the stream processor and, if enabled, the status server.
func (e *Engine) Start() error {
	if err := e.processor.Start(); err != nil {
		return err
	}

	if e.cfg.Status.Enabled {
		go func() {
			if err := e.status.Start(); err != nil {
				e.logger.Error("status server failed", "error", err)
			}
		}()
	}

	return nil
}

// Stop stops the status server and the stream processor in that order,
// mirroring the teacher's "stop the outward-facing surface first" shutdown
// ordering.
func (e *Engine) Stop() {
	if e.cfg.Status.Enabled {
		if err := e.status.Stop(); err != nil {
			e.logger.Error("stop status server", "error", err)
		}
	}
	e.processor.Stop()
}
