// Polymarket surveillance engine — monitors live Polymarket order flow for
// market-manipulation patterns (fresh-wallet dumping, sniper clusters,
// wash-trade timing, whale-driven probability swings) and raises detected
// patterns as persisted signals.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	internal/engine            — orchestrator: wires storage, trackers, registry, stream processor
//	internal/exchange          — REST client + WebSocket subscription client for the CLOB feed
//	internal/orderbook         — per-asset order book state, rebuilt from feed snapshots/deltas
//	internal/normalize         — canonicalizes feed/REST payloads into pkg/types
//	internal/wallet            — wallet trust profiles + funding-source clustering
//	internal/liquidity         — order book liquidity snapshots and drop detection
//	internal/whale             — large-trade detection and decayed probability adjustment
//	internal/signals           — the five pattern detectors + three auxiliary processors + registry
//	internal/stream            — the stream processor: feed events in, detections out
//	internal/storage           — in-memory collections with best-effort JSON disk persistence
//	internal/api               — read-only /health and /api/status HTTP surface
//
// This engine never places orders, signs requests, or talks to a
// blockchain — it only observes public market data and raises alerts.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SURV_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.Status.Enabled {
		logger.Info("status surface started", "url", fmt.Sprintf("http://localhost:%d/api/status", cfg.Status.Port))
	}
	logger.Info("surveillance engine started",
		"realtime_enabled", cfg.Realtime.Enabled,
		"worker_pool_size", cfg.Realtime.WorkerPoolSize,
		"ws_url", cfg.Polymarket.WSURL,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
