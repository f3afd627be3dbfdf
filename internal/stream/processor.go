package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/api"
	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/internal/exchange"
	"polymarket-surveillance/internal/liquidity"
	"polymarket-surveillance/internal/normalize"
	"polymarket-surveillance/internal/orderbook"
	"polymarket-surveillance/internal/signals"
	"polymarket-surveillance/internal/storage"
	"polymarket-surveillance/internal/wallet"
	"polymarket-surveillance/internal/whale"
	"polymarket-surveillance/pkg/types"
)

// significantPriceDeltaPercent is the mid-price move (spec §4.11) that
// triggers a monitoring log line on a price_change frame.
const significantPriceDeltaPercent = 5.0

// liquidityDropThresholdPercent is detectLiquidityDrop's default threshold
// (spec §4.6).
const liquidityDropThresholdPercent = 20.0

// Processor is the spec §4.11 stream processor: it wires the subscription
// client's feed events into the order-book manager, liquidity tracker,
// wallet tracker, whale detector, and signal registry, mirroring the
// teacher's engine.go Start/Stop/ctx/wg orchestration shape.
type Processor struct {
	cfg config.Config

	sub       *exchange.SubscriptionClient
	rest      *exchange.Client
	books     *orderbook.Manager
	liquidity *liquidity.Tracker
	wallets   *wallet.Tracker
	funding   *wallet.FundingAnalyzer
	whaleDet  *whale.Detector
	adjuster  *whale.ProbabilityAdjuster
	registry  *signals.Registry
	liqImpact *signals.LiquidityImpactProcessor
	store     *storage.Store
	pool      *WorkerPool
	logger    *slog.Logger

	runningMu sync.Mutex
	running   bool

	processedTrades atomic.Uint64
	detectedSignals atomic.Uint64
	startTime       time.Time

	midMu   sync.Mutex
	lastMid map[string]decimal.Decimal

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a stream processor over every already-constructed subsystem.
func New(
	cfg config.Config,
	sub *exchange.SubscriptionClient,
	rest *exchange.Client,
	books *orderbook.Manager,
	liq *liquidity.Tracker,
	wallets *wallet.Tracker,
	funding *wallet.FundingAnalyzer,
	whaleDet *whale.Detector,
	adjuster *whale.ProbabilityAdjuster,
	registry *signals.Registry,
	liqImpact *signals.LiquidityImpactProcessor,
	store *storage.Store,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		cfg:       cfg,
		sub:       sub,
		rest:      rest,
		books:     books,
		liquidity: liq,
		wallets:   wallets,
		funding:   funding,
		whaleDet:  whaleDet,
		adjuster:  adjuster,
		registry:  registry,
		liqImpact: liqImpact,
		store:     store,
		logger:    logger.With("component", "stream_processor"),
		lastMid:   make(map[string]decimal.Decimal),
	}
}

// Start wires feed-event handlers, connects the subscription client, and
// subscribes to every active market. If realtime is disabled in config,
// Start is a documented no-op (spec §4.11's dry-run-free redesign). Failures
// are logged and the host process remains up.
func (p *Processor) Start() error {
	if !p.cfg.Realtime.Enabled {
		p.logger.Info("realtime disabled, stream processor is a no-op")
		return nil
	}

	p.runningMu.Lock()
	if p.running {
		p.runningMu.Unlock()
		return nil
	}
	p.running = true
	p.startTime = time.Now()
	p.runningMu.Unlock()

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.pool = NewWorkerPool(p.ctx, p.cfg.Realtime.WorkerPoolSize)

	p.sub.AddListener(p.handleFrame)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sub.Connect(p.ctx); err != nil {
			p.logger.Error("subscription client terminated", "error", err)
		}
	}()

	p.subscribeActiveMarkets()

	return nil
}

// Stop disconnects the feed, cancels the processing context, closes the
// worker pool, and waits for every goroutine to exit. Because the context
// is cancelled first, trade jobs still queued in the pool are not run.
func (p *Processor) Stop() {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return
	}
	p.running = false
	p.runningMu.Unlock()

	p.logger.Info("stopping stream processor")

	if err := p.sub.Disconnect(); err != nil {
		p.logger.Warn("disconnect", "error", err)
	}
	if p.cancel != nil {
		p.cancel()
	}
	if p.pool != nil {
		if err := p.pool.Close(); err != nil {
			p.logger.Error("worker pool shutdown", "error", err)
		}
	}
	p.wg.Wait()

	p.logger.Info("stream processor stopped")
}

// subscribeActiveMarkets subscribes to every token id the storage layer
// already knows about. Spec §4.11 names a REST-market-fetch fallback for
// when storage has no active markets yet; this engine's REST client (§4.2)
// exposes only order book/trade/price reads, not a market-listing
// operation, so that fallback has no concrete implementation here — an
// external market-discovery collaborator is expected to populate storage's
// market cache via UpsertMarket before Start is called.
func (p *Processor) subscribeActiveMarkets() {
	tokenIDs := p.store.ActiveTokenIDs()
	if len(tokenIDs) == 0 {
		p.logger.Warn("no active markets in storage to subscribe to")
		return
	}
	for _, tokenID := range tokenIDs {
		if err := p.sub.Subscribe(tokenID, []exchange.EventKind{
			exchange.KindBook, exchange.KindPriceChange, exchange.KindLastTradePrice,
		}); err != nil {
			p.logger.Error("subscribe", "tokenId", tokenID, "error", err)
		}
	}
}

// handleFrame is the subscription client's single registered listener; it
// dispatches by frame kind per spec §4.11's feed-event wiring.
func (p *Processor) handleFrame(f exchange.Frame) {
	switch f.Kind {
	case exchange.KindBook:
		p.handleBookFrame(f)
	case exchange.KindPriceChange:
		p.handlePriceChangeFrame(f)
	case exchange.KindLastTradePrice:
		assetID := f.AssetID
		payload := f.Payload
		p.pool.Submit(assetID, func() { p.processTrade(payload) })
	case exchange.KindDisconnected:
		p.logger.Warn("feed disconnected, clearing all books")
		p.books.Reset()
	case exchange.KindConnected:
		p.logger.Info("feed connected (or reconnected)")
	case exchange.KindError:
		p.logger.Error("subscription protocol error", "error", f.Err)
	}
}

func (p *Processor) handleBookFrame(f exchange.Frame) {
	payload := normalize.M(f.Payload)
	bids := normalize.PriceLevels(payload["bids"])
	asks := normalize.PriceLevels(payload["asks"])
	hash, _ := normalize.StringField(payload, "hash")
	timestamp := normalize.Timestamp(payload)

	p.books.HandleBookSnapshot(payload, bids, asks, timestamp, hash)
	p.processOrderBookUpdate(f.AssetID)
}

func (p *Processor) handlePriceChangeFrame(f exchange.Frame) {
	payload := normalize.M(f.Payload)
	entries := priceChangeEntries(payload)
	if len(entries) == 0 {
		return
	}

	msgs := make([]orderbook.PriceChangeMsg, 0, len(entries))
	for _, e := range entries {
		assetID, ok := normalize.AssetID(e)
		if !ok {
			continue
		}
		side, ok := normalize.Side(e)
		if !ok {
			continue
		}
		price, _ := normalize.Price(e)
		size, _ := normalize.Size(e)
		msgs = append(msgs, orderbook.PriceChangeMsg{AssetID: assetID, Side: side, Price: price, Size: size})
	}

	p.books.HandlePriceChange(msgs, normalize.Timestamp(payload))

	for _, m := range msgs {
		p.processOrderBookUpdate(m.AssetID)
	}
}

// priceChangeEntries normalizes a price_change frame's payload, which may
// arrive as a single object or (spec §4.3) an array of such objects.
func priceChangeEntries(payload normalize.M) []normalize.M {
	if list, ok := payload["price_changes"].([]any); ok {
		out := make([]normalize.M, 0, len(list))
		for _, v := range list {
			if m, ok := v.(map[string]any); ok {
				out = append(out, normalize.M(m))
			}
		}
		return out
	}
	return []normalize.M{payload}
}

// processOrderBookUpdate records a liquidity snapshot for assetID, logs a
// monitoring line if the mid price moved more than
// significantPriceDeltaPercent since the last recorded snapshot, and runs
// the liquidity-impact processor against a synthetic trade when a
// liquidity drop is detected (spec §4.11).
func (p *Processor) processOrderBookUpdate(assetID string) {
	book, ok := p.books.Get(assetID)
	if !ok {
		return
	}

	bids, asks, recordedAt, _ := book.GetFullBook()
	plBids := toPriceLevels(bids)
	plAsks := toPriceLevels(asks)

	rec := p.liquidity.RecordSnapshot(assetID, plBids, plAsks, recordedAt)
	p.store.RecordSnapshot(rec)

	p.midMu.Lock()
	prev, hadPrev := p.lastMid[assetID]
	p.lastMid[assetID] = rec.MidPrice
	p.midMu.Unlock()

	if hadPrev && prev.Sign() != 0 {
		deltaPct, _ := rec.MidPrice.Sub(prev).Abs().Div(prev).Mul(decimal.NewFromInt(100)).Float64()
		if deltaPct > significantPriceDeltaPercent {
			p.logger.Info("significant price delta", "assetId", assetID, "deltaPercent", deltaPct, "midPrice", rec.MidPrice.String())
		}
	}

	p.checkLiquidityDrop(assetID, book, recordedAt)
}

// checkLiquidityDrop runs the liquidity-impact processor against a
// synthetic trade sized to the absolute depth change whenever
// detectLiquidityDrop fires, persisting a "liquidity-change" pattern on
// detection (spec §4.6, §4.11).
func (p *Processor) checkLiquidityDrop(assetID string, book *orderbook.OrderBook, recordedAt time.Time) {
	change, ok := p.liquidity.CalculateLiquidityChange(assetID)
	if !ok || !p.liquidity.DetectLiquidityDrop(assetID, liquidityDropThresholdPercent) {
		return
	}

	side := types.BUY
	if change.TotalDepthDelta.Sign() < 0 {
		side = types.SELL
	}

	syntheticTrade := types.Trade{
		AssetID:   assetID,
		Size:      change.TotalDepthDelta.Abs(),
		Side:      side,
		Timestamp: recordedAt,
	}

	market, _ := p.store.GetMarketByTokenID(assetID)
	event, _ := p.store.GetEvent(market.EventID)

	res, err := p.liqImpact.Process(signals.Context{Event: event, Market: market, Trade: &syntheticTrade, Book: book})
	if err != nil {
		p.logger.Error("liquidity-impact processor error", "assetId", assetID, "error", err)
		return
	}
	if !res.Detected {
		return
	}

	p.detectedSignals.Add(1)
	pattern := types.DetectedPattern{
		ID:         uuid.NewString(),
		Type:       "liquidity-change",
		EventID:    event.ID,
		AssetID:    assetID,
		Confidence: res.Confidence,
		Direction:  res.Direction,
		Severity:   res.Severity,
		Metadata:   res.Metadata,
		DetectedAt: time.Now(),
	}
	p.store.RecordPattern(pattern)
	p.logger.Info("liquidity change detected", "assetId", assetID, "severity", res.Severity, "changePercent", change.ChangePercent)
}

func toPriceLevels(levels []orderbook.Level) []types.PriceLevel {
	out := make([]types.PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = types.PriceLevel{Price: l.Price, Size: l.Size}
	}
	return out
}

// processTrade normalizes a raw last_trade_price payload, records it in
// trade history, updates the wallet tracker, runs every real-time
// processor, persists detections, and checks for a whale trade. Per-
// processor errors are caught by the registry and logged; the trade is
// still counted (spec §4.11).
func (p *Processor) processTrade(raw map[string]any) {
	trade, err := normalize.Trade(normalize.M(raw))
	if err != nil {
		p.logger.Warn("dropping trade frame", "error", err)
		return
	}

	p.store.RecordTrade(trade)
	if err := p.wallets.TrackTrade(trade); err != nil {
		p.logger.Error("track trade", "error", err)
	}

	market, _ := p.store.GetMarketByTokenID(trade.AssetID)
	event, _ := p.store.GetEvent(market.EventID)
	book, _ := p.books.Get(trade.AssetID)

	for _, d := range p.registry.ProcessRealTimeTrade(event, market, trade, book) {
		p.detectedSignals.Add(1)
		pattern := types.DetectedPattern{
			ID:         uuid.NewString(),
			Type:       d.ProcessorName,
			EventID:    event.ID,
			AssetID:    trade.AssetID,
			Confidence: d.Result.Confidence,
			Direction:  d.Result.Direction,
			Severity:   d.Result.Severity,
			Metadata:   d.Result.Metadata,
			TradeID:    trade.ID,
			DetectedAt: time.Now(),
		}
		p.store.RecordPattern(pattern)
		p.logger.Info("signal detected", "processor", d.ProcessorName, "assetId", trade.AssetID, "severity", d.Result.Severity)
	}

	if rec, ok := p.whaleDet.AnalyzeTrade(trade); ok {
		p.store.RecordWhaleTrade(rec)
		p.adjuster.RecordWhaleTrade(rec)
	}

	p.processedTrades.Add(1)
}

// ProcessedTrades implements api.StatusProvider.
func (p *Processor) ProcessedTrades() uint64 { return p.processedTrades.Load() }

// DetectedSignals implements api.StatusProvider.
func (p *Processor) DetectedSignals() uint64 { return p.detectedSignals.Load() }

// Running implements api.StatusProvider.
func (p *Processor) Running() bool {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()
	return p.running
}

// UptimeSeconds implements api.StatusProvider.
func (p *Processor) UptimeSeconds() float64 {
	p.runningMu.Lock()
	start := p.startTime
	p.runningMu.Unlock()
	if start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

// AssetStatuses implements api.StatusProvider, reporting every book the
// order book manager currently tracks (spec §4.11 + SPEC_FULL.md item 6's
// snapshot-hash plumbing).
func (p *Processor) AssetStatuses() []api.AssetStatus {
	assetIDs := p.books.AssetIDs()
	out := make([]api.AssetStatus, 0, len(assetIDs))
	for _, assetID := range assetIDs {
		book, ok := p.books.Get(assetID)
		if !ok {
			continue
		}
		bids, asks, lastTimestamp, hash := book.GetFullBook()
		out = append(out, api.AssetStatus{
			AssetID:       assetID,
			BidLevels:     len(bids),
			AskLevels:     len(asks),
			SnapshotHash:  hash,
			LastUpdatedAt: lastTimestamp.Format(time.RFC3339),
		})
	}
	return out
}
