// Package storage implements the surveillance engine's single logical store
// (spec §4.1): bounded in-memory collections for trade history, order-book
// snapshots, and whale trades, an unbounded in-memory list of signals per
// event, plus durable JSON-file persistence for detected patterns and whale
// trades.
//
// Detected patterns and whale trades each live in their own JSON file under
// the configured data directory. Writes use atomic file replacement (write
// to a .tmp file, then rename) so a crash mid-save never leaves a partial
// file on disk — the same pattern the teacher's position store uses.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"polymarket-surveillance/pkg/types"
)

const (
	tradeHistoryCap     = 100_000
	whaleTradesCap      = 10_000
	orderbookSnapshotCap = 100
)

// Store is the surveillance engine's single logical store. All operations
// are safe for concurrent use; writers see their own writes on the next
// read (spec §4.1's linearizability contract).
type Store struct {
	dataDir string
	logger  *slog.Logger

	events      *keyedCollection[types.Event]
	predictions *keyedCollection[Prediction]
	articles    *keyedCollection[Article]

	marketsMu       sync.RWMutex
	marketsByToken  map[string]types.Market

	articlesMu      sync.RWMutex
	articlesByEvent map[string][]string // eventID -> article IDs
	articlesBySlug  map[string]string   // slug -> article ID

	signalsMu      sync.RWMutex
	signalsByEvent map[string][]types.Signal

	tradesMu     sync.RWMutex
	tradeHistory []types.Trade

	patternsMu       sync.Mutex
	detectedPatterns []types.DetectedPattern

	whaleMu     sync.Mutex
	whaleTrades []types.WhaleTradeRecord

	snapshotsMu sync.RWMutex
	snapshots   map[string][]types.OrderbookSnapshotRecord
}

// New builds a store backed by dataDir for pattern/whale-trade persistence.
// On construction it loads both persistent files from disk; a missing file
// is treated as an empty collection (spec §4.1).
func New(dataDir string, logger *slog.Logger) (*Store, error) {
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	s := &Store{
		dataDir:         dataDir,
		logger:          logger.With("component", "storage"),
		events:          newKeyedCollection(func(e types.Event) string { return e.ID }),
		predictions:     newKeyedCollection(func(p Prediction) string { return p.ID }),
		articles:        newKeyedCollection(func(a Article) string { return a.ID }),
		articlesByEvent: make(map[string][]string),
		articlesBySlug:  make(map[string]string),
		marketsByToken:  make(map[string]types.Market),
		signalsByEvent:  make(map[string][]types.Signal),
		snapshots:       make(map[string][]types.OrderbookSnapshotRecord),
	}

	if err := s.loadPatterns(); err != nil {
		return nil, err
	}
	if err := s.loadWhaleTrades(); err != nil {
		return nil, err
	}
	return s, nil
}

// --- events / predictions / articles ---------------------------------------

// UpsertEvent inserts or replaces an event record.
func (s *Store) UpsertEvent(e types.Event) { s.events.Upsert(e) }

// GetEvent returns the event with the given id.
func (s *Store) GetEvent(id string) (types.Event, bool) { return s.events.Get(id) }

// ListEvents returns every event for which filter returns true. A nil
// filter returns every tracked event. (The stream processor finds the
// markets to subscribe to on startup through ActiveTokenIDs, not here.)
func (s *Store) ListEvents(filter func(types.Event) bool) []types.Event {
	return s.events.List(filter)
}

// UpsertMarket indexes a market's metadata by its tokenId, so the stream
// processor can resolve (event, market) context for an incoming trade.
// Markets are an external collaborator's data (spec §1); storage only
// caches what that collaborator hands back.
func (s *Store) UpsertMarket(m types.Market) {
	s.marketsMu.Lock()
	defer s.marketsMu.Unlock()
	s.marketsByToken[m.TokenID] = m
}

// GetMarketByTokenID returns the cached market for a tokenId.
func (s *Store) GetMarketByTokenID(tokenID string) (types.Market, bool) {
	s.marketsMu.RLock()
	defer s.marketsMu.RUnlock()
	m, ok := s.marketsByToken[tokenID]
	return m, ok
}

// ActiveTokenIDs returns every tokenId currently cached, for subscribing to
// active markets on startup (spec §4.11).
func (s *Store) ActiveTokenIDs() []string {
	s.marketsMu.RLock()
	defer s.marketsMu.RUnlock()
	out := make([]string, 0, len(s.marketsByToken))
	for tokenID := range s.marketsByToken {
		out = append(out, tokenID)
	}
	return out
}

// UpsertPrediction inserts or replaces a prediction record.
func (s *Store) UpsertPrediction(p Prediction) { s.predictions.Upsert(p) }

// GetPrediction returns the prediction with the given id.
func (s *Store) GetPrediction(id string) (Prediction, bool) { return s.predictions.Get(id) }

// ListPredictionsByEvent returns every prediction for the given event.
func (s *Store) ListPredictionsByEvent(eventID string) []Prediction {
	return s.predictions.List(func(p Prediction) bool { return p.EventID == eventID })
}

// UpsertArticle inserts or replaces an article, maintaining the eventId and
// slug secondary indexes so GetByEventID/GetBySlug are O(1) (spec §4.1).
func (s *Store) UpsertArticle(a Article) {
	s.articles.Upsert(a)

	s.articlesMu.Lock()
	defer s.articlesMu.Unlock()
	found := false
	for _, id := range s.articlesByEvent[a.EventID] {
		if id == a.ID {
			found = true
			break
		}
	}
	if !found {
		s.articlesByEvent[a.EventID] = append(s.articlesByEvent[a.EventID], a.ID)
	}
	if a.Slug != "" {
		s.articlesBySlug[a.Slug] = a.ID
	}
}

// GetArticle returns the article with the given id.
func (s *Store) GetArticle(id string) (Article, bool) { return s.articles.Get(id) }

// GetArticlesByEventID returns every article indexed under eventID.
func (s *Store) GetArticlesByEventID(eventID string) []Article {
	s.articlesMu.RLock()
	ids := append([]string(nil), s.articlesByEvent[eventID]...)
	s.articlesMu.RUnlock()

	out := make([]Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.articles.Get(id); ok {
			out = append(out, a)
		}
	}
	return out
}

// GetArticleBySlug returns the article indexed under slug, if any.
func (s *Store) GetArticleBySlug(slug string) (Article, bool) {
	s.articlesMu.RLock()
	id, ok := s.articlesBySlug[slug]
	s.articlesMu.RUnlock()
	if !ok {
		return Article{}, false
	}
	return s.articles.Get(id)
}

// --- signals -----------------------------------------------------------

// AppendSignal persists a signal record, implementing signals.SignalStore.
func (s *Store) AppendSignal(sig types.Signal) error {
	s.signalsMu.Lock()
	defer s.signalsMu.Unlock()
	s.signalsByEvent[sig.EventID] = append(s.signalsByEvent[sig.EventID], sig)
	return nil
}

// SignalsSummary is the result of getSignalsSummary(eventId) (spec §4.10):
// count, the list itself, and the sum of every signal's probability
// adjustment.
type SignalsSummary struct {
	Count             int
	Signals           []types.Signal
	AdjustmentSum     float64
}

// GetSignalsSummary returns the count, list, and adjustment sum for the
// given event's accumulated signals.
func (s *Store) GetSignalsSummary(eventID string) SignalsSummary {
	s.signalsMu.RLock()
	defer s.signalsMu.RUnlock()

	sigs := s.signalsByEvent[eventID]
	sum := 0.0
	for _, sig := range sigs {
		sum += sig.Adjustment
	}
	out := append([]types.Signal(nil), sigs...)
	return SignalsSummary{Count: len(out), Signals: out, AdjustmentSum: sum}
}

// --- trade history -------------------------------------------------------

// RecordTrade appends a trade to the capped FIFO trade history.
func (s *Store) RecordTrade(t types.Trade) {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	s.tradeHistory = append(s.tradeHistory, t)
	if over := len(s.tradeHistory) - tradeHistoryCap; over > 0 {
		s.tradeHistory = s.tradeHistory[over:]
	}
}

// TradesForMarket returns every trade for tokenID with timestamp >= since,
// implementing signals.TradeHistory for the timing-pattern and
// sniper-cluster processors.
func (s *Store) TradesForMarket(tokenID string, since time.Time) []types.Trade {
	s.tradesMu.RLock()
	defer s.tradesMu.RUnlock()

	var out []types.Trade
	for _, t := range s.tradeHistory {
		if t.AssetID == tokenID && !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out
}

// --- order-book snapshots ------------------------------------------------

// RecordSnapshot appends a liquidity snapshot to the per-asset ring buffer
// (capacity 100, oldest evicted).
func (s *Store) RecordSnapshot(rec types.OrderbookSnapshotRecord) {
	s.snapshotsMu.Lock()
	defer s.snapshotsMu.Unlock()
	hist := append(s.snapshots[rec.AssetID], rec)
	if over := len(hist) - orderbookSnapshotCap; over > 0 {
		hist = hist[over:]
	}
	s.snapshots[rec.AssetID] = hist
}

// SnapshotHistory returns the retained snapshot history for an asset,
// oldest first.
func (s *Store) SnapshotHistory(assetID string) []types.OrderbookSnapshotRecord {
	s.snapshotsMu.RLock()
	defer s.snapshotsMu.RUnlock()
	return append([]types.OrderbookSnapshotRecord(nil), s.snapshots[assetID]...)
}

// --- detected patterns (disk-mirrored) ------------------------------------

// RecordPattern appends a detected pattern and mirrors the full collection
// to disk. Persistence is best-effort: write failures are logged but never
// returned to the caller (spec §4.1).
func (s *Store) RecordPattern(p types.DetectedPattern) {
	s.patternsMu.Lock()
	s.detectedPatterns = append(s.detectedPatterns, p)
	snapshot := append([]types.DetectedPattern(nil), s.detectedPatterns...)
	s.patternsMu.Unlock()

	if err := s.writeJSON("detected-patterns.json", snapshot); err != nil {
		s.logger.Error("persist detected pattern", "error", err)
	}
}

// Patterns returns every detected pattern currently held.
func (s *Store) Patterns() []types.DetectedPattern {
	s.patternsMu.Lock()
	defer s.patternsMu.Unlock()
	return append([]types.DetectedPattern(nil), s.detectedPatterns...)
}

func (s *Store) loadPatterns() error {
	var out []types.DetectedPattern
	if err := s.readJSON("detected-patterns.json", &out); err != nil {
		return err
	}
	s.patternsMu.Lock()
	s.detectedPatterns = out
	s.patternsMu.Unlock()
	return nil
}

// --- whale trades (disk-mirrored, capped) ---------------------------------

// RecordWhaleTrade appends a whale-trade record (capped at 10,000, oldest
// evicted) and mirrors the collection to disk, best-effort.
func (s *Store) RecordWhaleTrade(w types.WhaleTradeRecord) {
	s.whaleMu.Lock()
	s.whaleTrades = append(s.whaleTrades, w)
	if over := len(s.whaleTrades) - whaleTradesCap; over > 0 {
		s.whaleTrades = s.whaleTrades[over:]
	}
	snapshot := append([]types.WhaleTradeRecord(nil), s.whaleTrades...)
	s.whaleMu.Unlock()

	if err := s.writeJSON("whale-trades.json", snapshot); err != nil {
		s.logger.Error("persist whale trade", "error", err)
	}
}

// WhaleTrades returns every retained whale-trade record.
func (s *Store) WhaleTrades() []types.WhaleTradeRecord {
	s.whaleMu.Lock()
	defer s.whaleMu.Unlock()
	return append([]types.WhaleTradeRecord(nil), s.whaleTrades...)
}

func (s *Store) loadWhaleTrades() error {
	var out []types.WhaleTradeRecord
	if err := s.readJSON("whale-trades.json", &out); err != nil {
		return err
	}
	s.whaleMu.Lock()
	s.whaleTrades = out
	s.whaleMu.Unlock()
	return nil
}

// --- disk I/O --------------------------------------------------------------

// writeJSON atomically persists v to name under dataDir: write to a .tmp
// file, then rename over the target. A no-op when dataDir is empty (tests
// may run storage without a disk backend).
func (s *Store) writeJSON(name string, v any) error {
	if s.dataDir == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dataDir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) readJSON(name string, v any) error {
	if s.dataDir == "" {
		return nil
	}
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
