package orderbook

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/internal/normalize"
	"polymarket-surveillance/pkg/types"
)

// Manager owns one OrderBook per asset, constructed lazily on first
// mention, and emits Initialized/Updated callbacks per spec §4.4.
type Manager struct {
	mu     sync.RWMutex
	books  map[string]*OrderBook
	logger *slog.Logger

	onInitialized func(assetID string)
	onUpdated     func(assetID string)
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		books:  make(map[string]*OrderBook),
		logger: logger.With("component", "orderbook_manager"),
	}
}

// OnInitialized registers the callback fired the first time a book
// transitions to Initialized.
func (m *Manager) OnInitialized(fn func(assetID string)) { m.onInitialized = fn }

// OnUpdated registers the callback fired after every accepted update.
func (m *Manager) OnUpdated(fn func(assetID string)) { m.onUpdated = fn }

// Book returns (creating if absent) the OrderBook for assetID.
func (m *Manager) Book(assetID string) *OrderBook {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[assetID]
	if !ok {
		b = NewOrderBook(assetID)
		m.books[assetID] = b
	}
	return b
}

// Get returns the OrderBook for assetID without creating one.
func (m *Manager) Get(assetID string) (*OrderBook, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[assetID]
	return b, ok
}

// AssetIDs returns every asset id the manager currently holds a book for.
func (m *Manager) AssetIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.books))
	for assetID := range m.books {
		out = append(out, assetID)
	}
	return out
}

// Reset discards all books — called when the feed disconnects, since a
// fresh snapshot is required after reconnect (spec §3 lifecycle rule).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = make(map[string]*OrderBook)
}

// HandleBookSnapshot extracts the asset id from any alias field in msg and
// applies a full snapshot. Drops (with a warning) if no asset id is found.
func (m *Manager) HandleBookSnapshot(msg normalize.M, bids, asks []types.PriceLevel, timestamp time.Time, hash string) {
	assetID, ok := normalize.AssetID(msg)
	if !ok {
		m.logger.Warn("book snapshot missing asset id, dropping")
		return
	}

	book := m.Book(assetID)
	wasInitialized := book.Initialized
	book.InitializeFromSnapshot(bids, asks, timestamp, hash)

	if !wasInitialized && m.onInitialized != nil {
		m.onInitialized(assetID)
	}
	if m.onUpdated != nil {
		m.onUpdated(assetID)
	}
}

// PriceChangeMsg is a single normalized delta entry bound to an asset.
type PriceChangeMsg struct {
	AssetID string
	Side    types.Side
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// HandlePriceChange groups entries by asset and applies each batch to its
// book, but only if the book is already initialized — pre-snapshot deltas
// are discarded, since the next snapshot resets state. Emits Updated once
// per affected book.
func (m *Manager) HandlePriceChange(entries []PriceChangeMsg, timestamp time.Time) {
	if len(entries) == 0 {
		return
	}

	byAsset := make(map[string][]PriceChange)
	for _, e := range entries {
		byAsset[e.AssetID] = append(byAsset[e.AssetID], PriceChange{Side: e.Side, Price: e.Price, Size: e.Size})
	}

	for assetID, changes := range byAsset {
		book, ok := m.Get(assetID)
		if !ok || !book.Initialized {
			continue
		}
		book.ApplyPriceChanges(changes, timestamp)
		if m.onUpdated != nil {
			m.onUpdated(assetID)
		}
	}
}
