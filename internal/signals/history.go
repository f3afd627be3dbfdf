package signals

import (
	"time"

	"polymarket-surveillance/pkg/types"
)

// TradeHistory is the read surface the timing-pattern and sniper-cluster
// processors use to pull a market's recent trades out of the bounded trade
// history store. Implemented by internal/storage.Store.
type TradeHistory interface {
	TradesForMarket(tokenID string, since time.Time) []types.Trade
}
