// Package normalize is the single ingress-normalization layer referenced by
// spec §9's design notes: every alias the feed or REST API uses for asset
// id, price, size, side, maker/taker, trade id, and timestamp is resolved
// here, once, before the value crosses into the strict internal data model.
// Nothing downstream of this package should ever see a synonym field name
// or a mixed object/array order-book level again.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polymarket-surveillance/pkg/types"
)

// AssetIDKeys lists, in priority order, the field names a raw record may use
// for the asset identifier.
var AssetIDKeys = []string{"asset_id", "assetId", "market", "token_id", "tokenId"}

var priceKeys = []string{"price", "last_price", "lastPrice"}
var sizeKeys = []string{"size", "amount", "quantity"}
var makerKeys = []string{"maker", "maker_address"}
var takerKeys = []string{"taker", "taker_address"}
var idKeys = []string{"id", "trade_id"}
var timestampKeys = []string{"timestamp", "created_at", "createdAt"}

// M is a loosely-typed raw record, e.g. a decoded JSON object.
type M map[string]any

// StringField returns the first present, non-empty string value among keys.
func StringField(m M, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t, true
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
	}
	return "", false
}

// AssetID extracts and returns the asset identifier from any of the known
// alias fields. Returns ok=false if none are present or all are empty.
func AssetID(m M) (string, bool) {
	return StringField(m, AssetIDKeys...)
}

// Numeric parses a value that may arrive as a JSON string or a JSON number
// into a decimal.Decimal. Returns ok=false if the value is missing, nil, or
// unparsable.
func Numeric(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	default:
		return decimal.Zero, false
	}
}

// NumericField parses the first present field among keys as a numeric value.
func NumericField(m M, keys ...string) (decimal.Decimal, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if d, ok := Numeric(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Price extracts the price field from a raw record.
func Price(m M) (decimal.Decimal, bool) { return NumericField(m, priceKeys...) }

// Size extracts the size field from a raw record.
func Size(m M) (decimal.Decimal, bool) { return NumericField(m, sizeKeys...) }

// Side derives BUY/SELL from either an explicit "side" field or a boolean
// is_buy/isBuy field.
func Side(m M) (types.Side, bool) {
	if s, ok := StringField(m, "side"); ok {
		switch strings.ToUpper(s) {
		case "BUY":
			return types.BUY, true
		case "SELL":
			return types.SELL, true
		}
	}
	for _, k := range []string{"is_buy", "isBuy"} {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				if b {
					return types.BUY, true
				}
				return types.SELL, true
			}
		}
	}
	return "", false
}

// Address lower-cases a wallet address; the empty string passes through.
func Address(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Timestamp parses the timestamp field, accepting RFC3339 strings, unix
// seconds, or unix milliseconds (as numbers or numeric strings). Falls back
// to now when absent.
func Timestamp(m M) time.Time {
	v, ok := timestampValue(m)
	if !ok {
		return time.Now().UTC()
	}
	return v
}

func timestampValue(m M) (time.Time, bool) {
	for _, k := range timestampKeys {
		raw, ok := m[k]
		if !ok || raw == nil {
			continue
		}
		switch t := raw.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, t); err == nil {
				return ts, true
			}
			if n, err := strconv.ParseFloat(t, 64); err == nil {
				return fromEpoch(n), true
			}
		case float64:
			return fromEpoch(t), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(n float64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	return time.Unix(int64(n), 0).UTC()
}

// Trade normalizes a raw trade-shaped record (feed last_trade_price event or
// a REST /trades row) into the canonical types.Trade. Returns an error only
// when the asset id is missing — every other field degrades gracefully.
func Trade(m M) (types.Trade, error) {
	assetID, ok := AssetID(m)
	if !ok {
		return types.Trade{}, fmt.Errorf("normalize trade: missing asset id")
	}

	price, _ := Price(m)
	size, _ := Size(m)
	side, ok := Side(m)
	if !ok {
		side = types.BUY
	}

	id, _ := StringField(m, idKeys...)
	maker, _ := StringField(m, makerKeys...)
	taker, _ := StringField(m, takerKeys...)

	return types.Trade{
		ID:        id,
		AssetID:   assetID,
		Price:     price,
		Size:      size,
		Side:      side,
		Maker:     Address(maker),
		Taker:     Address(taker),
		Timestamp: Timestamp(m),
	}, nil
}

// PriceLevel normalizes a single order-book level that may arrive as an
// object {price, size} or a two-element [price, size] tuple. Returns
// ok=false for non-positive price or size (per §3's invariant (c)).
func PriceLevel(v any) (types.PriceLevel, bool) {
	switch t := v.(type) {
	case map[string]any:
		price, pOk := NumericField(t, priceKeys...)
		size, sOk := NumericField(t, sizeKeys...)
		if !pOk || !sOk {
			return types.PriceLevel{}, false
		}
		return validatedLevel(price, size)
	case []any:
		if len(t) < 2 {
			return types.PriceLevel{}, false
		}
		price, pOk := Numeric(t[0])
		size, sOk := Numeric(t[1])
		if !pOk || !sOk {
			return types.PriceLevel{}, false
		}
		return validatedLevel(price, size)
	default:
		return types.PriceLevel{}, false
	}
}

func validatedLevel(price, size decimal.Decimal) (types.PriceLevel, bool) {
	if price.Sign() <= 0 || size.Sign() <= 0 {
		return types.PriceLevel{}, false
	}
	return types.PriceLevel{Price: price, Size: size}, true
}

// PriceLevels normalizes a raw list of levels, dropping any entry that fails
// validation (non-positive price or size).
func PriceLevels(raw any) []types.PriceLevel {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]types.PriceLevel, 0, len(list))
	for _, v := range list {
		if lvl, ok := PriceLevel(v); ok {
			out = append(out, lvl)
		}
	}
	return out
}
