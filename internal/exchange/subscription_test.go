package exchange

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func newTestSubClient() *SubscriptionClient {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSubscriptionClient("wss://example.test/ws", 0, 0, 0, logger)
}

func TestNewSubscriptionClientDefaults(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()
	if c.heartbeatInterval != defaultHeartbeatInterval {
		t.Errorf("heartbeatInterval = %v, want %v", c.heartbeatInterval, defaultHeartbeatInterval)
	}
	if c.reconnectAttempts != defaultReconnectAttempts {
		t.Errorf("reconnectAttempts = %d, want %d", c.reconnectAttempts, defaultReconnectAttempts)
	}
	if c.State() != Disconnected {
		t.Errorf("initial state = %v, want Disconnected", c.State())
	}
}

func TestSubscribeRejectsEmptyAssetID(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()
	if err := c.Subscribe("", []EventKind{KindBook}); err == nil {
		t.Fatal("expected error for empty assetId")
	}
	if err := c.Unsubscribe(""); err == nil {
		t.Fatal("expected error for empty assetId")
	}
}

func TestSubscribeTracksKindsWhileDisconnected(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()

	if err := c.Subscribe("asset-1", []EventKind{KindBook, KindPriceChange}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	c.subMu.Lock()
	set := c.subs["asset-1"]
	c.subMu.Unlock()

	if !set[KindBook] || !set[KindPriceChange] {
		t.Errorf("expected book and price_change tracked, got %v", set)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()

	if err := c.Subscribe("asset-1", []EventKind{KindBook}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.Subscribe("asset-1", []EventKind{KindBook}); err != nil {
		t.Fatalf("Subscribe (repeat): %v", err)
	}

	c.subMu.Lock()
	n := len(c.subs["asset-1"])
	c.subMu.Unlock()
	if n != 1 {
		t.Errorf("expected exactly 1 tracked kind, got %d", n)
	}
}

func TestUnsubscribeClearsEntry(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()

	_ = c.Subscribe("asset-1", []EventKind{KindBook, KindLastTradePrice})
	if err := c.Unsubscribe("asset-1"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	c.subMu.Lock()
	_, ok := c.subs["asset-1"]
	c.subMu.Unlock()
	if ok {
		t.Error("expected subscription entry to be removed")
	}
}

func TestSubscribeIgnoresUnknownKind(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()

	if err := c.Subscribe("asset-1", []EventKind{EventKind("not_a_kind")}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	c.subMu.Lock()
	n := len(c.subs["asset-1"])
	c.subMu.Unlock()
	if n != 0 {
		t.Errorf("expected unknown kind to be dropped, got %d tracked", n)
	}
}

func TestClassifyKnownKinds(t *testing.T) {
	t.Parallel()
	cases := []struct {
		payload map[string]any
		want    EventKind
	}{
		{map[string]any{"type": "book"}, KindBook},
		{map[string]any{"event_type": "price_change"}, KindPriceChange},
		{map[string]any{"type": "last_trade_price"}, KindLastTradePrice},
		{map[string]any{"type": "tick_size_change"}, KindTickSizeChange},
		{map[string]any{"type": "pong"}, KindPong},
		{map[string]any{"type": "something_new"}, KindMessage},
		{map[string]any{}, KindOther},
	}
	for _, tc := range cases {
		if got := classify(tc.payload); got != tc.want {
			t.Errorf("classify(%v) = %v, want %v", tc.payload, got, tc.want)
		}
	}
}

func TestDispatchDropsNonJSONFrame(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()
	var got []Frame
	c.AddListener(func(f Frame) { got = append(got, f) })

	c.dispatch([]byte("INVALID OPERATION"))

	if len(got) != 0 {
		t.Errorf("expected no frames emitted for non-json payload, got %d", len(got))
	}
}

func TestDispatchEmitsErrorForMalformedJSON(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()
	var got []Frame
	c.AddListener(func(f Frame) { got = append(got, f) })

	c.dispatch([]byte(`{"type": "book", `))

	if len(got) != 1 || got[0].Kind != KindError {
		t.Fatalf("expected one error frame, got %v", got)
	}
}

func TestDispatchClassifiesBookFrame(t *testing.T) {
	t.Parallel()
	c := newTestSubClient()
	var got []Frame
	c.AddListener(func(f Frame) { got = append(got, f) })

	c.dispatch([]byte(`{"type": "book", "asset_id": "asset-1"}`))

	if len(got) != 1 || got[0].Kind != KindBook || got[0].AssetID != "asset-1" {
		t.Fatalf("unexpected dispatch result: %+v", got)
	}
}

func TestReconnectDelayCapped(t *testing.T) {
	t.Parallel()
	base := 1 * time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		d := reconnectDelay(base, attempt)
		if d > 10*base+time.Second {
			t.Errorf("attempt %d: delay %v exceeds cap", attempt, d)
		}
	}
}
