// subscription.go implements the real-time subscription client for the
// surveillance engine (spec §4.3).
//
// It maintains a single persistent, message-oriented WebSocket connection
// through an explicit state machine (Disconnected -> Connecting -> Connected
// -> Disconnected), resubscribes every tracked (assetId, kind) pair after
// each reconnect, and classifies inbound frames by their `type`/`event_type`
// field before handing them to registered listeners.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is a subscription client connection state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventKind is one of the four subscribable feed kinds, plus the dispatch
// classifications (pong/other/message/error) produced by inbound frames.
type EventKind string

const (
	KindBook            EventKind = "book"
	KindPriceChange     EventKind = "price_change"
	KindLastTradePrice  EventKind = "last_trade_price"
	KindTickSizeChange  EventKind = "tick_size_change"
	KindPong            EventKind = "pong"
	KindOther           EventKind = "other"
	KindMessage         EventKind = "message"
	KindError           EventKind = "error"
	KindConnected       EventKind = "connected"
	KindDisconnected    EventKind = "disconnected"
)

var subscribableKinds = map[EventKind]bool{
	KindBook:           true,
	KindPriceChange:    true,
	KindLastTradePrice: true,
	KindTickSizeChange: true,
}

// Frame is a dispatched inbound event: its classified Kind, the asset id if
// present in the payload, the raw decoded payload, and an error for
// malformed-JSON frames.
type Frame struct {
	Kind    EventKind
	AssetID string
	Payload map[string]any
	Err     error
}

// Listener receives dispatched frames.
type Listener func(Frame)

// ProtocolError wraps a malformed-JSON-shaped inbound frame.
type ProtocolError struct {
	Raw string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error decoding frame: %v", e.Err)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectAttempts = 10
	defaultBaseDelay         = 5 * time.Second
	writeTimeout             = 10 * time.Second
	dialTimeout              = 10 * time.Second
)

// SubscriptionClient is the spec §4.3 subscription client.
type SubscriptionClient struct {
	url string

	heartbeatInterval time.Duration
	reconnectAttempts int
	baseDelay         time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	state     ConnState
	intentional bool

	subMu sync.Mutex
	subs  map[string]map[EventKind]bool // assetId -> kinds

	listenersMu sync.RWMutex
	listeners   []Listener

	cancel context.CancelFunc
	logger *slog.Logger
}

// NewSubscriptionClient builds a client against wsURL with the given
// reconnect/heartbeat tuning. Zero values fall back to spec §6 defaults.
func NewSubscriptionClient(wsURL string, heartbeatInterval time.Duration, reconnectAttempts int, baseDelay time.Duration, logger *slog.Logger) *SubscriptionClient {
	if heartbeatInterval <= 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	if reconnectAttempts <= 0 {
		reconnectAttempts = defaultReconnectAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	c := &SubscriptionClient{
		url:               wsURL,
		heartbeatInterval: heartbeatInterval,
		reconnectAttempts: reconnectAttempts,
		baseDelay:         baseDelay,
		state:             Disconnected,
		subs:              make(map[string]map[EventKind]bool),
		logger:            logger.With("component", "subscription_client"),
	}
	c.AddListener(func(Frame) {}) // default no-op error listener, spec §4.3 contract
	return c
}

// AddListener registers a frame listener. Safe to call at any time.
func (c *SubscriptionClient) AddListener(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *SubscriptionClient) emit(f Frame) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, l := range c.listeners {
		l(f)
	}
}

// State returns the current connection state.
func (c *SubscriptionClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the feed and runs the read/reconnect loop until ctx is
// cancelled or Disconnect is called. Connect blocks.
func (c *SubscriptionClient) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.intentional = false
	c.mu.Unlock()

	attempt := 0
	for {
		c.setState(Connecting)
		err := c.connectOnce(runCtx)

		c.mu.Lock()
		intentional := c.intentional
		c.mu.Unlock()

		if runCtx.Err() != nil || intentional {
			c.setState(Disconnected)
			return nil
		}

		c.setState(Disconnected)
		c.emit(Frame{Kind: KindDisconnected, Err: err})

		attempt++
		if attempt > c.reconnectAttempts {
			return fmt.Errorf("subscription client: reconnect attempts exhausted after %d tries: %w", attempt-1, err)
		}

		delay := reconnectDelay(c.baseDelay, attempt)
		c.logger.Warn("subscription disconnected, reconnecting", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-runCtx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// reconnectDelay implements spec §4.3's reconnect policy:
// min(baseDelay * 2^attempt + jitter(0-1000ms), 10*baseDelay).
func reconnectDelay(base time.Duration, attempt int) time.Duration {
	backoff := base * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	delay := backoff + jitter
	cap := 10 * base
	if delay > cap {
		delay = cap
	}
	return delay
}

func (c *SubscriptionClient) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *SubscriptionClient) connectOnce(ctx context.Context) error {
	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(Connected)

	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	if err := c.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	c.emit(Frame{Kind: KindConnected})
	c.logger.Info("subscription client connected")

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go c.heartbeatLoop(hbCtx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.dispatch(msg)
	}
}

func (c *SubscriptionClient) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteJSON(map[string]string{"type": "ping"})
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("heartbeat ping failed", "error", err)
				return
			}
		}
	}
}

// dispatch classifies a raw inbound frame per spec §4.3's inbound-dispatch
// rule and emits it to all listeners.
func (c *SubscriptionClient) dispatch(data []byte) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		c.logger.Debug("dropping non-json frame", "data", trimmed)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		c.emit(Frame{Kind: KindError, Err: &ProtocolError{Raw: trimmed, Err: err}})
		return
	}

	kind := classify(payload)
	assetID, _ := payload["asset_id"].(string)
	if assetID == "" {
		assetID, _ = payload["assetId"].(string)
	}

	c.emit(Frame{Kind: kind, AssetID: assetID, Payload: payload})
}

func classify(payload map[string]any) EventKind {
	raw, ok := payload["type"].(string)
	if !ok || raw == "" {
		raw, _ = payload["event_type"].(string)
	}
	switch EventKind(raw) {
	case KindBook, KindPriceChange, KindLastTradePrice, KindTickSizeChange:
		return EventKind(raw)
	case KindPong:
		return KindPong
	case "":
		return KindOther
	default:
		return KindMessage
	}
}

// Subscribe stores the (assetId, kinds) subscription and, if connected,
// transmits one subscribe frame per kind. Idempotent: kinds already tracked
// for assetId are skipped.
func (c *SubscriptionClient) Subscribe(assetID string, kinds []EventKind) error {
	if assetID == "" {
		return fmt.Errorf("subscribe: assetId must not be empty")
	}

	c.subMu.Lock()
	set, ok := c.subs[assetID]
	if !ok {
		set = make(map[EventKind]bool)
		c.subs[assetID] = set
	}
	var toSend []EventKind
	for _, k := range kinds {
		if !subscribableKinds[k] {
			continue
		}
		if !set[k] {
			set[k] = true
			toSend = append(toSend, k)
		}
	}
	c.subMu.Unlock()

	for _, k := range toSend {
		if err := c.sendSubFrame(k, "subscribe", assetID); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe sends an unsubscribe frame per tracked kind for assetId and
// clears the entry.
func (c *SubscriptionClient) Unsubscribe(assetID string) error {
	if assetID == "" {
		return fmt.Errorf("unsubscribe: assetId must not be empty")
	}

	c.subMu.Lock()
	set, ok := c.subs[assetID]
	if ok {
		delete(c.subs, assetID)
	}
	c.subMu.Unlock()

	if !ok {
		return nil
	}
	for k := range set {
		if err := c.sendSubFrame(k, "unsubscribe", assetID); err != nil {
			return err
		}
	}
	return nil
}

func (c *SubscriptionClient) resubscribeAll() error {
	c.subMu.Lock()
	type pair struct {
		assetID string
		kind    EventKind
	}
	var pairs []pair
	for assetID, kinds := range c.subs {
		for k := range kinds {
			pairs = append(pairs, pair{assetID, k})
		}
	}
	c.subMu.Unlock()

	for _, p := range pairs {
		if err := c.sendSubFrame(p.kind, "subscribe", p.assetID); err != nil {
			return err
		}
	}
	return nil
}

func (c *SubscriptionClient) sendSubFrame(kind EventKind, action, assetID string) error {
	frame := map[string]any{
		"type":       string(kind),
		"action":     action,
		"assets_ids": []string{assetID},
	}
	return c.writeJSON(frame)
}

func (c *SubscriptionClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil // not yet connected; subscription is tracked and sent on next connect
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Disconnect marks the close as caller-intentional, stops any in-flight
// reconnect loop, and closes the transport. Idempotent.
func (c *SubscriptionClient) Disconnect() error {
	c.mu.Lock()
	c.intentional = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
