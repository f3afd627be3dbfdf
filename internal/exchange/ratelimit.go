// ratelimit.go implements token-bucket rate limiting for the rate-limited
// REST client (spec §4.2).
//
// Three named pools are maintained, each with an independent (maxTokens,
// windowMs):
//
//	general (default 9000 / 10s) — getPrice, getMidpoint
//	book    (default 1500 / 10s) — getOrderBook
//	trades  (default  200 / 10s) — getTrades
//
// Refill is discrete: on every check we add floor(elapsedMs/windowMs*maxTokens)
// tokens, capped at maxTokens, and, when at least one token was added, set
// lastRefillAt to now; fractional progress toward the next token is
// discarded at that point. Waiters
// that arrive with no tokens available queue in FIFO order and are woken
// windowMs/maxTokens apart.
package exchange

import (
	"context"
	"math"
	"sync"
	"time"
)

// TokenBucket implements the discrete-refill token bucket of spec §4.2.
type TokenBucket struct {
	mu           sync.Mutex
	maxTokens    int
	windowMs     int64
	tokens       int
	lastRefillAt time.Time
	waiters      []chan struct{} // FIFO queue of parked acquirers
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(maxTokens int, windowMs int64) *TokenBucket {
	return &TokenBucket{
		maxTokens:    maxTokens,
		windowMs:     windowMs,
		tokens:       maxTokens,
		lastRefillAt: time.Now(),
	}
}

// refillLocked advances lastRefillAt and tops up tokens. Must hold mu.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsedMs := now.Sub(tb.lastRefillAt).Milliseconds()
	if elapsedMs <= 0 {
		return
	}
	added := int(math.Floor(float64(elapsedMs) / float64(tb.windowMs) * float64(tb.maxTokens)))
	if added <= 0 {
		return
	}
	tb.tokens += added
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefillAt = now
}

// perTokenInterval is how long it takes a single token to regenerate.
func (tb *TokenBucket) perTokenInterval() time.Duration {
	return time.Duration(float64(tb.windowMs) / float64(tb.maxTokens) * float64(time.Millisecond))
}

// Acquire blocks until a token is available (or ctx is cancelled), then
// consumes it. Callers are served strictly in the order they call Acquire:
// each call takes a ticket, and only the ticket at the front of the queue
// is allowed to take a freshly-refilled token.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	ch := make(chan struct{}, 1)

	tb.mu.Lock()
	tb.waiters = append(tb.waiters, ch)
	front := tb.waiters[0] == ch
	tb.mu.Unlock()

	if !front {
		select {
		case <-ch:
		case <-ctx.Done():
			tb.dropWaiter(ch)
			return ctx.Err()
		}
	}

	for {
		tb.mu.Lock()
		tb.refillLocked()
		if tb.tokens > 0 {
			tb.tokens--
			tb.popFrontLocked()
			tb.mu.Unlock()
			tb.wakeNext()
			return nil
		}
		wait := tb.perTokenInterval()
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			tb.dropWaiter(ch)
			tb.wakeNext()
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (tb *TokenBucket) popFrontLocked() {
	if len(tb.waiters) > 0 {
		tb.waiters = tb.waiters[1:]
	}
}

// wakeNext signals the next queued waiter (if any) that it is now at the
// front and may contend for a token.
func (tb *TokenBucket) wakeNext() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if len(tb.waiters) > 0 {
		select {
		case tb.waiters[0] <- struct{}{}:
		default:
		}
	}
}

func (tb *TokenBucket) dropWaiter(ch chan struct{}) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for i, w := range tb.waiters {
		if w == ch {
			tb.waiters = append(tb.waiters[:i], tb.waiters[i+1:]...)
			break
		}
	}
}

// RateLimiter groups the three named token-bucket pools used by the REST
// client. Pools are shared across all callers; refill and acquire are
// atomic per pool.
type RateLimiter struct {
	General *TokenBucket
	Book    *TokenBucket
	Trades  *TokenBucket
}

// NewRateLimiter builds a RateLimiter from the configured pool sizes.
func NewRateLimiter(general, book, trades BucketParams) *RateLimiter {
	return &RateLimiter{
		General: NewTokenBucket(general.MaxTokens, general.WindowMs),
		Book:    NewTokenBucket(book.MaxTokens, book.WindowMs),
		Trades:  NewTokenBucket(trades.MaxTokens, trades.WindowMs),
	}
}

// BucketParams is the (maxTokens, windowMs) pair for one pool.
type BucketParams struct {
	MaxTokens int
	WindowMs  int64
}
