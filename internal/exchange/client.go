// Package exchange implements the outbound REST client and the inbound
// subscription (WebSocket) client for the surveillance engine.
//
// The REST client (Client) talks to the CLOB REST API for read-only market
// data (spec §4.2):
//
//	GetOrderBook: GET /book      — book pool
//	GetTrades:    GET /trades    — trades pool
//	GetPrice:     GET /price     — general pool
//	GetMidpoint:  GET /midpoint  — general pool
//
// Every request is rate-limited via the matching named TokenBucket and
// retried with exponential backoff on HTTP 429.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"polymarket-surveillance/internal/config"
	"polymarket-surveillance/pkg/types"
)

const maxRetries = 6

// initialBackoff and maxBackoff are vars, not consts, so tests can shrink
// them instead of waiting out real exponential backoff delays.
var (
	initialBackoff = 1 * time.Second
	maxBackoff     = 32 * time.Second
)

// RateLimitError is returned when all retry attempts on HTTP 429 are
// exhausted.
type RateLimitError struct {
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts", e.Attempts)
}

// UpstreamHTTPError wraps a non-2xx, non-429 REST response.
type UpstreamHTTPError struct {
	Status int
	Body   string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream error: status %d: %s", e.Status, e.Body)
}

// OrderBookResponse is the REST response from GET /book for a single token.
type OrderBookResponse struct {
	Market    string             `json:"market"`
	AssetID   string             `json:"asset_id"`
	Bids      []types.PriceLevel `json:"bids"`
	Asks      []types.PriceLevel `json:"asks"`
	Hash      string             `json:"hash"`
	Timestamp string             `json:"timestamp"`
}

// TradeRecord is a single row from GET /trades.
type TradeRecord struct {
	ID        string `json:"id"`
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Maker     string `json:"maker"`
	Taker     string `json:"taker"`
	Timestamp string `json:"timestamp"`
}

// TradesQuery is the filter set accepted by GET /trades.
type TradesQuery struct {
	Maker  string
	Market string
	Limit  int
	Before string
	After  string
}

// PriceResponse is the REST response from GET /price.
type PriceResponse struct {
	Price string `json:"price"`
}

// MidpointResponse is the REST response from GET /midpoint.
type MidpointResponse struct {
	Mid string `json:"mid"`
}

// Client is the rate-limited, retrying REST client for market-data reads.
type Client struct {
	http   *resty.Client
	rl     *RateLimiter
	logger *slog.Logger
}

// NewClient creates a REST client wired with the three named token buckets.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.Polymarket.CLOBURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json")

	rl := NewRateLimiter(
		BucketParams{MaxTokens: cfg.ClobRateLimits.General.MaxTokens, WindowMs: int64(cfg.ClobRateLimits.General.WindowMs)},
		BucketParams{MaxTokens: cfg.ClobRateLimits.Book.MaxTokens, WindowMs: int64(cfg.ClobRateLimits.Book.WindowMs)},
		BucketParams{MaxTokens: cfg.ClobRateLimits.Trades.MaxTokens, WindowMs: int64(cfg.ClobRateLimits.Trades.WindowMs)},
	)

	return &Client{
		http:   httpClient,
		rl:     rl,
		logger: logger.With("component", "rest_client"),
	}
}

// GetOrderBook fetches the order book for a single token, optionally at a
// specific aggregation level.
func (c *Client) GetOrderBook(ctx context.Context, assetID string, level string) (*OrderBookResponse, error) {
	if err := c.rl.Book.Acquire(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx).SetQueryParam("token_id", assetID)
	if level != "" {
		req.SetQueryParam("level", level)
	}

	var result OrderBookResponse
	if _, err := c.withRetry(ctx, func() (*resty.Response, error) {
		return req.SetResult(&result).Get("/book")
	}); err != nil {
		return nil, fmt.Errorf("get order book: %w", err)
	}
	return &result, nil
}

// GetTrades fetches trades matching the given filter.
func (c *Client) GetTrades(ctx context.Context, q TradesQuery) ([]TradeRecord, error) {
	if err := c.rl.Trades.Acquire(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx)
	if q.Maker != "" {
		req.SetQueryParam("maker", q.Maker)
	}
	if q.Market != "" {
		req.SetQueryParam("market", q.Market)
	}
	if q.Limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Before != "" {
		req.SetQueryParam("before", q.Before)
	}
	if q.After != "" {
		req.SetQueryParam("after", q.After)
	}

	var result []TradeRecord
	if _, err := c.withRetry(ctx, func() (*resty.Response, error) {
		return req.SetResult(&result).Get("/trades")
	}); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}
	return result, nil
}

// GetPrice fetches the current price for a token, optionally restricted to
// a side (BUY/SELL).
func (c *Client) GetPrice(ctx context.Context, assetID string, side string) (*PriceResponse, error) {
	if err := c.rl.General.Acquire(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx).SetQueryParam("token_id", assetID)
	if side != "" {
		req.SetQueryParam("side", side)
	}

	var result PriceResponse
	if _, err := c.withRetry(ctx, func() (*resty.Response, error) {
		return req.SetResult(&result).Get("/price")
	}); err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	return &result, nil
}

// GetMidpoint fetches the midpoint price for a token.
func (c *Client) GetMidpoint(ctx context.Context, assetID string) (*MidpointResponse, error) {
	if err := c.rl.General.Acquire(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx).SetQueryParam("token_id", assetID)

	var result MidpointResponse
	if _, err := c.withRetry(ctx, func() (*resty.Response, error) {
		return req.SetResult(&result).Get("/midpoint")
	}); err != nil {
		return nil, fmt.Errorf("get midpoint: %w", err)
	}
	return &result, nil
}

// withRetry issues the request, retrying with exponential backoff on HTTP
// 429 up to maxRetries attempts, per spec §4.2.
func (c *Client) withRetry(ctx context.Context, do func() (*resty.Response, error)) (*resty.Response, error) {
	delay := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := do()
		if err != nil {
			return nil, err
		}

		if resp.StatusCode() == http.StatusTooManyRequests {
			c.logger.Warn("rate limited by upstream, backing off", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
			continue
		}

		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return nil, &UpstreamHTTPError{Status: resp.StatusCode(), Body: resp.String()}
		}

		return resp, nil
	}

	return nil, &RateLimitError{Attempts: maxRetries}
}
