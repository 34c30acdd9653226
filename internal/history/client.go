// Package history fetches historical trades and candles from the REST
// collaborator, used to seed the candle and statistics views at pair
// selection.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/solpulse/pulse/internal/model"
)

const (
	requestTimeout = 10 * time.Second

	// Request pacing toward the collaborator API.
	requestsPerSecond = 5
	burstSize         = 5

	// Backoff for transient server errors.
	retryBase  = 500 * time.Millisecond
	maxRetries = 3

	// DefaultTradeLimit bounds the trade seed when the caller passes none.
	DefaultTradeLimit = 100
)

// Client is the REST client for the historical data API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(requestsPerSecond, burstSize),
		logger:  logger,
	}
}

// Trades fetches up to limit recent trades for the pair, ordered as the API
// returns them (newest first).
func (c *Client) Trades(ctx context.Context, pair string, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}

	q := url.Values{}
	q.Set("pair", pair)
	q.Set("limit", strconv.Itoa(limit))

	var trades []model.Trade
	if err := c.getJSON(ctx, "/api/trades", q, &trades); err != nil {
		return nil, fmt.Errorf("failed to fetch trades for %s: %w", pair, err)
	}

	c.logger.Info("fetched historical trades", "pair", pair, "count", len(trades))
	return trades, nil
}

// ohlcvRow is the wire shape of one aggregated candle from the API, with the
// bucket start as a unix timestamp.
type ohlcvRow struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Candles fetches the aggregated candle seed set for the pair and interval.
func (c *Client) Candles(ctx context.Context, pair, interval string) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("pair", pair)
	q.Set("interval", interval)

	var rows []ohlcvRow
	if err := c.getJSON(ctx, "/api/ohlcv", q, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s %s: %w", pair, interval, err)
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		candles = append(candles, model.Candle{
			OpenTime: time.Unix(r.Time, 0).UTC(),
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
		})
	}

	c.logger.Info("fetched historical candles",
		"pair", pair, "interval", interval, "count", len(candles))
	return candles, nil
}

// getJSON performs one rate-limited GET with bounded retries on transient
// failures and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path + "?" + q.Encode()
	backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(retryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			c.logger.Warn("server error from history API, retrying",
				"path", path, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("server error: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
}
