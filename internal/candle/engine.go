// Package candle aggregates a live trade stream into interval-aligned OHLCV
// buckets, optionally seeded from already-aggregated history.
package candle

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/solpulse/pulse/internal/model"
)

// Supported interval specifications, matching the historical OHLCV API.
var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseInterval converts an interval spec like "1m" or "4h" into a duration.
func ParseInterval(spec string) (time.Duration, error) {
	d, ok := intervals[spec]
	if !ok {
		return 0, fmt.Errorf("unknown interval %q", spec)
	}
	return d, nil
}

// Engine maintains the bucket map for the active pair and interval.
// The bucket map is owned exclusively by the engine and mutated only
// through Reset and Apply. Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	pair     string
	interval time.Duration
	buckets  map[int64]*model.Candle
	onUpdate func(model.Candle)
	logger   *slog.Logger
}

// NewEngine creates an empty candle engine. It aggregates nothing until the
// first Reset configures a pair and interval.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		buckets: make(map[int64]*model.Candle),
		logger:  logger,
	}
}

// OnUpdate registers a callback invoked with a copy of the committed bucket
// after each applied trade. Must be set before trades flow.
func (e *Engine) OnUpdate(fn func(model.Candle)) {
	e.mu.Lock()
	e.onUpdate = fn
	e.mu.Unlock()
}

// Reset discards all buckets, switches to the given pair and interval, and
// seeds from already-aggregated history. Seeded candles are trusted as-is.
// An unparseable interval is returned as an error and leaves existing bucket
// state untouched.
func (e *Engine) Reset(pair, interval string, seed []model.Candle) error {
	d, err := ParseInterval(interval)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pair = pair
	e.interval = d
	e.buckets = make(map[int64]*model.Candle, len(seed))
	for _, c := range seed {
		c := c
		e.buckets[c.OpenTime.Unix()] = &c
	}

	e.logger.Info("candle engine reset",
		"pair", pair,
		"interval", interval,
		"seeded", len(seed))
	return nil
}

// Apply routes one trade to its bucket. The bucket is created lazily on the
// first trade mapping to its start time; open is fixed then and never
// touched afterwards. Price-only ticks update high/low/close but not volume
// or trade count.
func (e *Engine) Apply(t model.Trade) {
	e.mu.Lock()

	if e.interval == 0 {
		e.mu.Unlock()
		return
	}

	start := t.Timestamp.Truncate(e.interval)
	b, ok := e.buckets[start.Unix()]
	if !ok {
		b = &model.Candle{
			OpenTime: start,
			Open:     t.Price,
			High:     t.Price,
			Low:      t.Price,
			Close:    t.Price,
		}
		e.buckets[start.Unix()] = b
	}

	if t.Price > b.High {
		b.High = t.Price
	}
	if t.Price < b.Low {
		b.Low = t.Price
	}
	b.Close = t.Price

	if t.IsFill() {
		b.Volume += t.Amount * t.Price
		b.TradeCount++
	}

	committed := *b
	fn := e.onUpdate
	e.mu.Unlock()

	if fn != nil {
		fn(committed)
	}
}

// Series returns all buckets ordered by bucket start time.
func (e *Engine) Series() []model.Candle {
	e.mu.Lock()
	out := make([]model.Candle, 0, len(e.buckets))
	for _, b := range e.buckets {
		out = append(out, *b)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}

// Pair returns the active pair selection.
func (e *Engine) Pair() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pair
}
