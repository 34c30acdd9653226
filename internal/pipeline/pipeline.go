// Package pipeline wires the feed fan-out into the candle and statistics
// engines and orchestrates pair selection: seed fetch, engine reset and the
// outbound selection command.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/solpulse/pulse/internal/candle"
	"github.com/solpulse/pulse/internal/model"
	"github.com/solpulse/pulse/internal/stats"
)

// Feed is the surface the pipeline needs from the connection manager.
type Feed interface {
	Subscribe(fn func(model.Trade)) (unsubscribe func())
	OnConnectionChange(fn func(connected bool)) (unsubscribe func())
	SendPairSelection(pair string) error
}

// History supplies the seed data for a fresh pair selection.
type History interface {
	Trades(ctx context.Context, pair string, limit int) ([]model.Trade, error)
	Candles(ctx context.Context, pair, interval string) ([]model.Candle, error)
}

// Config holds pipeline settings.
type Config struct {
	// SeedTradeLimit bounds the historical trade fetch per pair selection.
	SeedTradeLimit int
}

// seenLimit bounds the de-duplication set to the most recent trade IDs.
const seenLimit = 1024

// Pipeline owns both engines and the active pair selection. Live trades are
// filtered to the selection and de-duplicated by trade ID before reaching
// either engine.
type Pipeline struct {
	cfg     Config
	feed    Feed
	history History
	candles *candle.Engine
	stats   *stats.Engine
	logger  *slog.Logger

	mu          sync.Mutex
	base        string
	quote       string
	pair        string
	seen        map[string]struct{}
	seenOrder   []string
	unsubscribe func()
	statusUnsub func()
}

// New creates the pipeline and registers it on the feed fan-out. The
// connectivity listener survives feed teardown, so the trade subscription is
// restored whenever a later session opens.
func New(cfg Config, feed Feed, history History, candleEngine *candle.Engine, statsEngine *stats.Engine, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		feed:    feed,
		history: history,
		candles: candleEngine,
		stats:   statsEngine,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
	p.unsubscribe = feed.Subscribe(p.handleTrade)
	p.statusUnsub = feed.OnConnectionChange(p.handleStatus)
	return p
}

// SelectPair switches the active selection: both engines are reset, seeded
// from history and the selection command is sent (or held) on the feed.
// Seed fetch failures degrade to empty seeds; live aggregation still starts.
func (p *Pipeline) SelectPair(ctx context.Context, pair, interval string) error {
	base, quote, err := model.ParsePair(pair)
	if err != nil {
		return err
	}

	seedCandles, err := p.history.Candles(ctx, pair, interval)
	if err != nil {
		p.logger.Warn("candle seed unavailable, starting empty", "pair", pair, "error", err)
		seedCandles = nil
	}
	seedTrades, err := p.history.Trades(ctx, pair, p.cfg.SeedTradeLimit)
	if err != nil {
		p.logger.Warn("trade seed unavailable, starting empty", "pair", pair, "error", err)
		seedTrades = nil
	}

	// The lock spans engine reset, seed replay and the filter switch so a
	// concurrently dispatched trade lands entirely before or entirely after
	// the new selection; it can never straddle the reset.
	p.mu.Lock()

	// Validates the interval before any engine state is touched.
	if err := p.candles.Reset(pair, interval, seedCandles); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to select %s %s: %w", pair, interval, err)
	}

	p.stats.Reset(pair)
	p.seen = make(map[string]struct{})
	p.seenOrder = nil

	// Replay oldest-first so window eviction and the first-price baseline
	// follow real event order.
	sort.Slice(seedTrades, func(i, j int) bool {
		return seedTrades[i].Timestamp.Before(seedTrades[j].Timestamp)
	})
	for _, t := range seedTrades {
		if t.BaseSymbol != base || t.QuoteSymbol != quote {
			continue
		}
		if p.markSeenLocked(t.ID) {
			p.stats.Apply(t)
		}
	}

	p.base = base
	p.quote = quote
	p.pair = pair
	p.mu.Unlock()

	if err := p.feed.SendPairSelection(pair); err != nil {
		return fmt.Errorf("failed to select %s on feed: %w", pair, err)
	}

	p.logger.Info("pair selected",
		"pair", pair,
		"interval", interval,
		"seedCandles", len(seedCandles),
		"seedTrades", len(seedTrades))
	return nil
}

// handleTrade applies one live trade to both engines when it matches the
// active selection and has not been counted before. Runs synchronously
// inside the feed's dispatch round, under the selection lock.
func (p *Pipeline) handleTrade(t model.Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.base == "" || t.BaseSymbol != p.base || t.QuoteSymbol != p.quote {
		return
	}
	if !p.markSeenLocked(t.ID) {
		return
	}

	p.candles.Apply(t)
	p.stats.Apply(t)
}

// handleStatus restores the trade subscription when a session opens. Feed
// teardown clears trade subscribers, so without this a reconnect after an
// explicit disconnect would leave the engines starved.
func (p *Pipeline) handleStatus(connected bool) {
	if !connected {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// Unsubscribing first keeps exactly one registration when the
	// subscription survived the transition.
	p.unsubscribe()
	p.unsubscribe = p.feed.Subscribe(p.handleTrade)
}

// markSeenLocked records a trade ID and reports whether it was new. Seed
// replay marks IDs so the first live frames after a selection cannot double
// count trades the history API already returned. Events without an ID are
// always admitted.
func (p *Pipeline) markSeenLocked(id string) bool {
	if id == "" {
		return true
	}
	if _, dup := p.seen[id]; dup {
		return false
	}
	p.seen[id] = struct{}{}
	p.seenOrder = append(p.seenOrder, id)
	if len(p.seenOrder) > seenLimit {
		oldest := p.seenOrder[0]
		p.seenOrder = p.seenOrder[1:]
		delete(p.seen, oldest)
	}
	return true
}

// Candles returns the current candle series ordered by bucket start.
func (p *Pipeline) Candles() []model.Candle {
	return p.candles.Series()
}

// Stats returns the current rolling statistics snapshot.
func (p *Pipeline) Stats() model.Stats {
	return p.stats.Snapshot()
}

// Pair returns the active pair selection, empty before the first SelectPair.
func (p *Pipeline) Pair() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pair
}

// Close removes the pipeline from the feed fan-out.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	if p.statusUnsub != nil {
		p.statusUnsub()
	}
}
