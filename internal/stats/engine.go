// Package stats maintains a rolling 24-hour view of fills for the active
// pair: current price, absolute and percentage change, volume and extremes.
package stats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/solpulse/pulse/internal/model"
)

// Window is the fixed length of the rolling trade buffer.
const Window = 24 * time.Hour

// Engine recomputes the derived view on every admitted event. The trade
// buffer is owned exclusively by the engine. Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	pair     string
	fills    []model.Trade
	latest   time.Time
	seeded   bool
	snap     model.Stats
	onUpdate func(model.Stats)
	logger   *slog.Logger
}

// NewEngine creates an empty statistics engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// OnUpdate registers a callback invoked with the recomputed snapshot after
// each admitted event.
func (e *Engine) OnUpdate(fn func(model.Stats)) {
	e.mu.Lock()
	e.onUpdate = fn
	e.mu.Unlock()
}

// Reset clears the trade buffer and all derived stats to the empty state
// for a new pair selection.
func (e *Engine) Reset(pair string) {
	e.mu.Lock()
	e.pair = pair
	e.fills = nil
	e.latest = time.Time{}
	e.seeded = false
	e.snap = model.Stats{}
	e.mu.Unlock()

	e.logger.Info("statistics engine reset", "pair", pair)
}

// Apply admits one event for the active pair. Price-only ticks update the
// current price and extremes only; fills enter the rolling buffer and
// trigger a full recompute over the surviving window.
func (e *Engine) Apply(t model.Trade) {
	e.mu.Lock()

	if !t.IsFill() {
		e.snap.Price = t.Price
		if !e.seeded {
			e.snap.High = t.Price
			e.snap.Low = t.Price
			e.seeded = true
		} else {
			if t.Price > e.snap.High {
				e.snap.High = t.Price
			}
			if t.Price < e.snap.Low {
				e.snap.Low = t.Price
			}
		}
		e.emitLocked()
		return
	}

	e.fills = append(e.fills, t)
	if t.Timestamp.After(e.latest) {
		e.latest = t.Timestamp
	}
	e.evictLocked()
	e.recomputeLocked()
	e.seeded = true
	e.emitLocked()
}

// evictLocked drops buffered fills older than the window relative to the
// latest timestamp seen.
func (e *Engine) evictLocked() {
	cutoff := e.latest.Add(-Window)
	kept := e.fills[:0]
	for _, f := range e.fills {
		if !f.Timestamp.Before(cutoff) {
			kept = append(kept, f)
		}
	}
	e.fills = kept
}

// recomputeLocked rebuilds the snapshot from the surviving buffer.
func (e *Engine) recomputeLocked() {
	if len(e.fills) == 0 {
		e.snap = model.Stats{}
		return
	}

	first := e.fills[0]
	last := e.fills[0]
	high := e.fills[0].Price
	low := e.fills[0].Price
	volume := 0.0

	for _, f := range e.fills {
		if f.Timestamp.Before(first.Timestamp) {
			first = f
		}
		if !f.Timestamp.Before(last.Timestamp) {
			last = f
		}
		if f.Price > high {
			high = f.Price
		}
		if f.Price < low {
			low = f.Price
		}
		volume += f.Amount * f.Price
	}

	change := last.Price - first.Price
	changePercent := 0.0
	if first.Price > 0 {
		changePercent = change / first.Price * 100
	}

	e.snap = model.Stats{
		Price:         last.Price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        volume,
		High:          high,
		Low:           low,
	}
}

// emitLocked snapshots the view, releases the lock and fires the callback.
func (e *Engine) emitLocked() {
	snap := e.snap
	fn := e.onUpdate
	e.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Snapshot returns the current derived view.
func (e *Engine) Snapshot() model.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// FillCount returns the number of fills surviving in the rolling buffer.
func (e *Engine) FillCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fills)
}

// Pair returns the active pair selection.
func (e *Engine) Pair() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pair
}
