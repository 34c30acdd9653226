// Package model defines the domain records shared across the pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Trade sides as delivered by the upstream feed.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	// SidePrice marks a price-only tick: price discovery without an
	// executed fill.
	SidePrice = "price"
)

// Trade represents a single observed fill or price tick from the market feed.
// Trades are never mutated after decoding.
type Trade struct {
	// ID is unique per event and used for de-duplication.
	ID string `json:"id"`

	// Timestamp is when the trade occurred on the venue.
	Timestamp time.Time `json:"timestamp"`

	// BaseSymbol is the base token of the pair (e.g. "SOL").
	BaseSymbol string `json:"base_symbol"`

	// QuoteSymbol is the quote token of the pair (e.g. "USDC").
	QuoteSymbol string `json:"quote_symbol"`

	// Price is the trade price in quote currency. Always positive.
	Price float64 `json:"price"`

	// Amount is the quantity of base currency filled.
	// Zero signals a price-only tick, not a fill.
	Amount float64 `json:"amount"`

	// Side is the trade direction: "buy", "sell" or "price".
	Side string `json:"side"`

	// TotalValue is Price * Amount as reported upstream.
	TotalValue float64 `json:"total_value"`

	// Venue is the originating venue name; may be empty.
	Venue string `json:"dex_program"`

	// Slot is the upstream sequence/slot number.
	Slot uint64 `json:"slot"`
}

// IsFill reports whether the trade carries executed volume. Price-only
// ticks update price discovery but never count toward volume or trade-count
// aggregates.
func (t Trade) IsFill() bool {
	return (t.Side == SideBuy || t.Side == SideSell) && t.Amount > 0
}

// Pair returns the trade's pair in "BASE/QUOTE" form.
func (t Trade) Pair() string {
	return t.BaseSymbol + "/" + t.QuoteSymbol
}

// DecodeTrade parses one inbound frame into a Trade, validating the schema
// at the boundary. Frames that fail to decode are dropped by the caller and
// never reach the aggregation engines.
func DecodeTrade(data []byte) (Trade, error) {
	var t Trade
	if err := json.Unmarshal(data, &t); err != nil {
		return Trade{}, fmt.Errorf("failed to parse frame: %w", err)
	}

	if t.BaseSymbol == "" || t.QuoteSymbol == "" {
		return Trade{}, fmt.Errorf("trade missing pair symbols")
	}
	if t.Price <= 0 {
		return Trade{}, fmt.Errorf("trade has non-positive price %f", t.Price)
	}
	if t.Amount < 0 {
		return Trade{}, fmt.Errorf("trade has negative amount %f", t.Amount)
	}
	if t.Timestamp.IsZero() {
		return Trade{}, fmt.Errorf("trade missing timestamp")
	}
	switch t.Side {
	case SideBuy, SideSell, SidePrice:
	default:
		return Trade{}, fmt.Errorf("unknown trade side %q", t.Side)
	}

	return t, nil
}

// Candle represents one OHLCV bucket keyed by its interval-aligned start time.
type Candle struct {
	// OpenTime is the bucket start, aligned to the interval boundary.
	OpenTime time.Time `json:"open_time"`

	// Open is the price of the first trade routed to the bucket.
	// Fixed at creation, never updated.
	Open float64 `json:"open"`

	// High is the highest price seen during the bucket period.
	High float64 `json:"high"`

	// Low is the lowest price seen during the bucket period.
	Low float64 `json:"low"`

	// Close is the price of the most recently admitted trade.
	Close float64 `json:"close"`

	// Volume is the sum of amount*price over counted fills.
	Volume float64 `json:"volume"`

	// TradeCount is the number of counted fills.
	TradeCount int `json:"trade_count"`
}

// Stats is the rolling 24-hour derived view for the active pair.
type Stats struct {
	// Price is the most recently observed price, fills and ticks alike.
	Price float64 `json:"price"`

	// Change is the absolute price change over the surviving window.
	Change float64 `json:"change"`

	// ChangePercent is Change relative to the earliest surviving fill.
	// Reported as 0 when that price is 0.
	ChangePercent float64 `json:"change_percent"`

	// Volume is the sum of amount*price over surviving fills.
	Volume float64 `json:"volume"`

	// High is the highest price observed in the window.
	High float64 `json:"high"`

	// Low is the lowest price observed in the window.
	Low float64 `json:"low"`
}

// PairSelection is the outbound command selecting the active pair on the feed.
type PairSelection struct {
	Type string `json:"type"`
	Pair string `json:"pair"`
}

// NewPairSelection builds the tagged select_pair command for the given pair.
func NewPairSelection(pair string) PairSelection {
	return PairSelection{Type: "select_pair", Pair: pair}
}

// ParsePair splits a "BASE/QUOTE" pair string into its two symbols.
func ParsePair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair %q: must be BASE/QUOTE", pair)
	}
	return parts[0], parts[1], nil
}
