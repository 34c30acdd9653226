package model

import (
	"testing"
	"time"
)

func TestDecodeTrade(t *testing.T) {
	frame := []byte(`{
		"id": "abc123",
		"timestamp": "2026-08-30T12:00:00Z",
		"base_symbol": "SOL",
		"quote_symbol": "USDC",
		"price": 150.5,
		"amount": 2,
		"side": "buy",
		"total_value": 301,
		"dex_program": "Jupiter v6",
		"slot": 312456789
	}`)

	trade, err := DecodeTrade(frame)
	if err != nil {
		t.Fatalf("Expected frame to decode, got error: %v", err)
	}

	if trade.ID != "abc123" {
		t.Errorf("Expected ID 'abc123', got '%s'", trade.ID)
	}
	if trade.Pair() != "SOL/USDC" {
		t.Errorf("Expected pair 'SOL/USDC', got '%s'", trade.Pair())
	}
	if trade.Price != 150.5 {
		t.Errorf("Expected price 150.5, got %f", trade.Price)
	}
	if trade.Venue != "Jupiter v6" {
		t.Errorf("Expected venue 'Jupiter v6', got '%s'", trade.Venue)
	}
	if trade.Slot != 312456789 {
		t.Errorf("Expected slot 312456789, got %d", trade.Slot)
	}
	if !trade.IsFill() {
		t.Error("Expected a buy with amount > 0 to be a fill")
	}
}

func TestDecodeTradeRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"Not JSON", `{"id": "x"`},
		{"Missing symbols", `{"id":"x","timestamp":"2026-08-30T12:00:00Z","price":1,"amount":1,"side":"buy"}`},
		{"Zero price", `{"id":"x","timestamp":"2026-08-30T12:00:00Z","base_symbol":"SOL","quote_symbol":"USDC","price":0,"amount":1,"side":"buy"}`},
		{"Negative amount", `{"id":"x","timestamp":"2026-08-30T12:00:00Z","base_symbol":"SOL","quote_symbol":"USDC","price":1,"amount":-1,"side":"buy"}`},
		{"Unknown side", `{"id":"x","timestamp":"2026-08-30T12:00:00Z","base_symbol":"SOL","quote_symbol":"USDC","price":1,"amount":1,"side":"short"}`},
		{"Missing timestamp", `{"id":"x","base_symbol":"SOL","quote_symbol":"USDC","price":1,"amount":1,"side":"buy"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTrade([]byte(tt.frame)); err == nil {
				t.Errorf("Expected decode error for frame %s", tt.frame)
			}
		})
	}
}

func TestIsFill(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		trade    Trade
		expected bool
	}{
		{"Buy with amount", Trade{Timestamp: now, Side: SideBuy, Amount: 1, Price: 10}, true},
		{"Sell with amount", Trade{Timestamp: now, Side: SideSell, Amount: 0.5, Price: 10}, true},
		{"Price-only side", Trade{Timestamp: now, Side: SidePrice, Amount: 1, Price: 10}, false},
		{"Zero amount buy", Trade{Timestamp: now, Side: SideBuy, Amount: 0, Price: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.trade.IsFill() != tt.expected {
				t.Errorf("Expected IsFill %v, got %v", tt.expected, tt.trade.IsFill())
			}
		})
	}
}

func TestParsePair(t *testing.T) {
	base, quote, err := ParsePair("SOL/USDC")
	if err != nil {
		t.Fatalf("Expected pair to parse, got error: %v", err)
	}
	if base != "SOL" || quote != "USDC" {
		t.Errorf("Expected SOL/USDC, got %s/%s", base, quote)
	}

	for _, bad := range []string{"", "SOL", "SOL/", "/USDC", "SOL/USDC/IRT"} {
		if _, _, err := ParsePair(bad); err == nil {
			t.Errorf("Expected parse error for pair %q", bad)
		}
	}
}

func TestNewPairSelection(t *testing.T) {
	cmd := NewPairSelection("SOL/USDC")
	if cmd.Type != "select_pair" {
		t.Errorf("Expected type 'select_pair', got '%s'", cmd.Type)
	}
	if cmd.Pair != "SOL/USDC" {
		t.Errorf("Expected pair 'SOL/USDC', got '%s'", cmd.Pair)
	}
}
