package candle

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/solpulse/pulse/internal/model"
)

func newTestEngine(t *testing.T, interval string) *Engine {
	t.Helper()
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := e.Reset("SOL/USDC", interval, nil); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	return e
}

func fill(ts time.Time, price, amount float64) model.Trade {
	return model.Trade{
		Timestamp:   ts,
		BaseSymbol:  "SOL",
		QuoteSymbol: "USDC",
		Price:       price,
		Amount:      amount,
		Side:        model.SideBuy,
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		spec     string
		expected time.Duration
	}{
		{"1m", time.Minute},
		{"5m", 5 * time.Minute},
		{"15m", 15 * time.Minute},
		{"1h", time.Hour},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			d, err := ParseInterval(tt.spec)
			if err != nil {
				t.Fatalf("Expected %s to parse, got error: %v", tt.spec, err)
			}
			if d != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, d)
			}
		})
	}

	if _, err := ParseInterval("2w"); err == nil {
		t.Error("Expected error for unknown interval '2w'")
	}
}

func TestApplyBuildsCandleFromTrades(t *testing.T) {
	e := newTestEngine(t, "1m")
	base := time.Date(2026, 8, 30, 12, 0, 10, 0, time.UTC)

	e.Apply(fill(base, 10, 1))
	e.Apply(fill(base.Add(5*time.Second), 12, 1))
	e.Apply(fill(base.Add(20*time.Second), 9, 1))

	series := e.Series()
	if len(series) != 1 {
		t.Fatalf("Expected 1 bucket, got %d", len(series))
	}

	c := series[0]
	if c.Open != 10 {
		t.Errorf("Expected open 10, got %f", c.Open)
	}
	if c.High != 12 {
		t.Errorf("Expected high 12, got %f", c.High)
	}
	if c.Low != 9 {
		t.Errorf("Expected low 9, got %f", c.Low)
	}
	if c.Close != 9 {
		t.Errorf("Expected close 9, got %f", c.Close)
	}
	if c.Volume != 31 {
		t.Errorf("Expected volume 31, got %f", c.Volume)
	}
	if c.TradeCount != 3 {
		t.Errorf("Expected trade count 3, got %d", c.TradeCount)
	}
	if !c.OpenTime.Equal(base.Truncate(time.Minute)) {
		t.Errorf("Expected bucket start %v, got %v", base.Truncate(time.Minute), c.OpenTime)
	}
}

func TestOpenFixedAtBucketCreation(t *testing.T) {
	e := newTestEngine(t, "1m")
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	e.Apply(fill(base, 100, 1))
	for i := 1; i <= 10; i++ {
		e.Apply(fill(base.Add(time.Duration(i)*time.Second), 100+float64(i), 1))
	}

	c := e.Series()[0]
	if c.Open != 100 {
		t.Errorf("Expected open to stay 100, got %f", c.Open)
	}
	if c.High < c.Open || c.High < c.Close {
		t.Errorf("Expected high >= max(open, close), got high=%f open=%f close=%f", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		t.Errorf("Expected low <= min(open, close), got low=%f open=%f close=%f", c.Low, c.Open, c.Close)
	}
}

func TestPriceOnlyTickUpdatesExtremesNotVolume(t *testing.T) {
	e := newTestEngine(t, "1m")
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	e.Apply(fill(base, 100, 2))

	tick := model.Trade{
		Timestamp:   base.Add(10 * time.Second),
		BaseSymbol:  "SOL",
		QuoteSymbol: "USDC",
		Price:       110,
		Amount:      0,
		Side:        model.SidePrice,
	}
	e.Apply(tick)

	c := e.Series()[0]
	if c.High != 110 {
		t.Errorf("Expected price-only tick to lift high to 110, got %f", c.High)
	}
	if c.Close != 110 {
		t.Errorf("Expected close 110, got %f", c.Close)
	}
	if c.Volume != 200 {
		t.Errorf("Expected volume unchanged at 200, got %f", c.Volume)
	}
	if c.TradeCount != 1 {
		t.Errorf("Expected trade count unchanged at 1, got %d", c.TradeCount)
	}
}

func TestTradesSpanMultipleBuckets(t *testing.T) {
	e := newTestEngine(t, "1m")
	base := time.Date(2026, 8, 30, 12, 0, 30, 0, time.UTC)

	e.Apply(fill(base, 10, 1))
	e.Apply(fill(base.Add(time.Minute), 11, 1))
	e.Apply(fill(base.Add(2*time.Minute), 12, 1))

	series := e.Series()
	if len(series) != 3 {
		t.Fatalf("Expected 3 buckets, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].OpenTime.Before(series[i].OpenTime) {
			t.Error("Expected series ordered by bucket start time")
		}
	}
}

func TestResetSeedsAndDiscards(t *testing.T) {
	e := newTestEngine(t, "1m")
	e.Apply(fill(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), 10, 1))

	seed := []model.Candle{
		{OpenTime: time.Date(2026, 8, 30, 11, 58, 0, 0, time.UTC), Open: 9, High: 11, Low: 8, Close: 10, Volume: 50, TradeCount: 5},
		{OpenTime: time.Date(2026, 8, 30, 11, 59, 0, 0, time.UTC), Open: 10, High: 12, Low: 10, Close: 11, Volume: 30, TradeCount: 2},
	}
	if err := e.Reset("RAY/USDC", "1m", seed); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	series := e.Series()
	if len(series) != 2 {
		t.Fatalf("Expected only the 2 seeded buckets after reset, got %d", len(series))
	}
	if series[0].Volume != 50 {
		t.Errorf("Expected seeded candle trusted as-is, got volume %f", series[0].Volume)
	}
	if e.Pair() != "RAY/USDC" {
		t.Errorf("Expected pair 'RAY/USDC', got '%s'", e.Pair())
	}
}

func TestResetWithBadIntervalLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t, "1m")
	e.Apply(fill(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), 10, 1))

	if err := e.Reset("SOL/USDC", "bogus", nil); err == nil {
		t.Fatal("Expected error for unparseable interval")
	}

	if len(e.Series()) != 1 {
		t.Error("Expected existing buckets to survive a failed reset")
	}
}

func TestOnUpdateEmitsCommittedBucket(t *testing.T) {
	e := newTestEngine(t, "1m")

	var updates []model.Candle
	e.OnUpdate(func(c model.Candle) {
		updates = append(updates, c)
	})

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	e.Apply(fill(base, 10, 1))
	e.Apply(fill(base.Add(time.Second), 11, 1))

	if len(updates) != 2 {
		t.Fatalf("Expected 2 update callbacks, got %d", len(updates))
	}
	if updates[1].Close != 11 {
		t.Errorf("Expected committed close 11, got %f", updates[1].Close)
	}
}
