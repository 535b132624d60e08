package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGenerator(clock *fakeClock) *Generator {
	return NewGenerator(GeneratorConfig{
		Seed:    42,
		Pairs:   WithOTC(DefaultPairs()[:2]),
		History: 600,
		Now:     clock.Now,
	})
}

func TestGeneratorSymbols(t *testing.T) {
	g := newTestGenerator(&fakeClock{t: time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)})

	assert.Equal(t, []string{"EUR/USD", "EUR/USD-OTC", "GBP/USD", "GBP/USD-OTC"}, g.Symbols())

	otc, ok := g.Pair("EUR/USD-OTC")
	require.True(t, ok)
	regular, _ := g.Pair("EUR/USD")
	assert.Greater(t, otc.Volatility, regular.Volatility)
	assert.Greater(t, otc.Reversion, regular.Reversion)
}

func TestGeneratorCandlesAreClosedAndContiguous(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)}
	g := newTestGenerator(clock)

	candles, err := g.Candles(context.Background(), "EUR/USD", M1, 120)
	require.NoError(t, err)
	require.Len(t, candles, 120)

	last := candles[len(candles)-1]
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), last.CloseTime)

	for i, c := range candles {
		assert.GreaterOrEqual(t, c.High, c.Low)
		assert.GreaterOrEqual(t, c.High, c.Open)
		assert.GreaterOrEqual(t, c.High, c.Close)
		assert.LessOrEqual(t, c.Low, c.Open)
		assert.LessOrEqual(t, c.Low, c.Close)
		assert.Greater(t, c.Volume, 0.0)
		if i > 0 {
			assert.Equal(t, candles[i-1].CloseTime, c.OpenTime)
		}
	}
}

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestGenerator(&fakeClock{t: now})
	b := newTestGenerator(&fakeClock{t: now})

	ca, err := a.Candles(context.Background(), "GBP/USD-OTC", M1, 50)
	require.NoError(t, err)
	cb, err := b.Candles(context.Background(), "GBP/USD-OTC", M1, 50)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestGeneratorStaysNearAnchor(t *testing.T) {
	g := newTestGenerator(&fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)})

	candles, err := g.Candles(context.Background(), "EUR/USD-OTC", M1, 600)
	require.NoError(t, err)
	for _, c := range candles {
		assert.InEpsilon(t, 1.085, c.Close, 0.05)
	}
}

func TestGeneratorAggregatesHigherTimeframes(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 7, 10, 0, time.UTC)}
	g := newTestGenerator(clock)
	ctx := context.Background()

	m5, err := g.Candles(ctx, "EUR/USD", M5, 10)
	require.NoError(t, err)
	require.Len(t, m5, 10)

	last := m5[len(m5)-1]
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), last.OpenTime)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC), last.CloseTime)

	m1, err := g.Candles(ctx, "EUR/USD", M1, 7)
	require.NoError(t, err)
	// m1[0] opens at 12:00, m1[4] closes at 12:05
	assert.Equal(t, m1[0].Open, last.Open)
	assert.Equal(t, m1[4].Close, last.Close)

	m15, err := g.Candles(ctx, "EUR/USD", M15, 5)
	require.NoError(t, err)
	for _, c := range m15 {
		assert.Zero(t, c.OpenTime.Minute()%15)
		assert.Equal(t, 15*time.Minute, c.CloseTime.Sub(c.OpenTime))
	}
}

func TestGeneratorAdvancesWithClock(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGenerator(clock)
	ctx := context.Background()

	before, err := g.Candles(ctx, "EUR/USD", M1, 5)
	require.NoError(t, err)

	clock.Advance(3 * time.Minute)
	after, err := g.Candles(ctx, "EUR/USD", M1, 5)
	require.NoError(t, err)

	assert.Equal(t, before[4], after[1])
	assert.Equal(t, time.Date(2024, 3, 1, 12, 3, 0, 0, time.UTC), after[4].CloseTime)
}

func TestGeneratorPriceAt(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC)}
	g := newTestGenerator(clock)
	ctx := context.Background()

	candles, err := g.Candles(ctx, "EUR/USD", M1, 10)
	require.NoError(t, err)

	px, err := g.PriceAt(ctx, "EUR/USD", candles[5].CloseTime)
	require.NoError(t, err)
	assert.Equal(t, candles[5].Close, px)

	latest, err := g.Price(ctx, "EUR/USD")
	require.NoError(t, err)
	assert.Equal(t, candles[9].Close, latest)

	_, err = g.PriceAt(ctx, "EUR/USD", clock.t.Add(2*time.Minute))
	assert.True(t, errors.Is(err, ErrPriceNotClosed))
}

func TestGeneratorPriceMovesWithinMinute(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 10, 0, 0, time.UTC)
	clock := &fakeClock{t: start}
	g := newTestGenerator(clock)
	ctx := context.Background()

	seen := map[float64]bool{}
	var observed []float64
	for i := 0; i < 12; i++ {
		px, err := g.Price(ctx, "EUR/USD-OTC")
		require.NoError(t, err)
		seen[px] = true
		observed = append(observed, px)
		clock.Advance(5 * time.Second)
	}
	assert.Greater(t, len(seen), 1, "live price should move inside the minute")

	// 12:11:00: the observed minute is now closed and contains every live quote
	require.Equal(t, start.Add(time.Minute), clock.t)
	candles, err := g.Candles(ctx, "EUR/USD-OTC", M1, 1)
	require.NoError(t, err)
	closed := candles[0]
	assert.Equal(t, start, closed.OpenTime)
	for _, px := range observed {
		assert.True(t, px >= closed.Low && px <= closed.High, "quote %v outside [%v, %v]", px, closed.Low, closed.High)
	}

	px, err := g.Price(ctx, "EUR/USD-OTC")
	require.NoError(t, err)
	assert.Equal(t, closed.Close, px)

	// reading live quotes does not change the closed history
	freshClock := &fakeClock{t: start}
	fresh := newTestGenerator(freshClock)
	_, err = fresh.Candles(ctx, "EUR/USD-OTC", M1, 1)
	require.NoError(t, err)
	freshClock.Advance(time.Minute)
	want, err := fresh.Candles(ctx, "EUR/USD-OTC", M1, 1)
	require.NoError(t, err)
	assert.Equal(t, want[0], closed)
}

func TestGeneratorErrors(t *testing.T) {
	g := newTestGenerator(&fakeClock{t: time.Now()})
	ctx := context.Background()

	_, err := g.Candles(ctx, "XAU/USD", M1, 10)
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	_, err = g.Candles(ctx, "EUR/USD", M1, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = g.Candles(ctx, "EUR/USD", Timeframe("2h"), 10)
	assert.ErrorIs(t, err, ErrUnknownInterval)
}

func TestSymbolHelpers(t *testing.T) {
	assert.True(t, IsOTC("EUR/USD-OTC"))
	assert.True(t, IsOTC("eur/usd-otc"))
	assert.False(t, IsOTC("EUR/USD"))
	assert.Equal(t, "EUR/USD", BaseSymbol("EUR/USD-OTC"))
	assert.Equal(t, "EUR/USD", BaseSymbol("EUR/USD"))

	tf, err := ParseTimeframe("M5")
	require.NoError(t, err)
	assert.Equal(t, M5, tf)
	tf, err = ParseTimeframe("15m")
	require.NoError(t, err)
	assert.Equal(t, M15, tf)
	assert.Equal(t, "M15", tf.Label())
	_, err = ParseTimeframe("H1")
	assert.Error(t, err)
}
