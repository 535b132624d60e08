package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"otc-signal-bot/internal/indicators"
	"otc-signal-bot/internal/market"
	"otc-signal-bot/internal/patterns"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC)

func testGenerator() *market.Generator {
	return market.NewGenerator(market.GeneratorConfig{
		Seed:    7,
		Pairs:   market.WithOTC(market.DefaultPairs()[:1]),
		History: 2400,
		Now:     func() time.Time { return testNow },
	})
}

func newTestMTF(t *testing.T) *MultiTimeframeAnalyzer {
	t.Helper()
	technical := NewTechnicalAnalyzer(DefaultTechnicalConfig())
	otc := NewAdvancedOTCAnalyzer(technical, DefaultOTCConfig())
	m, err := NewMultiTimeframeAnalyzer(testGenerator(), technical, otc, DefaultMultiTimeframeConfig())
	require.NoError(t, err)
	return m
}

func TestDirectionHelpers(t *testing.T) {
	assert.Equal(t, 1.0, DirectionCall.Sign())
	assert.Equal(t, -1.0, DirectionPut.Sign())
	assert.Equal(t, 0.0, DirectionNeutral.Sign())
	assert.Equal(t, DirectionPut, DirectionCall.Opposite())
	assert.Equal(t, DirectionNeutral, DirectionNeutral.Opposite())

	tally := Tally{Bull: 3, Bear: 1}
	assert.InDelta(t, 0.75, tally.Agreement(DirectionCall), 1e-9)
	assert.InDelta(t, 0.25, tally.Agreement(DirectionPut), 1e-9)
	assert.InDelta(t, 0.5, Tally{}.Agreement(DirectionCall), 1e-9)
}

func TestVoteAllBullish(t *testing.T) {
	ta := NewTechnicalAnalyzer(DefaultTechnicalConfig())
	snap := &indicators.Snapshot{
		RSI:          25,
		EMAFast:      1.1010,
		EMASlow:      1.1000,
		PrevEMAFast:  1.0999,
		PrevEMASlow:  1.1000,
		MACDHist:     0.0002,
		PrevMACDHist: -0.0001,
		PercentB:     -0.05,
		StochK:       15,
		StochD:       10,
		ADX:          15,
		VolumeRatio:  1,
	}

	b := newBallot()
	ta.vote(b, snap, nil, market.Candle{Open: 1, Close: 1.1, High: 1.1, Low: 1})
	a := &TimeframeAnalysis{Indicators: snap}
	ta.settle(a, b)

	assert.Equal(t, DirectionCall, a.Direction)
	assert.InDelta(t, 100.0, a.Strength, 1e-9)
	assert.Zero(t, a.BearScore)
	assert.NotEmpty(t, a.Reasons)

	scores := a.ScoresFor(DirectionCall)
	assert.InDelta(t, 100.0, scores.Momentum, 1e-9)
	assert.Greater(t, scores.Trend, 60.0)
	assert.InDelta(t, 50.0, scores.Pattern, 1e-9)

	against := a.ScoresFor(DirectionPut)
	assert.InDelta(t, 0.0, against.Momentum, 1e-9)
}

func TestVoteNeutralWhenBalanced(t *testing.T) {
	ta := NewTechnicalAnalyzer(DefaultTechnicalConfig())
	snap := &indicators.Snapshot{
		RSI:          50,
		EMAFast:      1.1010,
		EMASlow:      1.1000,
		PrevEMAFast:  1.1010,
		PrevEMASlow:  1.1000,
		MACDHist:     -0.0001,
		PrevMACDHist: -0.0001,
		PercentB:     0.5,
		StochK:       50,
		StochD:       50,
		ADX:          22,
	}

	b := newBallot()
	ta.vote(b, snap, []patterns.DetectedPattern{
		{Type: patterns.ShootingStar, Direction: patterns.Bearish, Confidence: 0.25},
	}, market.Candle{})
	a := &TimeframeAnalysis{Indicators: snap}
	ta.settle(a, b)

	// EMA 1.5 bull vs MACD 1 + pattern 0.5 bear
	assert.InDelta(t, 1.5, a.BullScore, 1e-9)
	assert.InDelta(t, 1.5, a.BearScore, 1e-9)
	assert.Equal(t, DirectionNeutral, a.Direction)
	assert.Zero(t, a.Strength)
}

func TestVoteRSIBands(t *testing.T) {
	ta := NewTechnicalAnalyzer(DefaultTechnicalConfig())

	tests := []struct {
		rsi       float64
		bull      float64
		bear      float64
		direction Direction
	}{
		{rsi: 25, bull: 2, direction: DirectionCall},
		{rsi: 40, bull: 1, direction: DirectionCall},
		{rsi: 50, direction: DirectionNeutral},
		{rsi: 60, bear: 1, direction: DirectionPut},
		{rsi: 75, bear: 2, direction: DirectionPut},
	}

	for _, tt := range tests {
		// only RSI is outside its neutral zone; ADX 22 is neither trending nor ranging
		snap := &indicators.Snapshot{RSI: tt.rsi, PercentB: 0.5, StochK: 50, StochD: 50, ADX: 22}
		b := newBallot()
		ta.vote(b, snap, nil, market.Candle{})
		a := &TimeframeAnalysis{Indicators: snap}
		ta.settle(a, b)

		assert.InDelta(t, tt.bull, a.BullScore, 1e-9, "RSI %.0f bull", tt.rsi)
		assert.InDelta(t, tt.bear, a.BearScore, 1e-9, "RSI %.0f bear", tt.rsi)
		assert.Equal(t, tt.direction, a.Direction, "RSI %.0f direction", tt.rsi)
	}
}

func TestTechnicalAnalyzeGeneratedSeries(t *testing.T) {
	g := testGenerator()
	candles, err := g.Candles(context.Background(), "EUR/USD", market.M1, 120)
	require.NoError(t, err)

	ta := NewTechnicalAnalyzer(DefaultTechnicalConfig())
	a, err := ta.Analyze("EUR/USD", market.M1, candles)
	require.NoError(t, err)

	assert.Equal(t, "EUR/USD", a.Symbol)
	assert.Equal(t, market.M1, a.Timeframe)
	assert.Equal(t, 120, a.CandleCount)
	assert.Equal(t, candles[119].CloseTime, a.AnalyzedAt)
	assert.Contains(t, []Direction{DirectionCall, DirectionPut, DirectionNeutral}, a.Direction)
	assert.True(t, a.Strength >= 0 && a.Strength <= 100)
	assert.True(t, a.Volatility >= 0 && a.Volatility <= 100)

	for _, d := range []Direction{DirectionCall, DirectionPut} {
		s := a.ScoresFor(d)
		for _, v := range []float64{s.Trend, s.Momentum, s.Volatility, s.Pattern} {
			assert.True(t, v >= 0 && v <= 100, "score out of range: %v", v)
		}
	}

	_, err = ta.Analyze("EUR/USD", market.M1, candles[:20])
	assert.ErrorIs(t, err, indicators.ErrInsufficientData)
}

func TestVolatilityScore(t *testing.T) {
	ta := NewTechnicalAnalyzer(DefaultTechnicalConfig())

	assert.InDelta(t, 100.0, ta.volatilityScore(0.06, market.M1), 1e-9)
	assert.Less(t, ta.volatilityScore(0.005, market.M1), 50.0)
	assert.Less(t, ta.volatilityScore(0.35, market.M1), 60.0)
	assert.Zero(t, ta.volatilityScore(0, market.M1))

	// M5 ATR% is normalised by sqrt(5) before scoring
	assert.InDelta(t, ta.volatilityScore(0.06, market.M1), ta.volatilityScore(0.06*2.2360679775, market.M5), 1e-6)
}

func bullishRun(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Open: 1.0 + float64(i)*0.001, Close: 1.0009 + float64(i)*0.001, High: 1.001 + float64(i)*0.001, Low: 0.9999 + float64(i)*0.001}
	}
	return out
}

func TestOTCInsightStretchedAndExhausted(t *testing.T) {
	oa := NewAdvancedOTCAnalyzer(NewTechnicalAnalyzer(DefaultTechnicalConfig()), DefaultOTCConfig())
	a := &TimeframeAnalysis{Indicators: &indicators.Snapshot{ZScore: 2.5, PercentB: 1.05}}

	in := oa.Insight(a, bullishRun(5))

	assert.Equal(t, DirectionPut, in.Bias)
	assert.Equal(t, 5, in.Streak)
	assert.Equal(t, DirectionCall, in.StreakDirection)
	// z: 50*2.5/3, streak: 30*5/6, band: 20
	assert.InDelta(t, 50*2.5/3+25+20, in.Score, 1e-9)
	assert.Len(t, in.Reasons, 3)
}

func TestOTCInsightCalmMarket(t *testing.T) {
	oa := NewAdvancedOTCAnalyzer(NewTechnicalAnalyzer(DefaultTechnicalConfig()), DefaultOTCConfig())
	a := &TimeframeAnalysis{Indicators: &indicators.Snapshot{ZScore: 0.3, PercentB: 0.55}}

	in := oa.Insight(a, bullishRun(2))
	assert.Equal(t, DirectionNeutral, in.Bias)
	assert.Zero(t, in.Score)
}

func TestOTCInsightIgnoresOpposingEvidence(t *testing.T) {
	oa := NewAdvancedOTCAnalyzer(NewTechnicalAnalyzer(DefaultTechnicalConfig()), DefaultOTCConfig())
	// Price far below the mean argues CALL
	a := &TimeframeAnalysis{Indicators: &indicators.Snapshot{ZScore: -3.0, PercentB: 0.4}}
	in := oa.Insight(a, bullishRun(6))

	// Streak of bullish candles argues PUT, so only the z-score counts
	assert.Equal(t, DirectionCall, in.Bias)
	assert.InDelta(t, 50.0, in.Score, 1e-9)
}

func TestStreak(t *testing.T) {
	candles := append(bullishRun(3), market.Candle{Open: 1.1, Close: 1.09, High: 1.1, Low: 1.08})
	n, d := streak(candles)
	assert.Equal(t, 1, n)
	assert.Equal(t, DirectionPut, d)

	n, d = streak([]market.Candle{{Open: 1, Close: 1}})
	assert.Zero(t, n)
	assert.Equal(t, DirectionNeutral, d)
}

func TestCombineWeightsTimeframes(t *testing.T) {
	r := &MultiTimeframeResult{Timeframes: map[market.Timeframe]*TimeframeAnalysis{
		market.M1:  {Direction: DirectionCall, Strength: 60, Volatility: 80},
		market.M5:  {Direction: DirectionCall, Strength: 40, Volatility: 70},
		market.M15: {Direction: DirectionPut, Strength: 50, Volatility: 60},
	}}

	combine(r, DefaultWeights(), 5)

	assert.InDelta(t, 32.0, r.NetScore, 1e-9)
	assert.Equal(t, DirectionCall, r.Direction)
	assert.InDelta(t, 0.8, r.Alignment, 1e-9)
	assert.InDelta(t, 0.5*80+0.3*70+0.2*60, r.Scores.Volatility, 1e-9)
}

func TestCombineNeutralBelowThreshold(t *testing.T) {
	r := &MultiTimeframeResult{Timeframes: map[market.Timeframe]*TimeframeAnalysis{
		market.M1:  {Direction: DirectionCall, Strength: 10},
		market.M5:  {Direction: DirectionPut, Strength: 10},
		market.M15: {Direction: DirectionNeutral},
	}}

	combine(r, DefaultWeights(), 5)
	assert.Equal(t, DirectionNeutral, r.Direction)
	assert.Zero(t, r.Alignment)
}

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, validateWeights(DefaultWeights()))

	err := validateWeights(map[market.Timeframe]float64{market.M1: 0.5, market.M5: 0.5})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	err = validateWeights(map[market.Timeframe]float64{market.M1: 0.5, market.M5: 0.3, market.M15: 0.3})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	m := newTestMTF(t)
	require.NoError(t, m.SetWeights(map[market.Timeframe]float64{market.M1: 0.4, market.M5: 0.4, market.M15: 0.2}))
	assert.InDelta(t, 0.4, m.Weights()[market.M5], 1e-9)
	assert.Error(t, m.SetWeights(map[market.Timeframe]float64{market.M1: 1.5, market.M5: 0, market.M15: 0}))
}

type memoryResultCache struct {
	mu   sync.Mutex
	data map[string]*MultiTimeframeResult
	sets int
}

func (c *memoryResultCache) GetAnalysis(_ context.Context, symbol string) (*MultiTimeframeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[symbol]
	return r, ok
}

func (c *memoryResultCache) SetAnalysis(_ context.Context, r *MultiTimeframeResult, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[r.Symbol] = r
	c.sets++
}

func TestMultiTimeframeAnalyze(t *testing.T) {
	m := newTestMTF(t)
	rc := &memoryResultCache{data: map[string]*MultiTimeframeResult{}}
	m.SetResultCache(rc)
	ctx := context.Background()

	r, err := m.Analyze(ctx, "EUR/USD")
	require.NoError(t, err)
	assert.False(t, r.IsOTC)
	assert.Len(t, r.Timeframes, 3)
	assert.Equal(t, market.M1, r.Primary)
	assert.NotNil(t, r.PrimaryAnalysis())
	assert.True(t, r.Alignment >= 0 && r.Alignment <= 1)
	switch {
	case r.Direction == DirectionCall:
		assert.Greater(t, r.NetScore, 0.0)
	case r.Direction == DirectionPut:
		assert.Less(t, r.NetScore, 0.0)
	}
	assert.Nil(t, r.OTC)

	again, err := m.Analyze(ctx, "EUR/USD")
	require.NoError(t, err)
	assert.Same(t, r, again)
	assert.Equal(t, 1, rc.sets)

	otc, err := m.Analyze(ctx, "EUR/USD-OTC")
	require.NoError(t, err)
	assert.True(t, otc.IsOTC)
	require.NotNil(t, otc.OTC)
	for _, a := range otc.Timeframes {
		assert.NotNil(t, a.OTC)
	}

	_, err = m.Analyze(ctx, "XAU/USD")
	assert.ErrorIs(t, err, market.ErrUnknownSymbol)
}

func TestAnalyzeCandlesRequiresAllTimeframes(t *testing.T) {
	m := newTestMTF(t)
	_, err := m.AnalyzeCandles("EUR/USD", map[market.Timeframe][]market.Candle{})
	assert.Error(t, err)
}

func TestCandleCache(t *testing.T) {
	c := NewCandleCache()
	candles := []market.Candle{{Close: 1}}

	c.Set("a", candles, time.Minute)
	c.Set("b", candles, -time.Second)

	assert.Equal(t, candles, c.Get("a"))
	assert.Nil(t, c.Get("b"))
	assert.Nil(t, c.Get("missing"))

	c.Clear()
	c.mu.RLock()
	_, stillThere := c.data["b"]
	c.mu.RUnlock()
	assert.False(t, stillThere)
}
