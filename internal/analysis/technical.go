package analysis

import (
	"fmt"
	"math"

	"otc-signal-bot/internal/indicators"
	"otc-signal-bot/internal/market"
	"otc-signal-bot/internal/patterns"
)

// TechnicalConfig tunes the indicator voting
type TechnicalConfig struct {
	Params          indicators.Params `json:"params"`
	PatternLookback int               `json:"pattern_lookback"`
	MinEdge         float64           `json:"min_edge"` // minimum |bull-bear|/total for a direction

	// ATR% normalised to one minute
	MinVolatility     float64 `json:"min_volatility"`
	OptimalVolatility float64 `json:"optimal_volatility"`
	MaxVolatility     float64 `json:"max_volatility"`
}

// DefaultTechnicalConfig returns the standard voting configuration
func DefaultTechnicalConfig() TechnicalConfig {
	return TechnicalConfig{
		Params:            indicators.DefaultParams(),
		PatternLookback:   3,
		MinEdge:           0.10,
		MinVolatility:     0.015,
		OptimalVolatility: 0.06,
		MaxVolatility:     0.20,
	}
}

// TechnicalAnalyzer turns indicator readings into a directional vote
type TechnicalAnalyzer struct {
	cfg      TechnicalConfig
	detector *patterns.Detector
}

// NewTechnicalAnalyzer creates a technical analyzer
func NewTechnicalAnalyzer(cfg TechnicalConfig) *TechnicalAnalyzer {
	if cfg.Params.MinCandles == 0 {
		cfg.Params = indicators.DefaultParams()
	}
	if cfg.MaxVolatility <= cfg.MinVolatility {
		d := DefaultTechnicalConfig()
		cfg.MinVolatility, cfg.OptimalVolatility, cfg.MaxVolatility = d.MinVolatility, d.OptimalVolatility, d.MaxVolatility
	}
	return &TechnicalAnalyzer{
		cfg:      cfg,
		detector: patterns.NewDetector(cfg.PatternLookback),
	}
}

// MinCandles is the number of candles Analyze needs
func (ta *TechnicalAnalyzer) MinCandles() int {
	return ta.cfg.Params.MinCandles
}

// ballot accumulates weighted votes per category
type ballot struct {
	tallies map[string]Tally
	reasons []string
}

func newBallot() *ballot {
	return &ballot{tallies: make(map[string]Tally)}
}

func (b *ballot) add(category string, d Direction, weight float64, reason string) {
	if weight <= 0 {
		return
	}
	t := b.tallies[category]
	switch d {
	case DirectionCall:
		t.Bull += weight
	case DirectionPut:
		t.Bear += weight
	default:
		return
	}
	b.tallies[category] = t
	b.reasons = append(b.reasons, reason)
}

func (b *ballot) totals() (bull, bear float64) {
	for _, t := range b.tallies {
		bull += t.Bull
		bear += t.Bear
	}
	return bull, bear
}

// Analyze computes indicators and patterns for one timeframe and votes a direction
func (ta *TechnicalAnalyzer) Analyze(symbol string, tf market.Timeframe, candles []market.Candle) (*TimeframeAnalysis, error) {
	snap, err := indicators.Compute(candles, ta.cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("analyze %s %s: %w", symbol, tf, err)
	}

	found := ta.detector.Detect(symbol, tf, candles)
	b := newBallot()
	ta.vote(b, snap, found, candles[len(candles)-1])

	a := &TimeframeAnalysis{
		Symbol:      symbol,
		Timeframe:   tf,
		Indicators:  snap,
		Patterns:    found,
		CandleCount: len(candles),
		AnalyzedAt:  candles[len(candles)-1].CloseTime,
		Volatility:  ta.volatilityScore(snap.ATRPercent, tf),
	}
	ta.settle(a, b)
	return a, nil
}

// settle derives direction and strength from the ballot
func (ta *TechnicalAnalyzer) settle(a *TimeframeAnalysis, b *ballot) {
	a.Tallies = b.tallies
	a.Reasons = b.reasons
	a.BullScore, a.BearScore = b.totals()

	total := a.BullScore + a.BearScore
	a.Direction = DirectionNeutral
	a.Strength = 0
	if total == 0 {
		return
	}

	edge := math.Abs(a.BullScore-a.BearScore) / total
	a.Strength = edge * 100
	if edge < ta.cfg.MinEdge {
		return
	}
	if a.BullScore > a.BearScore {
		a.Direction = DirectionCall
	} else {
		a.Direction = DirectionPut
	}
}

func (ta *TechnicalAnalyzer) vote(b *ballot, s *indicators.Snapshot, found []patterns.DetectedPattern, last market.Candle) {
	trending := s.ADX >= 25
	ranging := s.ADX < 20

	// RSI leans against the side it is stretched towards
	switch {
	case s.RSI < 30:
		b.add(CategoryMomentum, DirectionCall, 2, fmt.Sprintf("RSI oversold (%.1f)", s.RSI))
	case s.RSI < 45:
		b.add(CategoryMomentum, DirectionCall, 1, fmt.Sprintf("RSI below midline (%.1f)", s.RSI))
	case s.RSI > 70:
		b.add(CategoryMomentum, DirectionPut, 2, fmt.Sprintf("RSI overbought (%.1f)", s.RSI))
	case s.RSI > 55:
		b.add(CategoryMomentum, DirectionPut, 1, fmt.Sprintf("RSI above midline (%.1f)", s.RSI))
	}

	// EMA cross, weighted up in trending markets
	emaWeight := 1.5
	if trending {
		emaWeight *= 1.5
	}
	if s.EMAFast > s.EMASlow {
		b.add(CategoryTrend, DirectionCall, emaWeight, "fast EMA above slow EMA")
		if s.PrevEMAFast <= s.PrevEMASlow {
			b.add(CategoryTrend, DirectionCall, 0.5, "fresh bullish EMA cross")
		}
	} else if s.EMAFast < s.EMASlow {
		b.add(CategoryTrend, DirectionPut, emaWeight, "fast EMA below slow EMA")
		if s.PrevEMAFast >= s.PrevEMASlow {
			b.add(CategoryTrend, DirectionPut, 0.5, "fresh bearish EMA cross")
		}
	}

	if trending {
		if s.PlusDI > s.MinusDI {
			b.add(CategoryTrend, DirectionCall, 1, fmt.Sprintf("ADX %.1f with +DI leading", s.ADX))
		} else if s.MinusDI > s.PlusDI {
			b.add(CategoryTrend, DirectionPut, 1, fmt.Sprintf("ADX %.1f with -DI leading", s.ADX))
		}
	}

	// MACD histogram and crossovers
	if s.MACDHist > 0 {
		b.add(CategoryMomentum, DirectionCall, 1, "MACD histogram positive")
	} else if s.MACDHist < 0 {
		b.add(CategoryMomentum, DirectionPut, 1, "MACD histogram negative")
	}
	if s.MACDCrossedUp() {
		b.add(CategoryMomentum, DirectionCall, 1, "MACD bullish crossover")
	} else if s.MACDCrossedDown() {
		b.add(CategoryMomentum, DirectionPut, 1, "MACD bearish crossover")
	}

	// Bollinger band touches, weighted up in ranging markets
	reversalBoost := 1.0
	if ranging {
		reversalBoost = 1.5
	}
	if s.PercentB <= 0 {
		b.add(CategoryMomentum, DirectionCall, 2*reversalBoost, "close at or below lower Bollinger band")
	} else if s.PercentB >= 1 {
		b.add(CategoryMomentum, DirectionPut, 2*reversalBoost, "close at or above upper Bollinger band")
	}

	// Stochastic turning out of extremes
	if s.StochK < 20 && s.StochK > s.StochD {
		b.add(CategoryMomentum, DirectionCall, 1.5, fmt.Sprintf("Stochastic turning up from %.1f", s.StochK))
	} else if s.StochK > 80 && s.StochK < s.StochD {
		b.add(CategoryMomentum, DirectionPut, 1.5, fmt.Sprintf("Stochastic turning down from %.1f", s.StochK))
	}

	// Volume pressure on the last candle
	if s.VolumeRatio >= 1.5 {
		if last.IsBullish() && last.UpperWick() < last.Body()*0.2 {
			b.add(CategoryMomentum, DirectionCall, 0.75, fmt.Sprintf("buying volume %.1fx average", s.VolumeRatio))
		} else if last.IsBearish() && last.LowerWick() < last.Body()*0.2 {
			b.add(CategoryMomentum, DirectionPut, 0.75, fmt.Sprintf("selling volume %.1fx average", s.VolumeRatio))
		}
	}

	bull, bear := patterns.Bias(found)
	if bull > 0 {
		b.add(CategoryPattern, DirectionCall, bull*2, fmt.Sprintf("bullish candlestick pattern (%.2f)", bull))
	}
	if bear > 0 {
		b.add(CategoryPattern, DirectionPut, bear*2, fmt.Sprintf("bearish candlestick pattern (%.2f)", bear))
	}
}

// volatilityScore rates ATR% (normalised to one minute) against the tradable band
func (ta *TechnicalAnalyzer) volatilityScore(atrPercent float64, tf market.Timeframe) float64 {
	minutes := tf.Duration().Minutes()
	if minutes <= 0 || atrPercent <= 0 {
		return 0
	}
	v := atrPercent / math.Sqrt(minutes)
	lo, opt, hi := ta.cfg.MinVolatility, ta.cfg.OptimalVolatility, ta.cfg.MaxVolatility

	switch {
	case v < lo:
		return 50 * v / lo
	case v > hi:
		return math.Max(0, 60-40*(v-hi)/hi)
	default:
		return clamp(100-60*math.Abs(v-opt)/(hi-lo), 60, 100)
	}
}

// NormalizedVolatility returns ATR% scaled to one minute
func NormalizedVolatility(a *TimeframeAnalysis) float64 {
	if a == nil || a.Indicators == nil {
		return 0
	}
	minutes := a.Timeframe.Duration().Minutes()
	if minutes <= 0 {
		return 0
	}
	return a.Indicators.ATRPercent / math.Sqrt(minutes)
}
