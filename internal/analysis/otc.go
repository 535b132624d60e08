package analysis

import (
	"fmt"
	"math"

	"otc-signal-bot/internal/market"
)

// OTCConfig tunes the mean-reversion evidence for OTC instruments
type OTCConfig struct {
	ZThreshold      float64 `json:"z_threshold"`      // |z| at which reversion is expected
	StreakThreshold int     `json:"streak_threshold"` // same-colour candles signalling exhaustion
	ReversionWeight float64 `json:"reversion_weight"`
}

// DefaultOTCConfig returns the standard OTC settings
func DefaultOTCConfig() OTCConfig {
	return OTCConfig{
		ZThreshold:      2.0,
		StreakThreshold: 4,
		ReversionWeight: 1.5,
	}
}

// AdvancedOTCAnalyzer extends technical analysis with mean-reversion evidence.
// OTC feeds are synthetic and pulled back to an anchor, so stretched prices
// and long one-sided streaks are treated as reversal setups.
type AdvancedOTCAnalyzer struct {
	technical *TechnicalAnalyzer
	cfg       OTCConfig
}

// NewAdvancedOTCAnalyzer wraps a technical analyzer
func NewAdvancedOTCAnalyzer(technical *TechnicalAnalyzer, cfg OTCConfig) *AdvancedOTCAnalyzer {
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = 2.0
	}
	if cfg.StreakThreshold <= 1 {
		cfg.StreakThreshold = 4
	}
	if cfg.ReversionWeight <= 0 {
		cfg.ReversionWeight = 1.5
	}
	return &AdvancedOTCAnalyzer{technical: technical, cfg: cfg}
}

// MinCandles is the number of candles Analyze needs
func (oa *AdvancedOTCAnalyzer) MinCandles() int {
	return oa.technical.MinCandles()
}

// Analyze runs technical analysis and folds the OTC reversal votes into it
func (oa *AdvancedOTCAnalyzer) Analyze(symbol string, tf market.Timeframe, candles []market.Candle) (*TimeframeAnalysis, error) {
	a, err := oa.technical.Analyze(symbol, tf, candles)
	if err != nil {
		return nil, err
	}

	insight := oa.Insight(a, candles)
	a.OTC = insight

	if insight.Bias != DirectionNeutral {
		b := &ballot{tallies: a.Tallies, reasons: a.Reasons}
		b.add(CategoryOTC, insight.Bias, oa.cfg.ReversionWeight*insight.Score/100*2,
			fmt.Sprintf("OTC mean reversion (score %.0f)", insight.Score))
		oa.technical.settle(a, b)
	}
	return a, nil
}

// Insight measures how stretched the series is relative to its mean
func (oa *AdvancedOTCAnalyzer) Insight(a *TimeframeAnalysis, candles []market.Candle) *OTCInsight {
	in := &OTCInsight{Bias: DirectionNeutral, StreakDirection: DirectionNeutral}
	if a != nil && a.Indicators != nil {
		in.ZScore = a.Indicators.ZScore
		in.PercentB = a.Indicators.PercentB
	}
	in.Streak, in.StreakDirection = streak(candles)

	zPart := 0.0
	zBias := DirectionNeutral
	if math.Abs(in.ZScore) >= oa.cfg.ZThreshold/2 {
		zPart = 50 * clamp(math.Abs(in.ZScore)/(oa.cfg.ZThreshold*1.5), 0, 1)
		if in.ZScore > 0 {
			zBias = DirectionPut
		} else {
			zBias = DirectionCall
		}
		if math.Abs(in.ZScore) >= oa.cfg.ZThreshold {
			in.Reasons = append(in.Reasons, fmt.Sprintf("price %.1f std devs from mean", in.ZScore))
		}
	}

	streakPart := 0.0
	streakBias := DirectionNeutral
	if in.Streak >= oa.cfg.StreakThreshold {
		streakPart = 30 * clamp(float64(in.Streak)/float64(oa.cfg.StreakThreshold+2), 0, 1)
		streakBias = in.StreakDirection.Opposite()
		in.Reasons = append(in.Reasons, fmt.Sprintf("%d-candle streak exhaustion", in.Streak))
	}

	bandPart := 0.0
	if in.PercentB <= 0 || in.PercentB >= 1 {
		bandPart = 20
		in.Reasons = append(in.Reasons, "price outside Bollinger bands")
	}

	switch {
	case zBias != DirectionNeutral:
		in.Bias = zBias
	case streakBias != DirectionNeutral:
		in.Bias = streakBias
	}
	if in.Bias == DirectionNeutral {
		return in
	}

	// Evidence pointing the other way does not count towards the score
	if streakBias != DirectionNeutral && streakBias != in.Bias {
		streakPart = 0
	}
	if bandPart > 0 {
		if (in.PercentB <= 0 && in.Bias != DirectionCall) || (in.PercentB >= 1 && in.Bias != DirectionPut) {
			bandPart = 0
		}
	}
	in.Score = clamp(zPart+streakPart+bandPart, 0, 100)
	return in
}

// streak counts trailing candles of the same colour
func streak(candles []market.Candle) (int, Direction) {
	n := 0
	dir := DirectionNeutral
	for i := len(candles) - 1; i >= 0; i-- {
		c := candles[i]
		var d Direction
		switch {
		case c.IsBullish():
			d = DirectionCall
		case c.IsBearish():
			d = DirectionPut
		default:
			return n, dir
		}
		if n > 0 && d != dir {
			break
		}
		dir = d
		n++
	}
	return n, dir
}
