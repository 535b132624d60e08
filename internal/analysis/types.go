package analysis

import (
	"errors"
	"time"

	"otc-signal-bot/internal/indicators"
	"otc-signal-bot/internal/market"
	"otc-signal-bot/internal/patterns"
)

var ErrInvalidWeights = errors.New("invalid timeframe weights")

// Direction of a binary option signal
type Direction string

const (
	DirectionCall    Direction = "CALL"
	DirectionPut     Direction = "PUT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Sign returns +1 for CALL, -1 for PUT and 0 otherwise
func (d Direction) Sign() float64 {
	switch d {
	case DirectionCall:
		return 1
	case DirectionPut:
		return -1
	default:
		return 0
	}
}

// Opposite flips CALL and PUT
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionCall:
		return DirectionPut
	case DirectionPut:
		return DirectionCall
	default:
		return DirectionNeutral
	}
}

// Vote categories
const (
	CategoryTrend    = "trend"
	CategoryMomentum = "momentum"
	CategoryPattern  = "pattern"
	CategoryOTC      = "otc"
)

// Tally is the weighted bull/bear evidence of one category
type Tally struct {
	Bull float64 `json:"bull"`
	Bear float64 `json:"bear"`
}

// Agreement returns the share of evidence supporting d, 0.5 when there is none
func (t Tally) Agreement(d Direction) float64 {
	total := t.Bull + t.Bear
	if total == 0 || d == DirectionNeutral {
		return 0.5
	}
	if d == DirectionCall {
		return t.Bull / total
	}
	return t.Bear / total
}

// SubScores are 0-100 criteria relative to a direction
type SubScores struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Pattern    float64 `json:"pattern"`
}

// OTCInsight is the mean-reversion evidence gathered for OTC instruments
type OTCInsight struct {
	ZScore          float64   `json:"z_score"`
	Streak          int       `json:"streak"`
	StreakDirection Direction `json:"streak_direction"`
	PercentB        float64   `json:"percent_b"`
	Bias            Direction `json:"bias"`
	Score           float64   `json:"score"`
	Reasons         []string  `json:"reasons,omitempty"`
}

// TimeframeAnalysis is the result of analysing one timeframe
type TimeframeAnalysis struct {
	Symbol      string                     `json:"symbol"`
	Timeframe   market.Timeframe           `json:"timeframe"`
	Indicators  *indicators.Snapshot       `json:"indicators"`
	Patterns    []patterns.DetectedPattern `json:"patterns,omitempty"`
	Tallies     map[string]Tally           `json:"tallies"`
	BullScore   float64                    `json:"bull_score"`
	BearScore   float64                    `json:"bear_score"`
	Direction   Direction                  `json:"direction"`
	Strength    float64                    `json:"strength"` // 0-100
	Volatility  float64                    `json:"volatility_score"`
	OTC         *OTCInsight                `json:"otc,omitempty"`
	Reasons     []string                   `json:"reasons,omitempty"`
	CandleCount int                        `json:"candle_count"`
	AnalyzedAt  time.Time                  `json:"analyzed_at"`
}

// ScoresFor evaluates the sub-scores relative to direction d
func (a *TimeframeAnalysis) ScoresFor(d Direction) SubScores {
	s := SubScores{Volatility: a.Volatility}

	trend := a.Tallies[CategoryTrend].Agreement(d)
	adxFactor := 0.6
	if a.Indicators != nil {
		adxFactor += 0.4 * clamp(a.Indicators.ADX/30, 0, 1)
	}
	s.Trend = trend * 100 * adxFactor

	s.Momentum = a.Tallies[CategoryMomentum].Agreement(d) * 100

	pt := a.Tallies[CategoryPattern]
	switch d {
	case DirectionCall:
		s.Pattern = clamp(50+50*(pt.Bull-pt.Bear), 0, 100)
	case DirectionPut:
		s.Pattern = clamp(50+50*(pt.Bear-pt.Bull), 0, 100)
	default:
		s.Pattern = 50
	}
	return s
}

// MultiTimeframeResult combines the per-timeframe analyses of one symbol
type MultiTimeframeResult struct {
	Symbol     string                                  `json:"symbol"`
	IsOTC      bool                                    `json:"is_otc"`
	Direction  Direction                               `json:"direction"`
	NetScore   float64                                 `json:"net_score"` // -100 (PUT) .. 100 (CALL)
	Strength   float64                                 `json:"strength"`
	Alignment  float64                                 `json:"alignment"` // weight share agreeing with Direction
	Scores     SubScores                               `json:"scores"`
	Primary    market.Timeframe                        `json:"primary"`
	Timeframes map[market.Timeframe]*TimeframeAnalysis `json:"timeframes"`
	OTC        *OTCInsight                             `json:"otc,omitempty"`
	AnalyzedAt time.Time                               `json:"analyzed_at"`
}

// PrimaryAnalysis returns the analysis of the fastest timeframe
func (r *MultiTimeframeResult) PrimaryAnalysis() *TimeframeAnalysis {
	if r == nil {
		return nil
	}
	return r.Timeframes[r.Primary]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
