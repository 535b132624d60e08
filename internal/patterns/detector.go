package patterns

import (
	"time"

	"otc-signal-bot/internal/market"
)

// PatternType represents a candlestick pattern
type PatternType string

const (
	MorningStar        PatternType = "morning_star"
	EveningStar        PatternType = "evening_star"
	ShootingStar       PatternType = "shooting_star"
	Hammer             PatternType = "hammer"
	HangingMan         PatternType = "hanging_man"
	BullishEngulfing   PatternType = "bullish_engulfing"
	BearishEngulfing   PatternType = "bearish_engulfing"
	BullishHarami      PatternType = "bullish_harami"
	BearishHarami      PatternType = "bearish_harami"
	Doji               PatternType = "doji"
	DragonflyDoji      PatternType = "dragonfly_doji"
	GravestoneDoji     PatternType = "gravestone_doji"
	ThreeWhiteSoldiers PatternType = "three_white_soldiers"
	ThreeBlackCrows    PatternType = "three_black_crows"
)

// Direction of a pattern
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

// DetectedPattern represents a detected candlestick pattern
type DetectedPattern struct {
	Type        PatternType `json:"type"`
	Symbol      string      `json:"symbol"`
	Timeframe   string      `json:"timeframe"`
	DetectedAt  time.Time   `json:"detected_at"`
	CandleIndex int         `json:"candle_index"`
	Confidence  float64     `json:"confidence"` // 0.0 to 1.0
	Direction   string      `json:"direction"`
}

// rule matches a pattern ending at candles[i]
type rule struct {
	pattern    PatternType
	direction  string
	size       int
	confidence float64
	match      func(d *Detector, c []market.Candle) bool
}

var rules = []rule{
	{MorningStar, Bullish, 3, 0.70, (*Detector).isMorningStar},
	{EveningStar, Bearish, 3, 0.70, (*Detector).isEveningStar},
	{ThreeWhiteSoldiers, Bullish, 3, 0.72, (*Detector).isThreeWhiteSoldiers},
	{ThreeBlackCrows, Bearish, 3, 0.72, (*Detector).isThreeBlackCrows},
	{BullishEngulfing, Bullish, 2, 0.75, (*Detector).isBullishEngulfing},
	{BearishEngulfing, Bearish, 2, 0.75, (*Detector).isBearishEngulfing},
	{BullishHarami, Bullish, 2, 0.68, (*Detector).isBullishHarami},
	{BearishHarami, Bearish, 2, 0.68, (*Detector).isBearishHarami},
	{Hammer, Bullish, 2, 0.65, (*Detector).isHammer},
	{ShootingStar, Bearish, 2, 0.65, (*Detector).isShootingStar},
	{HangingMan, Bearish, 2, 0.60, (*Detector).isHangingMan},
	{DragonflyDoji, Bullish, 1, 0.62, (*Detector).isDragonflyDoji},
	{GravestoneDoji, Bearish, 1, 0.62, (*Detector).isGravestoneDoji},
	{Doji, Neutral, 1, 0.50, (*Detector).isPlainDoji},
}

// Detector finds candlestick patterns in the most recent candles
type Detector struct {
	lookback int // number of trailing candles a pattern may end on
}

// NewDetector creates a detector. Patterns older than lookback candles are ignored.
func NewDetector(lookback int) *Detector {
	if lookback <= 0 {
		lookback = 3
	}
	return &Detector{lookback: lookback}
}

// Detect returns every pattern that ends within the lookback window
func (d *Detector) Detect(symbol string, tf market.Timeframe, candles []market.Candle) []DetectedPattern {
	var found []DetectedPattern

	start := len(candles) - d.lookback
	if start < 0 {
		start = 0
	}

	for i := start; i < len(candles); i++ {
		for _, r := range rules {
			if i+1 < r.size {
				continue
			}
			window := candles[i+1-r.size : i+1]
			if !r.match(d, window) {
				continue
			}
			found = append(found, DetectedPattern{
				Type:        r.pattern,
				Symbol:      symbol,
				Timeframe:   tf.String(),
				DetectedAt:  candles[i].CloseTime,
				CandleIndex: i,
				Confidence:  d.adjustConfidence(r, window),
				Direction:   r.direction,
			})
		}
	}

	return found
}

// adjustConfidence rewards a decisive final candle on multi-candle patterns
func (d *Detector) adjustConfidence(r rule, window []market.Candle) float64 {
	confidence := r.confidence
	if r.size >= 2 {
		first, last := window[0], window[len(window)-1]
		if last.Body() > first.Body()*1.2 {
			confidence += 0.1
		}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// Bias folds patterns into net bullish and bearish confidence.
// More recent patterns weigh more than older ones in the window.
func Bias(found []DetectedPattern) (bullish, bearish float64) {
	if len(found) == 0 {
		return 0, 0
	}
	newest := found[0].CandleIndex
	for _, p := range found {
		if p.CandleIndex > newest {
			newest = p.CandleIndex
		}
	}
	for _, p := range found {
		weight := 1.0 / float64(1+newest-p.CandleIndex)
		switch p.Direction {
		case Bullish:
			bullish = maxf(bullish, p.Confidence*weight)
		case Bearish:
			bearish = maxf(bearish, p.Confidence*weight)
		}
	}
	return bullish, bearish
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
