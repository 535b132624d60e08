package indicators

import (
	"fmt"
	"math"

	"otc-signal-bot/internal/market"
)

// TrendDirection classifies the moving-average trend
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// Params holds indicator periods
type Params struct {
	RSIPeriod    int     `json:"rsi_period"`
	EMAFast      int     `json:"ema_fast"`
	EMASlow      int     `json:"ema_slow"`
	MACDFast     int     `json:"macd_fast"`
	MACDSlow     int     `json:"macd_slow"`
	MACDSignal   int     `json:"macd_signal"`
	BBPeriod     int     `json:"bb_period"`
	BBDeviation  float64 `json:"bb_deviation"`
	ADXPeriod    int     `json:"adx_period"`
	ATRPeriod    int     `json:"atr_period"`
	StochK       int     `json:"stoch_k"`
	StochSlowK   int     `json:"stoch_slow_k"`
	StochSlowD   int     `json:"stoch_slow_d"`
	VolumePeriod int     `json:"volume_period"`
	LevelPeriod  int     `json:"level_period"`
	MinCandles   int     `json:"min_candles"`
}

// DefaultParams returns the standard indicator settings
func DefaultParams() Params {
	return Params{
		RSIPeriod:    14,
		EMAFast:      9,
		EMASlow:      21,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		BBPeriod:     20,
		BBDeviation:  2.0,
		ADXPeriod:    14,
		ATRPeriod:    14,
		StochK:       14,
		StochSlowK:   3,
		StochSlowD:   3,
		VolumePeriod: 20,
		LevelPeriod:  30,
		MinCandles:   60,
	}
}

// Snapshot holds the latest value of every indicator for one candle series
type Snapshot struct {
	Close float64 `json:"close"`

	RSI float64 `json:"rsi"`

	EMAFast     float64 `json:"ema_fast"`
	EMASlow     float64 `json:"ema_slow"`
	PrevEMAFast float64 `json:"prev_ema_fast"`
	PrevEMASlow float64 `json:"prev_ema_slow"`

	MACD         float64 `json:"macd"`
	MACDSignal   float64 `json:"macd_signal"`
	MACDHist     float64 `json:"macd_hist"`
	PrevMACDHist float64 `json:"prev_macd_hist"`

	BBUpper   float64 `json:"bb_upper"`
	BBMiddle  float64 `json:"bb_middle"`
	BBLower   float64 `json:"bb_lower"`
	PercentB  float64 `json:"percent_b"`
	Bandwidth float64 `json:"bandwidth"` // percent of middle band

	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`

	ATR        float64 `json:"atr"`
	ATRPercent float64 `json:"atr_percent"`

	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	PrevStochK float64 `json:"prev_stoch_k"`

	SMA         float64 `json:"sma"` // over BBPeriod
	ZScore      float64 `json:"z_score"`
	VolumeRatio float64 `json:"volume_ratio"`
	OBVRising   bool    `json:"obv_rising"`

	Support    float64        `json:"support"`
	Resistance float64        `json:"resistance"`
	Trend      TrendDirection `json:"trend"`
}

// MACDCrossedUp reports a histogram flip from negative to positive
func (s *Snapshot) MACDCrossedUp() bool { return s.PrevMACDHist <= 0 && s.MACDHist > 0 }

// MACDCrossedDown reports a histogram flip from positive to negative
func (s *Snapshot) MACDCrossedDown() bool { return s.PrevMACDHist >= 0 && s.MACDHist < 0 }

// Compute calculates a Snapshot from candles (oldest first)
func Compute(candles []market.Candle, p Params) (*Snapshot, error) {
	if err := need("snapshot", len(candles), p.MinCandles); err != nil {
		return nil, err
	}

	highs, lows, closes := market.HLC(candles)
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}

	s := &Snapshot{Close: closes[len(closes)-1]}

	rsi, err := RSI(closes, p.RSIPeriod)
	if err != nil {
		return nil, err
	}
	s.RSI = Last(rsi)

	fast, err := EMA(closes, p.EMAFast)
	if err != nil {
		return nil, err
	}
	slow, err := EMA(closes, p.EMASlow)
	if err != nil {
		return nil, err
	}
	s.EMAFast, s.PrevEMAFast = Last(fast), Prev(fast, 1)
	s.EMASlow, s.PrevEMASlow = Last(slow), Prev(slow, 1)

	macd, sig, hist, err := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if err != nil {
		return nil, err
	}
	s.MACD, s.MACDSignal = Last(macd), Last(sig)
	s.MACDHist, s.PrevMACDHist = Last(hist), Prev(hist, 1)

	upper, middle, lower, err := BollingerBands(closes, p.BBPeriod, p.BBDeviation)
	if err != nil {
		return nil, err
	}
	s.BBUpper, s.BBMiddle, s.BBLower = Last(upper), Last(middle), Last(lower)
	if width := s.BBUpper - s.BBLower; width > 0 {
		s.PercentB = (s.Close - s.BBLower) / width
		if s.BBMiddle > 0 {
			s.Bandwidth = width / s.BBMiddle * 100
		}
	} else {
		s.PercentB = 0.5
	}

	adx, plus, minus, err := ADX(highs, lows, closes, p.ADXPeriod)
	if err != nil {
		return nil, err
	}
	s.ADX, s.PlusDI, s.MinusDI = Last(adx), Last(plus), Last(minus)

	atr, err := ATR(highs, lows, closes, p.ATRPeriod)
	if err != nil {
		return nil, err
	}
	s.ATR = Last(atr)
	if s.Close > 0 {
		s.ATRPercent = s.ATR / s.Close * 100
	}

	k, d, err := Stochastic(highs, lows, closes, p.StochK, p.StochSlowK, p.StochSlowD)
	if err != nil {
		return nil, err
	}
	s.StochK, s.StochD, s.PrevStochK = Last(k), Last(d), Prev(k, 1)

	sma, err := SMA(closes, p.BBPeriod)
	if err != nil {
		return nil, err
	}
	s.SMA = Last(sma)

	sd, err := StdDev(closes, p.BBPeriod)
	if err != nil {
		return nil, err
	}
	if dev := Last(sd); dev > 0 {
		s.ZScore = (s.Close - s.SMA) / dev
	}

	s.VolumeRatio = volumeRatio(volumes, p.VolumePeriod)

	obv, err := OBV(closes, volumes)
	if err != nil {
		return nil, err
	}
	s.OBVRising = Last(obv) > Prev(obv, 5)

	s.Support, s.Resistance = SupportResistance(candles, p.LevelPeriod)
	s.Trend = DetectTrend(s.EMAFast, s.EMASlow, s.ATR)

	if math.IsNaN(s.RSI) || math.IsNaN(s.ADX) || math.IsNaN(s.StochK) {
		return nil, fmt.Errorf("%w: indicator produced NaN", ErrInsufficientData)
	}
	return s, nil
}

// volumeRatio compares the last volume to the average of the preceding period
func volumeRatio(volumes []float64, period int) float64 {
	n := len(volumes)
	if n < 2 || period < 1 {
		return 1
	}
	if period > n-1 {
		period = n - 1
	}
	sum := 0.0
	for _, v := range volumes[n-1-period : n-1] {
		sum += v
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 1
	}
	return volumes[n-1] / avg
}

// ============================================================================
// SUPPORT / RESISTANCE
// ============================================================================

// SupportResistance returns the lowest low and highest high over the last period candles
func SupportResistance(candles []market.Candle, period int) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if period <= 0 || period > len(candles) {
		period = len(candles)
	}

	window := candles[len(candles)-period:]
	support, resistance = window[0].Low, window[0].High
	for _, c := range window[1:] {
		support = math.Min(support, c.Low)
		resistance = math.Max(resistance, c.High)
	}
	return support, resistance
}

// ============================================================================
// TREND DETECTION
// ============================================================================

// DetectTrend compares fast and slow EMAs; a gap smaller than a tenth of the ATR is sideways
func DetectTrend(emaFast, emaSlow, atr float64) TrendDirection {
	band := atr * 0.1
	switch {
	case emaFast-emaSlow > band:
		return TrendUp
	case emaSlow-emaFast > band:
		return TrendDown
	default:
		return TrendSideways
	}
}
