package indicators

import (
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
)

// ErrInsufficientData is returned when a series is shorter than the indicator look-back
var ErrInsufficientData = errors.New("insufficient data for indicator")

func need(name string, have, want int) error {
	if have < want {
		return fmt.Errorf("%w: %s needs %d values, have %d", ErrInsufficientData, name, want, have)
	}
	return nil
}

func sameLength(a, b, c []float64) bool {
	return len(a) == len(b) && len(b) == len(c)
}

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average series
func SMA(values []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("sma: invalid period %d", period)
	}
	if err := need("sma", len(values), period); err != nil {
		return nil, err
	}
	return talib.Sma(values, period), nil
}

// EMA calculates the Exponential Moving Average series
func EMA(values []float64, period int) ([]float64, error) {
	if period < 1 {
		return nil, fmt.Errorf("ema: invalid period %d", period)
	}
	if err := need("ema", len(values), period); err != nil {
		return nil, err
	}
	return talib.Ema(values, period), nil
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Relative Strength Index series (Wilder smoothing)
func RSI(closes []float64, period int) ([]float64, error) {
	if period < 2 {
		return nil, fmt.Errorf("rsi: invalid period %d", period)
	}
	if err := need("rsi", len(closes), period+1); err != nil {
		return nil, err
	}
	return talib.Rsi(closes, period), nil
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACD returns the MACD line, its signal line and the histogram
func MACD(closes []float64, fast, slow, signal int) (macd, sig, hist []float64, err error) {
	if fast < 2 || slow <= fast || signal < 1 {
		return nil, nil, nil, fmt.Errorf("macd: invalid periods %d/%d/%d", fast, slow, signal)
	}
	if err := need("macd", len(closes), slow+signal); err != nil {
		return nil, nil, nil, err
	}
	macd, sig, hist = talib.Macd(closes, fast, slow, signal)
	return macd, sig, hist, nil
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerBands returns upper, middle and lower bands
func BollingerBands(closes []float64, period int, k float64) (upper, middle, lower []float64, err error) {
	if period < 2 || k <= 0 {
		return nil, nil, nil, fmt.Errorf("bbands: invalid parameters %d/%.2f", period, k)
	}
	if err := need("bbands", len(closes), period); err != nil {
		return nil, nil, nil, err
	}
	upper, middle, lower = talib.BBands(closes, period, k, k, talib.SMA)
	return upper, middle, lower, nil
}

// StdDev returns the rolling population standard deviation
func StdDev(values []float64, period int) ([]float64, error) {
	if period < 2 {
		return nil, fmt.Errorf("stddev: invalid period %d", period)
	}
	if err := need("stddev", len(values), period); err != nil {
		return nil, err
	}
	return talib.StdDev(values, period, 1.0), nil
}

// ============================================================================
// VOLATILITY & TREND STRENGTH
// ============================================================================

// ATR calculates the Average True Range series
func ATR(highs, lows, closes []float64, period int) ([]float64, error) {
	if !sameLength(highs, lows, closes) {
		return nil, errors.New("atr: series length mismatch")
	}
	if period < 1 {
		return nil, fmt.Errorf("atr: invalid period %d", period)
	}
	if err := need("atr", len(closes), period+1); err != nil {
		return nil, err
	}
	return talib.Atr(highs, lows, closes, period), nil
}

// ADX calculates the Average Directional Index together with +DI and -DI
func ADX(highs, lows, closes []float64, period int) (adx, plusDI, minusDI []float64, err error) {
	if !sameLength(highs, lows, closes) {
		return nil, nil, nil, errors.New("adx: series length mismatch")
	}
	if period < 2 {
		return nil, nil, nil, fmt.Errorf("adx: invalid period %d", period)
	}
	if err := need("adx", len(closes), 2*period+1); err != nil {
		return nil, nil, nil, err
	}
	adx = talib.Adx(highs, lows, closes, period)
	plusDI = talib.PlusDI(highs, lows, closes, period)
	minusDI = talib.MinusDI(highs, lows, closes, period)
	return adx, plusDI, minusDI, nil
}

// ============================================================================
// STOCHASTIC OSCILLATOR
// ============================================================================

// Stochastic returns slow %K and %D
func Stochastic(highs, lows, closes []float64, kPeriod, slowK, slowD int) (k, d []float64, err error) {
	if !sameLength(highs, lows, closes) {
		return nil, nil, errors.New("stoch: series length mismatch")
	}
	if kPeriod < 1 || slowK < 1 || slowD < 1 {
		return nil, nil, fmt.Errorf("stoch: invalid periods %d/%d/%d", kPeriod, slowK, slowD)
	}
	if err := need("stoch", len(closes), kPeriod+slowK+slowD); err != nil {
		return nil, nil, err
	}
	k, d = talib.Stoch(highs, lows, closes, kPeriod, slowK, talib.SMA, slowD, talib.SMA)
	return k, d, nil
}

// ============================================================================
// VOLUME
// ============================================================================

// OBV calculates On-Balance Volume
func OBV(closes, volumes []float64) ([]float64, error) {
	if len(closes) != len(volumes) {
		return nil, errors.New("obv: series length mismatch")
	}
	if err := need("obv", len(closes), 2); err != nil {
		return nil, err
	}
	return talib.Obv(closes, volumes), nil
}

// Last returns the final element of a series, or 0 for an empty one
func Last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// Prev returns the element n positions before the last one
func Prev(series []float64, n int) float64 {
	i := len(series) - 1 - n
	if i < 0 {
		return 0
	}
	return series[i]
}
