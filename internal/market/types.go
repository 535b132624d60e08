package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// OTCSuffix marks synthetic over-the-counter instruments
const OTCSuffix = "-OTC"

var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrInvalidLimit    = errors.New("limit must be positive")
	ErrPriceNotClosed  = errors.New("no closed candle at requested time")
	ErrUnknownInterval = errors.New("unknown timeframe")
)

// Timeframe is a candle interval supported by the analyzers
type Timeframe string

const (
	M1  Timeframe = "1m"
	M5  Timeframe = "5m"
	M15 Timeframe = "15m"
)

// AllTimeframes lists timeframes from fastest to slowest
var AllTimeframes = []Timeframe{M1, M5, M15}

// Duration returns the length of one candle
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case M1:
		return time.Minute
	case M5:
		return 5 * time.Minute
	case M15:
		return 15 * time.Minute
	default:
		return 0
	}
}

func (tf Timeframe) String() string { return string(tf) }

// Label returns the trader-facing name (M1, M5, M15)
func (tf Timeframe) Label() string {
	return "M" + strings.TrimSuffix(string(tf), "m")
}

// ParseTimeframe accepts both "5m" and "M5" forms
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "m") {
		s = strings.TrimPrefix(s, "m") + "m"
	}
	tf := Timeframe(s)
	if tf.Duration() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownInterval, s)
	}
	return tf, nil
}

// Candle is one OHLCV bar. CloseTime is the exclusive end of the bar.
type Candle struct {
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

func (c Candle) IsBullish() bool { return c.Close > c.Open }
func (c Candle) IsBearish() bool { return c.Close < c.Open }
func (c Candle) Body() float64   { return math.Abs(c.Close - c.Open) }
func (c Candle) Range() float64  { return c.High - c.Low }

func (c Candle) UpperWick() float64 { return c.High - math.Max(c.Open, c.Close) }
func (c Candle) LowerWick() float64 { return math.Min(c.Open, c.Close) - c.Low }

// Closes extracts close prices
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// HLC extracts high, low and close series
func HLC(candles []Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return highs, lows, closes
}

// IsOTC reports whether the symbol is a synthetic OTC instrument
func IsOTC(symbol string) bool {
	return strings.HasSuffix(strings.ToUpper(symbol), OTCSuffix)
}

// BaseSymbol strips the OTC suffix
func BaseSymbol(symbol string) string {
	if IsOTC(symbol) {
		return symbol[:len(symbol)-len(OTCSuffix)]
	}
	return symbol
}

// Source provides candles and prices for a set of symbols
type Source interface {
	Symbols() []string
	Candles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
	Price(ctx context.Context, symbol string) (float64, error)
	PriceAt(ctx context.Context, symbol string, t time.Time) (float64, error)
}
