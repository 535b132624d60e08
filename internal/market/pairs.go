package market

import (
	"math"
	"sort"
)

// Pair holds the parameters of one synthetic instrument.
// Volatility is the per-minute standard deviation of log returns and
// Reversion the per-minute pull towards the anchor price.
type Pair struct {
	Symbol     string  `json:"symbol"`
	Base       float64 `json:"base"`
	Volatility float64 `json:"volatility"`
	Reversion  float64 `json:"reversion"`
	Decimals   int     `json:"decimals"`
}

const (
	otcVolatilityFactor = 1.6
	otcReversionFactor  = 2.0
)

// DefaultPairs returns the regular currency pairs used when no list is configured
func DefaultPairs() []Pair {
	return []Pair{
		{Symbol: "EUR/USD", Base: 1.0850, Volatility: 0.00035, Reversion: 0.020, Decimals: 5},
		{Symbol: "GBP/USD", Base: 1.2700, Volatility: 0.00042, Reversion: 0.020, Decimals: 5},
		{Symbol: "USD/JPY", Base: 150.20, Volatility: 0.00040, Reversion: 0.018, Decimals: 3},
		{Symbol: "AUD/USD", Base: 0.6600, Volatility: 0.00045, Reversion: 0.022, Decimals: 5},
		{Symbol: "USD/CAD", Base: 1.3600, Volatility: 0.00030, Reversion: 0.020, Decimals: 5},
		{Symbol: "USD/CHF", Base: 0.8800, Volatility: 0.00035, Reversion: 0.020, Decimals: 5},
		{Symbol: "EUR/JPY", Base: 162.50, Volatility: 0.00048, Reversion: 0.018, Decimals: 3},
		{Symbol: "GBP/JPY", Base: 190.30, Volatility: 0.00060, Reversion: 0.016, Decimals: 3},
		{Symbol: "EUR/GBP", Base: 0.8550, Volatility: 0.00028, Reversion: 0.025, Decimals: 5},
		{Symbol: "NZD/USD", Base: 0.6100, Volatility: 0.00046, Reversion: 0.022, Decimals: 5},
	}
}

// WithOTC appends the OTC variant of every regular pair
func WithOTC(pairs []Pair) []Pair {
	out := make([]Pair, 0, len(pairs)*2)
	out = append(out, pairs...)
	for _, p := range pairs {
		if IsOTC(p.Symbol) {
			continue
		}
		out = append(out, OTCVariant(p))
	}
	return out
}

// OTCVariant derives the OTC instrument: noisier and more strongly mean-reverting
func OTCVariant(p Pair) Pair {
	return Pair{
		Symbol:     p.Symbol + OTCSuffix,
		Base:       p.Base,
		Volatility: p.Volatility * otcVolatilityFactor,
		Reversion:  p.Reversion * otcReversionFactor,
		Decimals:   p.Decimals,
	}
}

// FilterPairs keeps pairs whose symbol is in symbols. An empty list keeps all.
func FilterPairs(pairs []Pair, symbols []string) []Pair {
	if len(symbols) == 0 {
		return pairs
	}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	var out []Pair
	for _, p := range pairs {
		if want[p.Symbol] {
			out = append(out, p)
		}
	}
	return out
}

func sortedSymbols(pairs map[string]*pairState) []string {
	out := make([]string, 0, len(pairs))
	for s := range pairs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func roundTo(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
