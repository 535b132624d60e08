package market

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"
)

// GeneratorConfig configures the synthetic candle generator
type GeneratorConfig struct {
	Seed     int64
	Pairs    []Pair
	History  int // M1 candles retained per pair
	SubSteps int // path samples per minute, used for High/Low
	Now      func() time.Time
}

// Generator produces mean-reverting random-walk candles for a fixed set of pairs.
// The log price follows x' = x + theta*(mu - x) + sigma*N(0,1), with the anchor mu
// itself drifting slowly so short trends appear. M5 and M15 candles are
// aggregated from the same M1 series.
type Generator struct {
	cfg   GeneratorConfig
	mu    sync.RWMutex
	pairs map[string]*pairState
}

type pairState struct {
	mu       sync.Mutex
	pair     Pair
	rng      *rand.Rand
	anchor   float64 // log price the walk reverts to
	logPrice float64
	candles  []Candle // closed M1 candles, oldest first
	live     *liveMinute
}

// liveMinute is the minute in progress: its candle is final but only the part of
// the path up to the clock is visible through Price.
type liveMinute struct {
	candle Candle
	path   []float64 // price after each sub-step
}

// NewGenerator creates a generator for cfg.Pairs (defaults plus OTC variants when empty)
func NewGenerator(cfg GeneratorConfig) *Generator {
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = WithOTC(DefaultPairs())
	}
	if cfg.History <= 0 {
		cfg.History = 3000
	}
	if cfg.SubSteps <= 0 {
		cfg.SubSteps = 12
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &Generator{
		cfg:   cfg,
		pairs: make(map[string]*pairState, len(cfg.Pairs)),
	}
	for _, p := range cfg.Pairs {
		h := fnv.New64a()
		h.Write([]byte(p.Symbol))
		seed := cfg.Seed ^ int64(h.Sum64())
		g.pairs[p.Symbol] = &pairState{
			pair:     p,
			rng:      rand.New(rand.NewSource(seed)),
			anchor:   math.Log(p.Base),
			logPrice: math.Log(p.Base),
		}
	}
	return g
}

// Symbols returns all configured symbols, sorted
func (g *Generator) Symbols() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedSymbols(g.pairs)
}

// Pair returns the parameters of a symbol
func (g *Generator) Pair(symbol string) (Pair, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.pairs[symbol]
	if !ok {
		return Pair{}, false
	}
	return st.pair, true
}

func (g *Generator) state(symbol string) (*pairState, error) {
	g.mu.RLock()
	st, ok := g.pairs[symbol]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return st, nil
}

// Candles returns up to limit closed candles, oldest first
func (g *Generator) Candles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if tf.Duration() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInterval, tf)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := g.state(symbol)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	g.advance(st)

	var out []Candle
	if tf == M1 {
		out = st.candles
	} else {
		out = aggregate(st.candles, tf.Duration(), st.pair.Decimals)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}

	result := make([]Candle, len(out))
	copy(result, out)
	return result, nil
}

// Price returns the running close of the minute in progress
func (g *Generator) Price(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, err := g.state(symbol)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	g.advance(st)

	live := st.live
	elapsed := g.cfg.Now().UTC().Sub(live.candle.OpenTime)
	visible := int(elapsed * time.Duration(len(live.path)) / time.Minute)
	if visible <= 0 {
		return live.candle.Open, nil
	}
	if visible > len(live.path) {
		visible = len(live.path)
	}
	return roundTo(live.path[visible-1], st.pair.Decimals), nil
}

// PriceAt returns the close of the M1 candle ending at t (truncated to the minute)
func (g *Generator) PriceAt(ctx context.Context, symbol string, t time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	st, err := g.state(symbol)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	g.advance(st)

	target := t.Truncate(time.Minute)
	n := len(st.candles)
	if n == 0 || target.After(st.candles[n-1].CloseTime) || !target.After(st.candles[0].OpenTime) {
		return 0, fmt.Errorf("%w: %s at %s", ErrPriceNotClosed, symbol, target.Format(time.RFC3339))
	}

	// Candles are contiguous minutes, so index directly from the newest one
	idx := n - 1 - int(st.candles[n-1].CloseTime.Sub(target)/time.Minute)
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w: %s at %s", ErrPriceNotClosed, symbol, target.Format(time.RFC3339))
	}
	return st.candles[idx].Close, nil
}

// advance appends candles up to the last closed minute and prepares the minute in
// progress. Caller holds st.mu.
func (g *Generator) advance(st *pairState) {
	current := g.cfg.Now().UTC().Truncate(time.Minute)

	var next time.Time
	if len(st.candles) == 0 {
		next = current.Add(-time.Duration(g.cfg.History) * time.Minute)
	} else {
		next = st.candles[len(st.candles)-1].CloseTime
	}

	// After a long idle period only the retained window is worth simulating
	if gap := int(current.Sub(next) / time.Minute); gap > g.cfg.History {
		next = current.Add(-time.Duration(g.cfg.History) * time.Minute)
		st.candles = st.candles[:0]
	}

	for next.Before(current) {
		if st.live != nil && st.live.candle.OpenTime.Equal(next) {
			st.candles = append(st.candles, st.live.candle)
		} else {
			c, _ := g.step(st, next)
			st.candles = append(st.candles, c)
		}
		next = next.Add(time.Minute)
	}

	if st.live == nil || !st.live.candle.OpenTime.Equal(current) {
		c, path := g.step(st, current)
		st.live = &liveMinute{candle: c, path: path}
	}

	if over := len(st.candles) - g.cfg.History; over > 0 {
		trimmed := make([]Candle, g.cfg.History)
		copy(trimmed, st.candles[over:])
		st.candles = trimmed
	}
}

// step simulates one minute starting at open, returning the candle and its path
func (g *Generator) step(st *pairState, open time.Time) (Candle, []float64) {
	p := st.pair
	n := g.cfg.SubSteps
	sigma := p.Volatility / math.Sqrt(float64(n))
	theta := p.Reversion / float64(n)

	// Slow anchor drift produces trending stretches between reversions
	st.anchor += p.Volatility * 0.25 * st.rng.NormFloat64()
	base := math.Log(p.Base)
	st.anchor += 0.002 * (base - st.anchor)

	openPrice := math.Exp(st.logPrice)
	high, low := openPrice, openPrice
	path := make([]float64, n)
	for i := 0; i < n; i++ {
		st.logPrice += theta*(st.anchor-st.logPrice) + sigma*st.rng.NormFloat64()
		px := math.Exp(st.logPrice)
		path[i] = px
		high = math.Max(high, px)
		low = math.Min(low, px)
	}
	closePrice := math.Exp(st.logPrice)

	move := math.Abs(math.Log(closePrice/openPrice)) / p.Volatility
	volume := 500 + 400*move + st.rng.Float64()*300

	return Candle{
		OpenTime:  open,
		CloseTime: open.Add(time.Minute),
		Open:      roundTo(openPrice, p.Decimals),
		High:      roundTo(high, p.Decimals),
		Low:       roundTo(low, p.Decimals),
		Close:     roundTo(closePrice, p.Decimals),
		Volume:    math.Round(volume),
	}, path
}

// aggregate folds contiguous M1 candles into complete buckets of size d
func aggregate(m1 []Candle, d time.Duration, decimals int) []Candle {
	per := int(d / time.Minute)
	var out []Candle
	var cur Candle
	count := 0

	for _, c := range m1 {
		bucket := c.OpenTime.Truncate(d)
		if count > 0 && !bucket.Equal(cur.OpenTime) {
			if count == per {
				out = append(out, cur)
			}
			count = 0
		}
		if count == 0 {
			cur = Candle{
				OpenTime:  bucket,
				CloseTime: bucket.Add(d),
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
			}
		}
		cur.High = math.Max(cur.High, c.High)
		cur.Low = math.Min(cur.Low, c.Low)
		cur.Close = c.Close
		cur.Volume += c.Volume
		count++
	}
	if count == per {
		out = append(out, cur)
	}

	for i := range out {
		out[i].High = roundTo(out[i].High, decimals)
		out[i].Low = roundTo(out[i].Low, decimals)
	}
	return out
}
