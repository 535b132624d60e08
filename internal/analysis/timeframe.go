package analysis

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"otc-signal-bot/internal/logging"
	"otc-signal-bot/internal/market"
)

// Analyzer analyses a candle series of one timeframe
type Analyzer interface {
	Analyze(symbol string, tf market.Timeframe, candles []market.Candle) (*TimeframeAnalysis, error)
	MinCandles() int
}

// ResultCache stores combined results so several callers share one computation
type ResultCache interface {
	GetAnalysis(ctx context.Context, symbol string) (*MultiTimeframeResult, bool)
	SetAnalysis(ctx context.Context, result *MultiTimeframeResult, ttl time.Duration)
}

// MultiTimeframeConfig configures the combined analysis
type MultiTimeframeConfig struct {
	Weights     map[market.Timeframe]float64 `json:"weights"`
	CandleLimit int                          `json:"candle_limit"`
	MinNetScore float64                      `json:"min_net_score"` // |net| below this is NEUTRAL
	ResultTTL   time.Duration                `json:"result_ttl"`
}

// DefaultWeights favours M1 since expiries are a few minutes long
func DefaultWeights() map[market.Timeframe]float64 {
	return map[market.Timeframe]float64{
		market.M1:  0.50,
		market.M5:  0.30,
		market.M15: 0.20,
	}
}

// DefaultMultiTimeframeConfig returns the standard combination settings
func DefaultMultiTimeframeConfig() MultiTimeframeConfig {
	return MultiTimeframeConfig{
		Weights:     DefaultWeights(),
		CandleLimit: 120,
		MinNetScore: 5,
		ResultTTL:   15 * time.Second,
	}
}

// MultiTimeframeAnalyzer runs the per-timeframe analyzers over M1/M5/M15 and
// combines them with fixed weights
type MultiTimeframeAnalyzer struct {
	source    market.Source
	technical Analyzer
	otc       Analyzer
	candles   *CandleCache
	results   ResultCache
	cfg       MultiTimeframeConfig
	mu        sync.RWMutex
	logger    *logging.Logger
}

// NewMultiTimeframeAnalyzer creates the combined analyzer. otc may be nil, in which
// case OTC symbols use the technical analyzer.
func NewMultiTimeframeAnalyzer(source market.Source, technical, otc Analyzer, cfg MultiTimeframeConfig) (*MultiTimeframeAnalyzer, error) {
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 120
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 15 * time.Second
	}
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultWeights()
	}
	if err := validateWeights(cfg.Weights); err != nil {
		return nil, err
	}
	if otc == nil {
		otc = technical
	}
	if cfg.CandleLimit < technical.MinCandles() {
		cfg.CandleLimit = technical.MinCandles()
	}

	return &MultiTimeframeAnalyzer{
		source:    source,
		technical: technical,
		otc:       otc,
		candles:   NewCandleCache(),
		cfg:       cfg,
		logger:    logging.WithComponent("mtf"),
	}, nil
}

// SetResultCache enables sharing of combined results, typically through Redis
func (m *MultiTimeframeAnalyzer) SetResultCache(rc ResultCache) {
	m.mu.Lock()
	m.results = rc
	m.mu.Unlock()
}

// SetWeights replaces the timeframe weights. They must cover M1/M5/M15 and sum to 1.
func (m *MultiTimeframeAnalyzer) SetWeights(weights map[market.Timeframe]float64) error {
	if err := validateWeights(weights); err != nil {
		return err
	}
	copied := make(map[market.Timeframe]float64, len(weights))
	for tf, w := range weights {
		copied[tf] = w
	}
	m.mu.Lock()
	m.cfg.Weights = copied
	m.mu.Unlock()
	return nil
}

// Weights returns a copy of the active weights
func (m *MultiTimeframeAnalyzer) Weights() map[market.Timeframe]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[market.Timeframe]float64, len(m.cfg.Weights))
	for tf, w := range m.cfg.Weights {
		out[tf] = w
	}
	return out
}

func validateWeights(weights map[market.Timeframe]float64) error {
	sum := 0.0
	for _, tf := range market.AllTimeframes {
		w, ok := weights[tf]
		if !ok || w < 0 {
			return fmt.Errorf("%w: missing or negative weight for %s", ErrInvalidWeights, tf)
		}
		sum += w
	}
	if len(weights) != len(market.AllTimeframes) {
		return fmt.Errorf("%w: unexpected timeframe in weights", ErrInvalidWeights)
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("%w: weights sum to %.2f, must sum to 1.0", ErrInvalidWeights, sum)
	}
	return nil
}

// Analyze returns the combined analysis for symbol, served from the result cache when fresh
func (m *MultiTimeframeAnalyzer) Analyze(ctx context.Context, symbol string) (*MultiTimeframeResult, error) {
	m.mu.RLock()
	rc := m.results
	m.mu.RUnlock()

	if rc != nil {
		if cached, ok := rc.GetAnalysis(ctx, symbol); ok {
			return cached, nil
		}
	}

	data, err := m.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result, err := m.AnalyzeCandles(symbol, data)
	if err != nil {
		return nil, err
	}

	if rc != nil {
		rc.SetAnalysis(ctx, result, m.cfg.ResultTTL)
	}
	return result, nil
}

// fetch loads all timeframes in parallel
func (m *MultiTimeframeAnalyzer) fetch(ctx context.Context, symbol string) (map[market.Timeframe][]market.Candle, error) {
	data := make(map[market.Timeframe][]market.Candle, len(market.AllTimeframes))

	var wg sync.WaitGroup
	var mu sync.Mutex
	errChan := make(chan error, len(market.AllTimeframes))

	for _, tf := range market.AllTimeframes {
		wg.Add(1)
		go func(timeframe market.Timeframe) {
			defer wg.Done()

			candles, err := m.getCandles(ctx, symbol, timeframe)
			if err != nil {
				errChan <- fmt.Errorf("failed to fetch %s %s: %w", symbol, timeframe, err)
				return
			}

			mu.Lock()
			data[timeframe] = candles
			mu.Unlock()
		}(tf)
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}
	return data, nil
}

// getCandles fetches candles with caching
func (m *MultiTimeframeAnalyzer) getCandles(ctx context.Context, symbol string, tf market.Timeframe) ([]market.Candle, error) {
	cacheKey := fmt.Sprintf("%s:%s:%d", symbol, tf, m.cfg.CandleLimit)

	if cached := m.candles.Get(cacheKey); cached != nil {
		return cached, nil
	}

	candles, err := m.source.Candles(ctx, symbol, tf, m.cfg.CandleLimit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return candles, nil
	}

	// Never serve a series past the close of its next candle
	ttl := getCacheTTL(tf)
	if untilNext := time.Until(candles[len(candles)-1].CloseTime.Add(tf.Duration())); untilNext < ttl {
		ttl = untilNext
	}
	if ttl > 0 {
		m.candles.Set(cacheKey, candles, ttl)
	}
	return candles, nil
}

// PruneCandles drops expired candle series from the in-process cache
func (m *MultiTimeframeAnalyzer) PruneCandles() int {
	return m.candles.Clear()
}

// AnalyzeCandles combines already fetched candles. Every timeframe must be present.
func (m *MultiTimeframeAnalyzer) AnalyzeCandles(symbol string, data map[market.Timeframe][]market.Candle) (*MultiTimeframeResult, error) {
	analyzer := m.technical
	isOTC := market.IsOTC(symbol)
	if isOTC {
		analyzer = m.otc
	}

	weights := m.Weights()
	result := &MultiTimeframeResult{
		Symbol:     symbol,
		IsOTC:      isOTC,
		Primary:    market.M1,
		Timeframes: make(map[market.Timeframe]*TimeframeAnalysis, len(market.AllTimeframes)),
	}

	for _, tf := range market.AllTimeframes {
		candles, ok := data[tf]
		if !ok {
			return nil, fmt.Errorf("analyze %s: missing %s candles", symbol, tf)
		}
		a, err := analyzer.Analyze(symbol, tf, candles)
		if err != nil {
			return nil, err
		}
		result.Timeframes[tf] = a
		if a.AnalyzedAt.After(result.AnalyzedAt) {
			result.AnalyzedAt = a.AnalyzedAt
		}
		logging.AnalysisContext(symbol, tf.String()).Debug("timeframe analysed",
			"direction", a.Direction, "strength", a.Strength)
	}

	combine(result, weights, m.cfg.MinNetScore)
	if primary := result.PrimaryAnalysis(); primary != nil {
		result.OTC = primary.OTC
	}
	return result, nil
}

// combine derives the weighted direction, alignment and sub-scores
func combine(r *MultiTimeframeResult, weights map[market.Timeframe]float64, minNet float64) {
	net := 0.0
	for tf, a := range r.Timeframes {
		net += weights[tf] * a.Direction.Sign() * a.Strength
	}
	r.NetScore = net
	r.Strength = math.Abs(net)

	switch {
	case net >= minNet && net > 0:
		r.Direction = DirectionCall
	case net <= -minNet && net < 0:
		r.Direction = DirectionPut
	default:
		r.Direction = DirectionNeutral
	}

	r.Alignment = 0
	r.Scores = SubScores{}
	for tf, a := range r.Timeframes {
		w := weights[tf]
		if r.Direction != DirectionNeutral && a.Direction == r.Direction {
			r.Alignment += w
		}
		s := a.ScoresFor(r.Direction)
		r.Scores.Trend += w * s.Trend
		r.Scores.Momentum += w * s.Momentum
		r.Scores.Volatility += w * s.Volatility
		r.Scores.Pattern += w * s.Pattern
	}
}

// ============================================================================
// CANDLE CACHE
// ============================================================================

// CandleCache provides in-process caching for candle data
type CandleCache struct {
	data map[string]*CacheEntry
	mu   sync.RWMutex
}

// CacheEntry represents a cached candle dataset
type CacheEntry struct {
	Candles   []market.Candle
	ExpiresAt time.Time
}

// NewCandleCache creates a new candle cache
func NewCandleCache() *CandleCache {
	return &CandleCache{
		data: make(map[string]*CacheEntry),
	}
}

// getCacheTTL returns the cache TTL for a timeframe
func getCacheTTL(tf market.Timeframe) time.Duration {
	switch tf {
	case market.M1:
		return 30 * time.Second
	case market.M5:
		return 2 * time.Minute
	case market.M15:
		return 5 * time.Minute
	default:
		return 1 * time.Minute
	}
}

// Get retrieves cached candles if not expired
func (c *CandleCache) Get(key string) []market.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return nil
	}
	return entry.Candles
}

// Set stores candles in cache with expiration
func (c *CandleCache) Set(key string, candles []market.Candle, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &CacheEntry{
		Candles:   candles,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// Clear removes expired entries from cache and returns how many were dropped
func (c *CandleCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.data {
		if now.After(entry.ExpiresAt) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached series, expired or not
func (c *CandleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
