package signals

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"otc-signal-bot/internal/analysis"
	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/filter"
	"otc-signal-bot/internal/logging"
	"otc-signal-bot/internal/market"
)

// ErrNoQualifyingSignal is returned when no pair passes the filters
var ErrNoQualifyingSignal = errors.New("no qualifying signal")

// PairAnalyzer produces the combined multi-timeframe analysis of a pair
type PairAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (*analysis.MultiTimeframeResult, error)
}

// GeneratorConfig configures candidate selection and signal timing
type GeneratorConfig struct {
	Pairs     []string      `json:"pairs"` // empty means every symbol of the source
	Workers   int           `json:"workers"`
	EntryLead time.Duration `json:"entry_lead"`

	// Expiry by primary volatility (ATR% normalised to one minute)
	HighVolatility float64 `json:"high_volatility"`
	LowVolatility  float64 `json:"low_volatility"`
	ShortDuration  int     `json:"short_duration"`  // minutes, high volatility
	MediumDuration int     `json:"medium_duration"` // minutes
	LongDuration   int     `json:"long_duration"`   // minutes, low volatility

	Now func() time.Time `json:"-"`
}

// DefaultGeneratorConfig returns the standard generator settings
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Workers:        4,
		EntryLead:      time.Minute,
		HighVolatility: 0.08,
		LowVolatility:  0.03,
		ShortDuration:  1,
		MediumDuration: 3,
		LongDuration:   5,
	}
}

// Candidate is the filtered evaluation of one pair
type Candidate struct {
	Symbol     string                         `json:"symbol"`
	Analysis   *analysis.MultiTimeframeResult `json:"analysis"`
	Stages     *filter.MultiStageResult       `json:"stages"`
	Confidence filter.Confidence              `json:"confidence"`
	Err        error                          `json:"-"`
}

// Accepted reports whether the candidate passed every stage
func (c *Candidate) Accepted() bool {
	return c != nil && c.Err == nil && c.Stages != nil && c.Stages.Passed
}

// QualityScore returns the quality filter score, 0 when it did not run
func (c *Candidate) QualityScore() float64 {
	if c == nil || c.Stages == nil || c.Stages.Quality == nil {
		return 0
	}
	return c.Stages.Quality.Score
}

// Generator evaluates the pair pool and turns the best candidate into a Signal
type Generator struct {
	source     market.Source
	analyzer   PairAnalyzer
	stages     *filter.MultiStageSignalFilter
	confidence *filter.ConfidenceEvaluator
	cfg        GeneratorConfig
	logger     *logging.Logger
}

// NewGenerator creates a signal generator
func NewGenerator(source market.Source, analyzer PairAnalyzer, stages *filter.MultiStageSignalFilter, confidence *filter.ConfidenceEvaluator, cfg GeneratorConfig) *Generator {
	d := DefaultGeneratorConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.EntryLead < 0 {
		cfg.EntryLead = 0
	}
	if cfg.HighVolatility <= cfg.LowVolatility {
		cfg.HighVolatility, cfg.LowVolatility = d.HighVolatility, d.LowVolatility
	}
	if cfg.ShortDuration <= 0 {
		cfg.ShortDuration = d.ShortDuration
	}
	if cfg.MediumDuration <= 0 {
		cfg.MediumDuration = d.MediumDuration
	}
	if cfg.LongDuration <= 0 {
		cfg.LongDuration = d.LongDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if stages == nil {
		stages = filter.NewMultiStageSignalFilter(nil, filter.DefaultMultiStageConfig())
	}
	if confidence == nil {
		confidence = filter.NewConfidenceEvaluator(filter.DefaultConfidenceConfig())
	}

	return &Generator{
		source:     source,
		analyzer:   analyzer,
		stages:     stages,
		confidence: confidence,
		cfg:        cfg,
		logger:     logging.WithComponent("generator"),
	}
}

// Pairs returns the pool evaluated by Generate
func (g *Generator) Pairs() []string {
	if len(g.cfg.Pairs) > 0 {
		return append([]string(nil), g.cfg.Pairs...)
	}
	return g.source.Symbols()
}

// Analyze runs the full pipeline for one pair without persisting anything
func (g *Generator) Analyze(ctx context.Context, symbol string, relaxed bool) (*Candidate, error) {
	r, err := g.analyzer.Analyze(ctx, symbol)
	if err != nil {
		return nil, err
	}
	ms := g.stages.Evaluate(r, relaxed)
	return &Candidate{
		Symbol:     symbol,
		Analysis:   r,
		Stages:     ms,
		Confidence: g.confidence.Evaluate(r, ms.Quality, ms),
	}, nil
}

// Generate evaluates every pair and returns a signal for the best accepted
// candidate. It is the callback registered with the SignalManager.
func (g *Generator) Generate(ctx context.Context, req Request) (*database.Signal, error) {
	candidates := g.evaluate(ctx, g.Pairs(), req.Force)

	var accepted []*Candidate
	failures := 0
	for _, c := range candidates {
		if c.Err != nil {
			failures++
			continue
		}
		if c.Accepted() {
			accepted = append(accepted, c)
		}
	}

	if len(candidates) > 0 && failures == len(candidates) {
		return nil, fmt.Errorf("analysis failed for all %d pairs: %w", failures, candidates[0].Err)
	}
	if len(accepted) == 0 {
		g.logger.Info("no pair passed the filters", "pairs", len(candidates), "forced", req.Force)
		return nil, ErrNoQualifyingSignal
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		qi, qj := accepted[i].QualityScore(), accepted[j].QualityScore()
		if qi != qj {
			return qi > qj
		}
		return accepted[i].Confidence.Probability > accepted[j].Confidence.Probability
	})

	return g.BuildSignal(ctx, accepted[0])
}

// evaluate runs Analyze over the pool with a bounded worker pool
func (g *Generator) evaluate(ctx context.Context, pairs []string, relaxed bool) []*Candidate {
	pairChan := make(chan string, len(pairs))
	resultChan := make(chan *Candidate, len(pairs))
	var wg sync.WaitGroup

	workers := g.cfg.Workers
	if workers > len(pairs) {
		workers = len(pairs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range pairChan {
				select {
				case <-ctx.Done():
					resultChan <- &Candidate{Symbol: symbol, Err: ctx.Err()}
					continue
				default:
				}
				c, err := g.Analyze(ctx, symbol, relaxed)
				if err != nil {
					g.logger.Warn("pair analysis failed", "pair", symbol, "error", err)
					c = &Candidate{Symbol: symbol, Err: err}
				}
				resultChan <- c
			}
		}()
	}

	for _, p := range pairs {
		pairChan <- p
	}
	close(pairChan)

	wg.Wait()
	close(resultChan)

	out := make([]*Candidate, 0, len(pairs))
	for c := range resultChan {
		out = append(out, c)
	}
	// Deterministic order for ties
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// BuildSignal turns an accepted candidate into a persistable signal
func (g *Generator) BuildSignal(ctx context.Context, c *Candidate) (*database.Signal, error) {
	if !c.Accepted() {
		return nil, ErrNoQualifyingSignal
	}
	r := c.Analysis

	price, err := g.source.Price(ctx, c.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry price for %s: %w", c.Symbol, err)
	}

	now := g.cfg.Now()
	entry := now.UTC().Truncate(time.Minute).Add(time.Minute).Add(g.cfg.EntryLead)
	duration := g.Duration(analysis.NormalizedVolatility(r.PrimaryAnalysis()))

	s := &database.Signal{
		ID:              uuid.NewString(),
		Pair:            c.Symbol,
		Direction:       string(r.Direction),
		EntryTime:       entry,
		DurationMinutes: duration,
		ExpiryTime:      entry.Add(time.Duration(duration) * time.Minute),
		Probability:     c.Confidence.Probability,
		QualityScore:    c.QualityScore(),
		Grade:           c.Confidence.Grade,
		EntryPrice:      price,
		Status:          database.StatusPending,
		IsOTC:           r.IsOTC,
		Forced:          c.Stages.Relaxed,
		Reasons:         reasons(c),
	}

	logging.SignalContext(s.Pair, s.Direction, s.Probability).Info("signal built",
		"quality", s.QualityScore, "grade", s.Grade, "entry", s.EntryTime, "duration", duration)
	return s, nil
}

// Duration picks the expiry in minutes from normalised volatility
func (g *Generator) Duration(volatility float64) int {
	switch {
	case volatility >= g.cfg.HighVolatility:
		return g.cfg.ShortDuration
	case volatility <= g.cfg.LowVolatility:
		return g.cfg.LongDuration
	default:
		return g.cfg.MediumDuration
	}
}

const maxReasons = 6

func reasons(c *Candidate) []string {
	out := make([]string, 0, maxReasons)
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, r := range list {
			if len(out) == maxReasons {
				return
			}
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}

	if q := c.Stages.Quality; q != nil {
		add(q.Reasons)
	}
	if otc := c.Analysis.OTC; otc != nil && otc.Bias == c.Analysis.Direction {
		add(otc.Reasons)
	}
	for _, st := range c.Stages.Stages {
		if st.Name == filter.StageTrend || st.Name == filter.StageConfluence {
			add([]string{st.Reason})
		}
	}
	return out
}
