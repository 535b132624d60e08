package filter

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"otc-signal-bot/internal/analysis"
)

// OTCBonusScore is added to the quality score when the OTC reversion bias
// agrees with the signal direction
const OTCBonusScore = 15.0

// DefaultMinQualityScore is the acceptance threshold of the quality filter
const DefaultMinQualityScore = 70.0

var ErrInvalidWeights = errors.New("invalid quality weights")

// Weights of the quality criteria. They must sum to 1.0.
type Weights struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Alignment  float64 `json:"alignment"`
	Volatility float64 `json:"volatility"`
	Pattern    float64 `json:"pattern"`
}

// DefaultWeights returns the standard criterion weights
func DefaultWeights() Weights {
	return Weights{
		Trend:      0.25,
		Momentum:   0.25,
		Alignment:  0.20,
		Volatility: 0.15,
		Pattern:    0.15,
	}
}

// Sum of all weights
func (w Weights) Sum() float64 {
	return w.Trend + w.Momentum + w.Alignment + w.Volatility + w.Pattern
}

// Validate checks that no weight is negative and the total is 1.0
func (w Weights) Validate() error {
	if w.Trend < 0 || w.Momentum < 0 || w.Alignment < 0 || w.Volatility < 0 || w.Pattern < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidWeights)
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.2f", ErrInvalidWeights, sum)
	}
	return nil
}

// QualityConfig configures the AdvancedSignalFilter
type QualityConfig struct {
	Weights         Weights `json:"weights"`
	MinQualityScore float64 `json:"min_quality_score"`
	OTCBonus        float64 `json:"otc_bonus"`
}

// DefaultQualityConfig returns the standard quality filter settings
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		Weights:         DefaultWeights(),
		MinQualityScore: DefaultMinQualityScore,
		OTCBonus:        OTCBonusScore,
	}
}

// Criteria is the 0-100 breakdown the quality score is built from
type Criteria struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Alignment  float64 `json:"alignment"`
	Volatility float64 `json:"volatility"`
	Pattern    float64 `json:"pattern"`
}

// QualityResult is the outcome of the quality filter
type QualityResult struct {
	Symbol    string             `json:"symbol"`
	Direction analysis.Direction `json:"direction"`
	Criteria  Criteria           `json:"criteria"`
	BaseScore float64            `json:"base_score"`
	OTCBonus  float64            `json:"otc_bonus"`
	Score     float64            `json:"score"`
	Threshold float64            `json:"threshold"`
	Accepted  bool               `json:"accepted"`
	Grade     string             `json:"grade"`
	Reasons   []string           `json:"reasons,omitempty"`
}

// AdvancedSignalFilter scores a multi-timeframe result with a weighted sum of
// criteria and accepts it against a minimum quality score
type AdvancedSignalFilter struct {
	mu       sync.RWMutex
	weights  Weights
	minScore float64
	otcBonus float64
}

// NewAdvancedSignalFilter creates a quality filter. Invalid weights fall back to the defaults.
func NewAdvancedSignalFilter(cfg QualityConfig) *AdvancedSignalFilter {
	if cfg.Weights.Validate() != nil {
		cfg.Weights = DefaultWeights()
	}
	if cfg.MinQualityScore <= 0 {
		cfg.MinQualityScore = DefaultMinQualityScore
	}
	if cfg.OTCBonus < 0 {
		cfg.OTCBonus = 0
	}
	return &AdvancedSignalFilter{
		weights:  cfg.Weights,
		minScore: cfg.MinQualityScore,
		otcBonus: cfg.OTCBonus,
	}
}

// Evaluate scores r against the configured minimum
func (f *AdvancedSignalFilter) Evaluate(r *analysis.MultiTimeframeResult) *QualityResult {
	return f.EvaluateWithThreshold(r, f.MinimumScore())
}

// EvaluateWithThreshold scores r and accepts it when the score reaches threshold
func (f *AdvancedSignalFilter) EvaluateWithThreshold(r *analysis.MultiTimeframeResult, threshold float64) *QualityResult {
	f.mu.RLock()
	w := f.weights
	bonus := f.otcBonus
	f.mu.RUnlock()

	q := &QualityResult{Threshold: threshold, Direction: analysis.DirectionNeutral, Grade: scoreToGrade(0)}
	if r == nil {
		q.Reasons = append(q.Reasons, "no analysis")
		return q
	}
	q.Symbol = r.Symbol
	q.Direction = r.Direction
	if r.Direction == analysis.DirectionNeutral {
		q.Reasons = append(q.Reasons, "no directional consensus across timeframes")
		return q
	}

	q.Criteria = Criteria{
		Trend:      r.Scores.Trend,
		Momentum:   r.Scores.Momentum,
		Alignment:  r.Alignment * 100,
		Volatility: r.Scores.Volatility,
		Pattern:    r.Scores.Pattern,
	}

	q.BaseScore = q.Criteria.Trend*w.Trend +
		q.Criteria.Momentum*w.Momentum +
		q.Criteria.Alignment*w.Alignment +
		q.Criteria.Volatility*w.Volatility +
		q.Criteria.Pattern*w.Pattern

	if r.IsOTC && r.OTC != nil && r.OTC.Bias == r.Direction {
		q.OTCBonus = bonus
		q.Reasons = append(q.Reasons, fmt.Sprintf("OTC reversion agrees (+%.0f)", bonus))
	}

	q.Score = math.Min(100, q.BaseScore+q.OTCBonus)
	q.Accepted = q.Score >= threshold
	q.Grade = scoreToGrade(q.Score / 100)

	if q.Criteria.Alignment >= 80 {
		q.Reasons = append(q.Reasons, fmt.Sprintf("%.0f%% of timeframe weight agrees", q.Criteria.Alignment))
	}
	if q.Criteria.Trend >= 70 {
		q.Reasons = append(q.Reasons, "strong trend support")
	}
	if q.Criteria.Momentum >= 70 {
		q.Reasons = append(q.Reasons, "momentum confirms direction")
	}
	if q.Criteria.Pattern > 60 {
		q.Reasons = append(q.Reasons, "candlestick pattern confirms direction")
	}
	if !q.Accepted {
		q.Reasons = append(q.Reasons, fmt.Sprintf("quality %.1f below %.1f", q.Score, threshold))
	}
	return q
}

// SetWeights updates the criterion weights
func (f *AdvancedSignalFilter) SetWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	f.weights = w
	f.mu.Unlock()
	return nil
}

// Weights returns the active criterion weights
func (f *AdvancedSignalFilter) Weights() Weights {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.weights
}

// SetMinimumScore updates the acceptance threshold
func (f *AdvancedSignalFilter) SetMinimumScore(minScore float64) {
	f.mu.Lock()
	f.minScore = minScore
	f.mu.Unlock()
}

// MinimumScore returns the acceptance threshold
func (f *AdvancedSignalFilter) MinimumScore() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.minScore
}

// scoreToGrade converts a 0-1 score to a letter grade
func scoreToGrade(score float64) string {
	if score >= 0.90 {
		return "A+"
	} else if score >= 0.85 {
		return "A"
	} else if score >= 0.75 {
		return "B+"
	} else if score >= 0.70 {
		return "B"
	} else if score >= 0.60 {
		return "C"
	} else if score >= 0.50 {
		return "D"
	}
	return "F"
}
