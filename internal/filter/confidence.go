package filter

import (
	"math"

	"otc-signal-bot/internal/analysis"
)

// Confidence levels
const (
	LevelHigh   = "HIGH"
	LevelMedium = "MEDIUM"
	LevelLow    = "LOW"
)

// ConfidenceConfig weights the inputs of the win probability
type ConfidenceConfig struct {
	QualityWeight   float64 `json:"quality_weight"`
	StageWeight     float64 `json:"stage_weight"`
	AlignmentWeight float64 `json:"alignment_weight"`
	MinProbability  float64 `json:"min_probability"`
	MaxProbability  float64 `json:"max_probability"`
}

// DefaultConfidenceConfig returns the standard probability mapping
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		QualityWeight:   0.60,
		StageWeight:     0.25,
		AlignmentWeight: 0.15,
		MinProbability:  55,
		MaxProbability:  95,
	}
}

// Confidence is the probability attached to a signal
type Confidence struct {
	Probability float64            `json:"probability"`
	Raw         float64            `json:"raw"`
	Grade       string             `json:"grade"`
	Level       string             `json:"level"`
	Factors     map[string]float64 `json:"factors"`
}

// ConfidenceEvaluator maps filter scores to a displayed win probability
type ConfidenceEvaluator struct {
	cfg ConfidenceConfig
}

// NewConfidenceEvaluator creates an evaluator
func NewConfidenceEvaluator(cfg ConfidenceConfig) *ConfidenceEvaluator {
	if cfg.QualityWeight+cfg.StageWeight+cfg.AlignmentWeight <= 0 {
		d := DefaultConfidenceConfig()
		cfg.QualityWeight, cfg.StageWeight, cfg.AlignmentWeight = d.QualityWeight, d.StageWeight, d.AlignmentWeight
	}
	if cfg.MaxProbability <= cfg.MinProbability {
		cfg.MinProbability, cfg.MaxProbability = 55, 95
	}
	return &ConfidenceEvaluator{cfg: cfg}
}

// Evaluate combines the quality score, the staged score and the timeframe alignment
func (e *ConfidenceEvaluator) Evaluate(r *analysis.MultiTimeframeResult, q *QualityResult, ms *MultiStageResult) Confidence {
	quality, stage, alignment := 0.0, 0.0, 0.0
	if q != nil {
		quality = q.Score
	}
	if ms != nil {
		stage = ms.Score
	}
	if r != nil {
		alignment = r.Alignment * 100
	}

	wsum := e.cfg.QualityWeight + e.cfg.StageWeight + e.cfg.AlignmentWeight
	raw := (quality*e.cfg.QualityWeight + stage*e.cfg.StageWeight + alignment*e.cfg.AlignmentWeight) / wsum
	raw = clamp(raw, 0, 100)

	prob := clamp(50+raw*0.45, e.cfg.MinProbability, e.cfg.MaxProbability)
	prob = math.Round(prob*10) / 10

	return Confidence{
		Probability: prob,
		Raw:         raw,
		Grade:       scoreToGrade(raw / 100),
		Level:       probabilityToLevel(prob),
		Factors: map[string]float64{
			"quality":   quality,
			"stages":    stage,
			"alignment": alignment,
		},
	}
}

func probabilityToLevel(p float64) string {
	if p >= 80 {
		return LevelHigh
	} else if p >= 65 {
		return LevelMedium
	}
	return LevelLow
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
