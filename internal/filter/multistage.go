package filter

import (
	"fmt"
	"math"

	"otc-signal-bot/internal/analysis"
	"otc-signal-bot/internal/market"
)

// MinMultiStageScore is the overall score a signal needs after every stage passed
const MinMultiStageScore = 75.0

// Stage names
const (
	StageData       = "data"
	StageTrend      = "trend"
	StageConfluence = "confluence"
	StageVolatility = "volatility"
	StageQuality    = "quality"
)

// MultiStageConfig configures the staged filter
type MultiStageConfig struct {
	MinScore     float64 `json:"min_score"`
	MinAlignment float64 `json:"min_alignment"` // 0-1
	MinMomentum  float64 `json:"min_momentum"`  // primary timeframe momentum score

	// ATR% normalised to one minute
	MinVolatility float64 `json:"min_volatility"`
	MaxVolatility float64 `json:"max_volatility"`

	// Relaxed mode lowers the quality and overall thresholds by RelaxedRelief,
	// never below the floors
	RelaxedRelief       float64 `json:"relaxed_relief"`
	RelaxedQualityFloor float64 `json:"relaxed_quality_floor"`
	RelaxedScoreFloor   float64 `json:"relaxed_score_floor"`
}

// DefaultMultiStageConfig returns the standard staged filter settings
func DefaultMultiStageConfig() MultiStageConfig {
	return MultiStageConfig{
		MinScore:            MinMultiStageScore,
		MinAlignment:        0.60,
		MinMomentum:         50,
		MinVolatility:       0.015,
		MaxVolatility:       0.20,
		RelaxedRelief:       10,
		RelaxedQualityFloor: 55,
		RelaxedScoreFloor:   60,
	}
}

// StageResult is the outcome of one stage
type StageResult struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// MultiStageResult is the outcome of the whole pipeline
type MultiStageResult struct {
	Stages      []StageResult  `json:"stages"`
	Score       float64        `json:"score"`
	Threshold   float64        `json:"threshold"`
	Passed      bool           `json:"passed"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Relaxed     bool           `json:"relaxed"`
	Quality     *QualityResult `json:"quality,omitempty"`
}

type stageFunc func(r *analysis.MultiTimeframeResult, out *MultiStageResult, relaxed bool) StageResult

// MultiStageSignalFilter runs an ordered set of checks and stops at the first failure
type MultiStageSignalFilter struct {
	cfg     MultiStageConfig
	quality *AdvancedSignalFilter
	stages  []stageFunc
}

// NewMultiStageSignalFilter creates the staged filter around a quality filter
func NewMultiStageSignalFilter(quality *AdvancedSignalFilter, cfg MultiStageConfig) *MultiStageSignalFilter {
	d := DefaultMultiStageConfig()
	if cfg.MinScore <= 0 {
		cfg.MinScore = d.MinScore
	}
	if cfg.MinAlignment <= 0 {
		cfg.MinAlignment = d.MinAlignment
	}
	if cfg.MinMomentum <= 0 {
		cfg.MinMomentum = d.MinMomentum
	}
	if cfg.MaxVolatility <= cfg.MinVolatility {
		cfg.MinVolatility, cfg.MaxVolatility = d.MinVolatility, d.MaxVolatility
	}
	if cfg.RelaxedRelief < 0 {
		cfg.RelaxedRelief = 0
	}
	if quality == nil {
		quality = NewAdvancedSignalFilter(DefaultQualityConfig())
	}

	f := &MultiStageSignalFilter{cfg: cfg, quality: quality}
	f.stages = []stageFunc{f.dataStage, f.trendStage, f.confluenceStage, f.volatilityStage, f.qualityStage}
	return f
}

// Quality returns the wrapped quality filter
func (f *MultiStageSignalFilter) Quality() *AdvancedSignalFilter {
	return f.quality
}

// Evaluate runs every stage in order. relaxed lowers the quality and overall thresholds.
func (f *MultiStageSignalFilter) Evaluate(r *analysis.MultiTimeframeResult, relaxed bool) *MultiStageResult {
	out := &MultiStageResult{
		Threshold: f.threshold(f.cfg.MinScore, f.cfg.RelaxedScoreFloor, relaxed),
		Relaxed:   relaxed,
	}

	total := 0.0
	for _, run := range f.stages {
		sr := run(r, out, relaxed)
		out.Stages = append(out.Stages, sr)
		total += sr.Score
		if !sr.Passed {
			out.FailedStage = sr.Name
			break
		}
	}
	out.Score = total / float64(len(out.Stages))
	out.Passed = out.FailedStage == "" && out.Score >= out.Threshold
	return out
}

func (f *MultiStageSignalFilter) threshold(base, floor float64, relaxed bool) float64 {
	if !relaxed {
		return base
	}
	return math.Max(base-f.cfg.RelaxedRelief, math.Min(base, floor))
}

func (f *MultiStageSignalFilter) dataStage(r *analysis.MultiTimeframeResult, _ *MultiStageResult, _ bool) StageResult {
	sr := StageResult{Name: StageData}
	if r == nil {
		sr.Reason = "no analysis"
		return sr
	}
	for _, tf := range market.AllTimeframes {
		a, ok := r.Timeframes[tf]
		if !ok || a == nil || a.CandleCount == 0 {
			sr.Reason = fmt.Sprintf("missing %s analysis", tf.Label())
			return sr
		}
	}
	if r.Direction == analysis.DirectionNeutral {
		sr.Reason = "no directional consensus"
		return sr
	}
	sr.Passed = true
	sr.Score = 100
	sr.Reason = fmt.Sprintf("%d timeframes analysed", len(r.Timeframes))
	return sr
}

func (f *MultiStageSignalFilter) trendStage(r *analysis.MultiTimeframeResult, _ *MultiStageResult, _ bool) StageResult {
	sr := StageResult{Name: StageTrend, Score: r.Alignment * 100}
	sr.Passed = r.Alignment >= f.cfg.MinAlignment
	if sr.Passed {
		sr.Reason = fmt.Sprintf("timeframe alignment %.0f%%", sr.Score)
	} else {
		sr.Reason = fmt.Sprintf("timeframe alignment %.0f%% below %.0f%%", sr.Score, f.cfg.MinAlignment*100)
	}
	return sr
}

func (f *MultiStageSignalFilter) confluenceStage(r *analysis.MultiTimeframeResult, _ *MultiStageResult, _ bool) StageResult {
	sr := StageResult{Name: StageConfluence}
	primary := r.PrimaryAnalysis()
	if primary == nil {
		sr.Reason = "no primary timeframe"
		return sr
	}
	sr.Score = primary.ScoresFor(r.Direction).Momentum
	sr.Passed = sr.Score >= f.cfg.MinMomentum
	if sr.Passed {
		sr.Reason = fmt.Sprintf("%s momentum %.0f confirms %s", primary.Timeframe.Label(), sr.Score, r.Direction)
	} else {
		sr.Reason = fmt.Sprintf("%s momentum %.0f below %.0f", primary.Timeframe.Label(), sr.Score, f.cfg.MinMomentum)
	}
	return sr
}

func (f *MultiStageSignalFilter) volatilityStage(r *analysis.MultiTimeframeResult, _ *MultiStageResult, _ bool) StageResult {
	sr := StageResult{Name: StageVolatility}
	primary := r.PrimaryAnalysis()
	if primary == nil {
		sr.Reason = "no primary timeframe"
		return sr
	}
	v := analysis.NormalizedVolatility(primary)
	sr.Score = primary.Volatility
	switch {
	case v < f.cfg.MinVolatility:
		sr.Reason = fmt.Sprintf("volatility %.3f%% too low", v)
	case v > f.cfg.MaxVolatility:
		sr.Reason = fmt.Sprintf("volatility %.3f%% too high", v)
	default:
		sr.Passed = true
		sr.Reason = fmt.Sprintf("volatility %.3f%% in range", v)
	}
	return sr
}

func (f *MultiStageSignalFilter) qualityStage(r *analysis.MultiTimeframeResult, out *MultiStageResult, relaxed bool) StageResult {
	threshold := f.threshold(f.quality.MinimumScore(), f.cfg.RelaxedQualityFloor, relaxed)
	q := f.quality.EvaluateWithThreshold(r, threshold)
	out.Quality = q

	sr := StageResult{Name: StageQuality, Score: q.Score, Passed: q.Accepted}
	if q.Accepted {
		sr.Reason = fmt.Sprintf("quality %.1f (%s)", q.Score, q.Grade)
	} else {
		sr.Reason = fmt.Sprintf("quality %.1f below %.1f", q.Score, threshold)
	}
	return sr
}
