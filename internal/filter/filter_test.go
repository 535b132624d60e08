package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otc-signal-bot/internal/analysis"
	"otc-signal-bot/internal/indicators"
	"otc-signal-bot/internal/market"
)

// newResult builds a CALL result whose primary timeframe has momentum 75,
// normalised volatility 0.06% and a volatility score of 90
func newResult(alignment float64, scores analysis.SubScores) *analysis.MultiTimeframeResult {
	r := &analysis.MultiTimeframeResult{
		Symbol:     "EURUSD",
		Direction:  analysis.DirectionCall,
		Alignment:  alignment,
		Scores:     scores,
		Primary:    market.M1,
		Timeframes: make(map[market.Timeframe]*analysis.TimeframeAnalysis),
	}
	for _, tf := range market.AllTimeframes {
		r.Timeframes[tf] = &analysis.TimeframeAnalysis{
			Symbol:      "EURUSD",
			Timeframe:   tf,
			Direction:   analysis.DirectionCall,
			CandleCount: 120,
			Volatility:  90,
			Indicators:  &indicators.Snapshot{ATRPercent: 0.06 * tf.Duration().Minutes()},
			Tallies: map[string]analysis.Tally{
				analysis.CategoryMomentum: {Bull: 3, Bear: 1},
			},
		}
	}
	return r
}

func strongScores() analysis.SubScores {
	return analysis.SubScores{Trend: 80, Momentum: 80, Volatility: 70, Pattern: 60}
}

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	w := DefaultWeights()
	w.Trend = 0.15
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)

	w = DefaultWeights()
	w.Pattern = -0.15
	w.Trend = 0.55
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeights)
}

func TestQualityScore(t *testing.T) {
	f := NewAdvancedSignalFilter(DefaultQualityConfig())

	q := f.Evaluate(newResult(1.0, strongScores()))
	// 80*.25 + 80*.25 + 100*.20 + 70*.15 + 60*.15
	assert.InDelta(t, 79.5, q.Score, 1e-9)
	assert.InDelta(t, 79.5, q.BaseScore, 1e-9)
	assert.Zero(t, q.OTCBonus)
	assert.True(t, q.Accepted)
	assert.Equal(t, "B+", q.Grade)
	assert.Equal(t, analysis.DirectionCall, q.Direction)
	assert.InDelta(t, 100, q.Criteria.Alignment, 1e-9)
}

func TestQualityOTCBonus(t *testing.T) {
	f := NewAdvancedSignalFilter(DefaultQualityConfig())

	r := newResult(1.0, strongScores())
	r.Symbol = "EURUSD-OTC"
	r.IsOTC = true
	r.OTC = &analysis.OTCInsight{Bias: analysis.DirectionCall, Score: 60}

	q := f.Evaluate(r)
	assert.Equal(t, OTCBonusScore, q.OTCBonus)
	assert.InDelta(t, 94.5, q.Score, 1e-9)

	r.OTC.Bias = analysis.DirectionPut
	q = f.Evaluate(r)
	assert.Zero(t, q.OTCBonus)
	assert.InDelta(t, 79.5, q.Score, 1e-9)
}

func TestQualityClampedTo100(t *testing.T) {
	f := NewAdvancedSignalFilter(DefaultQualityConfig())

	r := newResult(1.0, analysis.SubScores{Trend: 100, Momentum: 100, Volatility: 100, Pattern: 100})
	r.IsOTC = true
	r.OTC = &analysis.OTCInsight{Bias: analysis.DirectionCall}

	q := f.Evaluate(r)
	assert.Equal(t, 100.0, q.Score)
	assert.Equal(t, "A+", q.Grade)
}

func TestQualityRejectsNeutral(t *testing.T) {
	f := NewAdvancedSignalFilter(DefaultQualityConfig())

	r := newResult(0, strongScores())
	r.Direction = analysis.DirectionNeutral

	q := f.Evaluate(r)
	assert.False(t, q.Accepted)
	assert.Zero(t, q.Score)
	assert.NotEmpty(t, q.Reasons)

	q = f.Evaluate(nil)
	assert.False(t, q.Accepted)
}

func TestQualityThreshold(t *testing.T) {
	f := NewAdvancedSignalFilter(DefaultQualityConfig())
	r := newResult(0.8, analysis.SubScores{Trend: 60, Momentum: 60, Volatility: 70, Pattern: 50})

	// 15 + 15 + 16 + 10.5 + 7.5
	q := f.Evaluate(r)
	assert.InDelta(t, 64.0, q.Score, 1e-9)
	assert.False(t, q.Accepted)

	assert.True(t, f.EvaluateWithThreshold(r, 60).Accepted)

	f.SetMinimumScore(60)
	assert.Equal(t, 60.0, f.MinimumScore())
	assert.True(t, f.Evaluate(r).Accepted)
}

func TestSetWeights(t *testing.T) {
	f := NewAdvancedSignalFilter(DefaultQualityConfig())

	err := f.SetWeights(Weights{Trend: 0.5, Momentum: 0.5, Alignment: 0.5})
	assert.ErrorIs(t, err, ErrInvalidWeights)
	assert.Equal(t, DefaultWeights(), f.Weights())

	w := Weights{Trend: 1}
	require.NoError(t, f.SetWeights(w))
	assert.Equal(t, w, f.Weights())

	q := f.Evaluate(newResult(1.0, strongScores()))
	assert.InDelta(t, 80, q.Score, 1e-9)
}

func TestInvalidConfigFallsBackToDefaults(t *testing.T) {
	f := NewAdvancedSignalFilter(QualityConfig{Weights: Weights{Trend: 2}})
	assert.Equal(t, DefaultWeights(), f.Weights())
	assert.Equal(t, DefaultMinQualityScore, f.MinimumScore())
}

func TestScoreToGrade(t *testing.T) {
	tests := []struct {
		score float64
		grade string
	}{
		{0.95, "A+"},
		{0.90, "A+"},
		{0.86, "A"},
		{0.80, "B+"},
		{0.72, "B"},
		{0.65, "C"},
		{0.55, "D"},
		{0.10, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.grade, scoreToGrade(tt.score), "score %.2f", tt.score)
	}
}

func TestMultiStagePasses(t *testing.T) {
	f := NewMultiStageSignalFilter(NewAdvancedSignalFilter(DefaultQualityConfig()), DefaultMultiStageConfig())

	res := f.Evaluate(newResult(1.0, strongScores()), false)
	require.Len(t, res.Stages, 5)
	assert.True(t, res.Passed)
	assert.Empty(t, res.FailedStage)

	names := make([]string, 0, len(res.Stages))
	for _, s := range res.Stages {
		assert.True(t, s.Passed, s.Name)
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{StageData, StageTrend, StageConfluence, StageVolatility, StageQuality}, names)

	// (100 + 100 + 75 + 90 + 79.5) / 5
	assert.InDelta(t, 88.9, res.Score, 1e-9)
	require.NotNil(t, res.Quality)
	assert.InDelta(t, 79.5, res.Quality.Score, 1e-9)
}

func TestMultiStageShortCircuits(t *testing.T) {
	f := NewMultiStageSignalFilter(nil, DefaultMultiStageConfig())

	res := f.Evaluate(newResult(0.5, strongScores()), false)
	assert.False(t, res.Passed)
	assert.Equal(t, StageTrend, res.FailedStage)
	assert.Len(t, res.Stages, 2)
	assert.InDelta(t, 75, res.Score, 1e-9)
	assert.Nil(t, res.Quality)
}

func TestMultiStageDataStage(t *testing.T) {
	f := NewMultiStageSignalFilter(nil, DefaultMultiStageConfig())

	r := newResult(1.0, strongScores())
	r.Direction = analysis.DirectionNeutral
	res := f.Evaluate(r, false)
	assert.Equal(t, StageData, res.FailedStage)
	assert.Len(t, res.Stages, 1)

	r = newResult(1.0, strongScores())
	delete(r.Timeframes, market.M15)
	res = f.Evaluate(r, false)
	assert.Equal(t, StageData, res.FailedStage)
	assert.Contains(t, res.Stages[0].Reason, "M15")

	res = f.Evaluate(nil, false)
	assert.Equal(t, StageData, res.FailedStage)
}

func TestMultiStageMomentumAndVolatility(t *testing.T) {
	f := NewMultiStageSignalFilter(nil, DefaultMultiStageConfig())

	r := newResult(1.0, strongScores())
	r.Timeframes[market.M1].Tallies[analysis.CategoryMomentum] = analysis.Tally{Bull: 1, Bear: 3}
	res := f.Evaluate(r, false)
	assert.Equal(t, StageConfluence, res.FailedStage)

	r = newResult(1.0, strongScores())
	r.Timeframes[market.M1].Indicators.ATRPercent = 0.001
	res = f.Evaluate(r, false)
	assert.Equal(t, StageVolatility, res.FailedStage)

	r = newResult(1.0, strongScores())
	r.Timeframes[market.M1].Indicators.ATRPercent = 0.5
	res = f.Evaluate(r, false)
	assert.Equal(t, StageVolatility, res.FailedStage)
	assert.Contains(t, res.Stages[3].Reason, "too high")
}

func TestMultiStageRelaxed(t *testing.T) {
	f := NewMultiStageSignalFilter(nil, DefaultMultiStageConfig())
	r := newResult(0.8, analysis.SubScores{Trend: 60, Momentum: 60, Volatility: 70, Pattern: 50})

	strict := f.Evaluate(r, false)
	assert.False(t, strict.Passed)
	assert.Equal(t, StageQuality, strict.FailedStage)
	assert.Equal(t, MinMultiStageScore, strict.Threshold)

	relaxed := f.Evaluate(r, true)
	assert.True(t, relaxed.Passed)
	assert.True(t, relaxed.Relaxed)
	assert.Equal(t, 65.0, relaxed.Threshold)
	// (100 + 80 + 75 + 90 + 64) / 5
	assert.InDelta(t, 81.8, relaxed.Score, 1e-9)
	assert.Equal(t, 60.0, relaxed.Quality.Threshold)
}

func TestRelaxedThresholdFloor(t *testing.T) {
	cfg := DefaultMultiStageConfig()
	cfg.RelaxedRelief = 30
	f := NewMultiStageSignalFilter(nil, cfg)

	assert.Equal(t, 60.0, f.threshold(75, 60, true))
	assert.Equal(t, 50.0, f.threshold(50, 60, true))
	assert.Equal(t, 75.0, f.threshold(75, 60, false))
}

func TestConfidence(t *testing.T) {
	e := NewConfidenceEvaluator(DefaultConfidenceConfig())

	tests := []struct {
		name        string
		quality     float64
		stages      float64
		alignment   float64
		probability float64
		grade       string
		level       string
	}{
		{"strong", 80, 80, 0.8, 86.0, "B+", LevelHigh},
		{"perfect", 100, 100, 1.0, 95.0, "A+", LevelHigh},
		{"medium", 40, 40, 0.4, 68.0, "F", LevelMedium},
		{"floor", 0, 0, 0, 55.0, "F", LevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.Evaluate(
				&analysis.MultiTimeframeResult{Alignment: tt.alignment},
				&QualityResult{Score: tt.quality},
				&MultiStageResult{Score: tt.stages},
			)
			assert.InDelta(t, tt.probability, c.Probability, 1e-9)
			assert.Equal(t, tt.grade, c.Grade)
			assert.Equal(t, tt.level, c.Level)
			assert.InDelta(t, tt.quality, c.Factors["quality"], 1e-9)
		})
	}
}

func TestConfidenceFromPipeline(t *testing.T) {
	q := NewAdvancedSignalFilter(DefaultQualityConfig())
	f := NewMultiStageSignalFilter(q, DefaultMultiStageConfig())
	e := NewConfidenceEvaluator(DefaultConfidenceConfig())

	r := newResult(1.0, strongScores())
	ms := f.Evaluate(r, false)
	c := e.Evaluate(r, ms.Quality, ms)

	// raw = .6*79.5 + .25*88.9 + .15*100 = 84.925
	assert.InDelta(t, 84.925, c.Raw, 1e-6)
	assert.InDelta(t, 88.2, c.Probability, 1e-9)
	assert.Equal(t, "B+", c.Grade)
	assert.Equal(t, LevelHigh, c.Level)
}

func TestConfidenceNilInputs(t *testing.T) {
	e := NewConfidenceEvaluator(ConfidenceConfig{})
	c := e.Evaluate(nil, nil, nil)
	assert.Equal(t, 55.0, c.Probability)
	assert.Equal(t, LevelLow, c.Level)
}
