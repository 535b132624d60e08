package database

import (
	"time"
)

// Signal status constants
const (
	StatusPending = "PENDING"
	StatusWin     = "WIN"
	StatusLoss    = "LOSS"
	StatusDraw    = "DRAW"
)

// Signal direction constants
const (
	DirectionCall = "CALL"
	DirectionPut  = "PUT"
)

// Signal is a persisted binary option signal
type Signal struct {
	ID              string     `json:"id"`
	Pair            string     `json:"pair"`
	Direction       string     `json:"direction"`
	EntryTime       time.Time  `json:"entry_time"`
	DurationMinutes int        `json:"duration_minutes"`
	ExpiryTime      time.Time  `json:"expiry_time"`
	Probability     float64    `json:"probability"`
	QualityScore    float64    `json:"quality_score"`
	Grade           string     `json:"grade"`
	EntryPrice      float64    `json:"entry_price"` // quote when built, price at EntryTime once settled
	ExitPrice       *float64   `json:"exit_price,omitempty"`
	Status          string     `json:"status"`
	IsOTC           bool       `json:"is_otc"`
	Forced          bool       `json:"forced"`
	Reasons         []string   `json:"reasons"`
	CreatedAt       time.Time  `json:"created_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

// IsSettled reports whether the outcome is known
func (s *Signal) IsSettled() bool {
	return s.Status != StatusPending && s.Status != ""
}

// Outcome decides WIN, LOSS or DRAW for an exit price
func (s *Signal) Outcome(exitPrice float64) string {
	switch {
	case exitPrice == s.EntryPrice:
		return StatusDraw
	case s.Direction == DirectionCall && exitPrice > s.EntryPrice:
		return StatusWin
	case s.Direction == DirectionPut && exitPrice < s.EntryPrice:
		return StatusWin
	default:
		return StatusLoss
	}
}

// SignalFilter narrows ListSignals
type SignalFilter struct {
	Pair   string
	Status string
	Since  time.Time
	Limit  int
	Offset int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f SignalFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

// PairStats summarises the signals of one pair
type PairStats struct {
	Pair           string  `json:"pair"`
	Total          int     `json:"total"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	Draws          int     `json:"draws"`
	Pending        int     `json:"pending"`
	WinRate        float64 `json:"win_rate"` // percent of decided (win/loss) signals
	AvgProbability float64 `json:"avg_probability"`
}

// SignalStats is the overall and per-pair performance
type SignalStats struct {
	Since   time.Time    `json:"since"`
	Overall PairStats    `json:"overall"`
	ByPair  []*PairStats `json:"by_pair"`
}
