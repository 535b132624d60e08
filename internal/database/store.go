package database

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrLockOwner = errors.New("lock held by another owner")
)

// Store is the persistence used by the signal manager, the jobs and the API.
// Repository implements it on PostgreSQL and MemoryStore in process.
type Store interface {
	CreateSignal(ctx context.Context, s *Signal) error
	GetSignal(ctx context.Context, id string) (*Signal, error)
	LastSignal(ctx context.Context) (*Signal, error)
	ListSignals(ctx context.Context, f SignalFilter) ([]*Signal, error)
	PendingExpired(ctx context.Context, now time.Time) ([]*Signal, error)
	UpdateOutcome(ctx context.Context, id, status string, entryPrice, exitPrice float64, settledAt time.Time) error
	Stats(ctx context.Context, since time.Time) (*SignalStats, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)

	// AcquireLock takes the named lock for ttl. An expired lock may be taken
	// over and the current owner may extend its own lock.
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error

	HealthCheck(ctx context.Context) error
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)

// buildStats derives win rates and the overall row from per-pair counts
func buildStats(since time.Time, byPair []*PairStats) *SignalStats {
	stats := &SignalStats{Since: since, ByPair: byPair, Overall: PairStats{Pair: "ALL"}}
	sort.Slice(byPair, func(i, j int) bool { return byPair[i].Pair < byPair[j].Pair })

	probSum := 0.0
	for _, p := range byPair {
		p.WinRate = winRate(p.Wins, p.Losses)
		stats.Overall.Total += p.Total
		stats.Overall.Wins += p.Wins
		stats.Overall.Losses += p.Losses
		stats.Overall.Draws += p.Draws
		stats.Overall.Pending += p.Pending
		probSum += p.AvgProbability * float64(p.Total)
	}
	stats.Overall.WinRate = winRate(stats.Overall.Wins, stats.Overall.Losses)
	if stats.Overall.Total > 0 {
		stats.Overall.AvgProbability = probSum / float64(stats.Overall.Total)
	}
	return stats
}

func winRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses) * 100
}
