package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newSignal(id, pair, direction string, created time.Time) *Signal {
	entry := created.Truncate(time.Minute).Add(2 * time.Minute)
	return &Signal{
		ID:              id,
		Pair:            pair,
		Direction:       direction,
		EntryTime:       entry,
		DurationMinutes: 3,
		ExpiryTime:      entry.Add(3 * time.Minute),
		Probability:     80,
		QualityScore:    75,
		Grade:           "B+",
		EntryPrice:      1.1,
		Reasons:         []string{"fast EMA above slow EMA"},
		CreatedAt:       created,
	}
}

func TestSignalOutcome(t *testing.T) {
	call := &Signal{Direction: DirectionCall, EntryPrice: 1.2}
	assert.Equal(t, StatusWin, call.Outcome(1.21))
	assert.Equal(t, StatusLoss, call.Outcome(1.19))
	assert.Equal(t, StatusDraw, call.Outcome(1.2))

	put := &Signal{Direction: DirectionPut, EntryPrice: 1.2}
	assert.Equal(t, StatusWin, put.Outcome(1.19))
	assert.Equal(t, StatusLoss, put.Outcome(1.21))

	assert.False(t, put.IsSettled())
	put.Status = StatusPending
	assert.False(t, put.IsSettled())
	put.Status = StatusWin
	assert.True(t, put.IsSettled())
}

func TestMemoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	s := newSignal("a", "EURUSD", DirectionCall, base)
	require.NoError(t, m.CreateSignal(ctx, s))
	assert.Equal(t, StatusPending, s.Status)

	got, err := m.GetSignal(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", got.Pair)
	assert.Equal(t, []string{"fast EMA above slow EMA"}, got.Reasons)

	// Returned values are copies
	got.Reasons[0] = "changed"
	again, _ := m.GetSignal(ctx, "a")
	assert.Equal(t, "fast EMA above slow EMA", again.Reasons[0])

	_, err = m.GetSignal(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLastSignal(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.LastSignal(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.CreateSignal(ctx, newSignal("a", "EURUSD", DirectionCall, base)))
	require.NoError(t, m.CreateSignal(ctx, newSignal("b", "GBPUSD", DirectionPut, base.Add(5*time.Minute))))
	require.NoError(t, m.CreateSignal(ctx, newSignal("c", "USDJPY", DirectionPut, base.Add(2*time.Minute))))

	last, err := m.LastSignal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", last.ID)
}

func TestMemoryListSignals(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for i := 0; i < 6; i++ {
		pair := "EURUSD"
		if i%2 == 1 {
			pair = "GBPUSD-OTC"
		}
		s := newSignal(fmt.Sprintf("s%d", i), pair, DirectionCall, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, m.CreateSignal(ctx, s))
	}

	all, err := m.ListSignals(ctx, SignalFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, "s5", all[0].ID)
	assert.Equal(t, "s0", all[5].ID)

	otc, err := m.ListSignals(ctx, SignalFilter{Pair: "GBPUSD-OTC"})
	require.NoError(t, err)
	assert.Len(t, otc, 3)

	page, err := m.ListSignals(ctx, SignalFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "s4", page[0].ID)
	assert.Equal(t, "s3", page[1].ID)

	recent, err := m.ListSignals(ctx, SignalFilter{Since: base.Add(4 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	require.NoError(t, m.UpdateOutcome(ctx, "s0", StatusWin, 1.1, 1.2, base.Add(time.Hour)))
	won, err := m.ListSignals(ctx, SignalFilter{Status: StatusWin})
	require.NoError(t, err)
	require.Len(t, won, 1)
	assert.Equal(t, "s0", won[0].ID)
}

func TestMemoryPendingExpiredAndOutcome(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	early := newSignal("early", "EURUSD", DirectionCall, base)
	late := newSignal("late", "EURUSD", DirectionPut, base.Add(10*time.Minute))
	require.NoError(t, m.CreateSignal(ctx, early))
	require.NoError(t, m.CreateSignal(ctx, late))

	due, err := m.PendingExpired(ctx, early.ExpiryTime)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "early", due[0].ID)

	settled := early.ExpiryTime.Add(time.Second)
	require.NoError(t, m.UpdateOutcome(ctx, "early", StatusLoss, 1.1, 1.05, settled))

	got, _ := m.GetSignal(ctx, "early")
	assert.Equal(t, StatusLoss, got.Status)
	assert.Equal(t, 1.1, got.EntryPrice)
	require.NotNil(t, got.ExitPrice)
	assert.Equal(t, 1.05, *got.ExitPrice)
	require.NotNil(t, got.SettledAt)
	assert.True(t, got.SettledAt.Equal(settled))

	// Already settled signals are not settled twice
	assert.ErrorIs(t, m.UpdateOutcome(ctx, "early", StatusWin, 1.1, 1.2, settled), ErrNotFound)

	due, err = m.PendingExpired(ctx, late.ExpiryTime.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "late", due[0].ID)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	add := func(id, pair, status string, prob float64) {
		s := newSignal(id, pair, DirectionCall, base)
		s.Probability = prob
		require.NoError(t, m.CreateSignal(ctx, s))
		if status != StatusPending {
			require.NoError(t, m.UpdateOutcome(ctx, id, status, 1.1, 1.1, base))
		}
	}
	add("1", "EURUSD", StatusWin, 80)
	add("2", "EURUSD", StatusWin, 70)
	add("3", "EURUSD", StatusLoss, 90)
	add("4", "GBPUSD", StatusDraw, 60)
	add("5", "GBPUSD", StatusPending, 60)

	stats, err := m.Stats(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, stats.ByPair, 2)

	eur := stats.ByPair[0]
	assert.Equal(t, "EURUSD", eur.Pair)
	assert.Equal(t, 3, eur.Total)
	assert.Equal(t, 2, eur.Wins)
	assert.Equal(t, 1, eur.Losses)
	assert.InDelta(t, 66.666, eur.WinRate, 0.01)
	assert.InDelta(t, 80, eur.AvgProbability, 1e-9)

	gbp := stats.ByPair[1]
	assert.Equal(t, 1, gbp.Draws)
	assert.Equal(t, 1, gbp.Pending)
	assert.Zero(t, gbp.WinRate)

	assert.Equal(t, 5, stats.Overall.Total)
	assert.Equal(t, 2, stats.Overall.Wins)
	assert.InDelta(t, 66.666, stats.Overall.WinRate, 0.01)
	assert.InDelta(t, 72, stats.Overall.AvgProbability, 1e-9)

	none, err := m.Stats(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, none.Overall.Total)
	assert.Empty(t, none.ByPair)
}

func TestMemoryDeleteBefore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.CreateSignal(ctx, newSignal("old", "EURUSD", DirectionCall, base.AddDate(0, 0, -40))))
	require.NoError(t, m.CreateSignal(ctx, newSignal("new", "EURUSD", DirectionCall, base)))

	n, err := m.DeleteBefore(ctx, base.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.GetSignal(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetSignal(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := base
	m.SetClock(func() time.Time { return now })

	ok, err := m.AcquireLock(ctx, "signal_generation", "a", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.AcquireLock(ctx, "signal_generation", "b", 2*time.Minute)
	assert.False(t, ok, "held lock must not be taken")

	ok, _ = m.AcquireLock(ctx, "signal_generation", "a", 2*time.Minute)
	assert.True(t, ok, "owner may extend its lock")

	assert.ErrorIs(t, m.ReleaseLock(ctx, "signal_generation", "b"), ErrLockOwner)

	now = now.Add(2*time.Minute + time.Second)
	ok, _ = m.AcquireLock(ctx, "signal_generation", "b", 2*time.Minute)
	assert.True(t, ok, "expired lock may be taken over")

	assert.ErrorIs(t, m.ReleaseLock(ctx, "signal_generation", "a"), ErrLockOwner)
	require.NoError(t, m.ReleaseLock(ctx, "signal_generation", "b"))

	ok, _ = m.AcquireLock(ctx, "signal_generation", "a", 2*time.Minute)
	assert.True(t, ok)
}

func TestSignalFilterLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, SignalFilter{}.limit())
	assert.Equal(t, maxListLimit, SignalFilter{Limit: 10000}.limit())
	assert.Equal(t, 7, SignalFilter{Limit: 7}.limit())
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "bot", Password: "pw", Database: "signals"}
	assert.Equal(t, "host=db port=5432 user=bot password=pw dbname=signals sslmode=disable", cfg.DSN())
}
