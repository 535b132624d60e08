package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/market"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// priceBook holds closes per pair and minute
type priceBook map[string]map[time.Time]float64

func (p priceBook) set(symbol string, at time.Time, px float64) {
	if p[symbol] == nil {
		p[symbol] = make(map[time.Time]float64)
	}
	p[symbol][at] = px
}

func (p priceBook) PriceAt(_ context.Context, symbol string, at time.Time) (float64, error) {
	if symbol == "BROKEN" {
		return 0, errors.New("feed offline")
	}
	v, ok := p[symbol][at]
	if !ok {
		return 0, fmt.Errorf("%w: %s at %s", market.ErrPriceNotClosed, symbol, at.Format(time.RFC3339))
	}
	return v, nil
}

// quote records the closes at entry (three minutes before expiry) and at expiry
func (p priceBook) quote(symbol string, expiry time.Time, entry, exit float64) {
	p.set(symbol, expiry.Add(-3*time.Minute), entry)
	p.set(symbol, expiry, exit)
}

func seed(t *testing.T, store *database.MemoryStore, id, pair, dir string, entry float64, expiry time.Time) {
	t.Helper()
	require.NoError(t, store.CreateSignal(context.Background(), &database.Signal{
		ID:              id,
		Pair:            pair,
		Direction:       dir,
		EntryTime:       expiry.Add(-3 * time.Minute),
		DurationMinutes: 3,
		ExpiryTime:      expiry,
		EntryPrice:      entry,
		Probability:     80,
		Status:          database.StatusPending,
		CreatedAt:       expiry.Add(-5 * time.Minute),
	}))
}

func TestOutcomeEvaluator(t *testing.T) {
	store := database.NewMemoryStore()
	bus := events.NewEventBus()
	var mu sync.Mutex
	var outcomes []*database.Signal
	bus.Subscribe(events.EventSignalOutcome, func(e events.Event) {
		s, _ := e.Signal()
		mu.Lock()
		outcomes = append(outcomes, s)
		mu.Unlock()
	})

	seed(t, store, "win", "EUR/USD", database.DirectionCall, 1.0800, now.Add(-time.Minute))
	seed(t, store, "loss", "GBP/USD", database.DirectionPut, 1.2700, now.Add(-2*time.Minute))
	seed(t, store, "draw", "USD/JPY", database.DirectionCall, 150.2, now)
	seed(t, store, "later", "EUR/USD", database.DirectionCall, 1.0800, now.Add(time.Minute))
	seed(t, store, "unpriced", "AUD/USD", database.DirectionCall, 0.66, now.Add(-time.Minute))

	prices := priceBook{}
	prices.quote("EUR/USD", now.Add(-time.Minute), 1.0800, 1.0812)
	prices.quote("GBP/USD", now.Add(-2*time.Minute), 1.2700, 1.2710)
	prices.quote("USD/JPY", now, 150.2, 150.2)
	e := NewOutcomeEvaluator(store, prices, bus)
	e.now = func() time.Time { return now }

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	bus.Wait()

	assert.Equal(t, 4, res.Checked)
	assert.Equal(t, 3, res.Settled)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 1, res.Losses)
	assert.Equal(t, 1, res.Draws)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, outcomes, 3)

	ctx := context.Background()
	win, err := store.GetSignal(ctx, "win")
	require.NoError(t, err)
	assert.Equal(t, database.StatusWin, win.Status)
	require.NotNil(t, win.ExitPrice)
	assert.Equal(t, 1.0812, *win.ExitPrice)
	assert.Equal(t, 1.0800, win.EntryPrice)
	require.NotNil(t, win.SettledAt)
	assert.True(t, win.SettledAt.Equal(now))

	later, _ := store.GetSignal(ctx, "later")
	assert.Equal(t, database.StatusPending, later.Status)
	unpriced, _ := store.GetSignal(ctx, "unpriced")
	assert.Equal(t, database.StatusPending, unpriced.Status)

	// A second pass finds only the unpriced signal
	res, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Checked)
	assert.Zero(t, res.Settled)
}

func TestOutcomeEvaluatorSettlesFromEntryMinute(t *testing.T) {
	store := database.NewMemoryStore()
	expiry := now.Add(-time.Minute)
	// quoted at 1.0800 when built, but the market moved before the entry minute
	seed(t, store, "moved", "EUR/USD", database.DirectionCall, 1.0800, expiry)

	prices := priceBook{}
	prices.quote("EUR/USD", expiry, 1.0820, 1.0812)
	e := NewOutcomeEvaluator(store, prices, nil)
	e.now = func() time.Time { return now }

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Losses)

	s, err := store.GetSignal(context.Background(), "moved")
	require.NoError(t, err)
	assert.Equal(t, database.StatusLoss, s.Status)
	assert.Equal(t, 1.0820, s.EntryPrice)
	require.NotNil(t, s.ExitPrice)
	assert.Equal(t, 1.0812, *s.ExitPrice)
}

func TestOutcomeEvaluatorWaitsForEntryPrice(t *testing.T) {
	store := database.NewMemoryStore()
	expiry := now.Add(-time.Minute)
	seed(t, store, "gap", "EUR/USD", database.DirectionPut, 1.0800, expiry)

	prices := priceBook{}
	prices.set("EUR/USD", expiry, 1.0790)
	e := NewOutcomeEvaluator(store, prices, nil)
	e.now = func() time.Time { return now }

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	s, _ := store.GetSignal(context.Background(), "gap")
	assert.Equal(t, database.StatusPending, s.Status)
}

func TestOutcomeEvaluatorPriceError(t *testing.T) {
	store := database.NewMemoryStore()
	seed(t, store, "x", "BROKEN", database.DirectionCall, 1, now.Add(-time.Minute))

	e := NewOutcomeEvaluator(store, priceBook{}, nil)
	e.now = func() time.Time { return now }

	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed offline")
}

func TestRetentionJob(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateSignal(ctx, &database.Signal{ID: "old", Pair: "EUR/USD", Direction: "CALL", CreatedAt: now.AddDate(0, 0, -31)}))
	require.NoError(t, store.CreateSignal(ctx, &database.Signal{ID: "new", Pair: "EUR/USD", Direction: "CALL", CreatedAt: now.AddDate(0, 0, -1)}))

	r := NewRetentionJob(store, 30)
	r.now = func() time.Time { return now }
	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.GetSignal(ctx, "old")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = store.GetSignal(ctx, "new")
	assert.NoError(t, err)

	n, err = NewRetentionJob(store, 0).Run(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSchedulerRunNowAndStatus(t *testing.T) {
	bus := events.NewEventBus()
	var errorsSeen sync.WaitGroup
	errorsSeen.Add(1)
	bus.Subscribe(events.EventManagerError, func(events.Event) { errorsSeen.Done() })

	s := NewScheduler(bus)
	calls := 0
	require.NoError(t, s.Add(Job{Name: "count", Schedule: "@every 1h", Run: func(context.Context) error {
		calls++
		return nil
	}}))
	require.NoError(t, s.Add(Job{Name: "fail", Run: func(context.Context) error {
		return errors.New("nope")
	}}))

	assert.Error(t, s.Add(Job{Name: "count", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(Job{Name: "bad", Schedule: "not a schedule", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(Job{Name: "norun"}))

	require.NoError(t, s.RunNow("count"))
	assert.Error(t, s.RunNow("fail"))
	assert.Error(t, s.RunNow("missing"))
	errorsSeen.Wait()

	s.Start()
	status := s.Status()
	s.Stop()

	require.Len(t, status, 2)
	assert.Equal(t, "count", status[0].Name)
	assert.Equal(t, 1, status[0].Runs)
	assert.False(t, status[0].NextRun.IsZero())
	assert.Equal(t, "fail", status[1].Name)
	assert.Equal(t, 1, status[1].Failures)
	assert.Equal(t, "nope", status[1].LastError)
	assert.Equal(t, 1, calls)
}

func TestAddStandardJobs(t *testing.T) {
	store := database.NewMemoryStore()
	s := NewScheduler(nil)
	pruned := 0

	err := s.AddStandardJobs(DefaultSchedules(),
		NewOutcomeEvaluator(store, priceBook{}, nil),
		NewRetentionJob(store, 30),
		func() int { pruned++; return 2 })
	require.NoError(t, err)

	names := []string{}
	for _, st := range s.Status() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{JobOutcomes, JobPrune, JobRetention}, names)

	require.NoError(t, s.RunNow(JobPrune))
	require.NoError(t, s.RunNow(JobOutcomes))
	require.NoError(t, s.RunNow(JobRetention))
	assert.Equal(t, 1, pruned)

	assert.Error(t, NewScheduler(nil).AddStandardJobs(Schedules{Outcome: "bogus"}, NewOutcomeEvaluator(store, priceBook{}, nil), nil, nil))
}
