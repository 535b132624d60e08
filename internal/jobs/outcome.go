package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/logging"
	"otc-signal-bot/internal/market"
)

// PriceSource returns the settlement price of a pair
type PriceSource interface {
	PriceAt(ctx context.Context, symbol string, t time.Time) (float64, error)
}

// OutcomeResult summarises one evaluation pass
type OutcomeResult struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Wins    int `json:"wins"`
	Losses  int `json:"losses"`
	Draws   int `json:"draws"`
	Skipped int `json:"skipped"`
}

// OutcomeEvaluator settles expired PENDING signals by comparing the price at
// entry with the price at expiry
type OutcomeEvaluator struct {
	store  database.Store
	prices PriceSource
	bus    *events.EventBus
	now    func() time.Time
	logger *logging.Logger
}

// NewOutcomeEvaluator creates an evaluator. bus may be nil.
func NewOutcomeEvaluator(store database.Store, prices PriceSource, bus *events.EventBus) *OutcomeEvaluator {
	return &OutcomeEvaluator{
		store:  store,
		prices: prices,
		bus:    bus,
		now:    time.Now,
		logger: logging.WithComponent("outcome_job"),
	}
}

// Run settles every expired pending signal
func (e *OutcomeEvaluator) Run(ctx context.Context) (*OutcomeResult, error) {
	now := e.now()
	pending, err := e.store.PendingExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load expired signals: %w", err)
	}

	res := &OutcomeResult{Checked: len(pending)}
	for _, s := range pending {
		entry, exit, err := e.settlementPrices(ctx, s)
		if err != nil {
			if errors.Is(err, market.ErrPriceNotClosed) || errors.Is(err, market.ErrUnknownSymbol) {
				res.Skipped++
				e.logger.Debug("settlement price unavailable", "signal_id", s.ID, "pair", s.Pair, "error", err)
				continue
			}
			return res, fmt.Errorf("failed to price %s: %w", s.Pair, err)
		}

		// the quote taken when the signal was built predates the entry minute
		s.EntryPrice = entry
		status := s.Outcome(exit)
		if err := e.store.UpdateOutcome(ctx, s.ID, status, entry, exit, now); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				// settled concurrently by another instance
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("failed to settle signal %s: %w", s.ID, err)
		}

		s.Status = status
		s.ExitPrice = &exit
		settledAt := now
		s.SettledAt = &settledAt

		res.Settled++
		switch status {
		case database.StatusWin:
			res.Wins++
		case database.StatusLoss:
			res.Losses++
		default:
			res.Draws++
		}

		logging.SignalContext(s.Pair, s.Direction, s.Probability).Info("signal settled",
			"signal_id", s.ID, "status", status, "entry_price", s.EntryPrice, "exit_price", exit)
		if e.bus != nil {
			e.bus.PublishSignalOutcome(s)
		}
	}
	return res, nil
}

// settlementPrices returns the prices at entry and at expiry
func (e *OutcomeEvaluator) settlementPrices(ctx context.Context, s *database.Signal) (float64, float64, error) {
	entry, err := e.prices.PriceAt(ctx, s.Pair, s.EntryTime)
	if err != nil {
		return 0, 0, err
	}
	exit, err := e.prices.PriceAt(ctx, s.Pair, s.ExpiryTime)
	if err != nil {
		return 0, 0, err
	}
	return entry, exit, nil
}

// RetentionJob deletes signals older than the retention window
type RetentionJob struct {
	store  database.Store
	days   int
	now    func() time.Time
	logger *logging.Logger
}

// NewRetentionJob creates the cleanup job. days <= 0 disables deletion.
func NewRetentionJob(store database.Store, days int) *RetentionJob {
	return &RetentionJob{
		store:  store,
		days:   days,
		now:    time.Now,
		logger: logging.WithComponent("retention_job"),
	}
}

// Run deletes expired history and returns the number of rows removed
func (r *RetentionJob) Run(ctx context.Context) (int64, error) {
	if r.days <= 0 {
		return 0, nil
	}
	cutoff := r.now().AddDate(0, 0, -r.days)
	n, err := r.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete signals before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		r.logger.Info("old signals deleted", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
