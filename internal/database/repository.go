package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods on PostgreSQL
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// SIGNALS
// ============================================================================

const signalColumns = `id, pair, direction, entry_time, duration_minutes, expiry_time, probability,
	quality_score, grade, entry_price, exit_price, status, is_otc, forced, reasons, created_at, settled_at`

// CreateSignal inserts a new signal
func (r *Repository) CreateSignal(ctx context.Context, s *Signal) error {
	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.Reasons == nil {
		s.Reasons = []string{}
	}
	reasons, err := json.Marshal(s.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	query := `
		INSERT INTO signals (id, pair, direction, entry_time, duration_minutes, expiry_time, probability,
			quality_score, grade, entry_price, status, is_otc, forced, reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		s.ID, s.Pair, s.Direction, s.EntryTime, s.DurationMinutes, s.ExpiryTime, s.Probability,
		s.QualityScore, s.Grade, s.EntryPrice, s.Status, s.IsOTC, s.Forced, reasons,
	).Scan(&s.CreatedAt)
}

// GetSignal retrieves a signal by ID
func (r *Repository) GetSignal(ctx context.Context, id string) (*Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`
	s, err := scanSignal(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// LastSignal retrieves the most recently created signal
func (r *Repository) LastSignal(ctx context.Context) (*Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals ORDER BY created_at DESC LIMIT 1`
	s, err := scanSignal(r.db.Pool.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSignals retrieves signals newest first
func (r *Repository) ListSignals(ctx context.Context, f SignalFilter) ([]*Signal, error) {
	var where []string
	var args []interface{}

	if f.Pair != "" {
		args = append(args, f.Pair)
		where = append(where, fmt.Sprintf("pair = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := `SELECT ` + signalColumns + ` FROM signals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit(), f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.querySignals(ctx, query, args...)
}

// PendingExpired retrieves pending signals whose expiry has passed
func (r *Repository) PendingExpired(ctx context.Context, now time.Time) ([]*Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE status = 'PENDING' AND expiry_time <= $1
		ORDER BY expiry_time`
	return r.querySignals(ctx, query, now)
}

// UpdateOutcome settles a pending signal, recording the prices at entry and expiry
func (r *Repository) UpdateOutcome(ctx context.Context, id, status string, entryPrice, exitPrice float64, settledAt time.Time) error {
	query := `
		UPDATE signals
		SET status = $2, entry_price = $3, exit_price = $4, settled_at = $5
		WHERE id = $1 AND status = 'PENDING'
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, status, entryPrice, exitPrice, settledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates signal performance since the given time
func (r *Repository) Stats(ctx context.Context, since time.Time) (*SignalStats, error) {
	query := `
		SELECT pair,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'WIN'),
			COUNT(*) FILTER (WHERE status = 'LOSS'),
			COUNT(*) FILTER (WHERE status = 'DRAW'),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COALESCE(AVG(probability), 0)
		FROM signals
		WHERE created_at >= $1
		GROUP BY pair
	`
	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var byPair []*PairStats
	for rows.Next() {
		p := &PairStats{}
		if err := rows.Scan(&p.Pair, &p.Total, &p.Wins, &p.Losses, &p.Draws, &p.Pending, &p.AvgProbability); err != nil {
			return nil, err
		}
		byPair = append(byPair, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildStats(since, byPair), nil
}

// DeleteBefore removes signals created before the cutoff
func (r *Repository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM signals WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) querySignals(ctx context.Context, query string, args ...interface{}) ([]*Signal, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

func scanSignal(row pgx.Row) (*Signal, error) {
	s := &Signal{}
	var reasons []byte
	err := row.Scan(
		&s.ID, &s.Pair, &s.Direction, &s.EntryTime, &s.DurationMinutes, &s.ExpiryTime, &s.Probability,
		&s.QualityScore, &s.Grade, &s.EntryPrice, &s.ExitPrice, &s.Status, &s.IsOTC, &s.Forced,
		&reasons, &s.CreatedAt, &s.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &s.Reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons of %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// ============================================================================
// LOCKS
// ============================================================================

// AcquireLock takes or extends the named lock row
func (r *Repository) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO signal_locks (name, owner, locked_until, acquired_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond', NOW())
		ON CONFLICT (name) DO UPDATE SET
			owner = EXCLUDED.owner,
			locked_until = EXCLUDED.locked_until,
			acquired_at = EXCLUDED.acquired_at
		WHERE signal_locks.locked_until < NOW() OR signal_locks.owner = EXCLUDED.owner
		RETURNING owner
	`
	var got string
	err := r.db.Pool.QueryRow(ctx, query, name, owner, ttl.Milliseconds()).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return got == owner, nil
}

// ReleaseLock drops the lock if owner still holds it
func (r *Repository) ReleaseLock(ctx context.Context, name, owner string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM signal_locks WHERE name = $1 AND owner = $2`, name, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLockOwner
	}
	return nil
}
