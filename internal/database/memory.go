package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryLock struct {
	owner       string
	lockedUntil time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and tests
type MemoryStore struct {
	mu      sync.RWMutex
	signals map[string]*Signal
	locks   map[string]memoryLock
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals: make(map[string]*Signal),
		locks:   make(map[string]memoryLock),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for lock expiry and creation times
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func copySignal(s *Signal) *Signal {
	c := *s
	c.Reasons = append([]string(nil), s.Reasons...)
	if s.ExitPrice != nil {
		v := *s.ExitPrice
		c.ExitPrice = &v
	}
	if s.SettledAt != nil {
		v := *s.SettledAt
		c.SettledAt = &v
	}
	return &c
}

// CreateSignal stores a copy of s
func (m *MemoryStore) CreateSignal(_ context.Context, s *Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	m.signals[s.ID] = copySignal(s)
	return nil
}

// GetSignal returns the signal with the given ID
func (m *MemoryStore) GetSignal(_ context.Context, id string) (*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.signals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySignal(s), nil
}

// sorted returns all signals newest first. Caller holds the lock.
func (m *MemoryStore) sorted() []*Signal {
	out := make([]*Signal, 0, len(m.signals))
	for _, s := range m.signals {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// LastSignal returns the most recently created signal
func (m *MemoryStore) LastSignal(_ context.Context) (*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sorted()
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return copySignal(all[0]), nil
}

// ListSignals returns signals newest first
func (m *MemoryStore) ListSignals(_ context.Context, f SignalFilter) ([]*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Signal
	skipped := 0
	for _, s := range m.sorted() {
		if f.Pair != "" && s.Pair != f.Pair {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if !f.Since.IsZero() && s.CreatedAt.Before(f.Since) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, copySignal(s))
		if len(out) == f.limit() {
			break
		}
	}
	return out, nil
}

// PendingExpired returns pending signals whose expiry has passed, oldest expiry first
func (m *MemoryStore) PendingExpired(_ context.Context, now time.Time) ([]*Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Signal
	for _, s := range m.signals {
		if s.Status == StatusPending && !s.ExpiryTime.After(now) {
			out = append(out, copySignal(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryTime.Before(out[j].ExpiryTime) })
	return out, nil
}

// UpdateOutcome settles a pending signal
func (m *MemoryStore) UpdateOutcome(_ context.Context, id, status string, entryPrice, exitPrice float64, settledAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.signals[id]
	if !ok || s.Status != StatusPending {
		return ErrNotFound
	}
	s.Status = status
	s.EntryPrice = entryPrice
	s.ExitPrice = &exitPrice
	s.SettledAt = &settledAt
	return nil
}

// Stats aggregates signal performance since the given time
func (m *MemoryStore) Stats(_ context.Context, since time.Time) (*SignalStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pairs := make(map[string]*PairStats)
	probs := make(map[string]float64)
	for _, s := range m.signals {
		if s.CreatedAt.Before(since) {
			continue
		}
		p, ok := pairs[s.Pair]
		if !ok {
			p = &PairStats{Pair: s.Pair}
			pairs[s.Pair] = p
		}
		p.Total++
		probs[s.Pair] += s.Probability
		switch s.Status {
		case StatusWin:
			p.Wins++
		case StatusLoss:
			p.Losses++
		case StatusDraw:
			p.Draws++
		default:
			p.Pending++
		}
	}

	byPair := make([]*PairStats, 0, len(pairs))
	for pair, p := range pairs {
		p.AvgProbability = probs[pair] / float64(p.Total)
		byPair = append(byPair, p)
	}
	return buildStats(since, byPair), nil
}

// DeleteBefore removes signals created before the cutoff
func (m *MemoryStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.signals {
		if s.CreatedAt.Before(before) {
			delete(m.signals, id)
			n++
		}
	}
	return n, nil
}

// AcquireLock takes or extends the named lock
func (m *MemoryStore) AcquireLock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.locks[name]; ok && l.owner != owner && now.Before(l.lockedUntil) {
		return false, nil
	}
	m.locks[name] = memoryLock{owner: owner, lockedUntil: now.Add(ttl)}
	return true, nil
}

// ReleaseLock drops the lock if owner still holds it
func (m *MemoryStore) ReleaseLock(_ context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[name]
	if !ok || l.owner != owner {
		return ErrLockOwner
	}
	delete(m.locks, name)
	return nil
}

// HealthCheck always succeeds
func (m *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}
