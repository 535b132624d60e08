package signals

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"otc-signal-bot/internal/circuit"
	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/logging"
)

var (
	ErrLockHeld       = errors.New("generation lock held by another instance")
	ErrNoCallback     = errors.New("no generation callback registered")
	ErrAlreadyRunning = errors.New("signal manager already running")
)

// DefaultLockName is the advisory lock row guarding generation
const DefaultLockName = "signal_generation"

// Request is passed to the generation callback
type Request struct {
	Force     bool             // the max interval elapsed without a signal
	SinceLast time.Duration    // time since the last persisted signal
	Last      *database.Signal // nil when no signal exists yet
}

// Callback produces one signal or ErrNoQualifyingSignal
type Callback func(ctx context.Context, req Request) (*database.Signal, error)

// ManagerConfig configures the generation loop
type ManagerConfig struct {
	PollInterval time.Duration                 `json:"poll_interval"`
	MinInterval  time.Duration                 `json:"min_interval"`
	MaxInterval  time.Duration                 `json:"max_interval"`
	LockTimeout  time.Duration                 `json:"lock_timeout"`
	LockName     string                        `json:"lock_name"`
	Breaker      *circuit.CircuitBreakerConfig `json:"breaker"`
	Now          func() time.Time              `json:"-"`
}

// DefaultManagerConfig returns the standard loop settings
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PollInterval: 10 * time.Second,
		MinInterval:  5 * time.Minute,
		MaxInterval:  15 * time.Minute,
		LockTimeout:  2 * time.Minute,
		LockName:     DefaultLockName,
		Breaker:      circuit.DefaultCircuitBreakerConfig(),
	}
}

// Status is a snapshot of the manager
type Status struct {
	Running      bool          `json:"running"`
	InstanceID   string        `json:"instance_id"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	NextDue      time.Time     `json:"next_due"`
	LastSignalID string        `json:"last_signal_id,omitempty"`
	LastSignalAt time.Time     `json:"last_signal_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Generated    int           `json:"generated"`
	Rejected     int           `json:"rejected"`
	Failures     int           `json:"failures"`
	LockSkips    int           `json:"lock_skips"`
	Breaker      circuit.Stats `json:"breaker"`
}

// SignalManager periodically invokes the registered callback and persists its
// signal. A lock row in the store keeps concurrent instances from generating
// at the same time.
type SignalManager struct {
	store      database.Store
	bus        *events.EventBus
	cfg        ManagerConfig
	instanceID string
	breaker    *circuit.CircuitBreaker
	logger     *logging.Logger

	mu        sync.RWMutex
	callback  Callback
	running   bool
	startedAt time.Time
	nextDue   time.Time
	status    Status
	stopChan  chan struct{}
	wg        sync.WaitGroup

	jitter func(max time.Duration) time.Duration
}

// NewSignalManager creates a manager. bus may be nil.
func NewSignalManager(store database.Store, bus *events.EventBus, cfg ManagerConfig) *SignalManager {
	d := DefaultManagerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = d.PollInterval
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = d.MinInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = d.LockTimeout
	}
	if cfg.LockName == "" {
		cfg.LockName = d.LockName
	}
	if cfg.Breaker == nil {
		cfg.Breaker = d.Breaker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	instanceID := uuid.NewString()
	m := &SignalManager{
		store:      store,
		bus:        bus,
		cfg:        cfg,
		instanceID: instanceID,
		breaker:    circuit.NewCircuitBreaker("signal_generation", cfg.Breaker),
		logger:     logging.WithComponent("signal_manager").WithField("instance_id", instanceID),
		jitter:     randomJitter,
	}
	m.breaker.SetClock(cfg.Now)
	m.breaker.OnTrip(func(reason string) {
		m.logger.Warn("generation circuit breaker tripped", "reason", reason)
	})
	m.breaker.OnReset(func() {
		m.logger.Info("generation circuit breaker recovered")
	})
	m.status.InstanceID = m.instanceID
	return m
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}

// InstanceID identifies this manager as lock owner
func (m *SignalManager) InstanceID() string {
	return m.instanceID
}

// RegisterCallback sets the function that produces signals
func (m *SignalManager) RegisterCallback(fn Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = fn
}

// Start begins the background polling loop
func (m *SignalManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.callback == nil {
		m.mu.Unlock()
		return ErrNoCallback
	}
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.startedAt = m.cfg.Now()
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info("signal manager started",
		"poll_interval", m.cfg.PollInterval.String(),
		"min_interval", m.cfg.MinInterval.String(),
		"max_interval", m.cfg.MaxInterval.String())
	if m.bus != nil {
		m.bus.PublishManagerState(true, m.instanceID)
	}
	return nil
}

// Stop gracefully shuts down the loop
func (m *SignalManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("signal manager stopped")
	if m.bus != nil {
		m.bus.PublishManagerState(false, m.instanceID)
	}
}

func (m *SignalManager) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ticker.C:
			m.poll(ctx)
		case <-m.stopChan:
			return
		case <-ctx.Done():
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		}
	}
}

func (m *SignalManager) poll(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, m.cfg.LockTimeout)
	defer cancel()

	_, err := m.Tick(tickCtx)
	switch {
	case err == nil, errors.Is(err, ErrNoQualifyingSignal):
	case errors.Is(err, ErrLockHeld):
		m.logger.Debug("generation lock held elsewhere")
	default:
		m.logger.Error("generation round failed", "error", err)
	}
}

// Tick runs one polling iteration. It returns the persisted signal, nil when
// nothing was due, or an error.
func (m *SignalManager) Tick(ctx context.Context) (*database.Signal, error) {
	now := m.cfg.Now()

	m.mu.RLock()
	callback := m.callback
	nextDue := m.nextDue
	startedAt := m.startedAt
	m.mu.RUnlock()

	if callback == nil {
		return nil, ErrNoCallback
	}
	if now.Before(nextDue) {
		return nil, nil
	}
	if ok, reason := m.breaker.Allow(); !ok {
		m.logger.Debug("generation paused", "reason", reason)
		return nil, nil
	}

	acquired, err := m.store.AcquireLock(ctx, m.cfg.LockName, m.instanceID, m.cfg.LockTimeout)
	if err != nil {
		m.fail(fmt.Errorf("failed to acquire lock: %w", err))
		return nil, err
	}
	if !acquired {
		m.mu.Lock()
		m.status.LockSkips++
		m.mu.Unlock()
		return nil, ErrLockHeld
	}
	defer m.release()

	req := Request{}
	last, err := m.store.LastSignal(ctx)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if startedAt.IsZero() {
			startedAt = now
		}
		req.SinceLast = now.Sub(startedAt)
	case err != nil:
		m.fail(fmt.Errorf("failed to read last signal: %w", err))
		return nil, err
	default:
		req.Last = last
		req.SinceLast = now.Sub(last.CreatedAt)
		if req.SinceLast < m.cfg.MinInterval {
			m.schedule(last.CreatedAt.Add(m.cfg.MinInterval))
			return nil, nil
		}
	}
	req.Force = req.SinceLast >= m.cfg.MaxInterval

	sig, err := callback(ctx, req)
	if errors.Is(err, ErrNoQualifyingSignal) {
		m.breaker.RecordSuccess()
		m.mu.Lock()
		m.status.Rejected++
		m.mu.Unlock()
		if m.bus != nil {
			m.bus.PublishSignalRejected(err.Error(), req.Force)
		}
		return nil, err
	}
	if err == nil && sig == nil {
		err = errors.New("callback returned no signal")
	}
	if err != nil {
		m.fail(err)
		return nil, err
	}

	sig.Forced = sig.Forced || req.Force
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = now
	}
	if err := m.store.CreateSignal(ctx, sig); err != nil {
		err = fmt.Errorf("failed to persist signal: %w", err)
		m.fail(err)
		return nil, err
	}

	m.breaker.RecordSuccess()
	m.schedule(now.Add(m.cfg.MinInterval + m.jitter((m.cfg.MaxInterval-m.cfg.MinInterval)/2)))

	m.mu.Lock()
	m.status.Generated++
	m.status.LastSignalID = sig.ID
	m.status.LastSignalAt = sig.CreatedAt
	m.status.LastError = ""
	m.mu.Unlock()

	logging.SignalContext(sig.Pair, sig.Direction, sig.Probability).Info("signal generated",
		"signal_id", sig.ID, "forced", sig.Forced, "since_last", req.SinceLast.String())
	if m.bus != nil {
		m.bus.PublishSignalGenerated(sig)
	}
	return sig, nil
}

func (m *SignalManager) schedule(t time.Time) {
	m.mu.Lock()
	m.nextDue = t
	m.mu.Unlock()
}

func (m *SignalManager) fail(err error) {
	m.breaker.RecordFailure(err)
	m.mu.Lock()
	m.status.Failures++
	m.status.LastError = err.Error()
	m.mu.Unlock()
	if m.bus != nil {
		m.bus.PublishError("signal_manager", "generation failed", err)
	}
}

// release uses its own context so a cancelled round still frees the lock
func (m *SignalManager) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.ReleaseLock(ctx, m.cfg.LockName, m.instanceID); err != nil {
		m.logger.Warn("failed to release generation lock", "error", err)
	}
}

// Status returns a snapshot of the manager
func (m *SignalManager) Status() Status {
	m.mu.RLock()
	s := m.status
	s.Running = m.running
	s.StartedAt = m.startedAt
	s.NextDue = m.nextDue
	m.mu.RUnlock()

	s.Breaker = m.breaker.GetStats()
	return s
}
