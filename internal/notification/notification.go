package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"otc-signal-bot/internal/database"
	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/logging"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifySignal  NotificationType = "signal"
	NotifyOutcome NotificationType = "outcome"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string // plain text body
	Markdown  string // full Telegram Markdown message, built from Title/Message when empty
	Signal    *database.Signal
	Timestamp time.Time
	Extra     map[string]string
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(ctx context.Context, notification *Notification) error
	Name() string
	IsEnabled() bool
}

// ManagerOptions selects which events are forwarded
type ManagerOptions struct {
	NotifyOutcomes bool          `json:"notify_outcomes"`
	NotifyErrors   bool          `json:"notify_errors"`
	SendTimeout    time.Duration `json:"send_timeout"`
}

// DefaultManagerOptions forwards signals and outcomes
func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		NotifyOutcomes: true,
		NotifyErrors:   false,
		SendTimeout:    30 * time.Second,
	}
}

// Manager manages multiple notification providers
type Manager struct {
	mu        sync.RWMutex
	notifiers []Notifier
	enabled   bool
	opts      ManagerOptions
	logger    *logging.Logger
}

// NewManager creates a new notification manager
func NewManager(opts ManagerOptions) *Manager {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultManagerOptions().SendTimeout
	}
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   true,
		opts:      opts,
		logger:    logging.WithComponent("notification"),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

// SetEnabled pauses or resumes delivery
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Providers lists the names of enabled providers
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			names = append(names, n.Name())
		}
	}
	return names
}

// Send sends a notification to all enabled providers and returns the last error
func (m *Manager) Send(ctx context.Context, notification *Notification) error {
	m.mu.RLock()
	enabled := m.enabled
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	if !enabled {
		return nil
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}

	var lastErr error
	for _, n := range notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.Send(ctx, notification); err != nil {
			logging.NotificationContext(n.Name(), string(notification.Type)).Warn("notification failed", "error", err)
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}
	return lastErr
}

// SendSignal announces a new signal
func (m *Manager) SendSignal(ctx context.Context, s *database.Signal) error {
	if s == nil {
		return errors.New("nil signal")
	}
	return m.Send(ctx, &Notification{
		Type:     NotifySignal,
		Title:    SignalTitle(s),
		Message:  PlainSignal(s),
		Markdown: FormatSignal(s),
		Signal:   s,
		Extra:    signalData(s),
	})
}

// SendOutcome reports the result of an expired signal
func (m *Manager) SendOutcome(ctx context.Context, s *database.Signal) error {
	if s == nil {
		return errors.New("nil signal")
	}
	return m.Send(ctx, &Notification{
		Type:     NotifyOutcome,
		Title:    OutcomeTitle(s),
		Message:  PlainOutcome(s),
		Markdown: FormatOutcome(s),
		Signal:   s,
		Extra:    signalData(s),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(ctx context.Context, title, message string) error {
	return m.Send(ctx, &Notification{
		Type:    NotifyError,
		Title:   fmt.Sprintf("⚠️ %s", title),
		Message: message,
	})
}

// Subscribe forwards bus events to the providers
func (m *Manager) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventSignalGenerated, func(e events.Event) {
		s, ok := e.Signal()
		if !ok {
			return
		}
		m.deliver(func(ctx context.Context) error { return m.SendSignal(ctx, s) })
	})

	if m.opts.NotifyOutcomes {
		bus.Subscribe(events.EventSignalOutcome, func(e events.Event) {
			s, ok := e.Signal()
			if !ok {
				return
			}
			m.deliver(func(ctx context.Context) error { return m.SendOutcome(ctx, s) })
		})
	}

	if m.opts.NotifyErrors {
		bus.Subscribe(events.EventManagerError, func(e events.Event) {
			msg, _ := e.Data["message"].(string)
			if errText, ok := e.Data["error"].(string); ok {
				msg = fmt.Sprintf("%s: %s", msg, errText)
			}
			source, _ := e.Data["source"].(string)
			m.deliver(func(ctx context.Context) error { return m.SendError(ctx, source, msg) })
		})
	}
}

func (m *Manager) deliver(send func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		m.logger.Error("event notification failed", "error", err)
	}
}

func signalData(s *database.Signal) map[string]string {
	data := map[string]string{
		"signal_id":   s.ID,
		"pair":        s.Pair,
		"direction":   s.Direction,
		"entry_time":  s.EntryTime.UTC().Format(time.RFC3339),
		"duration":    fmt.Sprintf("%d", s.DurationMinutes),
		"probability": fmt.Sprintf("%.1f", s.Probability),
		"status":      s.Status,
	}
	if s.Grade != "" {
		data["grade"] = s.Grade
	}
	return data
}
