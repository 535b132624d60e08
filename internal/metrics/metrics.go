package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"otc-signal-bot/internal/events"
)

const namespace = "otc"

// Metrics holds the service collectors
type Metrics struct {
	SignalsGenerated *prometheus.CounterVec
	SignalsRejected  *prometheus.CounterVec
	SignalOutcomes   *prometheus.CounterVec
	Probability      prometheus.Histogram
	ManagerErrors    *prometheus.CounterVec
	ManagerRunning   prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
// A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		SignalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "signals_generated_total", Help: "Signals persisted"},
			[]string{"pair", "direction", "forced"},
		),
		SignalsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "signals_rejected_total", Help: "Generation rounds without a qualifying signal"},
			[]string{"forced"},
		),
		SignalOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "signal_outcomes_total", Help: "Settled signals by result"},
			[]string{"pair", "status"},
		),
		Probability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_probability",
			Help:      "Probability of generated signals",
			Buckets:   []float64{55, 60, 65, 70, 75, 80, 85, 90, 95},
		}),
		ManagerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "manager_errors_total", Help: "Errors reported by background components"},
			[]string{"source"},
		),
		ManagerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "manager_running", Help: "1 while the signal manager loop runs",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "API requests"},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SignalsGenerated, m.SignalsRejected, m.SignalOutcomes, m.Probability,
		m.ManagerErrors, m.ManagerRunning, m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

// Subscribe feeds the collectors from bus events
func (m *Metrics) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(m.Observe)
}

// Observe records one event
func (m *Metrics) Observe(e events.Event) {
	switch e.Type {
	case events.EventSignalGenerated:
		if s, ok := e.Signal(); ok {
			m.SignalsGenerated.WithLabelValues(s.Pair, s.Direction, strconv.FormatBool(s.Forced)).Inc()
			m.Probability.Observe(s.Probability)
		}
	case events.EventSignalRejected:
		forced, _ := e.Data["forced"].(bool)
		m.SignalsRejected.WithLabelValues(strconv.FormatBool(forced)).Inc()
	case events.EventSignalOutcome:
		if s, ok := e.Signal(); ok {
			m.SignalOutcomes.WithLabelValues(s.Pair, s.Status).Inc()
		}
	case events.EventManagerError:
		source, _ := e.Data["source"].(string)
		m.ManagerErrors.WithLabelValues(source).Inc()
	case events.EventManagerStarted:
		m.ManagerRunning.Set(1)
	case events.EventManagerStopped:
		m.ManagerRunning.Set(0)
	}
}

// ObserveRequest records an API request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
