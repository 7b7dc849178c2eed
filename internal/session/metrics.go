package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors of the session service. A nil
// *Metrics records nothing.
type Metrics struct {
	turns       *prometheus.CounterVec
	turnLatency *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	active      prometheus.Gauge
	redactions  prometheus.Counter
	rounds      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specd",
			Name:      "turns_total",
			Help:      "User turns handled, labeled by the stage the turn started in and its outcome (ok, skipped, error).",
		}, []string{"stage", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "specd",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a user turn including model calls and handoffs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"stage"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "specd",
			Name:      "stage_transitions_total",
			Help:      "Stage changes, labeled by origin and destination stage.",
		}, []string{"from", "to"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "specd",
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		redactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "specd",
			Name:      "redacted_messages_total",
			Help:      "User messages that had credentials redacted before reaching the model.",
		}),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "specd",
			Name:      "negotiation_rounds",
			Help:      "Pushback rounds spent in scoping before the scope was locked.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.turnLatency, m.transitions, m.active, m.redactions, m.rounds)
	}
	return m
}

func (m *Metrics) observeTurn(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(stage, outcome).Inc()
	m.turnLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}

func (m *Metrics) observeRedaction() {
	if m == nil {
		return
	}
	m.redactions.Inc()
}

func (m *Metrics) observeNegotiation(rounds int) {
	if m == nil {
		return
	}
	m.rounds.Observe(float64(rounds))
}
