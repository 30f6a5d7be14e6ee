// Package prometheus exports engine events as Prometheus metrics.
package prometheus

import (
	"net/http"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "afkguard"

// Collector listens on a hook bus and never cancels an event.
type Collector struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	warnings    *prometheus.CounterVec
	patterns    *prometheus.CounterVec
	credits     *prometheus.CounterVec
	sessions    prometheus.Counter
	afkSeconds  prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "AFK state transitions by target state and reason.",
		}, []string{"to", "reason"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Warnings sent to sessions by stage.",
		}, []string{"stage"}),
		patterns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pattern_detections_total",
			Help:      "Suspicious movement verdicts by pattern type.",
		}, []string{"pattern"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_minutes_total",
			Help:      "Credit minutes earned or consumed.",
		}, []string{"kind"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions that quit.",
		}),
		afkSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_afk_seconds",
			Help:      "Time spent AFK per ended session.",
			Buckets:   []float64{0, 60, 300, 900, 1800, 3600, 7200},
		}),
	}
	c.registry.MustRegister(c.transitions, c.warnings, c.patterns, c.credits, c.sessions, c.afkSeconds)
	return c
}

func (c *Collector) Attach(bus *hooks.Bus) {
	bus.StateChange.Subscribe(func(e *hooks.StateChange) hooks.Decision {
		c.transitions.WithLabelValues(e.To.String(), string(e.Reason)).Inc()
		return hooks.Proceed
	})
	bus.Warning.Subscribe(func(e *hooks.Warning) hooks.Decision {
		c.warnings.WithLabelValues(string(e.Stage)).Inc()
		return hooks.Proceed
	})
	bus.Pattern.Subscribe(func(e *hooks.PatternDetected) hooks.Decision {
		for _, p := range e.Patterns {
			c.patterns.WithLabelValues(string(p)).Inc()
		}
		return hooks.Proceed
	})
	bus.Credit.Subscribe(func(e *hooks.CreditChange) hooks.Decision {
		if e.Amount > 0 {
			c.credits.WithLabelValues(string(e.Kind)).Add(float64(e.Amount))
		}
		return hooks.Proceed
	})
	bus.SessionEnd.Subscribe(func(e *domain.SessionSummary) hooks.Decision {
		c.sessions.Inc()
		c.afkSeconds.Observe(e.AFKTotal.Seconds())
		return hooks.Proceed
	})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
