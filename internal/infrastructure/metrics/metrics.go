// Package metrics holds the Prometheus collectors for the ledger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Callbacks       *prometheus.CounterVec
	GatewayRequests *prometheus.CounterVec
	GatewayLatency  *prometheus.HistogramVec
	LoanTransitions *prometheus.CounterVec
	TokenCache      *prometheus.CounterVec
}

// New registers every collector on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Callbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_callbacks_total",
			Help: "Inbound payment callbacks by reconciliation outcome.",
		}, []string{"outcome"}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_gateway_requests_total",
			Help: "Outbound provider calls by operation and result.",
		}, []string{"op", "result"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chama_gateway_request_duration_seconds",
			Help:    "Outbound provider call latency.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"op"}),
		LoanTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_loan_transitions_total",
			Help: "Loan state changes by target status.",
		}, []string{"to"}),
		TokenCache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_token_cache_total",
			Help: "Provider access-token lookups by cache result.",
		}, []string{"result"}),
	}
}

// Nop returns collectors bound to a private registry, for wiring that does
// not expose /metrics.
func Nop() *Metrics { return New(prometheus.NewRegistry()) }

func (m *Metrics) ObserveGateway(op string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayRequests.WithLabelValues(op, result).Inc()
	m.GatewayLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Transition(to string) { m.LoanTransitions.WithLabelValues(to).Inc() }

func (m *Metrics) Callback(outcome string) { m.Callbacks.WithLabelValues(outcome).Inc() }

func (m *Metrics) TokenLookup(result string) { m.TokenCache.WithLabelValues(result).Inc() }
