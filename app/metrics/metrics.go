package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wxpay"

// Metrics holds the gateway collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.SummaryVec
	transitions    *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	callbacks      *prometheus.CounterVec
	jobRuns        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Outbound gateway calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		gatewayLatency: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_ms",
			Help:      "Outbound gateway call latency in milliseconds.",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.005,
			},
		}, []string{"endpoint"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Applied state transitions by entity and new state.",
		}, []string{"entity", "state"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_alerts_total",
			Help:      "Conditions that need operator attention.",
		}, []string{"entity", "kind"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Inbound gateway notifications by kind and ack.",
		}, []string{"kind", "ack"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Reconciliation job runs by job and result.",
		}, []string{"job", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.gatewayCalls, m.gatewayLatency, m.transitions, m.alerts, m.callbacks, m.jobRuns)
	}
	return m
}

func (m *Metrics) ObserveGatewayCall(endpoint, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(endpoint, outcome).Inc()
	m.gatewayLatency.WithLabelValues(endpoint).Observe(float64(latency.Milliseconds()))
}

func (m *Metrics) StateTransition(entityType, state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entityType, state).Inc()
}

// Alert counts amount mismatches, failed reversals and failed fulfillments.
func (m *Metrics) Alert(entityType, kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(entityType, kind).Inc()
}

func (m *Metrics) Callback(kind, ack string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(kind, ack).Inc()
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}
