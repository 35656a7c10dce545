package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics exposes payment processing counters.
type Metrics struct {
	TransactionsTotal     *prometheus.CounterVec
	CallbacksRejected     *prometheus.CounterVec
	GatewayCallDuration   *prometheus.HistogramVec
	ProfileMutationsTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		TransactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pay",
			Name:      "transactions_total",
			Help:      "Gateway transactions applied, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CallbacksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pay",
			Name:      "callbacks_rejected_total",
			Help:      "Callbacks rejected before application, by provider and reason.",
		}, []string{"provider", "reason"}),
		GatewayCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pay",
			Name:      "gateway_call_duration_seconds",
			Help:      "Outbound gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		ProfileMutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pay",
			Name:      "profile_mutations_total",
			Help:      "Payment profile create/update/delete operations.",
		}, []string{"provider", "operation", "result"}),
	}
}

func (m *Metrics) RecordTransaction(provider, outcome string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RecordRejectedCallback(provider, reason string) {
	if m == nil {
		return
	}
	m.CallbacksRejected.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) RecordProfileMutation(provider, operation, result string) {
	if m == nil {
		return
	}
	m.ProfileMutationsTotal.WithLabelValues(provider, operation, result).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
