package engine_v1

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rxtech-lab/argo-signal-bridge/internal/trading/engine"
	"github.com/rxtech-lab/argo-signal-bridge/pkg/errors"
)

const metricsNamespace = "signal_bridge"

// Metrics are the Prometheus collectors updated by the engine:
//
//	signal_bridge_signals_total{signal}          signals taken off the queue
//	signal_bridge_decisions_total{outcome}       reconciliation outcomes
//	signal_bridge_orders_total{role,side}        accepted order legs
//	signal_bridge_cancellations_total            stale protective orders cancelled
//	signal_bridge_failures_total{code}           errors by error code name
//	signal_bridge_ledger_contracts               committed ledger value
//	signal_bridge_broker_contracts               last broker position seen
//	signal_bridge_queue_depth                    queued requests
//	signal_bridge_reconcile_duration_seconds     time per reconciliation
type Metrics struct {
	signals       *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	orders        *prometheus.CounterVec
	cancellations prometheus.Counter
	failures      *prometheus.CounterVec
	ledger        prometheus.Gauge
	broker        prometheus.Gauge
	queueDepth    prometheus.Gauge
	duration      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "signals_total",
			Help:      "Signals taken off the queue, by parsed signal.",
		}, []string{"signal"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decisions_total",
			Help:      "Reconciliation outcomes.",
		}, []string{"outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_total",
			Help:      "Order legs accepted by the broker.",
		}, []string{"role", "side"}),
		cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cancellations_total",
			Help:      "Stale protective orders cancelled after exits.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "failures_total",
			Help:      "Reconciliations that ended with an error, by error code.",
		}, []string{"code"}),
		ledger: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_contracts",
			Help:      "Committed ledger value (signed contracts).",
		}),
		broker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "broker_contracts",
			Help:      "Most recent broker position seen (signed contracts).",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_depth",
			Help:      "Requests waiting for the engine worker.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time from dequeue to result.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.signals, m.decisions, m.orders, m.cancellations, m.failures,
			m.ledger, m.broker, m.queueDepth, m.duration)
	}

	return m
}

// Observe records one result.
func (m *Metrics) Observe(result engine.Result, elapsed time.Duration) {
	m.signals.WithLabelValues(string(result.Signal)).Inc()

	if result.Outcome != "" {
		m.decisions.WithLabelValues(string(result.Outcome)).Inc()
	}

	for _, submitted := range result.Report.Submitted {
		m.orders.WithLabelValues(string(submitted.Order.Role), string(submitted.Order.Side)).Inc()
	}

	m.cancellations.Add(float64(len(result.Report.Cancelled)))

	if result.Err != nil {
		m.failures.WithLabelValues(errors.GetCode(result.Err).String()).Inc()
	}

	m.ledger.Set(float64(result.LedgerAfter))

	// aborted and invalid requests never read the broker position
	if result.Outcome != "" && result.Signal.IsValid() {
		m.broker.Set(float64(result.Broker.Quantity))
	}

	m.duration.Observe(elapsed.Seconds())
}

// SetQueueDepth updates the queue gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
