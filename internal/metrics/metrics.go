package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storage_service"

// Metrics holds the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	transitions       *prometheus.CounterVec
	transitionErrors  *prometheus.CounterVec
	reconcileWarnings prometheus.Counter
	paymentsSettled   prometheus.Counter
	paymentAmount     prometheus.Counter
	spaceDrift        *prometheus.GaugeVec
	expiringBatches   prometheus.Gauge
	jobRuns           *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transitions_total",
			Help:      "Storage request lifecycle transitions applied.",
		}, []string{"transition"}),
		transitionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_transition_errors_total",
			Help:      "Storage request lifecycle transitions refused.",
		}, []string{"transition", "reason"}),
		reconcileWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_reconcile_warnings_total",
			Help:      "Deliveries with no harvested crop allocation to draw down.",
		}),
		paymentsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_settled_total",
			Help:      "Storage requests marked paid.",
		}),
		paymentAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_amount_rupees_total",
			Help:      "Gross MSP amount of settled payments.",
		}),
		spaceDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "facility_space_drift_tons",
			Help:      "available_space minus the value recomputed from approved requests.",
		}, []string{"facility_id"}),
		expiringBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "expiring_batches",
			Help:      "Harvested batches inside the expiry horizon at the last sweep.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_job_runs_total",
			Help:      "Scheduled job executions by outcome.",
		}, []string{"job", "outcome"}),
	}

	reg.MustRegister(
		m.transitions,
		m.transitionErrors,
		m.reconcileWarnings,
		m.paymentsSettled,
		m.paymentAmount,
		m.spaceDrift,
		m.expiringBatches,
		m.jobRuns,
	)
	return m
}

func (m *Metrics) Transition(name string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(name).Inc()
}

func (m *Metrics) TransitionError(name, reason string) {
	if m == nil {
		return
	}
	m.transitionErrors.WithLabelValues(name, reason).Inc()
}

func (m *Metrics) ReconcileWarning() {
	if m == nil {
		return
	}
	m.reconcileWarnings.Inc()
}

func (m *Metrics) PaymentSettled(amount float64) {
	if m == nil {
		return
	}
	m.paymentsSettled.Inc()
	if amount > 0 {
		m.paymentAmount.Add(amount)
	}
}

func (m *Metrics) SpaceDrift(facilityID string, drift float64) {
	if m == nil {
		return
	}
	m.spaceDrift.WithLabelValues(facilityID).Set(drift)
}

func (m *Metrics) ExpiringBatches(n int) {
	if m == nil {
		return
	}
	m.expiringBatches.Set(float64(n))
}

func (m *Metrics) JobRun(job string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}
