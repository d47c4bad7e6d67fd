package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zipshift"

// Lifecycle records parcel lifecycle counters. A nil *Lifecycle is a valid no-op recorder.
type Lifecycle struct {
	transitions         *prometheus.CounterVec
	assignmentConflicts *prometheus.CounterVec
	earningsCredits     *prometheus.CounterVec
	ledgerOperations    *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewLifecycle registers the lifecycle metrics on the provided registerer.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	if reg == nil {
		return &Lifecycle{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parcel_transitions_total",
		Help:      "Committed parcel status transitions.",
	}, []string{"from", "to"})
	assignmentConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assignment_conflicts_total",
		Help:      "Leg assignments rejected because the leg was already bound.",
	}, []string{"leg"})
	earningsCredits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "earnings_credits_total",
		Help:      "Earnings credit attempts by leg and outcome.",
	}, []string{"leg", "result"})
	ledgerOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Billing ledger operations by kind and outcome.",
	}, []string{"op", "result"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(transitions, assignmentConflicts, earningsCredits, ledgerOperations, httpDuration)
	return &Lifecycle{
		transitions:         transitions,
		assignmentConflicts: assignmentConflicts,
		earningsCredits:     earningsCredits,
		ledgerOperations:    ledgerOperations,
		httpDuration:        httpDuration,
	}
}

// IncTransition counts one committed from -> to transition.
func (m *Lifecycle) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncAssignmentConflict counts a lost leg assignment race.
func (m *Lifecycle) IncAssignmentConflict(leg string) {
	if m == nil || m.assignmentConflicts == nil {
		return
	}
	m.assignmentConflicts.WithLabelValues(normalizeLabel(leg)).Inc()
}

// IncEarningsCredit counts a credit attempt; result is "credited" or "replay".
func (m *Lifecycle) IncEarningsCredit(leg, result string) {
	if m == nil || m.earningsCredits == nil {
		return
	}
	m.earningsCredits.WithLabelValues(normalizeLabel(leg), normalizeLabel(result)).Inc()
}

// IncLedgerOperation counts a ledger op ("reserve", "settle", "reverse", "payout").
func (m *Lifecycle) IncLedgerOperation(op, result string) {
	if m == nil || m.ledgerOperations == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

// ObserveHTTP records the latency of one request.
func (m *Lifecycle) ObserveHTTP(method, route, status string, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(normalizeLabel(method), normalizeLabel(route), normalizeLabel(status)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
