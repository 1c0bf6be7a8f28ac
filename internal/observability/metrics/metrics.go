package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking and transition engines.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Status transitions by actor role and outcome",
		}, []string{"role", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(role, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(role, outcome).Inc()
}

// SweeperMetrics exposes counters for the auto-expiry sweeper.
type SweeperMetrics struct {
	runsTotal      prometheus.Counter
	cancelledTotal prometheus.Counter
	errorsTotal    prometheus.Counter
	runDuration    prometheus.Histogram
}

func NewSweeperMetrics(reg prometheus.Registerer) *SweeperMetrics {
	m := &SweeperMetrics{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Completed sweep cycles",
		}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "sweeper",
			Name:      "cancelled_total",
			Help:      "Appointments auto-cancelled by the sweeper",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "sweeper",
			Name:      "errors_total",
			Help:      "Per-record and cycle-level sweep errors",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "sweeper",
			Name:      "run_duration_seconds",
			Help:      "Duration of sweep cycles",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runsTotal, m.cancelledTotal, m.errorsTotal, m.runDuration)
	return m
}

func (m *SweeperMetrics) ObserveRun(seconds float64, cancelled int) {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
	m.cancelledTotal.Add(float64(cancelled))
	m.runDuration.Observe(seconds)
}

func (m *SweeperMetrics) ObserveError() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}
