package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clinic"

// BookingMetrics exposes counters and latency for the appointment lifecycle.
type BookingMetrics struct {
	bookings      *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	bookLatency   prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Client cancellations by outcome",
		}, []string{"outcome"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "status_changes_total",
			Help:      "Practitioner status updates by target status and outcome",
		}, []string{"status", "outcome"}),
		bookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "book_latency_seconds",
			Help:      "Latency of booking attempts",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.cancellations, m.statusChanges, m.bookLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
	m.bookLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveCancel(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveStatusChange(status, outcome string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status, outcome).Inc()
}

// HTTPMetrics tracks request counts and latency per route pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(seconds)
}

// JobMetrics counts background job runs and the emails they send.
type JobMetrics struct {
	runs   *prometheus.CounterVec
	emails *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by job and outcome",
		}, []string{"job", "outcome"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "emails_total",
			Help:      "Emails sent by background jobs",
		}, []string{"job", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.runs, m.emails)
	return m
}

func (m *JobMetrics) ObserveRun(job string, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, Outcome(err)).Inc()
}

func (m *JobMetrics) ObserveEmail(job string, err error) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(job, Outcome(err)).Inc()
}

// Outcome is the label used for a finished operation.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
