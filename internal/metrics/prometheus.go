package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	log zerolog.Logger

	submissionsTotal  *prometheus.CounterVec
	dispatchesTotal   *prometheus.CounterVec
	dispatchDuration  prometheus.Histogram
	dispatchesInFlight prometheus.Gauge
	callbacksTotal    *prometheus.CounterVec
	recordsTotal      *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	queueRejectsTotal prometheus.Counter
	jobsEvictedTotal  prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer, log zerolog.Logger) *PrometheusSink {
	s := &PrometheusSink{log: log}

	s.submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_submissions_total",
		Help: "Inbound submissions by kind.",
	}, []string{"kind"})

	s.dispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_dispatches_total",
		Help: "Outbound dispatches by pipeline stage and status class.",
	}, []string{"stage", "status_class"})

	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkin_dispatch_duration_seconds",
		Help:    "Outbound request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.dispatchesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "checkin_dispatches_in_flight",
		Help: "Dispatches currently being processed by the worker pool.",
	})

	s.callbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_callbacks_total",
		Help: "Worker callbacks by stage and outcome.",
	}, []string{"stage", "outcome"})

	s.recordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_records_forwarded_total",
		Help: "Check-in records by forwarding outcome.",
	}, []string{"outcome"})

	s.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "checkin_dispatch_queue_depth",
		Help: "Tasks waiting in the dispatch queue.",
	})

	s.queueRejectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkin_dispatch_queue_rejects_total",
		Help: "Submissions rejected because the dispatch queue was full.",
	})

	s.jobsEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkin_pending_jobs_evicted_total",
		Help: "Pending jobs reclaimed because their callback never arrived.",
	})

	for name, c := range map[string]prometheus.Collector{
		"checkin_submissions_total":             s.submissionsTotal,
		"checkin_dispatches_total":              s.dispatchesTotal,
		"checkin_dispatch_duration_seconds":     s.dispatchDuration,
		"checkin_dispatches_in_flight":          s.dispatchesInFlight,
		"checkin_callbacks_total":               s.callbacksTotal,
		"checkin_records_forwarded_total":       s.recordsTotal,
		"checkin_dispatch_queue_depth":          s.queueDepth,
		"checkin_dispatch_queue_rejects_total":  s.queueRejectsTotal,
		"checkin_pending_jobs_evicted_total":    s.jobsEvictedTotal,
	} {
		if err := reg.Register(c); err != nil {
			s.log.Warn().Err(err).Str("metric", name).Msg("failed to register collector")
		}
	}

	return s
}

func (s *PrometheusSink) SubmissionReceived(kind string) {
	s.submissionsTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) DispatchCompleted(stage, statusClass string, duration time.Duration) {
	s.dispatchesTotal.WithLabelValues(stage, statusClass).Inc()
	s.dispatchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DispatchesInFlightIncr() { s.dispatchesInFlight.Inc() }
func (s *PrometheusSink) DispatchesInFlightDecr() { s.dispatchesInFlight.Dec() }

func (s *PrometheusSink) CallbackOutcome(stage, outcome string) {
	s.callbacksTotal.WithLabelValues(stage, outcome).Inc()
}

func (s *PrometheusSink) RecordForwarded(outcome string) {
	s.recordsTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) QueueDepthUpdate(depth int) {
	s.queueDepth.Set(float64(depth))
}

func (s *PrometheusSink) QueueRejected() {
	s.queueRejectsTotal.Inc()
}

func (s *PrometheusSink) JobsEvicted(count int) {
	s.jobsEvictedTotal.Add(float64(count))
}
