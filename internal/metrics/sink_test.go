package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		err    error
		want   string
	}{
		{"accepted", 202, nil, StatusClass2xx},
		{"unauthorized", 401, nil, StatusClass4xx},
		{"worker error", 500, nil, StatusClass5xx},
		{"timeout", 0, errors.New("context deadline exceeded"), StatusClassTimeout},
		{"refused", 0, errors.New("dial tcp: connection refused"), StatusClassConnectionError},
		{"other", 0, errors.New("mystery"), StatusClassOtherError},
		{"unknown status", 0, nil, StatusClassOtherError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStatus(tc.status, tc.err); got != tc.want {
				t.Errorf("ClassifyStatus(%d, %v) = %q, want %q", tc.status, tc.err, got, tc.want)
			}
		})
	}
}

func TestNoopSink_ImplementsSink(t *testing.T) {
	var _ Sink = NewNoopSink()

	// Must be safe to call everything.
	s := NewNoopSink()
	s.SubmissionReceived("audio")
	s.DispatchCompleted(StageTranscribe, StatusClass2xx, time.Second)
	s.DispatchesInFlightIncr()
	s.DispatchesInFlightDecr()
	s.CallbackOutcome(StageInfer, OutcomeSuccess)
	s.RecordForwarded(OutcomeSuccess)
	s.QueueDepthUpdate(3)
	s.QueueRejected()
	s.JobsEvicted(2)
}

func TestPrometheusSink_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPrometheusSink(reg, zerolog.Nop())

	var _ Sink = s

	s.SubmissionReceived("text")
	s.SubmissionReceived("text")
	s.QueueRejected()
	s.JobsEvicted(3)

	if got := promtestutil.ToFloat64(s.submissionsTotal.WithLabelValues("text")); got != 2 {
		t.Errorf("expected 2 text submissions, got %v", got)
	}
	if got := promtestutil.ToFloat64(s.queueRejectsTotal); got != 1 {
		t.Errorf("expected 1 queue reject, got %v", got)
	}
	if got := promtestutil.ToFloat64(s.jobsEvictedTotal); got != 3 {
		t.Errorf("expected 3 evicted, got %v", got)
	}
}

func TestPrometheusSink_DoubleRegisterDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg, zerolog.Nop())
	// Second sink on the same registry collides; must log, not panic.
	NewPrometheusSink(reg, zerolog.Nop())
}
