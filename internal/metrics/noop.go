package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) SubmissionReceived(kind string)                                        {}
func (n *NoopSink) DispatchCompleted(stage, statusClass string, duration time.Duration)   {}
func (n *NoopSink) DispatchesInFlightIncr()                                               {}
func (n *NoopSink) DispatchesInFlightDecr()                                               {}
func (n *NoopSink) CallbackOutcome(stage, outcome string)                                 {}
func (n *NoopSink) RecordForwarded(outcome string)                                        {}
func (n *NoopSink) QueueDepthUpdate(depth int)                                            {}
func (n *NoopSink) QueueRejected()                                                        {}
func (n *NoopSink) JobsEvicted(count int)                                                 {}
