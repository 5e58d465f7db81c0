package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording pipeline metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Inbound submissions by kind (audio, stream, text, fall, emergency).
	SubmissionReceived(kind string)

	// Outbound dispatches to workers and the storage service.
	DispatchCompleted(stage string, statusClass string, duration time.Duration)
	DispatchesInFlightIncr()
	DispatchesInFlightDecr()

	// Worker callbacks by stage and outcome.
	CallbackOutcome(stage string, outcome string)

	// Final record forwarding outcomes.
	RecordForwarded(outcome string)

	// Dispatch queue.
	QueueDepthUpdate(depth int)
	QueueRejected()

	// Pending-job eviction.
	JobsEvicted(count int)
}

// Stage constants for DispatchCompleted and CallbackOutcome.
const (
	StageTranscribe = "transcribe"
	StageInfer      = "infer"
	StageStore      = "store"
)

// Outcome constants.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// StatusClass constants for DispatchCompleted.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a bounded-cardinality
// status class.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
			return StatusClassTimeout
		}
		for _, s := range []string{"connection refused", "no such host", "network is unreachable", "dial"} {
			if strings.Contains(msg, s) {
				return StatusClassConnectionError
			}
		}
		return StatusClassOtherError
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
