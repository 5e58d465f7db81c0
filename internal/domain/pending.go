package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage names the pipeline hop a pending job is waiting on.
type Stage string

const (
	// StageTranscribe waits on the transcription worker's callback.
	StageTranscribe Stage = "transcribe"
	// StageInfer waits on the inference worker's callback.
	StageInfer Stage = "infer"
)

// PendingJob is the context needed to resume a pipeline when a worker
// callback arrives. The job id is embedded in the callback URL registered
// with the worker, so correlation never depends on the worker echoing
// anything back. A job is consumed exactly once; a callback that finds no
// job is a duplicate, an expired submission, or noise.
type PendingJob struct {
	ID        uuid.UUID
	ElderlyID string
	// Token is the submitter's raw bearer credential, carried forward
	// unmodified on every outbound hop.
	Token      string
	Stage      Stage
	Transcript string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the job's callback window has closed.
func (j PendingJob) Expired(now time.Time) bool {
	return !now.Before(j.ExpiresAt)
}
