// Package pending holds the correlation-keyed table of jobs waiting on a
// worker callback. A callback resumes its pipeline by consuming the job whose
// id is embedded in the callback URL; consuming is atomic, so a replayed or
// out-of-order delivery finds nothing and is rejected instead of double
// submitting downstream.
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hakambing/GuardianCare/internal/domain"
)

// ErrNotFound is returned by Take when no live job matches: the job was never
// created, already consumed by an earlier delivery, or evicted after its
// callback window closed.
var ErrNotFound = errors.New("pending: no such job")

// Store is the pending-job table. Implementations must make Take a single
// atomic consume.
type Store interface {
	Create(ctx context.Context, job domain.PendingJob) error

	// Take removes and returns the job with the given id and stage.
	// Expired jobs are treated as absent even if not yet evicted.
	Take(ctx context.Context, id uuid.UUID, stage domain.Stage) (domain.PendingJob, error)

	// DeleteExpired removes up to limit jobs whose callback window closed
	// before cutoff, returning how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error)
}
