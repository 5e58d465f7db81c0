package pending

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hakambing/GuardianCare/internal/domain"
)

// MemoryStore is the default Store. Jobs do not survive a restart; a worker
// calling back after a restart gets the same answer as one calling back after
// eviction.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]domain.PendingJob
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:  make(map[uuid.UUID]domain.PendingJob),
		clock: time.Now,
	}
}

// WithClock overrides the time source. Only for tests.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) Create(ctx context.Context, job domain.PendingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, id uuid.UUID, stage domain.Stage) (domain.PendingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Stage != stage {
		return domain.PendingJob{}, ErrNotFound
	}
	delete(s.jobs, id)
	if job.Expired(s.clock()) {
		return domain.PendingJob{}, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if removed >= limit {
			break
		}
		if !job.ExpiresAt.After(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live jobs. Only for tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
