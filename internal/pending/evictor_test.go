package pending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/testutil"
)

type recordingSink struct {
	mu      sync.Mutex
	evicted int
}

func (s *recordingSink) JobsEvicted(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evicted += count
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

func TestEvictor_SweepRemovesExpiredAndCounts(t *testing.T) {
	ctx := testutil.TestContext(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	_ = store.Create(ctx, newJob(domain.StageTranscribe, -time.Minute, now))
	_ = store.Create(ctx, newJob(domain.StageInfer, time.Hour, now))

	sink := &recordingSink{}
	e := NewEvictor(EvictorConfig{Interval: time.Minute, Batch: 10}, store, zerolog.Nop()).
		WithMetrics(sink)
	e.clock = func() time.Time { return now }

	e.sweep(ctx)

	if sink.total() != 1 {
		t.Errorf("expected 1 evicted, got %d", sink.total())
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 live job, got %d", store.Len())
	}
}

type failingStore struct {
	Store
}

func (failingStore) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return 0, errors.New("store down")
}

func TestEvictor_SweepSurvivesStoreError(t *testing.T) {
	ctx := testutil.TestContext(t)
	sink := &recordingSink{}
	e := NewEvictor(EvictorConfig{Interval: time.Minute, Batch: 10}, failingStore{}, zerolog.Nop()).
		WithMetrics(sink)

	// Must not panic and must not report evictions.
	e.sweep(ctx)

	if sink.total() != 0 {
		t.Errorf("expected no evictions on error, got %d", sink.total())
	}
}

func TestEvictor_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	e := NewEvictor(EvictorConfig{Interval: 10 * time.Millisecond, Batch: 10}, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evictor did not stop after cancel")
	}
}
