package pending

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// MetricsSink records eviction counts. Fire-and-forget.
type MetricsSink interface {
	JobsEvicted(count int)
}

// EvictorConfig holds evictor configuration.
type EvictorConfig struct {
	// Interval is how often the evictor sweeps.
	Interval time.Duration
	// Batch is the maximum number of jobs removed per sweep.
	Batch int
}

// Evictor reclaims pending jobs whose worker never called back. Without it a
// silent worker would leak one table entry per abandoned submission forever.
type Evictor struct {
	cfg     EvictorConfig
	store   Store
	metrics MetricsSink
	clock   func() time.Time
	log     zerolog.Logger
}

func NewEvictor(cfg EvictorConfig, store Store, log zerolog.Logger) *Evictor {
	return &Evictor{
		cfg:   cfg,
		store: store,
		clock: time.Now,
		log:   log,
	}
}

// WithMetrics attaches a metrics sink to the evictor.
func (e *Evictor) WithMetrics(sink MetricsSink) *Evictor {
	e.metrics = sink
	return e
}

// Run sweeps on a ticker until ctx is cancelled.
func (e *Evictor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.log.Info().
		Dur("interval", e.cfg.Interval).
		Int("batch", e.cfg.Batch).
		Msg("evictor started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("evictor stopped")
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Evictor) sweep(ctx context.Context) {
	removed, err := e.store.DeleteExpired(ctx, e.clock().UTC(), e.cfg.Batch)
	if err != nil {
		// Store error: log and retry next interval.
		e.log.Error().Err(err).Msg("eviction sweep failed")
		return
	}
	if removed == 0 {
		return
	}
	if e.metrics != nil {
		e.metrics.JobsEvicted(removed)
	}
	e.log.Warn().Int("evicted", removed).Msg("reclaimed jobs whose callback never arrived")
}
