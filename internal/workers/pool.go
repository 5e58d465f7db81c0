// Package workers runs outbound dispatches on a bounded pool so a burst of
// submissions cannot exhaust sockets or memory. A full queue is reported to
// the caller immediately instead of being buffered without limit.
package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/metrics"
)

// ErrQueueFull is returned by Enqueue when the dispatch queue has no room.
var ErrQueueFull = errors.New("dispatch queue is full")

// Task is one outbound dispatch waiting for a worker.
type Task struct {
	Job         domain.PendingJob
	AudioPath   string
	CallbackURL string
}

// DispatchFunc performs the actual outbound call for a task.
type DispatchFunc func(ctx context.Context, task Task) error

// Config bounds the pool.
type Config struct {
	Workers      int
	QueueSize    int
	DrainTimeout time.Duration
}

// Pool owns the dispatch queue and its workers.
type Pool struct {
	tasks    chan Task
	dispatch DispatchFunc
	cfg      Config
	sink     metrics.Sink
	log      zerolog.Logger
}

func NewPool(cfg Config, dispatch DispatchFunc, sink metrics.Sink, log zerolog.Logger) *Pool {
	return &Pool{
		tasks:    make(chan Task, cfg.QueueSize),
		dispatch: dispatch,
		cfg:      cfg,
		sink:     sink,
		log:      log,
	}
}

// Enqueue hands a task to the pool without blocking the caller. The HTTP
// handler that calls this has already promised the client a 202; a full
// queue must surface before that promise is made.
func (p *Pool) Enqueue(task Task) error {
	select {
	case p.tasks <- task:
		p.sink.QueueDepthUpdate(len(p.tasks))
		return nil
	default:
		p.sink.QueueRejected()
		return ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has finished draining.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
	p.log.Info().Msg("dispatch pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drainQueue()
			return
		case task := <-p.tasks:
			p.handle(ctx, task)
		}
	}
}

// drainQueue flushes tasks already accepted before shutdown, under a fresh
// bounded context since the run context is gone.
func (p *Pool) drainQueue() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
	defer cancel()

	for {
		select {
		case task := <-p.tasks:
			p.handle(ctx, task)
		default:
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, task Task) {
	p.sink.DispatchesInFlightIncr()
	defer p.sink.DispatchesInFlightDecr()
	defer p.sink.QueueDepthUpdate(len(p.tasks))

	start := time.Now()
	err := p.dispatch(ctx, task)
	elapsed := time.Since(start)

	stage := string(task.Job.Stage)
	if err != nil {
		p.sink.DispatchCompleted(stage, metrics.ClassifyStatus(0, err), elapsed)
		p.log.Error().Err(err).
			Str("job_id", task.Job.ID.String()).
			Str("stage", stage).
			Str("elderly_id", task.Job.ElderlyID).
			Msg("dispatch failed")
		return
	}

	p.sink.DispatchCompleted(stage, metrics.StatusClass2xx, elapsed)
	p.log.Debug().
		Str("job_id", task.Job.ID.String()).
		Str("stage", stage).
		Dur("elapsed", elapsed).
		Msg("dispatch completed")
}
