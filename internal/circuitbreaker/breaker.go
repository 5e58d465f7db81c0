// Package circuitbreaker sheds load from worker hosts that are failing hard.
// It introduces no retries of its own: an open circuit just turns the next
// dispatch into an immediate orchestration failure instead of a hung socket.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow while a host's circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

type phase int

const (
	phaseClosed phase = iota
	phaseOpen
	phaseProbing
)

type hostState struct {
	phase    phase
	failures int
	openedAt time.Time
}

// Breaker tracks consecutive failures per host. After threshold consecutive
// failures the host's circuit opens; after cooldown a single probe request is
// let through, and its outcome decides whether the circuit closes again.
type Breaker struct {
	mu        sync.Mutex
	hosts     map[string]*hostState
	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		hosts:     make(map[string]*hostState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// Allow reports whether a request to host may proceed.
func (b *Breaker) Allow(host string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if !ok {
		return nil
	}

	switch s.phase {
	case phaseOpen:
		if b.clock().Sub(s.openedAt) >= b.cooldown {
			s.phase = phaseProbing
			return nil
		}
		return ErrOpen
	case phaseProbing:
		// A probe is already in flight; everything else waits.
		return ErrOpen
	default:
		return nil
	}
}

// RecordSuccess closes the host's circuit.
func (b *Breaker) RecordSuccess(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if !ok {
		return
	}
	s.phase = phaseClosed
	s.failures = 0
}

// RecordFailure counts a failure, opening the circuit at the threshold.
func (b *Breaker) RecordFailure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.hosts[host]
	if !ok {
		s = &hostState{}
		b.hosts[host] = s
	}

	s.failures++
	if s.failures >= b.threshold || s.phase == phaseProbing {
		s.phase = phaseOpen
		s.openedAt = b.clock()
	}
}
