package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure("asr-service:6001")
		if err := b.Allow("asr-service:6001"); err != nil {
			t.Fatalf("circuit must stay closed below threshold, got %v", err)
		}
	}

	b.RecordFailure("asr-service:6001")
	if err := b.Allow("asr-service:6001"); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen at threshold, got %v", err)
	}
}

func TestBreaker_HostsAreIndependent(t *testing.T) {
	b := New(1, time.Minute)
	b.RecordFailure("asr-service:6001")

	if err := b.Allow("asr-service:6001"); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected asr circuit open, got %v", err)
	}
	if err := b.Allow("llm-service:6002"); err != nil {
		t.Fatalf("llm circuit must be unaffected, got %v", err)
	}
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := New(1, time.Minute)
	b.clock = func() time.Time { return now }

	b.RecordFailure("llm-service:6002")
	if err := b.Allow("llm-service:6002"); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected open, got %v", err)
	}

	now = now.Add(2 * time.Minute)

	// First caller after cooldown is the probe.
	if err := b.Allow("llm-service:6002"); err != nil {
		t.Fatalf("expected probe allowed, got %v", err)
	}
	// Concurrent callers wait for the probe outcome.
	if err := b.Allow("llm-service:6002"); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen while probing, got %v", err)
	}
}

func TestBreaker_ProbeOutcome(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := New(1, time.Minute)
	b.clock = func() time.Time { return now }

	b.RecordFailure("llm-service:6002")
	now = now.Add(2 * time.Minute)
	_ = b.Allow("llm-service:6002")

	// Failed probe re-opens immediately.
	b.RecordFailure("llm-service:6002")
	if err := b.Allow("llm-service:6002"); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected re-opened circuit, got %v", err)
	}

	// Successful probe closes.
	now = now.Add(2 * time.Minute)
	_ = b.Allow("llm-service:6002")
	b.RecordSuccess("llm-service:6002")
	if err := b.Allow("llm-service:6002"); err != nil {
		t.Fatalf("expected closed circuit after successful probe, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(3, time.Minute)
	b.RecordFailure("auth-service:3000")
	b.RecordFailure("auth-service:3000")
	b.RecordSuccess("auth-service:3000")
	b.RecordFailure("auth-service:3000")
	b.RecordFailure("auth-service:3000")

	if err := b.Allow("auth-service:3000"); err != nil {
		t.Fatalf("success must reset the consecutive failure count, got %v", err)
	}
}
