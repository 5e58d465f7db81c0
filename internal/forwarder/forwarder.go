// Package forwarder validates inference completions and forwards finished
// check-in records to the storage service. Persistence is all-or-nothing: a
// record that fails the schema never reaches storage in partial form.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hakambing/GuardianCare/internal/domain"
	"github.com/hakambing/GuardianCare/internal/metrics"
)

const stageForward = "forward"

// OutcomeRecorder receives per-user outcome counts for trend analysis.
// Recording is best effort and never blocks a forward.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, elderlyID, outcome string) error
}

// Forwarder turns completion envelopes into persisted records.
type Forwarder struct {
	storage   StorageClient
	validate  *validator.Validate
	sink      metrics.Sink
	analytics OutcomeRecorder
	clock     func() time.Time
	log       zerolog.Logger
}

func New(storage StorageClient, sink metrics.Sink, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		storage:  storage,
		validate: validator.New(),
		sink:     sink,
		clock:    time.Now,
		log:      log,
	}
}

// WithAnalytics attaches an outcome recorder.
func (f *Forwarder) WithAnalytics(rec OutcomeRecorder) *Forwarder {
	f.analytics = rec
	return f
}

// WithClock overrides the timestamp source. Test hook.
func (f *Forwarder) WithClock(clock func() time.Time) *Forwarder {
	f.clock = clock
	return f
}

// completionEnvelope is the inference worker's callback shape: the structured
// check-in arrives as a JSON string inside "content".
type completionEnvelope struct {
	Content string `json:"content"`
}

// Forward decodes the completion envelope, validates the structured check-in
// against the five-field schema, and submits the resulting record under the
// user's token.
func (f *Forwarder) Forward(ctx context.Context, envelope []byte, elderlyID, token string) error {
	var env completionEnvelope
	if err := json.Unmarshal(envelope, &env); err != nil {
		f.recordOutcome(ctx, elderlyID, metrics.OutcomeRejected)
		return &domain.ValidationError{Err: fmt.Errorf("decoding completion envelope: %w", err)}
	}
	if env.Content == "" {
		f.recordOutcome(ctx, elderlyID, metrics.OutcomeRejected)
		return &domain.ValidationError{Err: fmt.Errorf("completion envelope has no content")}
	}

	checkin, err := decodeStrict(env.Content)
	if err != nil {
		f.recordOutcome(ctx, elderlyID, metrics.OutcomeRejected)
		return &domain.ValidationError{Err: err}
	}
	if err := f.validate.Struct(checkin); err != nil {
		f.recordOutcome(ctx, elderlyID, metrics.OutcomeRejected)
		return &domain.ValidationError{Err: err}
	}

	rec := domain.NewCheckInRecord(elderlyID, checkin, f.clock())
	if err := f.storage.Submit(ctx, rec, token); err != nil {
		f.recordOutcome(ctx, elderlyID, metrics.OutcomeFailed)
		return err
	}

	f.recordOutcome(ctx, elderlyID, metrics.OutcomeSuccess)
	f.log.Info().
		Str("elderly_id", elderlyID).
		Int("priority", rec.Priority).
		Str("status", rec.Status).
		Msg("check-in record forwarded")
	return nil
}

// RelayEvent forwards the fixed record for a discrete device event. No
// validation is involved; the record shape is a constant of the system.
func (f *Forwarder) RelayEvent(ctx context.Context, kind domain.EventKind, elderlyID, token string) error {
	rec := domain.EventRecord(kind, elderlyID, f.clock())
	if err := f.storage.Submit(ctx, rec, token); err != nil {
		f.recordOutcome(ctx, elderlyID, metrics.OutcomeFailed)
		return err
	}

	f.recordOutcome(ctx, elderlyID, metrics.OutcomeSuccess)
	f.log.Info().
		Str("elderly_id", elderlyID).
		Str("event", string(kind)).
		Msg("event record forwarded")
	return nil
}

func (f *Forwarder) recordOutcome(ctx context.Context, elderlyID, outcome string) {
	f.sink.RecordForwarded(outcome)
	if f.analytics == nil {
		return
	}
	if err := f.analytics.RecordOutcome(ctx, elderlyID, outcome); err != nil {
		f.log.Warn().Err(err).Str("elderly_id", elderlyID).Msg("recording outcome failed")
	}
}

// decodeStrict decodes the inner payload with unknown fields rejected, so a
// model that invents extra keys fails closed.
func decodeStrict(content string) (domain.StructuredCheckIn, error) {
	var c domain.StructuredCheckIn
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return domain.StructuredCheckIn{}, fmt.Errorf("decoding structured check-in: %w", err)
	}
	// Trailing garbage after the object also fails closed.
	if dec.More() {
		return domain.StructuredCheckIn{}, fmt.Errorf("structured check-in has trailing data")
	}
	return c, nil
}
