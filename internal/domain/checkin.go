package domain

import "time"

// StorageTimeFormat is the timestamp layout the storage service expects on
// check-in records: second resolution, no zone offset.
const StorageTimeFormat = "2006-01-02T15:04:05"

// StructuredCheckIn is the schema-constrained output of the inference worker.
// Integer fields are pointers so that a missing field can be told apart from a
// legitimate zero during validation; the generation schema marks all five
// fields as required and forbids anything else.
type StructuredCheckIn struct {
	Summary    string  `json:"summary" validate:"required,max=300"`
	Priority   *int    `json:"priority" validate:"required,gte=0,lte=4"`
	Mood       *int    `json:"mood" validate:"required,gte=-3,lte=3"`
	Status     string  `json:"status" validate:"required,max=30"`
	Transcript *string `json:"transcript" validate:"required"`
}

// CheckInRecord is the shape persisted by the storage service.
// Timestamps are wall-clock at forwarding time, not at original event time.
type CheckInRecord struct {
	ElderlyID  string  `json:"elderly_id"`
	Summary    string  `json:"summary"`
	Priority   int     `json:"priority"`
	Mood       int     `json:"mood"`
	Status     string  `json:"status"`
	Transcript *string `json:"transcript"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// NewCheckInRecord maps a validated structured check-in onto the persistence
// shape, stamping both timestamps with now.
func NewCheckInRecord(elderlyID string, c StructuredCheckIn, now time.Time) CheckInRecord {
	ts := now.Format(StorageTimeFormat)
	return CheckInRecord{
		ElderlyID:  elderlyID,
		Summary:    c.Summary,
		Priority:   *c.Priority,
		Mood:       *c.Mood,
		Status:     c.Status,
		Transcript: c.Transcript,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

// EventKind identifies a device-originated discrete event that bypasses
// transcription and inference entirely.
type EventKind string

const (
	EventFall      EventKind = "fall"
	EventEmergency EventKind = "emergency"
)

// EventRecord returns the fixed check-in record for a discrete event.
// Field values are part of the persistence contract and never vary.
func EventRecord(kind EventKind, elderlyID string, now time.Time) CheckInRecord {
	ts := now.Format(StorageTimeFormat)
	rec := CheckInRecord{
		ElderlyID: elderlyID,
		Priority:  4,
		Mood:      -3,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	switch kind {
	case EventEmergency:
		rec.Summary = "User has reported an emergency on their fall tracker."
		rec.Status = "Emergency"
	default:
		rec.Summary = "User's fall tracker has detected a fall."
		rec.Status = "fall detected"
	}
	return rec
}
