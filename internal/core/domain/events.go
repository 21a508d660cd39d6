package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventDocumentClassified          = "document_classified"
	EventDocumentExtractionCompleted = "document_extraction_completed"
	EventProcessingJobCompleted      = "processing_job_completed"
	EventProcessingJobFailed         = "processing_job_failed"
)

// Event is a fact recorded by an aggregate. Events are buffered on the
// aggregate and published by the caller after the aggregate is persisted.
type Event interface {
	EventName() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// Aggregate is implemented by entities that own a consistency boundary.
type Aggregate interface {
	AggregateID() uuid.UUID
	PendingEvents() []Event
}

type eventLog struct {
	pending []Event
}

func (l *eventLog) record(e Event) {
	l.pending = append(l.pending, e)
}

func (l *eventLog) PendingEvents() []Event {
	out := make([]Event, len(l.pending))
	copy(out, l.pending)
	return out
}

// DrainEvents returns the buffered events and clears the buffer.
func (l *eventLog) DrainEvents() []Event {
	out := l.pending
	l.pending = nil
	return out
}

type DocumentClassified struct {
	JobID        uuid.UUID    `json:"job_id"`
	DocumentID   uuid.UUID    `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	At           time.Time    `json:"occurred_at"`
}

func (e DocumentClassified) EventName() string      { return EventDocumentClassified }
func (e DocumentClassified) AggregateID() uuid.UUID { return e.JobID }
func (e DocumentClassified) OccurredAt() time.Time  { return e.At }

type DocumentExtractionCompleted struct {
	JobID             uuid.UUID `json:"job_id"`
	DocumentID        uuid.UUID `json:"document_id"`
	FieldCount        int       `json:"field_count"`
	AverageConfidence float64   `json:"average_confidence"`
	At                time.Time `json:"occurred_at"`
}

func (e DocumentExtractionCompleted) EventName() string      { return EventDocumentExtractionCompleted }
func (e DocumentExtractionCompleted) AggregateID() uuid.UUID { return e.JobID }
func (e DocumentExtractionCompleted) OccurredAt() time.Time  { return e.At }

// JobSummary counts documents by terminal state.
type JobSummary struct {
	Total          int `json:"total"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	ReviewRequired int `json:"review_required"`
}

type ProcessingJobCompleted struct {
	JobID          uuid.UUID  `json:"job_id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	InboundEmailID uuid.UUID  `json:"inbound_email_id"`
	Summary        JobSummary `json:"summary"`
	At             time.Time  `json:"occurred_at"`
}

func (e ProcessingJobCompleted) EventName() string      { return EventProcessingJobCompleted }
func (e ProcessingJobCompleted) AggregateID() uuid.UUID { return e.JobID }
func (e ProcessingJobCompleted) OccurredAt() time.Time  { return e.At }

type ProcessingJobFailed struct {
	JobID          uuid.UUID `json:"job_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	InboundEmailID uuid.UUID `json:"inbound_email_id"`
	ErrorMessage   string    `json:"error_message"`
	At             time.Time `json:"occurred_at"`
}

func (e ProcessingJobFailed) EventName() string      { return EventProcessingJobFailed }
func (e ProcessingJobFailed) AggregateID() uuid.UUID { return e.JobID }
func (e ProcessingJobFailed) OccurredAt() time.Time  { return e.At }
