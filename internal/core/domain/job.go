package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusClassifying JobStatus = "classifying"
	JobStatusExtracting  JobStatus = "extracting"
	JobStatusValidating  JobStatus = "validating"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ProcessingJob is the aggregate for all attachments of one inbound email.
type ProcessingJob struct {
	eventLog

	id             uuid.UUID
	tenantID       uuid.UUID
	inboundEmailID uuid.UUID
	status         JobStatus
	documents      []*ProcessedDocument
	startedAt      time.Time
	completedAt    *time.Time
	errorMessage   string
	version        int
}

var _ Aggregate = (*ProcessingJob)(nil)

func NewProcessingJob(tenantID, inboundEmailID uuid.UUID) (*ProcessingJob, error) {
	if tenantID == uuid.Nil {
		return nil, WrapError(ErrInvalidInput, "new processing job", errors.New("tenant id is required"))
	}
	if inboundEmailID == uuid.Nil {
		return nil, WrapError(ErrInvalidInput, "new processing job", errors.New("inbound email id is required"))
	}
	return &ProcessingJob{
		id:             uuid.New(),
		tenantID:       tenantID,
		inboundEmailID: inboundEmailID,
		status:         JobStatusPending,
		startedAt:      time.Now().UTC(),
	}, nil
}

func (j *ProcessingJob) ID() uuid.UUID             { return j.id }
func (j *ProcessingJob) AggregateID() uuid.UUID    { return j.id }
func (j *ProcessingJob) TenantID() uuid.UUID       { return j.tenantID }
func (j *ProcessingJob) InboundEmailID() uuid.UUID { return j.inboundEmailID }
func (j *ProcessingJob) Status() JobStatus         { return j.status }
func (j *ProcessingJob) StartedAt() time.Time      { return j.startedAt }
func (j *ProcessingJob) ErrorMessage() string      { return j.errorMessage }
func (j *ProcessingJob) Version() int              { return j.version }

func (j *ProcessingJob) CompletedAt() *time.Time {
	if j.completedAt == nil {
		return nil
	}
	t := *j.completedAt
	return &t
}

// Documents returns the owned documents in insertion order. The pointers are
// live: mutations through them are mutations of the job.
func (j *ProcessingJob) Documents() []*ProcessedDocument {
	out := make([]*ProcessedDocument, len(j.documents))
	copy(out, j.documents)
	return out
}

func (j *ProcessingJob) Document(id uuid.UUID) (*ProcessedDocument, bool) {
	for _, d := range j.documents {
		if d.id == id {
			return d, true
		}
	}
	return nil, false
}

// AddDocument registers an attachment. Documents can only be added before
// classification starts.
func (j *ProcessingJob) AddDocument(sourceAttachmentID uuid.UUID, fileName, blobURL string) (*ProcessedDocument, error) {
	if j.status != JobStatusPending {
		return nil, j.transitionError("add document")
	}
	doc, err := newProcessedDocument(sourceAttachmentID, fileName, blobURL)
	if err != nil {
		return nil, err
	}
	j.documents = append(j.documents, doc)
	return doc, nil
}

// StartClassification is also accepted while already classifying so an
// interrupted job can be resumed.
func (j *ProcessingJob) StartClassification() error {
	return j.transition("start classification", JobStatusClassifying, JobStatusPending, JobStatusClassifying)
}

func (j *ProcessingJob) StartExtraction() error {
	return j.transition("start extraction", JobStatusExtracting, JobStatusClassifying)
}

func (j *ProcessingJob) StartValidation() error {
	return j.transition("start validation", JobStatusValidating, JobStatusExtracting)
}

// OnDocumentClassified is a no-op for unknown document ids.
func (j *ProcessingJob) OnDocumentClassified(documentID uuid.UUID, docType DocumentType, confidence float64) error {
	doc, ok := j.Document(documentID)
	if !ok {
		return nil
	}
	if err := doc.Classify(docType, confidence); err != nil {
		return err
	}
	j.record(DocumentClassified{
		JobID:        j.id,
		DocumentID:   doc.id,
		DocumentType: doc.documentType,
		Confidence:   doc.classificationConfidence.score,
		At:           time.Now().UTC(),
	})
	return nil
}

// OnDocumentExtractionCompleted is a no-op for unknown document ids.
func (j *ProcessingJob) OnDocumentExtractionCompleted(documentID uuid.UUID) error {
	doc, ok := j.Document(documentID)
	if !ok {
		return nil
	}
	if err := doc.CompleteExtraction(); err != nil {
		return err
	}
	j.record(DocumentExtractionCompleted{
		JobID:             j.id,
		DocumentID:        doc.id,
		FieldCount:        len(doc.extractedFields),
		AverageConfidence: doc.AverageConfidence(),
		At:                time.Now().UTC(),
	})
	return nil
}

// Summary counts documents by terminal state.
func (j *ProcessingJob) Summary() JobSummary {
	s := JobSummary{Total: len(j.documents)}
	for _, d := range j.documents {
		switch d.status {
		case DocumentStatusCompleted:
			s.Successful++
		case DocumentStatusFailed:
			s.Failed++
		case DocumentStatusManualReviewRequired:
			s.ReviewRequired++
		}
	}
	return s
}

// Complete finishes the job whatever the document outcomes are: a job whose
// documents all failed is still a completed job.
func (j *ProcessingJob) Complete() error {
	if err := j.transition("complete", JobStatusCompleted, JobStatusValidating); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.completedAt = &now
	j.record(ProcessingJobCompleted{
		JobID:          j.id,
		TenantID:       j.tenantID,
		InboundEmailID: j.inboundEmailID,
		Summary:        j.Summary(),
		At:             now,
	})
	return nil
}

// Fail aborts the whole job. Per-document failures are recorded on the
// documents instead.
func (j *ProcessingJob) Fail(message string) error {
	if j.status.IsTerminal() {
		return j.transitionError("fail")
	}
	now := time.Now().UTC()
	j.status = JobStatusFailed
	j.completedAt = &now
	j.errorMessage = strings.TrimSpace(message)
	j.record(ProcessingJobFailed{
		JobID:          j.id,
		TenantID:       j.tenantID,
		InboundEmailID: j.inboundEmailID,
		ErrorMessage:   j.errorMessage,
		At:             now,
	})
	return nil
}

// MarkPersisted is called by repositories after a successful write.
func (j *ProcessingJob) MarkPersisted(version int) {
	j.version = version
}

func (j *ProcessingJob) transition(op string, to JobStatus, from ...JobStatus) error {
	for _, s := range from {
		if j.status == s {
			j.status = to
			return nil
		}
	}
	return j.transitionError(op)
}

func (j *ProcessingJob) transitionError(op string) error {
	return WrapError(ErrInvalidTransition, op, fmt.Errorf("job %s is %s", j.id, j.status))
}

// JobSnapshot is the persisted form of a ProcessingJob.
type JobSnapshot struct {
	ID             uuid.UUID          `json:"id"`
	TenantID       uuid.UUID          `json:"tenant_id"`
	InboundEmailID uuid.UUID          `json:"inbound_email_id"`
	Status         JobStatus          `json:"status"`
	Documents      []DocumentSnapshot `json:"documents"`
	StartedAt      time.Time          `json:"started_at"`
	CompletedAt    *time.Time         `json:"completed_at,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
	Version        int                `json:"version"`
}

func (j *ProcessingJob) Snapshot() JobSnapshot {
	docs := make([]DocumentSnapshot, 0, len(j.documents))
	for _, d := range j.documents {
		docs = append(docs, d.Snapshot())
	}
	return JobSnapshot{
		ID:             j.id,
		TenantID:       j.tenantID,
		InboundEmailID: j.inboundEmailID,
		Status:         j.status,
		Documents:      docs,
		StartedAt:      j.startedAt,
		CompletedAt:    j.CompletedAt(),
		ErrorMessage:   j.errorMessage,
		Version:        j.version,
	}
}

// RehydrateProcessingJob rebuilds a stored job. No events are recorded.
func RehydrateProcessingJob(s JobSnapshot) *ProcessingJob {
	docs := make([]*ProcessedDocument, 0, len(s.Documents))
	for _, d := range s.Documents {
		docs = append(docs, RehydrateProcessedDocument(d))
	}
	var completedAt *time.Time
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		completedAt = &t
	}
	return &ProcessingJob{
		id:             s.ID,
		tenantID:       s.TenantID,
		inboundEmailID: s.InboundEmailID,
		status:         s.Status,
		documents:      docs,
		startedAt:      s.StartedAt,
		completedAt:    completedAt,
		errorMessage:   s.ErrorMessage,
		version:        s.Version,
	}
}
