package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DocumentStatus string

const (
	DocumentStatusPending              DocumentStatus = "pending"
	DocumentStatusClassified           DocumentStatus = "classified"
	DocumentStatusExtracted            DocumentStatus = "extracted"
	DocumentStatusCompleted            DocumentStatus = "completed"
	DocumentStatusManualReviewRequired DocumentStatus = "manual_review_required"
	DocumentStatusFailed               DocumentStatus = "failed"
)

func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusCompleted, DocumentStatusManualReviewRequired, DocumentStatusFailed:
		return true
	default:
		return false
	}
}

// ProcessedDocument tracks one attachment through classification, extraction
// and validation. It is owned by a ProcessingJob.
type ProcessedDocument struct {
	id                       uuid.UUID
	sourceAttachmentID       uuid.UUID
	originalFileName         string
	blobStorageURL           string
	documentType             DocumentType
	classificationConfidence Confidence
	status                   DocumentStatus
	extractedFields          []ExtractedField
	validationErrors         []string
	processedAt              *time.Time
	failureReason            string
}

func newProcessedDocument(sourceAttachmentID uuid.UUID, fileName, blobURL string) (*ProcessedDocument, error) {
	fileName = strings.TrimSpace(fileName)
	blobURL = strings.TrimSpace(blobURL)
	if fileName == "" {
		return nil, WrapError(ErrInvalidInput, "add document", errors.New("file name is required"))
	}
	if blobURL == "" {
		return nil, WrapError(ErrInvalidInput, "add document", errors.New("blob url is required"))
	}
	return &ProcessedDocument{
		id:                 uuid.New(),
		sourceAttachmentID: sourceAttachmentID,
		originalFileName:   fileName,
		blobStorageURL:     blobURL,
		documentType:       DocumentTypeUnknown,
		status:             DocumentStatusPending,
	}, nil
}

func (d *ProcessedDocument) ID() uuid.UUID                 { return d.id }
func (d *ProcessedDocument) SourceAttachmentID() uuid.UUID { return d.sourceAttachmentID }
func (d *ProcessedDocument) OriginalFileName() string      { return d.originalFileName }
func (d *ProcessedDocument) BlobStorageURL() string        { return d.blobStorageURL }
func (d *ProcessedDocument) DocumentType() DocumentType    { return d.documentType }
func (d *ProcessedDocument) Status() DocumentStatus        { return d.status }
func (d *ProcessedDocument) FailureReason() string         { return d.failureReason }

func (d *ProcessedDocument) ClassificationConfidence() Confidence {
	return d.classificationConfidence
}

func (d *ProcessedDocument) ProcessedAt() *time.Time {
	if d.processedAt == nil {
		return nil
	}
	t := *d.processedAt
	return &t
}

func (d *ProcessedDocument) ExtractedFields() []ExtractedField {
	out := make([]ExtractedField, len(d.extractedFields))
	copy(out, d.extractedFields)
	return out
}

func (d *ProcessedDocument) ValidationErrors() []string {
	out := make([]string, len(d.validationErrors))
	copy(out, d.validationErrors)
	return out
}

// Classify records the classifier verdict. A score outside [0,1] is stored as
// ConfidenceUnknown rather than rejected.
func (d *ProcessedDocument) Classify(docType DocumentType, confidence float64) error {
	if d.status != DocumentStatusPending && d.status != DocumentStatusClassified {
		return d.transitionError("classify")
	}
	c, err := NewConfidence(confidence)
	if err != nil {
		c = ConfidenceUnknown
	}
	if docType == "" {
		docType = DocumentTypeUnknown
	}
	d.documentType = docType
	d.classificationConfidence = c
	d.status = DocumentStatusClassified
	return nil
}

func (d *ProcessedDocument) AddExtractedField(field ExtractedField) error {
	if field.IsZero() {
		return WrapError(ErrInvalidInput, "add extracted field", errors.New("field is required"))
	}
	if d.status != DocumentStatusClassified {
		return d.transitionError("add extracted field")
	}
	d.extractedFields = append(d.extractedFields, field)
	return nil
}

func (d *ProcessedDocument) AddExtractedFields(fields []ExtractedField) error {
	for _, f := range fields {
		if err := d.AddExtractedField(f); err != nil {
			return err
		}
	}
	return nil
}

func (d *ProcessedDocument) CompleteExtraction() error {
	if d.status != DocumentStatusClassified && d.status != DocumentStatusExtracted {
		return d.transitionError("complete extraction")
	}
	d.status = DocumentStatusExtracted
	return nil
}

// AddValidationError ignores blank messages.
func (d *ProcessedDocument) AddValidationError(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	d.validationErrors = append(d.validationErrors, message)
}

// CompleteValidation resolves the terminal state: any validation error routes
// the document to manual review.
func (d *ProcessedDocument) CompleteValidation() error {
	if d.status != DocumentStatusExtracted {
		return d.transitionError("complete validation")
	}
	if len(d.validationErrors) > 0 {
		d.status = DocumentStatusManualReviewRequired
	} else {
		d.status = DocumentStatusCompleted
	}
	now := time.Now().UTC()
	d.processedAt = &now
	return nil
}

func (d *ProcessedDocument) MarkAsFailed(reason string) error {
	if d.status.IsTerminal() {
		return d.transitionError("mark as failed")
	}
	d.status = DocumentStatusFailed
	d.failureReason = reason
	now := time.Now().UTC()
	d.processedAt = &now
	return nil
}

// AverageConfidence is the mean field score, or 0 without fields.
func (d *ProcessedDocument) AverageConfidence() float64 {
	if len(d.extractedFields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range d.extractedFields {
		sum += f.confidence.score
	}
	return sum / float64(len(d.extractedFields))
}

// Field returns the first field whose name matches case-insensitively.
func (d *ProcessedDocument) Field(name string) (ExtractedField, bool) {
	for _, f := range d.extractedFields {
		if strings.EqualFold(f.name, name) {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// FieldValue returns the value of the first matching field. The boolean is
// false when the field is missing or carries no value.
func (d *ProcessedDocument) FieldValue(name string) (string, bool) {
	f, ok := d.Field(name)
	if !ok {
		return "", false
	}
	return f.Value()
}

func (d *ProcessedDocument) transitionError(op string) error {
	return WrapError(ErrInvalidTransition, op, fmt.Errorf("document %s is %s", d.id, d.status))
}

// DocumentSnapshot is the persisted form of a ProcessedDocument.
type DocumentSnapshot struct {
	ID                       uuid.UUID       `json:"id"`
	SourceAttachmentID       uuid.UUID       `json:"source_attachment_id"`
	OriginalFileName         string          `json:"original_file_name"`
	BlobStorageURL           string          `json:"blob_storage_url"`
	DocumentType             DocumentType    `json:"document_type"`
	ClassificationConfidence float64         `json:"classification_confidence"`
	Status                   DocumentStatus  `json:"status"`
	ExtractedFields          []FieldSnapshot `json:"extracted_fields"`
	ValidationErrors         []string        `json:"validation_errors"`
	ProcessedAt              *time.Time      `json:"processed_at,omitempty"`
	FailureReason            string          `json:"failure_reason,omitempty"`
}

func (d *ProcessedDocument) Snapshot() DocumentSnapshot {
	fields := make([]FieldSnapshot, 0, len(d.extractedFields))
	for _, f := range d.extractedFields {
		fields = append(fields, f.Snapshot())
	}
	return DocumentSnapshot{
		ID:                       d.id,
		SourceAttachmentID:       d.sourceAttachmentID,
		OriginalFileName:         d.originalFileName,
		BlobStorageURL:           d.blobStorageURL,
		DocumentType:             d.documentType,
		ClassificationConfidence: d.classificationConfidence.score,
		Status:                   d.status,
		ExtractedFields:          fields,
		ValidationErrors:         d.ValidationErrors(),
		ProcessedAt:              d.ProcessedAt(),
		FailureReason:            d.failureReason,
	}
}

// RehydrateProcessedDocument rebuilds a stored document without running any
// transition checks.
func RehydrateProcessedDocument(s DocumentSnapshot) *ProcessedDocument {
	fields := make([]ExtractedField, 0, len(s.ExtractedFields))
	for _, f := range s.ExtractedFields {
		fields = append(fields, RehydrateExtractedField(f))
	}
	docType := s.DocumentType
	if docType == "" {
		docType = DocumentTypeUnknown
	}
	var processedAt *time.Time
	if s.ProcessedAt != nil {
		t := *s.ProcessedAt
		processedAt = &t
	}
	errs := make([]string, len(s.ValidationErrors))
	copy(errs, s.ValidationErrors)
	return &ProcessedDocument{
		id:                       s.ID,
		sourceAttachmentID:       s.SourceAttachmentID,
		originalFileName:         s.OriginalFileName,
		blobStorageURL:           s.BlobStorageURL,
		documentType:             docType,
		classificationConfidence: Confidence{score: s.ClassificationConfidence},
		status:                   s.Status,
		extractedFields:          fields,
		validationErrors:         errs,
		processedAt:              processedAt,
		failureReason:            s.FailureReason,
	}
}
