package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// AttachmentInput describes one attachment already stored in blob storage.
type AttachmentInput struct {
	SourceAttachmentID uuid.UUID `json:"source_attachment_id"`
	FileName           string    `json:"file_name"`
	BlobURL            string    `json:"blob_url"`
}

type CreateJobCommand struct {
	TenantID       uuid.UUID         `json:"tenant_id"`
	InboundEmailID uuid.UUID         `json:"inbound_email_id"`
	Attachments    []AttachmentInput `json:"attachments"`
	Enqueue        bool              `json:"enqueue"`
}

// JobCreator is the inbound contract for registering a job from known attachments.
type JobCreator interface {
	CreateJob(ctx context.Context, cmd CreateJobCommand) (*domain.ProcessingJob, error)
}

// JobProcessor runs the classify/extract/validate pipeline for one job. The
// returned error covers infrastructure problems only; job-level failures are
// reported through the job status.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID uuid.UUID) (*domain.ProcessingJob, error)
}

// JobReader is the inbound read model for job state.
type JobReader interface {
	GetByID(ctx context.Context, jobID uuid.UUID) (*domain.ProcessingJob, error)
}
