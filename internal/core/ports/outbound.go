package ports

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

// JobRepository persists processing jobs together with their documents.
type JobRepository interface {
	Create(ctx context.Context, job *domain.ProcessingJob) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*domain.ProcessingJob, error)
	// Update writes the job and all of its documents atomically.
	Update(ctx context.Context, job *domain.ProcessingJob) error
	// ListPending returns ids of pending jobs, oldest first.
	ListPending(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// BlobStore reads attachment content. Callers must close the returned reader.
type BlobStore interface {
	Download(ctx context.Context, containerName, blobName string) (io.ReadCloser, error)
}

// DocumentClassifier decides what kind of document an attachment is.
type DocumentClassifier interface {
	Classify(ctx context.Context, content io.Reader, fileName string) (domain.ClassificationResult, error)
}

// DocumentExtractor pulls type-specific data out of a classified document.
type DocumentExtractor interface {
	ExtractAcordForm(ctx context.Context, content io.Reader, docType domain.DocumentType) (domain.AcordFormExtraction, error)
	ExtractLossRun(ctx context.Context, content io.Reader) (domain.LossRunExtraction, error)
	ExtractExposureSchedule(ctx context.Context, content io.Reader) (domain.ExposureScheduleExtraction, error)
}

// EventPublisher delivers drained domain events.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// JobQueue carries direct processing requests.
type JobQueue interface {
	PublishJobRequested(ctx context.Context, jobID uuid.UUID) error
	SubscribeJobRequested(ctx context.Context, handler func(context.Context, uuid.UUID) error) error
}

// ProcessingObserver receives job-level processing measurements.
type ProcessingObserver interface {
	StartJob()
	FinishJob(job *domain.ProcessingJob, duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}
