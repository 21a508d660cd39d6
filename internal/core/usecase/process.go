package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/core/ports"
)

const noDocumentsMessage = "No documents to process"

type ProcessJobUseCase struct {
	repo       ports.JobRepository
	blobs      ports.BlobStore
	classifier ports.DocumentClassifier
	extractor  ports.DocumentExtractor
	publisher  ports.EventPublisher
	observer   ports.ProcessingObserver
}

func NewProcessJobUseCase(
	repo ports.JobRepository,
	blobs ports.BlobStore,
	classifier ports.DocumentClassifier,
	extractor ports.DocumentExtractor,
	publisher ports.EventPublisher,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		repo:       repo,
		blobs:      blobs,
		classifier: classifier,
		extractor:  extractor,
		publisher:  publisher,
	}
}

// WithObserver attaches job measurements. Passing nil disables them.
func (uc *ProcessJobUseCase) WithObserver(observer ports.ProcessingObserver) *ProcessJobUseCase {
	uc.observer = observer
	return uc
}

// documentOutcome is the result of one document in one phase.
type documentOutcome struct {
	documentID uuid.UUID
	skipped    bool
	err        error
}

type phase struct {
	name string
	run  func(context.Context, *domain.ProcessingJob) ([]documentOutcome, error)
}

// ProcessJob runs classification, extraction and validation for a pending (or
// interrupted) job, persisting the job after every phase. Document failures
// and job-level failures are recorded on the job; the returned error is set
// only when the job could not be loaded or its final state could not be
// stored.
func (uc *ProcessJobUseCase) ProcessJob(ctx context.Context, jobID uuid.UUID) (*domain.ProcessingJob, error) {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch job by id: %w", err)
	}
	if s := job.Status(); s != domain.JobStatusPending && s != domain.JobStatusClassifying {
		return job, domain.WrapError(domain.ErrInvalidTransition, "process job", fmt.Errorf("job %s is %s", job.ID(), s))
	}

	started := time.Now()
	if uc.observer != nil {
		if job.Status() == domain.JobStatusPending {
			uc.observer.ObserveQueueLag(started.Sub(job.StartedAt()))
		}
		uc.observer.StartJob()
	}
	err = uc.run(ctx, job)
	if uc.observer != nil {
		uc.observer.FinishJob(job, time.Since(started), err)
	}
	return job, err
}

func (uc *ProcessJobUseCase) run(ctx context.Context, job *domain.ProcessingJob) error {
	if len(job.Documents()) == 0 {
		return uc.abort(ctx, job, errors.New(noDocumentsMessage))
	}

	phases := []phase{
		{name: "classification", run: uc.classifyPhase},
		{name: "extraction", run: uc.extractPhase},
		{name: "validation", run: uc.validatePhase},
	}
	for _, p := range phases {
		outcomes, err := p.run(ctx, job)
		if err != nil {
			return uc.abort(ctx, job, err)
		}
		logPhase(job, p.name, outcomes)
		if err := uc.checkpoint(ctx, job); err != nil {
			return uc.abort(ctx, job, err)
		}
	}

	if err := job.Complete(); err != nil {
		return uc.abort(ctx, job, err)
	}
	if err := uc.checkpoint(ctx, job); err != nil {
		return uc.abort(ctx, job, err)
	}

	s := job.Summary()
	slog.Info("job_completed",
		"job_id", job.ID(),
		"total", s.Total,
		"successful", s.Successful,
		"failed", s.Failed,
		"review_required", s.ReviewRequired,
	)
	return nil
}

func (uc *ProcessJobUseCase) classifyPhase(ctx context.Context, job *domain.ProcessingJob) ([]documentOutcome, error) {
	if err := job.StartClassification(); err != nil {
		return nil, err
	}

	outcomes := make([]documentOutcome, 0, len(job.Documents()))
	for _, doc := range job.Documents() {
		if s := doc.Status(); s != domain.DocumentStatusPending && s != domain.DocumentStatusClassified {
			outcomes = append(outcomes, documentOutcome{documentID: doc.ID(), skipped: true})
			continue
		}
		err := uc.classifyDocument(ctx, job, doc)
		if err != nil {
			markFailed(doc, "Classification failed: "+err.Error())
		}
		outcomes = append(outcomes, documentOutcome{documentID: doc.ID(), err: err})
	}
	return outcomes, nil
}

func (uc *ProcessJobUseCase) classifyDocument(ctx context.Context, job *domain.ProcessingJob, doc *domain.ProcessedDocument) error {
	result, err := withBlob(ctx, uc.blobs, doc, func(r io.Reader) (domain.ClassificationResult, error) {
		return uc.classifier.Classify(ctx, r, doc.OriginalFileName())
	})
	if err != nil {
		return err
	}
	return job.OnDocumentClassified(doc.ID(), result.DocumentType, result.Confidence)
}

func (uc *ProcessJobUseCase) extractPhase(ctx context.Context, job *domain.ProcessingJob) ([]documentOutcome, error) {
	if err := job.StartExtraction(); err != nil {
		return nil, err
	}

	outcomes := make([]documentOutcome, 0, len(job.Documents()))
	for _, doc := range job.Documents() {
		if doc.Status() != domain.DocumentStatusClassified {
			outcomes = append(outcomes, documentOutcome{documentID: doc.ID(), skipped: true})
			continue
		}
		err := uc.extractDocument(ctx, doc)
		if err == nil {
			err = job.OnDocumentExtractionCompleted(doc.ID())
		}
		if err != nil {
			markFailed(doc, "Extraction failed: "+err.Error())
		}
		outcomes = append(outcomes, documentOutcome{documentID: doc.ID(), err: err})
	}
	return outcomes, nil
}

// extractDocument adds the type-specific fields to a classified document.
// Types without an extractor get no fields.
func (uc *ProcessJobUseCase) extractDocument(ctx context.Context, doc *domain.ProcessedDocument) error {
	docType := doc.DocumentType()
	switch {
	case docType.IsAcordForm():
		ext, err := withBlob(ctx, uc.blobs, doc, func(r io.Reader) (domain.AcordFormExtraction, error) {
			return uc.extractor.ExtractAcordForm(ctx, r, docType)
		})
		if err != nil {
			return err
		}
		return doc.AddExtractedFields(acordFields(ext))
	case docType == domain.DocumentTypeLossRunReport:
		ext, err := withBlob(ctx, uc.blobs, doc, func(r io.Reader) (domain.LossRunExtraction, error) {
			return uc.extractor.ExtractLossRun(ctx, r)
		})
		if err != nil {
			return err
		}
		return doc.AddExtractedFields(synthesizeLossRunFields(ext))
	case docType == domain.DocumentTypeExposureSchedule:
		ext, err := withBlob(ctx, uc.blobs, doc, func(r io.Reader) (domain.ExposureScheduleExtraction, error) {
			return uc.extractor.ExtractExposureSchedule(ctx, r)
		})
		if err != nil {
			return err
		}
		return doc.AddExtractedFields(synthesizeExposureFields(ext))
	default:
		return nil
	}
}

func (uc *ProcessJobUseCase) validatePhase(_ context.Context, job *domain.ProcessingJob) ([]documentOutcome, error) {
	if err := job.StartValidation(); err != nil {
		return nil, err
	}

	outcomes := make([]documentOutcome, 0, len(job.Documents()))
	for _, doc := range job.Documents() {
		if doc.Status() != domain.DocumentStatusExtracted {
			outcomes = append(outcomes, documentOutcome{documentID: doc.ID(), skipped: true})
			continue
		}
		for _, msg := range validateDocument(doc) {
			doc.AddValidationError(msg)
		}
		if err := doc.CompleteValidation(); err != nil {
			return nil, fmt.Errorf("complete validation: %w", err)
		}
		outcomes = append(outcomes, documentOutcome{documentID: doc.ID()})
	}
	return outcomes, nil
}

// checkpoint persists the job and publishes the events it buffered. Publish
// errors are logged only: the job state is already durable.
func (uc *ProcessJobUseCase) checkpoint(ctx context.Context, job *domain.ProcessingJob) error {
	if err := uc.repo.Update(ctx, job); err != nil {
		return fmt.Errorf("persist job: %w", err)
	}

	events := job.DrainEvents()
	if len(events) == 0 || uc.publisher == nil {
		return nil
	}
	if err := uc.publisher.Publish(ctx, events); err != nil {
		slog.Warn("publish_job_events_failed", "job_id", job.ID(), "events", len(events), "error", err)
	}
	return nil
}

// abort fails the whole job and stores it. The remaining phases do not run.
// Persisting the failure ignores cancellation of ctx so that a job is not
// left half-way when the caller gives up.
func (uc *ProcessJobUseCase) abort(ctx context.Context, job *domain.ProcessingJob, cause error) error {
	slog.Error("job_failed", "job_id", job.ID(), "status", job.Status(), "error", cause)
	if job.Status().IsTerminal() {
		// Already finished in memory: the last write is what failed.
		if perr := uc.checkpoint(context.WithoutCancel(ctx), job); perr != nil {
			return fmt.Errorf("%w; persist %s job: %w", cause, job.Status(), perr)
		}
		slog.Warn("job_persist_retried", "job_id", job.ID(), "status", job.Status(), "error", cause)
		return nil
	}
	if err := job.Fail(cause.Error()); err != nil {
		return fmt.Errorf("%w; fail job: %w", cause, err)
	}
	if err := uc.checkpoint(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("%v; persist failed job: %w", cause, err)
	}
	return nil
}

func markFailed(doc *domain.ProcessedDocument, reason string) {
	if err := doc.MarkAsFailed(reason); err != nil {
		slog.Warn("document_mark_failed_rejected", "document_id", doc.ID(), "error", err)
		return
	}
	slog.Warn("document_failed", "document_id", doc.ID(), "file_name", doc.OriginalFileName(), "reason", reason)
}

// withBlob opens the document content, hands it to fn and closes it on every
// path.
func withBlob[T any](ctx context.Context, blobs ports.BlobStore, doc *domain.ProcessedDocument, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	name, err := BlobNameFromURL(doc.BlobStorageURL())
	if err != nil {
		return zero, err
	}
	rc, err := blobs.Download(ctx, AttachmentContainer, name)
	if err != nil {
		return zero, fmt.Errorf("download %s/%s: %w", AttachmentContainer, name, err)
	}
	defer rc.Close()
	return fn(rc)
}

func logPhase(job *domain.ProcessingJob, name string, outcomes []documentOutcome) {
	var processed, skipped, failed int
	for _, o := range outcomes {
		switch {
		case o.skipped:
			skipped++
		case o.err != nil:
			failed++
		default:
			processed++
		}
	}
	slog.Info("job_phase_completed",
		"job_id", job.ID(),
		"phase", name,
		"processed", processed,
		"failed", failed,
		"skipped", skipped,
	)
}
