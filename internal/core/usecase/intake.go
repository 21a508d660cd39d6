package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/core/ports"
)

type IntakeUseCase struct {
	repo  ports.JobRepository
	queue ports.JobQueue
}

func NewIntakeUseCase(repo ports.JobRepository, queue ports.JobQueue) *IntakeUseCase {
	return &IntakeUseCase{
		repo:  repo,
		queue: queue,
	}
}

// CreateJob registers a pending job for attachments that are already stored.
// When cmd.Enqueue is set a processing request is published right away;
// otherwise the job waits for the batch worker.
func (uc *IntakeUseCase) CreateJob(ctx context.Context, cmd ports.CreateJobCommand) (*domain.ProcessingJob, error) {
	job, err := domain.NewProcessingJob(cmd.TenantID, cmd.InboundEmailID)
	if err != nil {
		return nil, err
	}

	for i, att := range cmd.Attachments {
		if att.SourceAttachmentID == uuid.Nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "create job", fmt.Errorf("attachment %d: source attachment id is required", i))
		}
		if _, err := BlobNameFromURL(att.BlobURL); err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
		if _, err := job.AddDocument(att.SourceAttachmentID, att.FileName, att.BlobURL); err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i, err)
		}
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if cmd.Enqueue {
		if uc.queue == nil {
			return nil, domain.WrapError(domain.ErrTemporary, "enqueue job", errors.New("job queue is not configured"))
		}
		if err := uc.queue.PublishJobRequested(ctx, job.ID()); err != nil {
			return nil, fmt.Errorf("publish job requested: %w", err)
		}
	}

	return job, nil
}
