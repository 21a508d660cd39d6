package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/core/ports"
)

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// Concurrency bounds the number of jobs of one batch processed at the
	// same time. Documents of a job are always processed one by one.
	Concurrency int
	JobTimeout  time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		Concurrency:  1,
		JobTimeout:   5 * time.Minute,
	}
}

func (c WorkerConfig) normalize() WorkerConfig {
	def := DefaultWorkerConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}

// BatchWorker polls pending jobs and hands them to the processor.
type BatchWorker struct {
	repo      ports.JobRepository
	processor ports.JobProcessor
	cfg       WorkerConfig
}

func NewBatchWorker(repo ports.JobRepository, processor ports.JobProcessor, cfg WorkerConfig) *BatchWorker {
	return &BatchWorker{
		repo:      repo,
		processor: processor,
		cfg:       cfg.normalize(),
	}
}

// Run polls until ctx is cancelled. A batch is started immediately and then
// once per poll interval; a slow batch delays the next tick.
func (w *BatchWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker_batch_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of pending jobs and reports how many were
// picked up. Failures of individual jobs are logged, not returned.
func (w *BatchWorker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.repo.ListPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := w.process(ctx, id); err != nil {
				slog.Error("worker_job_failed", "job_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("worker_batch_processed", "jobs", len(ids))
	return len(ids), nil
}

// HandleJobRequested processes a job requested through the queue. A job that
// is no longer pending was already picked up and is acknowledged silently.
func (w *BatchWorker) HandleJobRequested(ctx context.Context, jobID uuid.UUID) error {
	err := w.process(ctx, jobID)
	if domain.IsKind(err, domain.ErrInvalidTransition) {
		slog.Debug("worker_job_skipped", "job_id", jobID, "error", err)
		return nil
	}
	return err
}

func (w *BatchWorker) process(ctx context.Context, jobID uuid.UUID) error {
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	job, err := w.processor.ProcessJob(ctx, jobID)
	if err != nil {
		return err
	}
	slog.Info("worker_job_processed", "job_id", job.ID(), "status", job.Status())
	return nil
}
