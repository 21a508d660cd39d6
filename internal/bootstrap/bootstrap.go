package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kirillkom/submission-intake/internal/config"
	"github.com/kirillkom/submission-intake/internal/core/ports"
	"github.com/kirillkom/submission-intake/internal/core/usecase"
	"github.com/kirillkom/submission-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/submission-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/submission-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/submission-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/submission-intake/internal/infrastructure/storage/azureblob"
	"github.com/kirillkom/submission-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/submission-intake/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue     *nats.Queue
	Repo      ports.JobRepository
	IntakeUC  *usecase.IntakeUseCase
	ProcessUC *usecase.ProcessJobUseCase
	Worker    *usecase.BatchWorker
	Metrics   *metrics.WorkerMetrics

	closeFn func()
}

// New wires the application. service labels the processing metrics.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewJobRepository(db)

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	processMetrics := metrics.NewWorkerMetrics(service)
	breakerCfg := resilience.DefaultConfig()
	breakerCfg.BreakerEnabled = cfg.BreakerEnabled
	breakerCfg.BreakerMinRequests = uint32(max(cfg.BreakerMinRequests, 0))
	breakerCfg.BreakerFailureRatio = cfg.BreakerFailureRatio
	breakerCfg.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	breakerCfg.OnStateChange = processMetrics.RecordBreakerState

	natsCfg := breakerCfg
	natsCfg.RetryMaxAttempts = cfg.NATSRetryAttempts
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSJobSubject, cfg.NATSEventSubjectPrefix, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(natsCfg),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		HTTPClient:         &http.Client{Timeout: cfg.OllamaTimeout},
		RequestsPerSecond:  cfg.OllamaRequestsPerSecond,
		ResilienceExecutor: resilience.NewExecutor(breakerCfg.SingleAttempt()),
	})
	classifier := ollama.NewClassifier(ollamaClient)
	extractor := ollama.NewExtractor(ollamaClient)

	intakeUC := usecase.NewIntakeUseCase(repo, queue)
	processUC := usecase.NewProcessJobUseCase(repo, blobs, classifier, extractor, queue).WithObserver(processMetrics)
	worker := usecase.NewBatchWorker(repo, processUC, usecase.WorkerConfig{
		PollInterval: cfg.WorkerPollInterval,
		BatchSize:    cfg.WorkerBatchSize,
		Concurrency:  cfg.WorkerConcurrency,
		JobTimeout:   cfg.WorkerJobTimeout,
	})

	return &App{
		Config: cfg,

		Queue:     queue,
		Repo:      repo,
		IntakeUC:  intakeUC,
		ProcessUC: processUC,
		Worker:    worker,
		Metrics:   processMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// newBlobStore prefers Azure Blob Storage and falls back to the local
// directory layout <STORAGE_PATH>/<container>/<blob>.
func newBlobStore(ctx context.Context, cfg config.Config) (ports.BlobStore, error) {
	if cfg.AzureStorageConnectionString == "" {
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		slog.Info("blob_store_selected", "kind", "localfs", "path", cfg.StoragePath)
		return store, nil
	}

	store, err := azureblob.New(cfg.AzureStorageConnectionString, nil)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureContainer(ctx, usecase.AttachmentContainer); err != nil {
		return nil, err
	}
	slog.Info("blob_store_selected", "kind", "azureblob", "container", usecase.AttachmentContainer)
	return store, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
