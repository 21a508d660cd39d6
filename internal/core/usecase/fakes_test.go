package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

type jobRepoFake struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]domain.JobSnapshot
	pending     []uuid.UUID
	getErr      error
	createErr   error
	listErr     error
	updateErrs  map[int]error
	updateCalls int
	updates     []domain.JobSnapshot
}

func newJobRepoFake() *jobRepoFake {
	return &jobRepoFake{jobs: make(map[uuid.UUID]domain.JobSnapshot)}
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.ProcessingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	job.MarkPersisted(1)
	f.jobs[job.ID()] = job.Snapshot()
	return nil
}

func (f *jobRepoFake) GetByID(_ context.Context, id uuid.UUID) (*domain.ProcessingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", errors.New(id.String()))
	}
	return domain.RehydrateProcessingJob(s), nil
}

func (f *jobRepoFake) Update(_ context.Context, job *domain.ProcessingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if err := f.updateErrs[f.updateCalls]; err != nil {
		return err
	}
	job.MarkPersisted(job.Version() + 1)
	s := job.Snapshot()
	f.jobs[job.ID()] = s
	f.updates = append(f.updates, s)
	return nil
}

func (f *jobRepoFake) ListPending(_ context.Context, limit int) ([]uuid.UUID, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.pending) {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *jobRepoFake) stored(t *testing.T, id uuid.UUID) domain.JobSnapshot {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.jobs[id]
	if !ok {
		t.Fatalf("job %s was not stored", id)
	}
	return s
}

type trackedBlob struct {
	io.Reader
	store *blobStoreFake
}

func (b *trackedBlob) Close() error {
	b.store.mu.Lock()
	b.store.closed++
	b.store.mu.Unlock()
	return nil
}

// blobStoreFake serves content by blob name and counts open readers.
type blobStoreFake struct {
	mu      sync.Mutex
	blobs   map[string]string
	opened  int
	closed  int
	lastKey string
}

func (f *blobStoreFake) Download(_ context.Context, container, blob string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastKey = container + "/" + blob
	content, ok := f.blobs[blob]
	if !ok {
		return nil, domain.WrapError(domain.ErrBlobNotFound, "download blob", errors.New(blob))
	}
	f.opened++
	return &trackedBlob{Reader: bytes.NewBufferString(content), store: f}, nil
}

type classifierFake struct {
	results map[string]domain.ClassificationResult
	errs    map[string]error
	calls   []string
}

func (f *classifierFake) Classify(_ context.Context, r io.Reader, fileName string) (domain.ClassificationResult, error) {
	f.calls = append(f.calls, fileName)
	if _, err := io.ReadAll(r); err != nil {
		return domain.ClassificationResult{}, err
	}
	if err := f.errs[fileName]; err != nil {
		return domain.ClassificationResult{}, err
	}
	return f.results[fileName], nil
}

type extractorFake struct {
	acord       domain.AcordFormExtraction
	acordErr    error
	lossRun     domain.LossRunExtraction
	lossRunErr  error
	exposure    domain.ExposureScheduleExtraction
	exposureErr error
	calls       []string
}

func (f *extractorFake) ExtractAcordForm(_ context.Context, _ io.Reader, t domain.DocumentType) (domain.AcordFormExtraction, error) {
	f.calls = append(f.calls, "acord:"+t.String())
	return f.acord, f.acordErr
}

func (f *extractorFake) ExtractLossRun(context.Context, io.Reader) (domain.LossRunExtraction, error) {
	f.calls = append(f.calls, "loss_run")
	return f.lossRun, f.lossRunErr
}

func (f *extractorFake) ExtractExposureSchedule(context.Context, io.Reader) (domain.ExposureScheduleExtraction, error) {
	f.calls = append(f.calls, "exposure")
	return f.exposure, f.exposureErr
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (f *publisherFake) Publish(_ context.Context, events []domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *publisherFake) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventName())
	}
	return out
}

type queueFake struct {
	published []uuid.UUID
	err       error
}

func (f *queueFake) PublishJobRequested(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeJobRequested(context.Context, func(context.Context, uuid.UUID) error) error {
	return nil
}

func strPtr(v string) *string { return &v }

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
