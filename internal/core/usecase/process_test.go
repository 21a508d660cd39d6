package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

const testBlobBase = "https://acct.blob.core.windows.net/email-attachments/tenant-1/"

type processFixture struct {
	repo       *jobRepoFake
	blobs      *blobStoreFake
	classifier *classifierFake
	extractor  *extractorFake
	publisher  *publisherFake
	uc         *ProcessJobUseCase
}

func newProcessFixture() *processFixture {
	f := &processFixture{
		repo:  newJobRepoFake(),
		blobs: &blobStoreFake{blobs: make(map[string]string)},
		classifier: &classifierFake{
			results: make(map[string]domain.ClassificationResult),
			errs:    make(map[string]error),
		},
		extractor: &extractorFake{},
		publisher: &publisherFake{},
	}
	f.uc = NewProcessJobUseCase(f.repo, f.blobs, f.classifier, f.extractor, f.publisher)
	return f
}

// attach stores a blob, registers its classification and returns the
// attachment URL.
func (f *processFixture) attach(fileName string, docType domain.DocumentType) string {
	f.blobs.blobs["tenant-1/"+fileName] = "content of " + fileName
	f.classifier.results[fileName] = domain.ClassificationResult{DocumentType: docType, Confidence: 0.97}
	return testBlobBase + fileName
}

func (f *processFixture) createJob(t *testing.T, fileNames ...string) uuid.UUID {
	t.Helper()
	job, err := domain.NewProcessingJob(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("NewProcessingJob() error = %v", err)
	}
	for _, name := range fileNames {
		if _, err := job.AddDocument(uuid.New(), name, testBlobBase+name); err != nil {
			t.Fatalf("AddDocument() error = %v", err)
		}
	}
	if err := f.repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return job.ID()
}

func (f *processFixture) process(t *testing.T, id uuid.UUID) *domain.ProcessingJob {
	t.Helper()
	job, err := f.uc.ProcessJob(context.Background(), id)
	if err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	return job
}

func documentByName(t *testing.T, job *domain.ProcessingJob, fileName string) *domain.ProcessedDocument {
	t.Helper()
	for _, d := range job.Documents() {
		if d.OriginalFileName() == fileName {
			return d
		}
	}
	t.Fatalf("document %q not found", fileName)
	return nil
}

func fieldNames(doc *domain.ProcessedDocument) []string {
	fields := doc.ExtractedFields()
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name())
	}
	return out
}

func acordExtraction(values map[string]string, score float64) domain.AcordFormExtraction {
	fields := make(map[string]domain.AcordFieldValue, len(values))
	for name, v := range values {
		fields[name] = domain.AcordFieldValue{Value: strPtr(v), Confidence: score}
	}
	return domain.AcordFormExtraction{Fields: fields}
}

func TestProcessJobAcord125EndToEnd(t *testing.T) {
	f := newProcessFixture()
	f.attach("acord125.pdf", domain.DocumentTypeAcord125)
	f.extractor.acord = domain.AcordFormExtraction{Fields: map[string]domain.AcordFieldValue{
		"InsuredName":   {Value: strPtr("ABC Corp"), Confidence: 0.95},
		"EffectiveDate": {Value: strPtr("2024-04-01"), Confidence: 0.92},
		"InsuredCity":   {Value: strPtr("Austin"), Confidence: 0.91},
	}}
	id := f.createJob(t, "acord125.pdf")

	job := f.process(t, id)

	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected job completed, got %s (%s)", job.Status(), job.ErrorMessage())
	}
	doc := documentByName(t, job, "acord125.pdf")
	if doc.Status() != domain.DocumentStatusCompleted {
		t.Fatalf("expected document completed, got %s: %v", doc.Status(), doc.ValidationErrors())
	}
	if v, _ := doc.FieldValue("insuredname"); v != "ABC Corp" {
		t.Fatalf("unexpected insured name %q", v)
	}
	if got := job.Summary(); got != (domain.JobSummary{Total: 1, Successful: 1}) {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if f.repo.updateCalls != 4 {
		t.Fatalf("expected a checkpoint per phase plus completion, got %d", f.repo.updateCalls)
	}
	if f.blobs.lastKey != "email-attachments/tenant-1/acord125.pdf" {
		t.Fatalf("unexpected blob key %q", f.blobs.lastKey)
	}
	if f.blobs.opened != 2 || f.blobs.closed != 2 {
		t.Fatalf("expected 2 opened and closed blobs, got %d/%d", f.blobs.opened, f.blobs.closed)
	}

	want := []string{
		domain.EventDocumentClassified,
		domain.EventDocumentExtractionCompleted,
		domain.EventProcessingJobCompleted,
	}
	got := f.publisher.names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events: %v", got)
	}
	completed := f.publisher.events[2].(domain.ProcessingJobCompleted)
	if completed.Summary != (domain.JobSummary{Total: 1, Successful: 1}) {
		t.Fatalf("unexpected completion summary: %+v", completed.Summary)
	}

	stored := f.repo.stored(t, id)
	if stored.Status != domain.JobStatusCompleted || stored.CompletedAt == nil {
		t.Fatalf("completed state was not persisted: %+v", stored)
	}
}

func TestProcessJobAcord125MissingEffectiveDateNeedsReview(t *testing.T) {
	f := newProcessFixture()
	f.attach("acord125.pdf", domain.DocumentTypeAcord125)
	f.extractor.acord = acordExtraction(map[string]string{
		"InsuredName":    "ABC Corp",
		"InsuredAddress": "1 Main St",
	}, 0.95)
	id := f.createJob(t, "acord125.pdf")

	job := f.process(t, id)

	doc := documentByName(t, job, "acord125.pdf")
	if doc.Status() != domain.DocumentStatusManualReviewRequired {
		t.Fatalf("expected manual review, got %s", doc.Status())
	}
	errs := doc.ValidationErrors()
	if len(errs) != 1 || !strings.Contains(strings.ToLower(errs[0]), "effective date") {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if got := job.Summary(); got != (domain.JobSummary{Total: 1, ReviewRequired: 1}) {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestProcessJobWithoutDocumentsFails(t *testing.T) {
	f := newProcessFixture()
	id := f.createJob(t)

	job := f.process(t, id)

	if job.Status() != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status())
	}
	if job.ErrorMessage() != "No documents to process" {
		t.Fatalf("unexpected error message %q", job.ErrorMessage())
	}
	for _, name := range f.publisher.names() {
		if name == domain.EventProcessingJobCompleted {
			t.Fatal("job without documents must not complete")
		}
	}
	if len(f.classifier.calls) != 0 {
		t.Fatalf("no phase should run, classifier got %v", f.classifier.calls)
	}
	if f.repo.stored(t, id).Status != domain.JobStatusFailed {
		t.Fatal("failed state was not persisted")
	}
}

func TestProcessJobIsolatesClassificationFailure(t *testing.T) {
	f := newProcessFixture()
	f.attach("good.pdf", domain.DocumentTypeOther)
	f.attach("bad.pdf", domain.DocumentTypeAcord126)
	f.classifier.errs["bad.pdf"] = errors.New("model unavailable")
	id := f.createJob(t, "bad.pdf", "good.pdf")

	job := f.process(t, id)

	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected job completed, got %s", job.Status())
	}
	bad := documentByName(t, job, "bad.pdf")
	if bad.Status() != domain.DocumentStatusFailed {
		t.Fatalf("expected failed document, got %s", bad.Status())
	}
	if bad.FailureReason() != "Classification failed: model unavailable" {
		t.Fatalf("unexpected failure reason %q", bad.FailureReason())
	}
	if good := documentByName(t, job, "good.pdf"); good.Status() != domain.DocumentStatusCompleted {
		t.Fatalf("expected other document completed, got %s", good.Status())
	}
	if len(f.extractor.calls) != 0 {
		t.Fatalf("failed and untyped documents must not reach the extractor: %v", f.extractor.calls)
	}
	if got := job.Summary(); got != (domain.JobSummary{Total: 2, Successful: 1, Failed: 1}) {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestProcessJobMissingBlobFailsDocument(t *testing.T) {
	f := newProcessFixture()
	id := f.createJob(t, "missing.pdf")

	job := f.process(t, id)

	doc := documentByName(t, job, "missing.pdf")
	if doc.Status() != domain.DocumentStatusFailed {
		t.Fatalf("expected failed document, got %s", doc.Status())
	}
	if !strings.HasPrefix(doc.FailureReason(), "Classification failed: ") {
		t.Fatalf("unexpected failure reason %q", doc.FailureReason())
	}
	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected job completed, got %s", job.Status())
	}
	if got := job.Summary(); got != (domain.JobSummary{Total: 1, Failed: 1}) {
		t.Fatalf("unexpected summary: %+v", got)
	}
}

func TestProcessJobIsolatesExtractionFailure(t *testing.T) {
	f := newProcessFixture()
	f.attach("losses.pdf", domain.DocumentTypeLossRunReport)
	f.extractor.lossRunErr = errors.New("timeout")
	id := f.createJob(t, "losses.pdf")

	job := f.process(t, id)

	doc := documentByName(t, job, "losses.pdf")
	if doc.Status() != domain.DocumentStatusFailed {
		t.Fatalf("expected failed document, got %s", doc.Status())
	}
	if doc.FailureReason() != "Extraction failed: timeout" {
		t.Fatalf("unexpected failure reason %q", doc.FailureReason())
	}
	if f.blobs.opened != f.blobs.closed {
		t.Fatalf("blob readers leaked: opened %d closed %d", f.blobs.opened, f.blobs.closed)
	}
	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected job completed, got %s", job.Status())
	}
}

func TestProcessJobSynthesizesLossRunFields(t *testing.T) {
	f := newProcessFixture()
	f.attach("losses.pdf", domain.DocumentTypeLossRunReport)
	d1 := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC)
	f.extractor.lossRun = domain.LossRunExtraction{Losses: []domain.LossRecord{
		{DateOfLoss: &d1, PaidAmount: float64Ptr(1500)},
		{DateOfLoss: &d2, PaidAmount: float64Ptr(250.5)},
	}}
	id := f.createJob(t, "losses.pdf")

	job := f.process(t, id)

	doc := documentByName(t, job, "losses.pdf")
	want := "Loss_1_DateOfLoss,Loss_1_PaidAmount,Loss_2_DateOfLoss,Loss_2_PaidAmount,LossCount"
	if got := strings.Join(fieldNames(doc), ","); got != want {
		t.Fatalf("unexpected fields %s", got)
	}
	checks := map[string]string{
		"Loss_1_DateOfLoss": "2023-01-15",
		"Loss_1_PaidAmount": "1500.00",
		"Loss_2_PaidAmount": "250.50",
		"LossCount":         "2",
	}
	for name, want := range checks {
		if got, _ := doc.FieldValue(name); got != want {
			t.Fatalf("%s: expected %q, got %q", name, want, got)
		}
	}
	if doc.Status() != domain.DocumentStatusCompleted {
		t.Fatalf("expected completed, got %s: %v", doc.Status(), doc.ValidationErrors())
	}
}

func TestProcessJobSynthesizesExposureFields(t *testing.T) {
	f := newProcessFixture()
	f.attach("sov.xlsx", domain.DocumentTypeExposureSchedule)
	f.extractor.exposure = domain.ExposureScheduleExtraction{Locations: []domain.ExposureLocation{
		{LocationNumber: intPtr(7), Street1: "1 Main St", State: "TX", BuildingValue: float64Ptr(1000000)},
		{City: "Austin", YearBuilt: intPtr(1998)},
	}}
	id := f.createJob(t, "sov.xlsx")

	job := f.process(t, id)

	doc := documentByName(t, job, "sov.xlsx")
	want := "Location_7_Street1,Location_7_State,Location_7_BuildingValue,Location_2_City,Location_2_YearBuilt,LocationCount"
	if got := strings.Join(fieldNames(doc), ","); got != want {
		t.Fatalf("unexpected fields %s", got)
	}
	if v, _ := doc.FieldValue("Location_7_BuildingValue"); v != "1000000.00" {
		t.Fatalf("unexpected building value %q", v)
	}
	if v, _ := doc.FieldValue("LocationCount"); v != "2" {
		t.Fatalf("unexpected location count %q", v)
	}
	if doc.Status() != domain.DocumentStatusCompleted {
		t.Fatalf("expected completed, got %s: %v", doc.Status(), doc.ValidationErrors())
	}
}

func TestProcessJobEmptyExposureScheduleNeedsReview(t *testing.T) {
	f := newProcessFixture()
	f.attach("sov.xlsx", domain.DocumentTypeExposureSchedule)
	id := f.createJob(t, "sov.xlsx")

	job := f.process(t, id)

	doc := documentByName(t, job, "sov.xlsx")
	if doc.Status() != domain.DocumentStatusManualReviewRequired {
		t.Fatalf("expected manual review, got %s", doc.Status())
	}
	if errs := doc.ValidationErrors(); len(errs) != 1 || errs[0] != msgNoLocationData {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
}

func TestProcessJobSkipsExtractionForUntypedDocuments(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeUnknown)
	id := f.createJob(t, "note.txt")

	job := f.process(t, id)

	doc := documentByName(t, job, "note.txt")
	if len(f.extractor.calls) != 0 {
		t.Fatalf("unexpected extractor calls %v", f.extractor.calls)
	}
	if doc.Status() != domain.DocumentStatusCompleted || len(doc.ExtractedFields()) != 0 {
		t.Fatalf("expected completed document without fields, got %s with %d fields", doc.Status(), len(doc.ExtractedFields()))
	}
}

func TestProcessJobSkipsInvalidAcordEntries(t *testing.T) {
	f := newProcessFixture()
	f.attach("acord126.pdf", domain.DocumentTypeAcord126)
	f.extractor.acord = domain.AcordFormExtraction{Fields: map[string]domain.AcordFieldValue{
		"InsuredName": {Value: strPtr("ABC Corp"), Confidence: 0.95},
		"GLLimit":     {Value: strPtr("1000000"), Confidence: 0.9},
		"   ":         {Value: strPtr("blank"), Confidence: 0.9},
		"Broken":      {Value: strPtr("x"), Confidence: 1.7},
		"BadPage":     {Value: strPtr("x"), Confidence: 0.9, PageNumber: intPtr(0)},
	}}
	id := f.createJob(t, "acord126.pdf")

	job := f.process(t, id)

	doc := documentByName(t, job, "acord126.pdf")
	if got := strings.Join(fieldNames(doc), ","); got != "GLLimit,InsuredName" {
		t.Fatalf("unexpected fields %s", got)
	}
	if doc.Status() != domain.DocumentStatusCompleted {
		t.Fatalf("expected completed, got %s: %v", doc.Status(), doc.ValidationErrors())
	}
	if f.extractor.calls[0] != "acord:acord_126" {
		t.Fatalf("unexpected extractor call %v", f.extractor.calls)
	}
}

func TestProcessJobCheckpointFailureFailsJob(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeOther)
	f.repo.updateErrs = map[int]error{2: errors.New("connection reset")}
	id := f.createJob(t, "note.txt")

	job := f.process(t, id)

	if job.Status() != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status())
	}
	if !strings.Contains(job.ErrorMessage(), "connection reset") {
		t.Fatalf("unexpected error message %q", job.ErrorMessage())
	}
	if f.repo.updateCalls != 3 {
		t.Fatalf("expected validation to be skipped, got %d updates", f.repo.updateCalls)
	}
	if f.repo.stored(t, id).Status != domain.JobStatusFailed {
		t.Fatal("failed state was not persisted")
	}
}

func TestProcessJobReturnsErrorWhenFailureCannotBePersisted(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeOther)
	storeDown := errors.New("store down")
	f.repo.updateErrs = map[int]error{1: storeDown, 2: storeDown}
	id := f.createJob(t, "note.txt")

	job, err := f.uc.ProcessJob(context.Background(), id)
	if !errors.Is(err, storeDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if job.Status() != domain.JobStatusFailed {
		t.Fatalf("expected in-memory job failed, got %s", job.Status())
	}
}

func TestProcessJobRetriesFinalWrite(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeOther)
	f.repo.updateErrs = map[int]error{4: errors.New("db gone")}
	id := f.createJob(t, "note.txt")

	job := f.process(t, id)

	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status())
	}
	if f.repo.updateCalls != 5 {
		t.Fatalf("expected the final write to be retried once, got %d updates", f.repo.updateCalls)
	}
	if got := f.repo.stored(t, id).Status; got != domain.JobStatusCompleted {
		t.Fatalf("expected stored status completed, got %s", got)
	}
	names := f.publisher.names()
	if len(names) == 0 || names[len(names)-1] != domain.EventProcessingJobCompleted {
		t.Fatalf("expected completion event after retry, got %v", names)
	}
}

func TestProcessJobFinalWriteFailureKeepsCause(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeOther)
	dbGone := errors.New("db gone")
	retryFailed := errors.New("still down")
	f.repo.updateErrs = map[int]error{4: dbGone, 5: retryFailed}
	id := f.createJob(t, "note.txt")

	_, err := f.uc.ProcessJob(context.Background(), id)
	if !errors.Is(err, dbGone) || !errors.Is(err, retryFailed) {
		t.Fatalf("expected both write errors, got %v", err)
	}
	if domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("refused fail transition must not be reported, got %v", err)
	}
}

func TestProcessJobResumesClassifyingJob(t *testing.T) {
	f := newProcessFixture()
	f.attach("classified.txt", domain.DocumentTypeOther)
	f.attach("pending.txt", domain.DocumentTypeOther)
	f.attach("failed.txt", domain.DocumentTypeOther)

	doc := func(name string, status domain.DocumentStatus, docType domain.DocumentType) domain.DocumentSnapshot {
		return domain.DocumentSnapshot{
			ID:                 uuid.New(),
			SourceAttachmentID: uuid.New(),
			OriginalFileName:   name,
			BlobStorageURL:     testBlobBase + name,
			DocumentType:       docType,
			Status:             status,
		}
	}
	failed := doc("failed.txt", domain.DocumentStatusFailed, domain.DocumentTypeUnknown)
	failed.FailureReason = "Classification failed: timeout"
	classified := doc("classified.txt", domain.DocumentStatusClassified, domain.DocumentTypeOther)
	classified.ClassificationConfidence = 0.9

	id := uuid.New()
	f.repo.jobs[id] = domain.JobSnapshot{
		ID:             id,
		TenantID:       uuid.New(),
		InboundEmailID: uuid.New(),
		Status:         domain.JobStatusClassifying,
		Documents: []domain.DocumentSnapshot{
			classified,
			failed,
			doc("pending.txt", domain.DocumentStatusPending, domain.DocumentTypeUnknown),
		},
		StartedAt: time.Now().UTC().Add(-time.Minute),
		Version:   3,
	}

	job := f.process(t, id)

	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status())
	}
	for _, name := range f.classifier.calls {
		if name == "failed.txt" {
			t.Fatal("failed document must not be classified again")
		}
	}
	if len(f.classifier.calls) != 2 {
		t.Fatalf("expected two classifier calls, got %v", f.classifier.calls)
	}
	got := documentByName(t, job, "failed.txt")
	if got.Status() != domain.DocumentStatusFailed || got.FailureReason() != "Classification failed: timeout" {
		t.Fatalf("failed document changed: %s %q", got.Status(), got.FailureReason())
	}
	for _, name := range []string{"classified.txt", "pending.txt"} {
		if s := documentByName(t, job, name).Status(); s != domain.DocumentStatusCompleted {
			t.Fatalf("%s: expected completed, got %s", name, s)
		}
	}
	s := job.Summary()
	if s.Total != 3 || s.Successful != 2 || s.Failed != 1 || s.ReviewRequired != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestProcessJobRejectsFinishedJob(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeOther)
	id := f.createJob(t, "note.txt")
	f.process(t, id)
	calls := f.repo.updateCalls

	_, err := f.uc.ProcessJob(context.Background(), id)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if f.repo.updateCalls != calls {
		t.Fatal("finished job must not be written again")
	}
}

func TestProcessJobLoadError(t *testing.T) {
	f := newProcessFixture()
	_, err := f.uc.ProcessJob(context.Background(), uuid.New())
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestProcessJobPublishFailureIsNotFatal(t *testing.T) {
	f := newProcessFixture()
	f.attach("note.txt", domain.DocumentTypeOther)
	f.publisher.err = errors.New("nats down")
	id := f.createJob(t, "note.txt")

	job := f.process(t, id)

	if job.Status() != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", job.Status())
	}
	if len(job.PendingEvents()) != 0 {
		t.Fatal("events must be drained after persistence even when publishing fails")
	}
}

type observerFake struct {
	started  int
	finished []domain.JobStatus
	lags     []time.Duration
}

func (o *observerFake) StartJob() { o.started++ }

func (o *observerFake) FinishJob(job *domain.ProcessingJob, _ time.Duration, _ error) {
	o.finished = append(o.finished, job.Status())
}

func (o *observerFake) ObserveQueueLag(lag time.Duration) { o.lags = append(o.lags, lag) }

func TestProcessJobReportsToObserver(t *testing.T) {
	f := newProcessFixture()
	obs := &observerFake{}
	f.uc.WithObserver(obs)
	f.attach("note.txt", domain.DocumentTypeOther)
	id := f.createJob(t, "note.txt")

	f.process(t, id)

	if obs.started != 1 || len(obs.finished) != 1 || obs.finished[0] != domain.JobStatusCompleted {
		t.Fatalf("unexpected observer state: %+v", obs)
	}
	if len(obs.lags) != 1 || obs.lags[0] < 0 {
		t.Fatalf("unexpected queue lag: %v", obs.lags)
	}
}
