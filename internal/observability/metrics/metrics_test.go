package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("scrape expected 200, got %d", res.Code)
	}
	return res.Body.String()
}

func assertSample(t *testing.T, body, sample string) {
	t.Helper()
	if !strings.Contains(body, sample) {
		t.Fatalf("expected sample %q in:\n%s", sample, body)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/healthz":             "/healthz",
		"/v1/jobs":             "/v1/jobs",
		"/v1/jobs/":            "/v1/jobs/",
		"/v1/jobs/abc":         "/v1/jobs/{job_id}",
		"/v1/jobs/abc/process": "/v1/jobs/{job_id}/process",
		"/metrics":             "/metrics",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+uuid.NewString(), nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	body := scrape(t, m.Handler())
	assertSample(t, body, `submission_http_requests_total{method="GET",path="/v1/jobs/{job_id}",service="api",status="404"} 1`)
}

func TestRecordRejected(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordRejected("api", "rate_limit")
	m.RecordRejected("api", "")

	body := scrape(t, m.Handler())
	assertSample(t, body, `submission_http_rate_limited_total{reason="rate_limit",service="api"} 1`)
	assertSample(t, body, `submission_http_rate_limited_total{reason="unknown",service="api"} 1`)
}

func TestWorkerMetricsFinishJob(t *testing.T) {
	m := NewWorkerMetrics("worker")

	job, err := domain.NewProcessingJob(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if _, err := job.AddDocument(uuid.New(), "a.pdf", "https://acct.blob.core.windows.net/email-attachments/a.pdf"); err != nil {
		t.Fatalf("add document: %v", err)
	}
	if err := job.Fail("Extraction phase aborted"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	m.StartJob()
	m.FinishJob(job, 2*time.Second, nil)

	body := scrape(t, m.Handler())
	assertSample(t, body, `submission_worker_job_process_total{service="worker",status="failed"} 1`)
	assertSample(t, body, `submission_worker_job_process_in_flight{service="worker"} 0`)
	assertSample(t, body, `submission_worker_documents_total{document_type="unknown",service="worker",status="pending"} 1`)
}

func TestWorkerMetricsFinishJobError(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.StartJob()
	m.FinishJob(nil, time.Second, errors.New("db down"))

	body := scrape(t, m.Handler())
	assertSample(t, body, `submission_worker_job_process_total{service="worker",status="error"} 1`)
}

func TestRecordBreakerState(t *testing.T) {
	m := NewWorkerMetrics("worker")

	m.RecordBreakerState("ollama.classify", "closed", "open")
	assertSample(t, scrape(t, m.Handler()), `submission_resilience_circuit_breaker_state{operation="ollama.classify",service="worker"} 2`)

	m.RecordBreakerState("ollama.classify", "open", "half-open")
	assertSample(t, scrape(t, m.Handler()), `submission_resilience_circuit_breaker_state{operation="ollama.classify",service="worker"} 1`)
}

func TestHTTPHandlerIncludesWorkerRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	workerMetrics := NewWorkerMetrics("api")
	httpMetrics.Include(workerMetrics.Gatherer())
	workerMetrics.ObserveQueueLag(time.Second)

	assertSample(t, scrape(t, httpMetrics.Handler()), `submission_worker_queue_lag_seconds_count{service="api"} 1`)
}
