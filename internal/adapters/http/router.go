package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/config"
	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/core/ports"
	"github.com/kirillkom/submission-intake/internal/observability/metrics"
)

const maxRequestBody = 1 << 20

type Router struct {
	cfg       config.Config
	creator   ports.JobCreator
	processor ports.JobProcessor
	reader    ports.JobReader
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	creator ports.JobCreator,
	processor ports.JobProcessor,
	reader ports.JobReader,
) *Router {
	return &Router{
		cfg:       cfg,
		creator:   creator,
		processor: processor,
		reader:    reader,
	}
}

// WithMetrics exposes /metrics and records request metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/jobs", rt.createJob)
	mux.HandleFunc("GET /v1/jobs/{id}", rt.getJob)
	mux.HandleFunc("POST /v1/jobs/{id}/process", rt.processJob)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.onRejected)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onRejected)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected("api", reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createJob(w http.ResponseWriter, r *http.Request) {
	var cmd ports.CreateJobCommand
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if cmd.TenantID == uuid.Nil || cmd.InboundEmailID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, "tenant_id and inbound_email_id are required")
		return
	}

	job, err := rt.creator.CreateJob(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newJobResponse(job))
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job))
}

// processJob runs the pipeline synchronously. Job-level failures are part of
// the returned job, not an HTTP error.
func (rt *Router) processJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := rt.processor.ProcessJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job))
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "job id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

type jobResponse struct {
	domain.JobSnapshot
	Summary domain.JobSummary `json:"summary"`
}

func newJobResponse(job *domain.ProcessingJob) jobResponse {
	return jobResponse{
		JobSnapshot: job.Snapshot(),
		Summary:     job.Summary(),
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("http_handler_error", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
