package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/submission-intake/internal/infrastructure/resilience"
)

// Client talks to the Ollama generate API.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	HTTPClient *http.Client
	// RequestsPerSecond throttles calls to the model server. Zero disables
	// throttling.
	RequestsPerSecond  float64
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
	if rps := options.RequestsPerSecond; rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
	return c
}

// wait blocks until the rate limiter allows one request, or ctx is cancelled.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// generateJSON asks the model for a JSON answer and decodes it into out.
func (c *Client) generateJSON(ctx context.Context, operation, prompt string, out any) error {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, operation); err != nil {
		return err
	}
	raw := extractJSONObject(strings.TrimSpace(response.Response))
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse %s json: %w", operation, err)
	}
	return nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
