package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/infrastructure/resilience"
)

const workerQueueGroup = "submission-workers"

type msgPublisher interface {
	Publish(subject string, data []byte) error
}

// Queue carries job processing requests and publishes domain events.
type Queue struct {
	conn        *nats.Conn
	publisher   msgPublisher
	jobSubject  string
	eventPrefix string
	executor    *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, jobSubject, eventPrefix string) (*Queue, error) {
	return NewWithOptions(url, jobSubject, eventPrefix, Options{})
}

func NewWithOptions(url, jobSubject, eventPrefix string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("submission-intake"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	q := newQueue(conn, jobSubject, eventPrefix, options.ResilienceExecutor)
	q.conn = conn
	return q, nil
}

func newQueue(pub msgPublisher, jobSubject, eventPrefix string, executor *resilience.Executor) *Queue {
	return &Queue{
		publisher:   pub,
		jobSubject:  jobSubject,
		eventPrefix: strings.TrimSuffix(eventPrefix, "."),
		executor:    executor,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishJobRequested(ctx context.Context, jobID uuid.UUID) error {
	return q.publish(ctx, "nats.publish.job_requested", q.jobSubject, []byte(jobID.String()))
}

// Publish sends every event on <prefix>.<event name>. It stops at the first
// failure.
func (q *Queue) Publish(ctx context.Context, events []domain.Event) error {
	for _, e := range events {
		data, err := encodeEvent(e)
		if err != nil {
			return err
		}
		if err := q.publish(ctx, "nats.publish.event", q.eventSubject(e), data); err != nil {
			return fmt.Errorf("publish %s: %w", e.EventName(), err)
		}
	}
	return nil
}

func (q *Queue) eventSubject(e domain.Event) string {
	return q.eventPrefix + "." + e.EventName()
}

func (q *Queue) publish(ctx context.Context, operation, subject string, data []byte) error {
	call := func(_ context.Context) error {
		if err := q.publisher.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return publishError(operation, err)
}

// SubscribeJobRequested blocks until ctx is done, handing every requested job
// id to handler. Messages that are not job ids are dropped.
func (q *Queue) SubscribeJobRequested(ctx context.Context, handler func(context.Context, uuid.UUID) error) error {
	if q.conn == nil {
		return errors.New("nats subscribe: not connected")
	}
	sub, err := q.conn.QueueSubscribe(q.jobSubject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		handleJobMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func handleJobMessage(ctx context.Context, data []byte, handler func(context.Context, uuid.UUID) error) {
	jobID, err := uuid.ParseBytes(data)
	if err != nil {
		slog.Warn("nats_invalid_job_message", "payload", string(data), "error", err)
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, jobID); err != nil {
		slog.Error("worker_handler_failed", "job_id", jobID, "error", err)
	}
}
