package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/submission-intake/internal/core/domain"
	"github.com/kirillkom/submission-intake/internal/infrastructure/resilience"
)

// Connection-level failures: a later publish on the same connection can succeed.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
}

// Rejected messages. The server is healthy, so these do not count against
// the breaker.
var messageErrors = []error{
	nats.ErrBadSubject,
	nats.ErrMaxPayload,
}

func isAnyOf(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isAnyOf(err, connectionErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case isAnyOf(err, messageErrors):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishError tags a failed publish with its operation and a domain kind:
// ErrTemporary for connection trouble, ErrInvalidInput for rejected messages.
func publishError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrInvalidInput):
		return err
	case isAnyOf(err, messageErrors):
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	case classifyNATSError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, operation, err)
	default:
		return err
	}
}
