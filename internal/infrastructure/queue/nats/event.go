package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/submission-intake/internal/core/domain"
)

type eventEnvelope struct {
	Event       string          `json:"event"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func encodeEvent(e domain.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.EventName(), err)
	}
	data, err := json.Marshal(eventEnvelope{
		Event:       e.EventName(),
		AggregateID: e.AggregateID(),
		OccurredAt:  e.OccurredAt(),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", e.EventName(), err)
	}
	return data, nil
}
