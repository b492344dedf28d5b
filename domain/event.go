package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Queue classes group events for downstream consumers. Balance-mutating
// events go out on the ledger class so projections can prioritise them.
const (
	QueueClassDefault = "default"
	QueueClassLedger  = "ledger"
)

// Event is an immutable fact appended to an aggregate stream. Ordered strictly
// by Sequence within a stream; Position is the global order assigned by the
// event store at commit time.
type Event struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	Sequence    int64           `json:"sequence"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Hash        string          `json:"hash,omitempty"`
	QueueClass  string          `json:"queue_class"`
	Position    int64           `json:"position,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// NewEvent marshals the payload into an envelope. Sequence is assigned when
// the event is recorded against an aggregate.
func NewEvent(aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, WrapError(ErrCodeInvalid, "event payload not serializable", err)
	}
	return Event{
		ID:          uuid.NewString(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     body,
		QueueClass:  QueueClassDefault,
		RecordedAt:  time.Now().UTC(),
	}, nil
}

// DecodePayload unmarshals the payload into the given target.
func (e Event) DecodePayload(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return WrapError(ErrCodeInternal, "event payload not decodable", err)
	}
	return nil
}
