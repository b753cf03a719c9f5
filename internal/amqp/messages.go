package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Record kinds carried by RecordEvent.
const (
	RecordKindExpense = "expense"
	RecordKindTrip    = "trip"
)

var ErrInvalidEvent = errors.New("invalid record event")

// RecordEvent announces a newly created record. It carries only the kind
// and identifier; consumers read the record from the snapshot store.
type RecordEvent struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordEvent creates a new event stamped with the current time.
func NewRecordEvent(kind, id string) *RecordEvent {
	return &RecordEvent{
		Kind:      kind,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// Validate rejects unknown kinds and empty identifiers.
func (m *RecordEvent) Validate() error {
	if m.Kind != RecordKindExpense && m.Kind != RecordKindTrip {
		return ErrInvalidEvent
	}
	if m.ID == "" {
		return ErrInvalidEvent
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON decodes and validates a message body.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
