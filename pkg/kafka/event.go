package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the JSON envelope written as the value of every Kafka message.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Aggregate names the entity an event describes. Its ID becomes the message
// key, so events about one entity stay ordered on one partition.
type Aggregate struct {
	Type string
	ID   string
}

// EventOption decorates an event built by NewEvent.
type EventOption func(*Event)

// WithCorrelationID ties the event to the request that caused it. An empty
// id is ignored.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) {
		if id != "" {
			e.CorrelationID = id
		}
	}
}

// WithMetadata adds a metadata entry. An empty value is ignored.
func WithMetadata(key, value string) EventOption {
	return func(e *Event) {
		if value == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		e.Metadata[key] = value
	}
}

// NewEvent builds a version 1 envelope around data with a fresh event ID and
// the current UTC time.
func NewEvent(eventType string, agg Aggregate, source string, data any, opts ...EventOption) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	e := &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   agg.ID,
		AggregateType: agg.Type,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// DecodeEvent parses a message value written by Producer.Publish.
func DecodeEvent(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	return json.Unmarshal(e.Data, target)
}
