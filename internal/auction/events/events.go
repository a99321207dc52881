package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message broadcast by the auction engine.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Type represents the type of auction event.
type Type string

const (
	TypeSessionStarted Type = "session_started"
	TypeTimerUpdate    Type = "timer_update"
	TypeNewBid         Type = "new_bid"
	TypeSessionEnded   Type = "session_ended"
	TypeLowStockAlert  Type = "low_stock_alert"
	TypeInitialData    Type = "initial_data"
)

// New wraps a payload into an event envelope.
func New(t Type, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Sink receives every event the engine emits. Implementations must not block
// the caller; slow delivery has to be buffered or dropped inside the sink.
type Sink interface {
	Publish(event *Event)
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

func (s MultiSink) Publish(event *Event) {
	for _, sink := range s {
		sink.Publish(event)
	}
}

// ParsePayload decodes the event data into the payload struct for its type.
func ParsePayload(event *Event) (any, error) {
	switch event.Type {
	case TypeSessionStarted:
		return parseInto[SessionStartedPayload](event)
	case TypeTimerUpdate:
		return parseInto[TimerUpdatePayload](event)
	case TypeNewBid:
		return parseInto[NewBidPayload](event)
	case TypeSessionEnded:
		return parseInto[SessionEndedPayload](event)
	case TypeLowStockAlert:
		return parseInto[LowStockAlertPayload](event)
	case TypeInitialData:
		return parseInto[InitialDataPayload](event)
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
}

func parseInto[T any](event *Event) (T, error) {
	var payload T
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
