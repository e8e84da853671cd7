package es

import (
	"encoding/json"
	"fmt"
)

// Event is a domain event that can be appended to an aggregate's stream.
// Concrete events are plain structs with JSON tags; EventName returns the
// stable wire name under which the payload is stored and routed.
type Event interface {
	EventName() string
}

// State is an aggregate state rebuilt by replaying its committed events.
// Apply must be a pure state transition: commands never mutate state
// directly, they only return events.
type State interface {
	Apply(event Event) error
}

// Registry maps wire event names to constructors of empty event values.
// It is used to decode stored payloads back into typed events during replay
// and subscription dispatch.
type Registry map[string]func() Event

// Decode unmarshals a stored payload into its typed event.
func (r Registry) Decode(name string, payload []byte) (Event, error) {
	newEvent, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("unknown event name: %q", name)
	}
	event := newEvent()
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode event %q: %w", name, err)
	}
	return event, nil
}

// Encode marshals an event into its stored payload.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %q: %w", event.EventName(), err)
	}
	return payload, nil
}
