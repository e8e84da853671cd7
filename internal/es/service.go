package es

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
)

// maxConflictRetries bounds how often Update replays a command after losing
// an optimistic-concurrency race. Commands are pure functions of state, so
// re-running them against the fresh state is always safe.
const maxConflictRetries = 5

// CommandFunc evaluates a command against the current aggregate state and
// returns the event to append. A nil event with a nil error means the
// command is a validated no-op (e.g. an idempotent re-delivery) and nothing
// is written.
type CommandFunc[S State] func(state S) (Event, error)

// Service is the command/query facade over one aggregate type's event
// streams: it rebuilds state by replay, evaluates commands, and appends the
// resulting events with optimistic concurrency.
type Service[S State] struct {
	store         eventstore.Store
	aggregateType string
	newState      func() S
	registry      Registry
}

// NewService creates a facade for one aggregate type.
func NewService[S State](store eventstore.Store, aggregateType string, newState func() S, registry Registry) *Service[S] {
	return &Service[S]{
		store:         store,
		aggregateType: aggregateType,
		newState:      newState,
		registry:      registry,
	}
}

// Create starts a new aggregate stream with the event produced by init.
func (s *Service[S]) Create(ctx context.Context, id uuid.UUID, init CommandFunc[S]) (Event, error) {
	state := s.newState()

	event, err := init(state)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("create command for %s/%s produced no event", s.aggregateType, id)
	}

	if err := s.append(ctx, id, 0, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Update evaluates cmd against the aggregate's current state and appends the
// resulting event. On a version conflict the command is re-evaluated against
// the fresh state, up to maxConflictRetries times.
func (s *Service[S]) Update(ctx context.Context, id uuid.UUID, cmd CommandFunc[S]) (Event, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		state, version, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}

		event, err := cmd(state)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, nil
		}

		err = s.append(ctx, id, version, event)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, eventstore.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return nil, fmt.Errorf("failed to update %s/%s after %d attempts: %w", s.aggregateType, id, maxConflictRetries, lastErr)
}

// Load rebuilds the aggregate state by replaying its stream and returns the
// state together with the stream version.
func (s *Service[S]) Load(ctx context.Context, id uuid.UUID) (S, int64, error) {
	state := s.newState()

	envelopes, err := s.store.Load(ctx, s.aggregateType, id)
	if err != nil {
		return state, 0, fmt.Errorf("failed to load %s/%s: %w", s.aggregateType, id, err)
	}

	for _, envelope := range envelopes {
		event, err := s.registry.Decode(envelope.Name, envelope.Payload)
		if err != nil {
			return state, 0, fmt.Errorf("failed to replay %s/%s: %w", s.aggregateType, id, err)
		}
		if err := state.Apply(event); err != nil {
			return state, 0, fmt.Errorf("failed to replay %s/%s: %w", s.aggregateType, id, err)
		}
	}

	return state, envelopes[len(envelopes)-1].Version, nil
}

func (s *Service[S]) append(ctx context.Context, id uuid.UUID, expectedVersion int64, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	records := []eventstore.Record{{
		Name:    event.EventName(),
		Payload: payload,
	}}

	if _, err := s.store.Append(ctx, s.aggregateType, id, expectedVersion, records); err != nil {
		return err
	}
	return nil
}
