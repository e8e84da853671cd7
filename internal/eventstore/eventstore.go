package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict is returned when an append observes a stream version
	// different from the expected one, i.e. another writer committed first.
	// The caller is expected to reload the aggregate and retry the command.
	ErrVersionConflict = errors.New("aggregate version conflict")

	// ErrStreamNotFound is returned when loading an aggregate that has no events.
	ErrStreamNotFound = errors.New("aggregate stream not found")
)

// Record is a serialized event ready to be appended to a stream.
type Record struct {
	Name    string
	Payload json.RawMessage
}

// Envelope is a committed event as stored in the log.
// Version orders events within one aggregate's stream (1-based).
// Sequence orders events across all streams of one aggregate type and is
// the cursor subscribers checkpoint against. No ordering is guaranteed
// between different aggregate types.
type Envelope struct {
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	Version       int64
	Sequence      int64
	Name          string
	Payload       json.RawMessage
	OccurredAt    time.Time
}

// Store is the append-only event log.
//
// Append commits events to one aggregate's stream with optimistic
// concurrency: expectedVersion is the stream version the writer observed
// (0 for a new stream). It returns ErrVersionConflict if the stream has
// moved on.
type Store interface {
	Append(ctx context.Context, aggregateType string, aggregateID uuid.UUID, expectedVersion int64, records []Record) ([]Envelope, error)

	// Load returns the full stream of one aggregate in version order.
	// Returns ErrStreamNotFound if no events exist.
	Load(ctx context.Context, aggregateType string, aggregateID uuid.UUID) ([]Envelope, error)

	// ReadAfter returns up to limit committed events of the given aggregate
	// type with Sequence > afterSeq, in sequence order. Used by subscriptions.
	ReadAfter(ctx context.Context, aggregateType string, afterSeq int64, limit int) ([]Envelope, error)
}
