package eventstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used in tests and for wiring the
// system without external infrastructure. Streams are keyed by aggregate
// type and id; sequences are per aggregate type.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[streamKey][]Envelope
	byType  map[string][]Envelope
}

type streamKey struct {
	aggregateType string
	aggregateID   uuid.UUID
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[streamKey][]Envelope),
		byType:  make(map[string][]Envelope),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, aggregateType string, aggregateID uuid.UUID, expectedVersion int64, records []Record) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey{aggregateType: aggregateType, aggregateID: aggregateID}
	stream := s.streams[key]

	currentVersion := int64(len(stream))
	if currentVersion != expectedVersion {
		return nil, ErrVersionConflict
	}

	appended := make([]Envelope, 0, len(records))
	for i, record := range records {
		envelope := Envelope{
			EventID:       uuid.New(),
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			Version:       currentVersion + int64(i) + 1,
			Sequence:      int64(len(s.byType[aggregateType])) + int64(i) + 1,
			Name:          record.Name,
			Payload:       record.Payload,
			OccurredAt:    time.Now().UTC(),
		}
		appended = append(appended, envelope)
	}

	s.streams[key] = append(stream, appended...)
	s.byType[aggregateType] = append(s.byType[aggregateType], appended...)
	return appended, nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, aggregateType string, aggregateID uuid.UUID) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamKey{aggregateType: aggregateType, aggregateID: aggregateID}]
	if len(stream) == 0 {
		return nil, ErrStreamNotFound
	}

	out := make([]Envelope, len(stream))
	copy(out, stream)
	return out, nil
}

// ReadAfter implements Store.
func (s *MemoryStore) ReadAfter(ctx context.Context, aggregateType string, afterSeq int64, limit int) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.byType[aggregateType]
	out := make([]Envelope, 0, limit)
	for _, envelope := range all {
		if envelope.Sequence <= afterSeq {
			continue
		}
		out = append(out, envelope)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
