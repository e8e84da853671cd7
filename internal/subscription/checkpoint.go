package subscription

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckpointStore persists each subscriber's position in its aggregate
// type's sequence. The checkpoint is advanced only after a handler has
// processed an event, which is what makes delivery at-least-once: a crash
// between processing and saving replays the event.
type CheckpointStore interface {
	// Get returns the last processed sequence for the subscriber (0 if none).
	Get(ctx context.Context, subscriber string) (int64, error)

	// Save durably records the last processed sequence for the subscriber.
	Save(ctx context.Context, subscriber string, sequence int64) error
}

// MemoryCheckpointStore keeps checkpoints in process memory. Used in tests
// and for wiring without external infrastructure.
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]int64
}

// NewMemoryCheckpointStore creates an empty in-memory checkpoint store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]int64),
	}
}

// Get implements CheckpointStore.
func (s *MemoryCheckpointStore) Get(ctx context.Context, subscriber string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[subscriber], nil
}

// Save implements CheckpointStore.
func (s *MemoryCheckpointStore) Save(ctx context.Context, subscriber string, sequence int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[subscriber] = sequence
	return nil
}

// PostgresCheckpointStore persists checkpoints in the subscription_checkpoints
// table (see migrations/001_events.sql).
type PostgresCheckpointStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCheckpointStore creates a CheckpointStore backed by PostgreSQL.
func NewPostgresCheckpointStore(pool *pgxpool.Pool) *PostgresCheckpointStore {
	return &PostgresCheckpointStore{
		pool: pool,
	}
}

// Get implements CheckpointStore.
func (s *PostgresCheckpointStore) Get(ctx context.Context, subscriber string) (int64, error) {
	var sequence int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence), 0)
		FROM subscription_checkpoints
		WHERE subscriber = $1
	`, subscriber).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("failed to get checkpoint for %s: %w", subscriber, err)
	}
	return sequence, nil
}

// Save implements CheckpointStore.
func (s *PostgresCheckpointStore) Save(ctx context.Context, subscriber string, sequence int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscription_checkpoints (subscriber, sequence)
		VALUES ($1, $2)
		ON CONFLICT (subscriber) DO UPDATE SET sequence = EXCLUDED.sequence
	`, subscriber, sequence)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", subscriber, err)
	}
	return nil
}
