package saga

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DedupStore remembers which saga steps have already been executed for a
// transfer, keyed by (transferId, step). Subscribers check it before issuing
// a step command and mark the step after the command committed, which makes
// at-least-once re-delivery of the triggering event a no-op.
//
// The mark is written after the command, not before: a crash in between
// re-runs the command, and the aggregates' own no-op guards make that safe.
// Marking first would let a transient failure permanently skip a step.
type DedupStore interface {
	// Seen reports whether the step was already executed for the transfer.
	Seen(ctx context.Context, transferID uuid.UUID, step string) (bool, error)

	// Mark records the step as executed. Idempotent.
	Mark(ctx context.Context, transferID uuid.UUID, step string) error
}

// MemoryDedupStore keeps the step log in process memory.
type MemoryDedupStore struct {
	mu    sync.Mutex
	steps map[string]struct{}
}

// NewMemoryDedupStore creates an empty in-memory dedup store.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{
		steps: make(map[string]struct{}),
	}
}

// Seen implements DedupStore.
func (s *MemoryDedupStore) Seen(ctx context.Context, transferID uuid.UUID, step string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.steps[transferID.String()+"/"+step]
	return ok, nil
}

// Mark implements DedupStore.
func (s *MemoryDedupStore) Mark(ctx context.Context, transferID uuid.UUID, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[transferID.String()+"/"+step] = struct{}{}
	return nil
}

// PostgresDedupStore persists the step log in the saga_steps table
// (see migrations/001_events.sql).
type PostgresDedupStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDedupStore creates a DedupStore backed by PostgreSQL.
func NewPostgresDedupStore(pool *pgxpool.Pool) *PostgresDedupStore {
	return &PostgresDedupStore{
		pool: pool,
	}
}

// Seen implements DedupStore.
func (s *PostgresDedupStore) Seen(ctx context.Context, transferID uuid.UUID, step string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM saga_steps WHERE transfer_id = $1 AND step = $2
		)
	`, transferID, step).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("failed to check saga step: %w", err)
	}
	return seen, nil
}

// Mark implements DedupStore.
func (s *PostgresDedupStore) Mark(ctx context.Context, transferID uuid.UUID, step string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO saga_steps (transfer_id, step)
		VALUES ($1, $2)
		ON CONFLICT (transfer_id, step) DO NOTHING
	`, transferID, step)
	if err != nil {
		return fmt.Errorf("failed to mark saga step: %w", err)
	}
	return nil
}
