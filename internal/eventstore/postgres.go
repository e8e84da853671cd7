package eventstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on top of a single append-only events table.
//
// Schema (see migrations/001_events.sql):
//
//	CREATE TABLE events (
//	    sequence        BIGSERIAL,
//	    event_id        UUID        NOT NULL,
//	    aggregate_type  TEXT        NOT NULL,
//	    aggregate_id    UUID        NOT NULL,
//	    version         BIGINT      NOT NULL,
//	    name            TEXT        NOT NULL,
//	    payload         JSONB       NOT NULL,
//	    occurred_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (aggregate_type, aggregate_id, version)
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
	}
}

// Append implements Store. Optimistic concurrency relies on the primary key
// over (aggregate_type, aggregate_id, version): a concurrent writer that
// committed the same version first makes our insert fail with a unique
// violation, which is surfaced as ErrVersionConflict.
func (s *PostgresStore) Append(ctx context.Context, aggregateType string, aggregateID uuid.UUID, expectedVersion int64, records []Record) ([]Envelope, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Serialize sequence assignment per aggregate type so that a subscriber
	// reading past sequence N never misses a not-yet-visible row with a
	// smaller sequence number.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, aggregateType); err != nil {
		return nil, fmt.Errorf("failed to acquire append lock: %w", err)
	}

	// Re-check the observed stream version inside the transaction.
	var currentVersion int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, aggregateType, aggregateID).Scan(&currentVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream version: %w", err)
	}
	if currentVersion != expectedVersion {
		return nil, ErrVersionConflict
	}

	appended := make([]Envelope, 0, len(records))
	for i, record := range records {
		envelope := Envelope{
			EventID:       uuid.New(),
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			Version:       expectedVersion + int64(i) + 1,
			Name:          record.Name,
			Payload:       record.Payload,
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO events (event_id, aggregate_type, aggregate_id, version, name, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING sequence, occurred_at
		`,
			envelope.EventID,
			envelope.AggregateType,
			envelope.AggregateID,
			envelope.Version,
			envelope.Name,
			envelope.Payload,
		).Scan(&envelope.Sequence, &envelope.OccurredAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrVersionConflict
			}
			return nil, fmt.Errorf("failed to append event: %w", err)
		}

		appended = append(appended, envelope)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	return appended, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, aggregateType string, aggregateID uuid.UUID) ([]Envelope, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sequence, event_id, aggregate_type, aggregate_id, version, name, payload, occurred_at
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY version
	`, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stream: %w", err)
	}
	defer rows.Close()

	envelopes, err := scanEnvelopes(rows)
	if err != nil {
		return nil, err
	}
	if len(envelopes) == 0 {
		return nil, ErrStreamNotFound
	}
	return envelopes, nil
}

// ReadAfter implements Store.
func (s *PostgresStore) ReadAfter(ctx context.Context, aggregateType string, afterSeq int64, limit int) ([]Envelope, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sequence, event_id, aggregate_type, aggregate_id, version, name, payload, occurred_at
		FROM events
		WHERE aggregate_type = $1 AND sequence > $2
		ORDER BY sequence
		LIMIT $3
	`, aggregateType, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	return scanEnvelopes(rows)
}

func scanEnvelopes(rows pgx.Rows) ([]Envelope, error) {
	var envelopes []Envelope
	for rows.Next() {
		var envelope Envelope
		err := rows.Scan(
			&envelope.Sequence,
			&envelope.EventID,
			&envelope.AggregateType,
			&envelope.AggregateID,
			&envelope.Version,
			&envelope.Name,
			&envelope.Payload,
			&envelope.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		envelopes = append(envelopes, envelope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return envelopes, nil
}

// isUniqueViolation checks for PostgreSQL error code 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
