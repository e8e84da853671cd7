package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/subscription"
)

// CloserSubscriberName keys the saga closer's durable checkpoint.
const CloserSubscriberName = "transfers::saga-closer"

const (
	stepMarkCompleted = "mark-completed"
	stepMarkFailed    = "mark-failed"
)

// Closer is the choreography subscriber that moves the saga record to its
// terminal state. It reacts only to events on the source account's stream:
// the source is the single point that decides the final outcome, so the
// destination never races it for the saga record.
//
//	TransferPendingResolved -> MarkCompleted
//	TransferRejected        -> MarkFailed (never begun, nothing frozen)
//	TransferAborted         -> MarkFailed (compensated)
type Closer struct {
	transfers *es.Service[*domain.TransferTransaction]
	dedup     DedupStore
	logger    *zap.Logger
}

// NewCloser creates the saga-closing subscriber.
func NewCloser(transfers *es.Service[*domain.TransferTransaction], dedup DedupStore, logger *zap.Logger) *Closer {
	return &Closer{
		transfers: transfers,
		dedup:     dedup,
		logger:    logger,
	}
}

// Register attaches the closer to the subscription manager.
func (c *Closer) Register(manager *subscription.Manager) error {
	return manager.Subscribe(domain.AccountAggregateType, CloserSubscriberName, c.Handle)
}

// Handle processes one committed account event.
func (c *Closer) Handle(ctx context.Context, envelope eventstore.Envelope) error {
	switch envelope.Name {
	case domain.TransferPendingResolvedName, domain.TransferRejectedName, domain.TransferAbortedName:
	default:
		return nil
	}

	event, err := domain.AccountEventRegistry().Decode(envelope.Name, envelope.Payload)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case *domain.TransferPendingResolved:
		return c.close(ctx, e.TransferID, stepMarkCompleted, func(transfer *domain.TransferTransaction) (es.Event, error) {
			return transfer.MarkCompleted()
		})

	case *domain.TransferRejected:
		return c.close(ctx, e.TransferID, stepMarkFailed, func(transfer *domain.TransferTransaction) (es.Event, error) {
			return transfer.MarkFailed(e.Reason)
		})

	case *domain.TransferAborted:
		return c.close(ctx, e.TransferID, stepMarkFailed, func(transfer *domain.TransferTransaction) (es.Event, error) {
			return transfer.MarkFailed(e.Reason)
		})
	}
	return nil
}

func (c *Closer) close(ctx context.Context, transferID uuid.UUID, step string, cmd es.CommandFunc[*domain.TransferTransaction]) error {
	seen, err := c.dedup.Seen(ctx, transferID, step)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	event, err := c.transfers.Update(ctx, transferID, cmd)
	if err != nil {
		return fmt.Errorf("saga step %s for transfer %s: %w", step, transferID, err)
	}

	if err := c.dedup.Mark(ctx, transferID, step); err != nil {
		return err
	}

	if event != nil {
		c.logger.Info("transfer closed",
			zap.String("transfer_id", transferID.String()),
			zap.String("outcome", event.EventName()),
		)
	}
	return nil
}
