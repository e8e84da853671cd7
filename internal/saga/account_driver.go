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

// Subscriber names keying the account driver's durable checkpoints.
const (
	TransactionSubscriberName = "accounts::transaction-processing"
	AccountStepSubscriberName = "accounts::transfer-steps"
)

// Saga step names used as dedup keys together with the transfer id.
const (
	stepBegin    = "begin-transfer-out"
	stepComplete = "complete-transfer-in"
	stepRollback = "rollback-transfer-out"
	stepResolve  = "resolve-pending"
)

// AccountDriver is the choreography subscriber that drives the account
// aggregates through the transfer protocol. It reacts to the saga record's
// creation and to the accounts' own transfer events, issuing exactly one
// account command per observed event:
//
//	TransferTransactionCreated -> BeginTransferOut on the source
//	TransferHalfCompleted      -> CompleteTransferIn on the destination
//	TransferRollback (denial)  -> RollbackTransferOut on the source
//	TransferCompleted          -> ResolvePendingTransfer on the source
//
// Every step is guarded by the dedup store, so re-delivered events are
// no-ops.
type AccountDriver struct {
	accounts *es.Service[*domain.Account]
	dedup    DedupStore
	logger   *zap.Logger
}

// NewAccountDriver creates the account-side choreography subscriber.
func NewAccountDriver(accounts *es.Service[*domain.Account], dedup DedupStore, logger *zap.Logger) *AccountDriver {
	return &AccountDriver{
		accounts: accounts,
		dedup:    dedup,
		logger:   logger,
	}
}

// Register attaches both of the driver's subscriptions to the manager.
func (d *AccountDriver) Register(manager *subscription.Manager) error {
	if err := manager.Subscribe(domain.TransferAggregateType, TransactionSubscriberName, d.HandleTransferEvent); err != nil {
		return err
	}
	return manager.Subscribe(domain.AccountAggregateType, AccountStepSubscriberName, d.HandleAccountEvent)
}

// HandleTransferEvent reacts to saga record events.
func (d *AccountDriver) HandleTransferEvent(ctx context.Context, envelope eventstore.Envelope) error {
	if envelope.Name != domain.TransferTransactionCreatedName {
		return nil
	}

	event, err := domain.TransferEventRegistry().Decode(envelope.Name, envelope.Payload)
	if err != nil {
		return err
	}
	created := event.(*domain.TransferTransactionCreated)

	return d.step(ctx, created.TransferID, stepBegin, created.SourceAccountID, func(account *domain.Account) (es.Event, error) {
		return account.BeginTransferOut(
			created.SourceSubAccountID,
			created.TransferID,
			created.Amount,
			created.DestinationAccountID,
			created.DestinationSubAccountID,
		)
	})
}

// HandleAccountEvent reacts to committed account events that carry the
// protocol forward.
func (d *AccountDriver) HandleAccountEvent(ctx context.Context, envelope eventstore.Envelope) error {
	switch envelope.Name {
	case domain.TransferHalfCompletedName, domain.TransferRollbackName, domain.TransferCompletedName:
	default:
		return nil
	}

	event, err := domain.AccountEventRegistry().Decode(envelope.Name, envelope.Payload)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case *domain.TransferHalfCompleted:
		return d.step(ctx, e.TransferID, stepComplete, e.DestinationAccountID, func(account *domain.Account) (es.Event, error) {
			return account.CompleteTransferIn(
				e.SourceAccountID,
				e.SourceSubAccountID,
				e.TransferID,
				e.Amount,
				e.DestinationSubAccountID,
			)
		})

	case *domain.TransferRollback:
		return d.step(ctx, e.TransferID, stepRollback, e.SourceAccountID, func(account *domain.Account) (es.Event, error) {
			return account.RollbackTransferOut(e.SourceSubAccountID, e.TransferID, e.Reason)
		})

	case *domain.TransferCompleted:
		return d.step(ctx, e.TransferID, stepResolve, e.SourceAccountID, func(account *domain.Account) (es.Event, error) {
			return account.ResolvePendingTransfer(e.SourceSubAccountID, e.TransferID)
		})
	}
	return nil
}

// step runs one dedup-guarded account command for a transfer.
func (d *AccountDriver) step(ctx context.Context, transferID uuid.UUID, step string, accountID uuid.UUID, cmd es.CommandFunc[*domain.Account]) error {
	seen, err := d.dedup.Seen(ctx, transferID, step)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	event, err := d.accounts.Update(ctx, accountID, cmd)
	if err != nil {
		return fmt.Errorf("saga step %s for transfer %s: %w", step, transferID, err)
	}

	if err := d.dedup.Mark(ctx, transferID, step); err != nil {
		return err
	}

	if event != nil {
		d.logger.Info("saga step executed",
			zap.String("transfer_id", transferID.String()),
			zap.String("step", step),
			zap.String("event", event.EventName()),
		)
	}
	return nil
}
