package projection

import (
	"context"

	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/subscription"
)

// SubscriberName keys the projector's durable checkpoint.
const SubscriberName = "projections::sub-account-directory"

// Projector feeds the directory from committed account events. Record is
// idempotent, so at-least-once delivery needs no dedup here.
type Projector struct {
	directory Directory
	logger    *zap.Logger
}

// NewProjector creates the directory projector.
func NewProjector(directory Directory, logger *zap.Logger) *Projector {
	return &Projector{
		directory: directory,
		logger:    logger,
	}
}

// Register attaches the projector to the subscription manager.
func (p *Projector) Register(manager *subscription.Manager) error {
	return manager.Subscribe(domain.AccountAggregateType, SubscriberName, p.Handle)
}

// Handle processes one committed account event.
func (p *Projector) Handle(ctx context.Context, envelope eventstore.Envelope) error {
	if envelope.Name != domain.SubAccountCreatedName {
		return nil
	}

	event, err := domain.AccountEventRegistry().Decode(envelope.Name, envelope.Payload)
	if err != nil {
		return err
	}
	created := event.(*domain.SubAccountCreated)

	if err := p.directory.Record(ctx, created.SubAccountID, created.AccountID); err != nil {
		return err
	}

	p.logger.Debug("sub-account recorded",
		zap.String("sub_account_id", created.SubAccountID.String()),
		zap.String("account_id", created.AccountID.String()),
	)
	return nil
}
