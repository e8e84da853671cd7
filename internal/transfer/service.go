package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/projection"
)

// ErrUnknownParticipant is returned when one of the transfer's sub-accounts
// cannot be resolved to an owning account.
var ErrUnknownParticipant = errors.New("unknown transfer participant")

// Service initiates cross-account transfers. It validates that both
// sub-accounts exist via the lookup directory and creates the saga record;
// everything after that happens asynchronously through the choreography.
type Service struct {
	directory projection.Directory
	transfers *es.Service[*domain.TransferTransaction]
}

// NewService creates the transfer initiation service.
func NewService(directory projection.Directory, transfers *es.Service[*domain.TransferTransaction]) *Service {
	return &Service{
		directory: directory,
		transfers: transfers,
	}
}

// Initiate creates a new transfer saga in the PROCESSING state and returns
// its id. The result only means the transfer was accepted for processing;
// its outcome is observed via Get.
func (s *Service) Initiate(ctx context.Context, sourceSubAccountID, destinationSubAccountID uuid.UUID, amount decimal.Decimal) (uuid.UUID, error) {
	sourceAccountID, err := s.directory.ResolveOwner(ctx, sourceSubAccountID)
	if err != nil {
		if errors.Is(err, projection.ErrUnknownSubAccount) {
			return uuid.Nil, fmt.Errorf("no source sub-account %s: %w", sourceSubAccountID, ErrUnknownParticipant)
		}
		return uuid.Nil, fmt.Errorf("failed to resolve source sub-account: %w", err)
	}

	destinationAccountID, err := s.directory.ResolveOwner(ctx, destinationSubAccountID)
	if err != nil {
		if errors.Is(err, projection.ErrUnknownSubAccount) {
			return uuid.Nil, fmt.Errorf("no destination sub-account %s: %w", destinationSubAccountID, ErrUnknownParticipant)
		}
		return uuid.Nil, fmt.Errorf("failed to resolve destination sub-account: %w", err)
	}

	transferID := uuid.New()
	_, err = s.transfers.Create(ctx, transferID, func(transfer *domain.TransferTransaction) (es.Event, error) {
		return transfer.Initiate(
			transferID,
			domain.Participant{AccountID: sourceAccountID, SubAccountID: sourceSubAccountID},
			domain.Participant{AccountID: destinationAccountID, SubAccountID: destinationSubAccountID},
			amount,
		)
	})
	if err != nil {
		return uuid.Nil, err
	}

	return transferID, nil
}

// Get returns the current state of a transfer saga.
func (s *Service) Get(ctx context.Context, transferID uuid.UUID) (*domain.TransferTransaction, error) {
	transfer, _, err := s.transfers.Load(ctx, transferID)
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamNotFound) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}
	return transfer, nil
}
