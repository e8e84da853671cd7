package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
)

// TransferState represents the lifecycle state of one transfer saga.
type TransferState string

const (
	// TransferStateProcessing is the initial state while the saga is in flight.
	TransferStateProcessing TransferState = "PROCESSING"

	// TransferStateCompleted is the successful terminal state.
	TransferStateCompleted TransferState = "COMPLETED"

	// TransferStateFailed is the failed terminal state.
	TransferStateFailed TransferState = "FAILED"
)

// Participant identifies one side of a transfer.
type Participant struct {
	AccountID    uuid.UUID `json:"account_id"`
	SubAccountID uuid.UUID `json:"sub_account_id"`
}

// TransferTransaction is the saga record tracking one cross-account transfer
// to a terminal outcome. It is created once and mutated at most once more,
// by exactly one terminal transition.
type TransferTransaction struct {
	ID            uuid.UUID
	State         TransferState
	Source        Participant
	Destination   Participant
	Amount        decimal.Decimal
	FailureReason string
}

// NewTransferTransaction returns an empty saga record ready for replay.
func NewTransferTransaction() *TransferTransaction {
	return &TransferTransaction{}
}

// Initiate creates the saga record in the PROCESSING state.
func (t *TransferTransaction) Initiate(transferID uuid.UUID, source, destination Participant, amount decimal.Decimal) (TransferEvent, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if source.SubAccountID == destination.SubAccountID {
		return nil, ErrSameSubAccount
	}

	return &TransferTransactionCreated{
		TransferID:              transferID,
		SourceAccountID:         source.AccountID,
		SourceSubAccountID:      source.SubAccountID,
		DestinationAccountID:    destination.AccountID,
		DestinationSubAccountID: destination.SubAccountID,
		Amount:                  amount,
	}, nil
}

// MarkCompleted transitions PROCESSING -> COMPLETED. Re-delivery of the same
// transition is a no-op (nil event); a conflicting terminal state is a
// protocol violation.
func (t *TransferTransaction) MarkCompleted() (TransferEvent, error) {
	switch t.State {
	case TransferStateCompleted:
		return nil, nil
	case TransferStateFailed:
		return nil, fmt.Errorf("transfer %s is already FAILED: %w", t.ID, ErrTransferAlreadyTerminal)
	}
	return &TransferTransactionCompleted{
		TransferID: t.ID,
	}, nil
}

// MarkFailed transitions PROCESSING -> FAILED. Re-delivery of the same
// transition is a no-op (nil event); a conflicting terminal state is a
// protocol violation.
func (t *TransferTransaction) MarkFailed(reason string) (TransferEvent, error) {
	switch t.State {
	case TransferStateFailed:
		return nil, nil
	case TransferStateCompleted:
		return nil, fmt.Errorf("transfer %s is already COMPLETED: %w", t.ID, ErrTransferAlreadyTerminal)
	}
	return &TransferTransactionFailed{
		TransferID: t.ID,
		Reason:     reason,
	}, nil
}

// Apply implements es.State.
func (t *TransferTransaction) Apply(event es.Event) error {
	switch e := event.(type) {
	case *TransferTransactionCreated:
		t.ID = e.TransferID
		t.State = TransferStateProcessing
		t.Source = Participant{AccountID: e.SourceAccountID, SubAccountID: e.SourceSubAccountID}
		t.Destination = Participant{AccountID: e.DestinationAccountID, SubAccountID: e.DestinationSubAccountID}
		t.Amount = e.Amount

	case *TransferTransactionCompleted:
		t.State = TransferStateCompleted

	case *TransferTransactionFailed:
		t.State = TransferStateFailed
		t.FailureReason = e.Reason

	default:
		return fmt.Errorf("transfer transaction aggregate cannot apply event %T", event)
	}
	return nil
}
