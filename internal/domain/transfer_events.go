package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
)

// TransferAggregateType is the stream type of the saga records.
const TransferAggregateType = "transfer-transactions"

// Wire names of transfer-transaction events.
const (
	TransferTransactionCreatedName   = "transaction.created"
	TransferTransactionCompletedName = "transaction.completed"
	TransferTransactionFailedName    = "transaction.failed"
)

// TransferEvent is the closed set of events a saga record can emit.
type TransferEvent interface {
	es.Event
	isTransferEvent()
}

// TransferTransactionCreated starts a saga record in the PROCESSING state.
type TransferTransactionCreated struct {
	TransferID              uuid.UUID       `json:"transfer_id"`
	SourceAccountID         uuid.UUID       `json:"source_account_id"`
	SourceSubAccountID      uuid.UUID       `json:"source_sub_account_id"`
	DestinationAccountID    uuid.UUID       `json:"destination_account_id"`
	DestinationSubAccountID uuid.UUID       `json:"destination_sub_account_id"`
	Amount                  decimal.Decimal `json:"amount"`
}

// TransferTransactionCompleted is the successful terminal transition.
type TransferTransactionCompleted struct {
	TransferID uuid.UUID `json:"transfer_id"`
}

// TransferTransactionFailed is the failed terminal transition.
type TransferTransactionFailed struct {
	TransferID uuid.UUID `json:"transfer_id"`
	Reason     string    `json:"reason"`
}

func (TransferTransactionCreated) EventName() string   { return TransferTransactionCreatedName }
func (TransferTransactionCompleted) EventName() string { return TransferTransactionCompletedName }
func (TransferTransactionFailed) EventName() string    { return TransferTransactionFailedName }

func (TransferTransactionCreated) isTransferEvent()   {}
func (TransferTransactionCompleted) isTransferEvent() {}
func (TransferTransactionFailed) isTransferEvent()    {}

// TransferEventRegistry decodes stored transfer-transaction events.
func TransferEventRegistry() es.Registry {
	return es.Registry{
		TransferTransactionCreatedName:   func() es.Event { return &TransferTransactionCreated{} },
		TransferTransactionCompletedName: func() es.Event { return &TransferTransactionCompleted{} },
		TransferTransactionFailedName:    func() es.Event { return &TransferTransactionFailed{} },
	}
}
