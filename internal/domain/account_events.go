package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
)

// AccountAggregateType is the stream type under which account events are stored.
const AccountAggregateType = "accounts"

// Wire names of account events. They double as RabbitMQ routing key suffixes.
const (
	AccountCreatedName      = "account.created"
	SubAccountCreatedName   = "account.subaccount_created"
	DepositedName           = "account.deposited"
	WithdrawnName           = "account.withdrawn"
	InternalTransferredName = "account.internal_transferred"

	TransferHalfCompletedName   = "account.transfer_half_completed"
	TransferCompletedName       = "account.transfer_completed"
	TransferPendingResolvedName = "account.transfer_pending_resolved"
	TransferRollbackName        = "account.transfer_rollback"
	TransferRejectedName        = "account.transfer_rejected"
	TransferAbortedName         = "account.transfer_aborted"
)

// AccountEvent is the closed set of events an account aggregate can emit.
// The unexported marker keeps the union closed to this package, so the
// aggregate's Apply can match exhaustively.
type AccountEvent interface {
	es.Event
	isAccountEvent()
}

// AccountCreated records the creation of a holder's account.
type AccountCreated struct {
	AccountID uuid.UUID `json:"account_id"`
	HolderID  uuid.UUID `json:"holder_id"`
}

// SubAccountCreated records the allocation of a new zero-balance sub-account.
type SubAccountCreated struct {
	AccountID    uuid.UUID `json:"account_id"`
	SubAccountID uuid.UUID `json:"sub_account_id"`
}

// Deposited records a credit onto a sub-account's balance.
type Deposited struct {
	AccountID    uuid.UUID       `json:"account_id"`
	SubAccountID uuid.UUID       `json:"sub_account_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// Withdrawn records a debit from a sub-account's balance.
type Withdrawn struct {
	AccountID    uuid.UUID       `json:"account_id"`
	SubAccountID uuid.UUID       `json:"sub_account_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// InternalTransferred records an atomic same-account move between two
// sub-accounts. No freeze is involved: both legs commit in one event.
type InternalTransferred struct {
	AccountID        uuid.UUID       `json:"account_id"`
	FromSubAccountID uuid.UUID       `json:"from_sub_account_id"`
	ToSubAccountID   uuid.UUID       `json:"to_sub_account_id"`
	Amount           decimal.Decimal `json:"amount"`
}

// TransferHalfCompleted records the source side of a cross-account transfer:
// the amount is debited from the source sub-account and held as a pending
// transaction until the destination's decision comes back.
type TransferHalfCompleted struct {
	SourceAccountID         uuid.UUID       `json:"source_account_id"`
	SourceSubAccountID      uuid.UUID       `json:"source_sub_account_id"`
	TransferID              uuid.UUID       `json:"transfer_id"`
	Amount                  decimal.Decimal `json:"amount"`
	DestinationAccountID    uuid.UUID       `json:"destination_account_id"`
	DestinationSubAccountID uuid.UUID       `json:"destination_sub_account_id"`
}

// TransferCompleted records the destination side accepting a transfer-in;
// applying it credits the destination sub-account.
type TransferCompleted struct {
	SourceAccountID         uuid.UUID       `json:"source_account_id"`
	SourceSubAccountID      uuid.UUID       `json:"source_sub_account_id"`
	TransferID              uuid.UUID       `json:"transfer_id"`
	Amount                  decimal.Decimal `json:"amount"`
	DestinationSubAccountID uuid.UUID       `json:"destination_sub_account_id"`
}

// TransferPendingResolved releases the source-side pending entry after the
// destination accepted. Bookkeeping only: the money is already gone.
type TransferPendingResolved struct {
	SourceSubAccountID uuid.UUID `json:"source_sub_account_id"`
	TransferID         uuid.UUID `json:"transfer_id"`
}

// TransferRollback is the destination's denial of a transfer-in. It is
// appended to the destination's stream with no state change there; the
// choreography routes it back to the source to trigger compensation.
type TransferRollback struct {
	SourceAccountID    uuid.UUID `json:"source_account_id"`
	SourceSubAccountID uuid.UUID `json:"source_sub_account_id"`
	TransferID         uuid.UUID `json:"transfer_id"`
	Reason             string    `json:"reason"`
}

// TransferRejected records the source refusing to even start a transfer
// (insufficient funds). Nothing was frozen, so applying it changes no state.
type TransferRejected struct {
	SourceAccountID    uuid.UUID `json:"source_account_id"`
	SourceSubAccountID uuid.UUID `json:"source_sub_account_id"`
	TransferID         uuid.UUID `json:"transfer_id"`
	Reason             string    `json:"reason"`
}

// TransferAborted is the source-side compensation: applying it removes the
// pending entry and credits the frozen amount back, the exact inverse of the
// debit performed on TransferHalfCompleted.
type TransferAborted struct {
	SourceAccountID    uuid.UUID `json:"source_account_id"`
	SourceSubAccountID uuid.UUID `json:"source_sub_account_id"`
	TransferID         uuid.UUID `json:"transfer_id"`
	Reason             string    `json:"reason"`
}

func (AccountCreated) EventName() string          { return AccountCreatedName }
func (SubAccountCreated) EventName() string       { return SubAccountCreatedName }
func (Deposited) EventName() string               { return DepositedName }
func (Withdrawn) EventName() string               { return WithdrawnName }
func (InternalTransferred) EventName() string     { return InternalTransferredName }
func (TransferHalfCompleted) EventName() string   { return TransferHalfCompletedName }
func (TransferCompleted) EventName() string       { return TransferCompletedName }
func (TransferPendingResolved) EventName() string { return TransferPendingResolvedName }
func (TransferRollback) EventName() string        { return TransferRollbackName }
func (TransferRejected) EventName() string        { return TransferRejectedName }
func (TransferAborted) EventName() string         { return TransferAbortedName }

func (AccountCreated) isAccountEvent()          {}
func (SubAccountCreated) isAccountEvent()       {}
func (Deposited) isAccountEvent()               {}
func (Withdrawn) isAccountEvent()               {}
func (InternalTransferred) isAccountEvent()     {}
func (TransferHalfCompleted) isAccountEvent()   {}
func (TransferCompleted) isAccountEvent()       {}
func (TransferPendingResolved) isAccountEvent() {}
func (TransferRollback) isAccountEvent()        {}
func (TransferRejected) isAccountEvent()        {}
func (TransferAborted) isAccountEvent()         {}

// AccountEventRegistry decodes stored account events during replay and
// subscription dispatch.
func AccountEventRegistry() es.Registry {
	return es.Registry{
		AccountCreatedName:          func() es.Event { return &AccountCreated{} },
		SubAccountCreatedName:       func() es.Event { return &SubAccountCreated{} },
		DepositedName:               func() es.Event { return &Deposited{} },
		WithdrawnName:               func() es.Event { return &Withdrawn{} },
		InternalTransferredName:     func() es.Event { return &InternalTransferred{} },
		TransferHalfCompletedName:   func() es.Event { return &TransferHalfCompleted{} },
		TransferCompletedName:       func() es.Event { return &TransferCompleted{} },
		TransferPendingResolvedName: func() es.Event { return &TransferPendingResolved{} },
		TransferRollbackName:        func() es.Event { return &TransferRollback{} },
		TransferRejectedName:        func() es.Event { return &TransferRejected{} },
		TransferAbortedName:         func() es.Event { return &TransferAborted{} },
	}
}
