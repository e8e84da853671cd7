package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
)

// MaxSubAccounts is the maximum number of sub-accounts one account may hold.
const MaxSubAccounts = 5

var (
	// SubAccountCap is the maximum amount one sub-account may store.
	SubAccountCap = decimal.NewFromInt(10_000_000)

	// AccountCap is the maximum total amount across all sub-accounts of one account.
	AccountCap = decimal.NewFromInt(25_000_000)
)

// PendingTransaction is money already debited from a sub-account's balance
// but not yet confirmed lost or gained by the counterpart. It exists only
// between TransferHalfCompleted and the transfer's resolution.
type PendingTransaction struct {
	TransferID   uuid.UUID
	FrozenAmount decimal.Decimal
}

// SubAccount is an individually capped balance bucket within an account.
// Balance is never set directly; it only moves through event application.
// Credited remembers inbound transfers already applied, so a re-delivered
// transfer-in is recognized as already done instead of credited twice.
type SubAccount struct {
	ID       uuid.UUID
	Balance  decimal.Decimal
	Pending  map[uuid.UUID]PendingTransaction
	Credited map[uuid.UUID]struct{}
}

// FrozenTotal sums the frozen amounts of all pending transactions held by
// this sub-account.
func (sa *SubAccount) FrozenTotal() decimal.Decimal {
	total := decimal.Zero
	for _, pending := range sa.Pending {
		total = total.Add(pending.FrozenAmount)
	}
	return total
}

// Account is a holder's aggregate owning up to MaxSubAccounts sub-accounts.
// It is rebuilt exclusively by replaying its event stream: commands validate
// against current state and return events, Apply performs the transitions.
type Account struct {
	ID          uuid.UUID
	HolderID    uuid.UUID
	SubAccounts map[uuid.UUID]*SubAccount
}

// NewAccount returns an empty account state ready for replay.
func NewAccount() *Account {
	return &Account{
		SubAccounts: make(map[uuid.UUID]*SubAccount),
	}
}

// BalanceTotal sums the balances of all sub-accounts.
func (a *Account) BalanceTotal() decimal.Decimal {
	total := decimal.Zero
	for _, subAccount := range a.SubAccounts {
		total = total.Add(subAccount.Balance)
	}
	return total
}

// FrozenTotal sums the frozen amounts across all sub-accounts.
func (a *Account) FrozenTotal() decimal.Decimal {
	total := decimal.Zero
	for _, subAccount := range a.SubAccounts {
		total = total.Add(subAccount.FrozenTotal())
	}
	return total
}

// Create starts a new account for the given holder. Always succeeds.
func (a *Account) Create(accountID, holderID uuid.UUID) (AccountEvent, error) {
	return &AccountCreated{
		AccountID: accountID,
		HolderID:  holderID,
	}, nil
}

// CreateSubAccount allocates a new zero-balance sub-account.
func (a *Account) CreateSubAccount(subAccountID uuid.UUID) (AccountEvent, error) {
	if len(a.SubAccounts) >= MaxSubAccounts {
		return nil, fmt.Errorf("account %s already has %d sub-accounts: %w", a.ID, len(a.SubAccounts), ErrCapacityExceeded)
	}
	return &SubAccountCreated{
		AccountID:    a.ID,
		SubAccountID: subAccountID,
	}, nil
}

// Deposit credits a sub-account's balance. The cap checks here are computed
// over current balances only; in-flight frozen amounts are not counted.
// The transfer-in path (CompleteTransferIn) intentionally applies the
// stricter frozen-inclusive check.
func (a *Account) Deposit(subAccountID uuid.UUID, amount decimal.Decimal) (AccountEvent, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	subAccount, ok := a.SubAccounts[subAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to deposit to: %w", subAccountID, ErrSubAccountNotFound)
	}

	if subAccount.Balance.Add(amount).GreaterThan(SubAccountCap) {
		return nil, fmt.Errorf("sub-account %s cannot store more than %s: %w", subAccountID, SubAccountCap, ErrLimitExceeded)
	}
	if a.BalanceTotal().Add(amount).GreaterThan(AccountCap) {
		return nil, fmt.Errorf("account %s cannot store more than %s in total: %w", a.ID, AccountCap, ErrLimitExceeded)
	}

	return &Deposited{
		AccountID:    a.ID,
		SubAccountID: subAccountID,
		Amount:       amount,
	}, nil
}

// Withdraw debits a sub-account's balance.
func (a *Account) Withdraw(subAccountID uuid.UUID, amount decimal.Decimal) (AccountEvent, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	subAccount, ok := a.SubAccounts[subAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to withdraw from: %w", subAccountID, ErrSubAccountNotFound)
	}
	if amount.GreaterThan(subAccount.Balance) {
		return nil, fmt.Errorf("cannot withdraw %s, balance is %s: %w", amount, subAccount.Balance, ErrInsufficientFunds)
	}

	return &Withdrawn{
		AccountID:    a.ID,
		SubAccountID: subAccountID,
		Amount:       amount,
	}, nil
}

// InternalTransfer moves money between two sub-accounts of this account.
// Both legs commit atomically in one event; no freeze is needed because the
// whole move is a single write to a single aggregate.
func (a *Account) InternalTransfer(fromSubAccountID, toSubAccountID uuid.UUID, amount decimal.Decimal) (AccountEvent, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromSubAccountID == toSubAccountID {
		return nil, ErrSameSubAccount
	}

	from, ok := a.SubAccounts[fromSubAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to withdraw from: %w", fromSubAccountID, ErrSubAccountNotFound)
	}
	to, ok := a.SubAccounts[toSubAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to transfer to: %w", toSubAccountID, ErrSubAccountNotFound)
	}

	if amount.GreaterThan(from.Balance) {
		return nil, fmt.Errorf("cannot transfer %s, balance is %s: %w", amount, from.Balance, ErrInsufficientFunds)
	}
	if to.Balance.Add(amount).GreaterThan(SubAccountCap) {
		return nil, fmt.Errorf("sub-account %s cannot store more than %s: %w", toSubAccountID, SubAccountCap, ErrLimitExceeded)
	}

	return &InternalTransferred{
		AccountID:        a.ID,
		FromSubAccountID: fromSubAccountID,
		ToSubAccountID:   toSubAccountID,
		Amount:           amount,
	}, nil
}

// BeginTransferOut starts the source side of a cross-account transfer.
//
// An insufficient balance is not an error here: it is a durable
// TransferRejected outcome, so the saga can fail asynchronously instead of
// erroring at the subscriber. A nil event means the transfer was already
// begun (re-delivered command) and nothing needs to be appended.
func (a *Account) BeginTransferOut(subAccountID, transferID uuid.UUID, amount decimal.Decimal, destinationAccountID, destinationSubAccountID uuid.UUID) (AccountEvent, error) {
	subAccount, ok := a.SubAccounts[subAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to transfer from: %w", subAccountID, ErrSubAccountNotFound)
	}

	if _, begun := subAccount.Pending[transferID]; begun {
		return nil, nil
	}

	if amount.GreaterThan(subAccount.Balance) {
		return &TransferRejected{
			SourceAccountID:    a.ID,
			SourceSubAccountID: subAccountID,
			TransferID:         transferID,
			Reason:             fmt.Sprintf("cannot transfer %s, balance is %s", amount, subAccount.Balance),
		}, nil
	}

	return &TransferHalfCompleted{
		SourceAccountID:         a.ID,
		SourceSubAccountID:      subAccountID,
		TransferID:              transferID,
		Amount:                  amount,
		DestinationAccountID:    destinationAccountID,
		DestinationSubAccountID: destinationSubAccountID,
	}, nil
}

// CompleteTransferIn decides the destination side of a cross-account transfer.
//
// The cap checks include all pending frozen amounts held on this account, so
// concurrent in-flight transfers cannot jointly overrun a cap even though
// none of them has individually committed yet. A breach produces a durable
// TransferRollback denial that the choreography routes back to the source.
// A nil event means the transfer was already credited (re-delivered command)
// and nothing needs to be appended.
func (a *Account) CompleteTransferIn(sourceAccountID, sourceSubAccountID, transferID uuid.UUID, amount decimal.Decimal, destinationSubAccountID uuid.UUID) (AccountEvent, error) {
	subAccount, ok := a.SubAccounts[destinationSubAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to transfer to: %w", destinationSubAccountID, ErrSubAccountNotFound)
	}

	if _, credited := subAccount.Credited[transferID]; credited {
		return nil, nil
	}

	if subAccount.Balance.Add(amount).Add(subAccount.FrozenTotal()).GreaterThan(SubAccountCap) {
		return &TransferRollback{
			SourceAccountID:    sourceAccountID,
			SourceSubAccountID: sourceSubAccountID,
			TransferID:         transferID,
			Reason:             fmt.Sprintf("sub-account %s cannot store more than %s", destinationSubAccountID, SubAccountCap),
		}, nil
	}

	if a.BalanceTotal().Add(amount).Add(a.FrozenTotal()).GreaterThan(AccountCap) {
		return &TransferRollback{
			SourceAccountID:    sourceAccountID,
			SourceSubAccountID: sourceSubAccountID,
			TransferID:         transferID,
			Reason:             fmt.Sprintf("account %s cannot store more than %s in total", a.ID, AccountCap),
		}, nil
	}

	return &TransferCompleted{
		SourceAccountID:         sourceAccountID,
		SourceSubAccountID:      sourceSubAccountID,
		TransferID:              transferID,
		Amount:                  amount,
		DestinationSubAccountID: destinationSubAccountID,
	}, nil
}

// RollbackTransferOut compensates a begun transfer after the destination
// denied it. A nil event means there is no pending entry for the transfer
// (already rolled back or never begun), so there is nothing to undo.
func (a *Account) RollbackTransferOut(subAccountID, transferID uuid.UUID, reason string) (AccountEvent, error) {
	subAccount, ok := a.SubAccounts[subAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to roll back on: %w", subAccountID, ErrSubAccountNotFound)
	}
	if _, pending := subAccount.Pending[transferID]; !pending {
		return nil, nil
	}

	return &TransferAborted{
		SourceAccountID:    a.ID,
		SourceSubAccountID: subAccountID,
		TransferID:         transferID,
		Reason:             reason,
	}, nil
}

// ResolvePendingTransfer releases the pending entry of an accepted transfer.
// No balance change: the amount was already permanently transferred out.
// A nil event means the entry is already resolved.
func (a *Account) ResolvePendingTransfer(subAccountID, transferID uuid.UUID) (AccountEvent, error) {
	subAccount, ok := a.SubAccounts[subAccountID]
	if !ok {
		return nil, fmt.Errorf("no sub-account %s to resolve on: %w", subAccountID, ErrSubAccountNotFound)
	}
	if _, pending := subAccount.Pending[transferID]; !pending {
		return nil, nil
	}

	return &TransferPendingResolved{
		SourceSubAccountID: subAccountID,
		TransferID:         transferID,
	}, nil
}

// Apply implements es.State with an exhaustive match over the account event
// union. It must stay deterministic: replaying the same stream always yields
// the same state.
func (a *Account) Apply(event es.Event) error {
	switch e := event.(type) {
	case *AccountCreated:
		a.ID = e.AccountID
		a.HolderID = e.HolderID

	case *SubAccountCreated:
		a.SubAccounts[e.SubAccountID] = &SubAccount{
			ID:       e.SubAccountID,
			Balance:  decimal.Zero,
			Pending:  make(map[uuid.UUID]PendingTransaction),
			Credited: make(map[uuid.UUID]struct{}),
		}

	case *Deposited:
		a.SubAccounts[e.SubAccountID].Balance = a.SubAccounts[e.SubAccountID].Balance.Add(e.Amount)

	case *Withdrawn:
		a.SubAccounts[e.SubAccountID].Balance = a.SubAccounts[e.SubAccountID].Balance.Sub(e.Amount)

	case *InternalTransferred:
		a.SubAccounts[e.FromSubAccountID].Balance = a.SubAccounts[e.FromSubAccountID].Balance.Sub(e.Amount)
		a.SubAccounts[e.ToSubAccountID].Balance = a.SubAccounts[e.ToSubAccountID].Balance.Add(e.Amount)

	case *TransferHalfCompleted:
		subAccount := a.SubAccounts[e.SourceSubAccountID]
		subAccount.Balance = subAccount.Balance.Sub(e.Amount)
		subAccount.Pending[e.TransferID] = PendingTransaction{
			TransferID:   e.TransferID,
			FrozenAmount: e.Amount,
		}

	case *TransferCompleted:
		subAccount := a.SubAccounts[e.DestinationSubAccountID]
		subAccount.Balance = subAccount.Balance.Add(e.Amount)
		subAccount.Credited[e.TransferID] = struct{}{}

	case *TransferPendingResolved:
		delete(a.SubAccounts[e.SourceSubAccountID].Pending, e.TransferID)

	case *TransferAborted:
		subAccount := a.SubAccounts[e.SourceSubAccountID]
		pending, ok := subAccount.Pending[e.TransferID]
		if !ok {
			return fmt.Errorf("no pending transaction %s to abort on sub-account %s", e.TransferID, e.SourceSubAccountID)
		}
		subAccount.Balance = subAccount.Balance.Add(pending.FrozenAmount)
		delete(subAccount.Pending, e.TransferID)

	case *TransferRollback:
		// Denial decision on the destination's stream; no destination state changes.

	case *TransferRejected:
		// Nothing was frozen; no state changes.

	default:
		return fmt.Errorf("account aggregate cannot apply event %T", event)
	}
	return nil
}
