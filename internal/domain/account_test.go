package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// mustApply applies an event and fails the test on error
func mustApply(t *testing.T, account *Account, event AccountEvent) {
	t.Helper()
	if err := account.Apply(event); err != nil {
		t.Fatalf("failed to apply %T: %v", event, err)
	}
}

// newTestAccount builds an account with the given number of sub-accounts,
// each funded with the given balance
func newTestAccount(t *testing.T, subAccounts int, balance decimal.Decimal) (*Account, []uuid.UUID) {
	t.Helper()

	account := NewAccount()
	mustApply(t, account, &AccountCreated{AccountID: uuid.New(), HolderID: uuid.New()})

	ids := make([]uuid.UUID, 0, subAccounts)
	for i := 0; i < subAccounts; i++ {
		id := uuid.New()
		mustApply(t, account, &SubAccountCreated{AccountID: account.ID, SubAccountID: id})
		if balance.Sign() > 0 {
			mustApply(t, account, &Deposited{AccountID: account.ID, SubAccountID: id, Amount: balance})
		}
		ids = append(ids, id)
	}
	return account, ids
}

func TestCreateSubAccount_CapacityLimit(t *testing.T) {
	account, _ := newTestAccount(t, MaxSubAccounts, decimal.Zero)

	_, err := account.CreateSubAccount(uuid.New())
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded for sub-account #%d, got %v", MaxSubAccounts+1, err)
	}
}

func TestDeposit(t *testing.T) {
	tests := []struct {
		name        string
		balance     decimal.Decimal
		amount      decimal.Decimal
		expectedErr error
	}{
		{
			name:    "success",
			balance: decimal.NewFromInt(100),
			amount:  decimal.NewFromInt(50),
		},
		{
			name:        "zero amount",
			balance:     decimal.Zero,
			amount:      decimal.Zero,
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "negative amount",
			balance:     decimal.Zero,
			amount:      decimal.NewFromInt(-1),
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "sub-account cap exceeded",
			balance:     SubAccountCap.Sub(decimal.NewFromInt(10)),
			amount:      decimal.NewFromInt(11),
			expectedErr: ErrLimitExceeded,
		},
		{
			name:    "exactly at sub-account cap",
			balance: SubAccountCap.Sub(decimal.NewFromInt(10)),
			amount:  decimal.NewFromInt(10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, ids := newTestAccount(t, 1, tt.balance)

			event, err := account.Deposit(ids[0], tt.amount)
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			mustApply(t, account, event)
			want := tt.balance.Add(tt.amount)
			if got := account.SubAccounts[ids[0]].Balance; !got.Equal(want) {
				t.Errorf("expected balance %s, got %s", want, got)
			}
		})
	}
}

func TestDeposit_AccountCapAcrossSubAccounts(t *testing.T) {
	// Three sub-accounts at 9,000,000 sum to 27,000,000 which would exceed
	// the 25,000,000 account cap, so the third top-up must be refused.
	account, ids := newTestAccount(t, 3, decimal.NewFromInt(9_000_000))
	mustApply(t, account, &Withdrawn{AccountID: account.ID, SubAccountID: ids[2], Amount: decimal.NewFromInt(9_000_000)})

	_, err := account.Deposit(ids[2], decimal.NewFromInt(8_000_000))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}

	if _, err := account.Deposit(ids[2], decimal.NewFromInt(7_000_000)); err != nil {
		t.Errorf("deposit up to the account cap should succeed, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	account, ids := newTestAccount(t, 1, decimal.NewFromInt(100))

	if _, err := account.Withdraw(ids[0], decimal.NewFromInt(101)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := account.Withdraw(uuid.New(), decimal.NewFromInt(1)); !errors.Is(err, ErrSubAccountNotFound) {
		t.Errorf("expected ErrSubAccountNotFound, got %v", err)
	}

	event, err := account.Withdraw(ids[0], decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustApply(t, account, event)
	if got := account.SubAccounts[ids[0]].Balance; !got.IsZero() {
		t.Errorf("expected zero balance, got %s", got)
	}
}

func TestInternalTransfer(t *testing.T) {
	account, ids := newTestAccount(t, 2, decimal.NewFromInt(300))

	if _, err := account.InternalTransfer(ids[0], ids[0], decimal.NewFromInt(10)); !errors.Is(err, ErrSameSubAccount) {
		t.Errorf("expected ErrSameSubAccount, got %v", err)
	}
	if _, err := account.InternalTransfer(ids[0], ids[1], decimal.NewFromInt(301)); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	event, err := account.InternalTransfer(ids[0], ids[1], decimal.NewFromInt(120))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustApply(t, account, event)

	if got := account.SubAccounts[ids[0]].Balance; !got.Equal(decimal.NewFromInt(180)) {
		t.Errorf("expected source balance 180, got %s", got)
	}
	if got := account.SubAccounts[ids[1]].Balance; !got.Equal(decimal.NewFromInt(420)) {
		t.Errorf("expected target balance 420, got %s", got)
	}
	if got := account.BalanceTotal(); !got.Equal(decimal.NewFromInt(600)) {
		t.Errorf("internal transfer must conserve the total, got %s", got)
	}
}

func TestInternalTransfer_TargetCap(t *testing.T) {
	account, ids := newTestAccount(t, 2, decimal.NewFromInt(6_000_000))

	_, err := account.InternalTransfer(ids[0], ids[1], decimal.NewFromInt(5_000_000))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestBeginTransferOut_FreezesAmount(t *testing.T) {
	account, ids := newTestAccount(t, 1, decimal.NewFromInt(500))
	transferID := uuid.New()

	event, err := account.BeginTransferOut(ids[0], transferID, decimal.NewFromInt(200), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	half, ok := event.(*TransferHalfCompleted)
	if !ok {
		t.Fatalf("expected *TransferHalfCompleted, got %T", event)
	}
	mustApply(t, account, half)

	subAccount := account.SubAccounts[ids[0]]
	if !subAccount.Balance.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected balance 300 after freeze, got %s", subAccount.Balance)
	}
	if !subAccount.FrozenTotal().Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected frozen total 200, got %s", subAccount.FrozenTotal())
	}

	// Re-delivered command: the pending entry already exists, nothing to append.
	again, err := account.BeginTransferOut(ids[0], transferID, decimal.NewFromInt(200), uuid.New(), uuid.New())
	if err != nil || again != nil {
		t.Errorf("expected no-op on re-delivery, got event=%v err=%v", again, err)
	}
}

func TestBeginTransferOut_InsufficientFundsRejects(t *testing.T) {
	account, ids := newTestAccount(t, 1, decimal.NewFromInt(100))

	// Not an error: the refusal must become a durable event so the saga can
	// fail asynchronously.
	event, err := account.BeginTransferOut(ids[0], uuid.New(), decimal.NewFromInt(101), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rejected, ok := event.(*TransferRejected)
	if !ok {
		t.Fatalf("expected *TransferRejected, got %T", event)
	}
	mustApply(t, account, rejected)

	if got := account.SubAccounts[ids[0]].Balance; !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("rejection must not touch the balance, got %s", got)
	}
}

func TestRollbackTransferOut_RestoresExactAmount(t *testing.T) {
	account, ids := newTestAccount(t, 1, decimal.NewFromInt(500))
	transferID := uuid.New()

	begin, err := account.BeginTransferOut(ids[0], transferID, decimal.NewFromInt(175), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustApply(t, account, begin)

	event, err := account.RollbackTransferOut(ids[0], transferID, "destination denied")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aborted, ok := event.(*TransferAborted)
	if !ok {
		t.Fatalf("expected *TransferAborted, got %T", event)
	}
	mustApply(t, account, aborted)

	subAccount := account.SubAccounts[ids[0]]
	if !subAccount.Balance.Equal(decimal.NewFromInt(500)) {
		t.Errorf("rollback must restore the exact frozen amount, got %s", subAccount.Balance)
	}
	if len(subAccount.Pending) != 0 {
		t.Errorf("expected no pending transactions after rollback, got %d", len(subAccount.Pending))
	}

	// Already rolled back: nothing left to undo.
	again, err := account.RollbackTransferOut(ids[0], transferID, "destination denied")
	if err != nil || again != nil {
		t.Errorf("expected no-op on re-delivery, got event=%v err=%v", again, err)
	}
}

func TestResolvePendingTransfer(t *testing.T) {
	account, ids := newTestAccount(t, 1, decimal.NewFromInt(500))
	transferID := uuid.New()

	begin, err := account.BeginTransferOut(ids[0], transferID, decimal.NewFromInt(175), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustApply(t, account, begin)

	event, err := account.ResolvePendingTransfer(ids[0], transferID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustApply(t, account, event)

	subAccount := account.SubAccounts[ids[0]]
	if !subAccount.Balance.Equal(decimal.NewFromInt(325)) {
		t.Errorf("resolution must not change the balance, got %s", subAccount.Balance)
	}
	if len(subAccount.Pending) != 0 {
		t.Errorf("expected no pending transactions after resolution, got %d", len(subAccount.Pending))
	}

	again, err := account.ResolvePendingTransfer(ids[0], transferID)
	if err != nil || again != nil {
		t.Errorf("expected no-op on re-delivery, got event=%v err=%v", again, err)
	}
}

func TestCompleteTransferIn(t *testing.T) {
	account, ids := newTestAccount(t, 1, decimal.NewFromInt(50))
	transferID := uuid.New()

	event, err := account.CompleteTransferIn(uuid.New(), uuid.New(), transferID, decimal.NewFromInt(30), ids[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	completed, ok := event.(*TransferCompleted)
	if !ok {
		t.Fatalf("expected *TransferCompleted, got %T", event)
	}
	mustApply(t, account, completed)

	if got := account.SubAccounts[ids[0]].Balance; !got.Equal(decimal.NewFromInt(80)) {
		t.Errorf("expected balance 80, got %s", got)
	}

	// Re-delivered command: the transfer is already credited, nothing to
	// append and no second credit.
	again, err := account.CompleteTransferIn(uuid.New(), uuid.New(), transferID, decimal.NewFromInt(30), ids[0])
	if err != nil || again != nil {
		t.Errorf("expected no-op on re-delivery, got event=%v err=%v", again, err)
	}
	if got := account.SubAccounts[ids[0]].Balance; !got.Equal(decimal.NewFromInt(80)) {
		t.Errorf("re-delivery must not credit twice, got %s", got)
	}
}

func TestCompleteTransferIn_CapDenial(t *testing.T) {
	account, ids := newTestAccount(t, 1, SubAccountCap.Sub(decimal.NewFromInt(10)))
	sourceAccountID := uuid.New()
	sourceSubAccountID := uuid.New()

	event, err := account.CompleteTransferIn(sourceAccountID, sourceSubAccountID, uuid.New(), decimal.NewFromInt(11), ids[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rollback, ok := event.(*TransferRollback)
	if !ok {
		t.Fatalf("expected *TransferRollback, got %T", event)
	}
	if rollback.SourceAccountID != sourceAccountID || rollback.SourceSubAccountID != sourceSubAccountID {
		t.Errorf("rollback must address the source that began the transfer")
	}
	mustApply(t, account, rollback)

	if got := account.SubAccounts[ids[0]].Balance; !got.Equal(SubAccountCap.Sub(decimal.NewFromInt(10))) {
		t.Errorf("denial must not touch the destination balance, got %s", got)
	}
}

func TestCompleteTransferIn_FrozenAmountsCountTowardsCap(t *testing.T) {
	// The destination sub-account holds 9,999,000 plus an outgoing freeze of
	// 600. An incoming 500 would fit the visible balance but overruns the cap
	// once the frozen amount is counted back in.
	account, ids := newTestAccount(t, 1, SubAccountCap.Sub(decimal.NewFromInt(1000)))

	begin, err := account.BeginTransferOut(ids[0], uuid.New(), decimal.NewFromInt(600), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mustApply(t, account, begin)

	event, err := account.CompleteTransferIn(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(500), ids[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := event.(*TransferRollback); !ok {
		t.Fatalf("expected *TransferRollback, got %T", event)
	}

	// 400 still fits: 9,999,000 - 600 frozen out leaves headroom of 400.
	event, err = account.CompleteTransferIn(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(400), ids[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := event.(*TransferCompleted); !ok {
		t.Fatalf("expected *TransferCompleted, got %T", event)
	}
}

func TestApply_UnknownEvent(t *testing.T) {
	account := NewAccount()
	if err := account.Apply(&TransferTransactionCreated{}); err == nil {
		t.Error("expected an error for an event from another aggregate")
	}
}

func TestReplay_Deterministic(t *testing.T) {
	accountID := uuid.New()
	holderID := uuid.New()
	subAccountID := uuid.New()
	transferID := uuid.New()

	stream := []AccountEvent{
		&AccountCreated{AccountID: accountID, HolderID: holderID},
		&SubAccountCreated{AccountID: accountID, SubAccountID: subAccountID},
		&Deposited{AccountID: accountID, SubAccountID: subAccountID, Amount: decimal.NewFromInt(1000)},
		&TransferHalfCompleted{SourceAccountID: accountID, SourceSubAccountID: subAccountID, TransferID: transferID, Amount: decimal.NewFromInt(300)},
		&TransferAborted{SourceAccountID: accountID, SourceSubAccountID: subAccountID, TransferID: transferID, Reason: "denied"},
		&Withdrawn{AccountID: accountID, SubAccountID: subAccountID, Amount: decimal.NewFromInt(250)},
	}

	replay := func() *Account {
		account := NewAccount()
		for _, event := range stream {
			mustApply(t, account, event)
		}
		return account
	}

	first := replay()
	second := replay()

	if !first.BalanceTotal().Equal(second.BalanceTotal()) {
		t.Errorf("replays diverged: %s vs %s", first.BalanceTotal(), second.BalanceTotal())
	}
	if !first.SubAccounts[subAccountID].Balance.Equal(decimal.NewFromInt(750)) {
		t.Errorf("expected balance 750 after replay, got %s", first.SubAccounts[subAccountID].Balance)
	}
	if first.FrozenTotal().Sign() != 0 {
		t.Errorf("expected no frozen amounts after abort, got %s", first.FrozenTotal())
	}
}
