package domain

import "errors"

var (
	// ErrAccountNotFound is returned when an account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSubAccountNotFound is returned when a sub-account is unknown to its account.
	ErrSubAccountNotFound = errors.New("sub-account not found")

	// ErrCapacityExceeded is returned when an account already holds the
	// maximum number of sub-accounts.
	ErrCapacityExceeded = errors.New("sub-account capacity exceeded")

	// ErrInsufficientFunds is returned when a debit exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLimitExceeded is returned when a credit would push a sub-account or
	// the account total over its storage cap.
	ErrLimitExceeded = errors.New("storage limit exceeded")

	// ErrInvalidAmount is returned when an amount is not strictly positive.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")

	// ErrSameSubAccount is returned when a transfer names the same sub-account
	// on both sides.
	ErrSameSubAccount = errors.New("source and destination must be different sub-accounts")

	// ErrTransferNotFound is returned when a transfer transaction doesn't exist.
	ErrTransferNotFound = errors.New("transfer transaction not found")

	// ErrTransferAlreadyTerminal is returned when a terminal transition is
	// requested on a saga record that already reached the opposite terminal
	// state. Repeating the same terminal transition is a no-op, not an error.
	ErrTransferAlreadyTerminal = errors.New("transfer transaction already in a terminal state")
)
