package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
)

// Service exposes the account aggregate's local commands: everything a
// holder can do to their own account without crossing an aggregate boundary.
// Cross-account transfers go through the transfer service instead.
type Service struct {
	accounts *es.Service[*domain.Account]
}

// NewService creates the account command service.
func NewService(accounts *es.Service[*domain.Account]) *Service {
	return &Service{
		accounts: accounts,
	}
}

// Create opens a new account for the holder and returns the account id.
func (s *Service) Create(ctx context.Context, holderID uuid.UUID) (uuid.UUID, error) {
	accountID := uuid.New()
	_, err := s.accounts.Create(ctx, accountID, func(account *domain.Account) (es.Event, error) {
		return account.Create(accountID, holderID)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return accountID, nil
}

// CreateSubAccount allocates a new zero-balance sub-account.
func (s *Service) CreateSubAccount(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	subAccountID := uuid.New()
	_, err := s.accounts.Update(ctx, accountID, func(account *domain.Account) (es.Event, error) {
		return account.CreateSubAccount(subAccountID)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return subAccountID, nil
}

// Deposit credits a sub-account.
func (s *Service) Deposit(ctx context.Context, accountID, subAccountID uuid.UUID, amount decimal.Decimal) error {
	_, err := s.accounts.Update(ctx, accountID, func(account *domain.Account) (es.Event, error) {
		return account.Deposit(subAccountID, amount)
	})
	return err
}

// Withdraw debits a sub-account.
func (s *Service) Withdraw(ctx context.Context, accountID, subAccountID uuid.UUID, amount decimal.Decimal) error {
	_, err := s.accounts.Update(ctx, accountID, func(account *domain.Account) (es.Event, error) {
		return account.Withdraw(subAccountID, amount)
	})
	return err
}

// InternalTransfer moves money between two sub-accounts of the same account.
func (s *Service) InternalTransfer(ctx context.Context, accountID, fromSubAccountID, toSubAccountID uuid.UUID, amount decimal.Decimal) error {
	_, err := s.accounts.Update(ctx, accountID, func(account *domain.Account) (es.Event, error) {
		return account.InternalTransfer(fromSubAccountID, toSubAccountID, amount)
	})
	return err
}

// Get rebuilds and returns the account's current state.
func (s *Service) Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, _, err := s.accounts.Load(ctx, accountID)
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}
