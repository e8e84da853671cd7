package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
)

// CreateAccountRequest represents an account creation request
type CreateAccountRequest struct {
	HolderID string `json:"holder_id"`
}

// CreateAccountResponse represents an account creation response
type CreateAccountResponse struct {
	AccountID uuid.UUID `json:"account_id"`
}

// CreateSubAccountResponse represents a sub-account creation response
type CreateSubAccountResponse struct {
	SubAccountID uuid.UUID `json:"sub_account_id"`
}

// MoveMoneyRequest represents a deposit or withdrawal request
type MoveMoneyRequest struct {
	SubAccountID string `json:"sub_account_id"`
	Amount       string `json:"amount"`
}

// InternalTransferRequest represents a same-account transfer request
type InternalTransferRequest struct {
	FromSubAccountID string `json:"from_sub_account_id"`
	ToSubAccountID   string `json:"to_sub_account_id"`
	Amount           string `json:"amount"`
}

// InitiateTransferRequest represents a cross-account transfer request
type InitiateTransferRequest struct {
	SourceSubAccountID      string `json:"source_sub_account_id"`
	DestinationSubAccountID string `json:"destination_sub_account_id"`
	Amount                  string `json:"amount"`
}

// InitiateTransferResponse carries the identifier of an accepted transfer
type InitiateTransferResponse struct {
	TransferID uuid.UUID `json:"transfer_id"`
}

// TransferResponse represents the current state of a transfer
type TransferResponse struct {
	TransferID              uuid.UUID `json:"transfer_id"`
	State                   string    `json:"state"`
	SourceSubAccountID      uuid.UUID `json:"source_sub_account_id"`
	DestinationSubAccountID uuid.UUID `json:"destination_sub_account_id"`
	Amount                  string    `json:"amount"`
	FailureReason           string    `json:"failure_reason,omitempty"`
}

// SubAccountResponse represents a sub-account's balances
type SubAccountResponse struct {
	SubAccountID uuid.UUID `json:"sub_account_id"`
	Balance      string    `json:"balance"`
	Frozen       string    `json:"frozen"`
}

// AccountResponse represents an account with its sub-accounts
type AccountResponse struct {
	AccountID   uuid.UUID            `json:"account_id"`
	HolderID    uuid.UUID            `json:"holder_id"`
	SubAccounts []SubAccountResponse `json:"sub_accounts"`
	Total       string               `json:"total"`
}

func newAccountResponse(acc *domain.Account) AccountResponse {
	resp := AccountResponse{
		AccountID:   acc.ID,
		HolderID:    acc.HolderID,
		SubAccounts: make([]SubAccountResponse, 0, len(acc.SubAccounts)),
		Total:       acc.BalanceTotal().String(),
	}
	for _, sub := range acc.SubAccounts {
		resp.SubAccounts = append(resp.SubAccounts, SubAccountResponse{
			SubAccountID: sub.ID,
			Balance:      sub.Balance.String(),
			Frozen:       sub.FrozenTotal().String(),
		})
	}
	return resp
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendErrorResponse(w http.ResponseWriter, status int, code, message, details string) {
	sendJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
