package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/account"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/transfer"
)

// Handler serves the request-facing HTTP API. Account-local commands are
// synchronous; cross-account transfers are accepted with 202 and resolve
// asynchronously through the saga.
type Handler struct {
	accounts  *account.Service
	transfers *transfer.Service
	logger    *zap.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(accounts *account.Service, transfers *transfer.Service, logger *zap.Logger) *Handler {
	return &Handler{
		accounts:  accounts,
		transfers: transfers,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/accounts", h.CreateAccount)
	r.Get("/accounts/{accountId}", h.GetAccount)
	r.Post("/accounts/{accountId}/sub-accounts", h.CreateSubAccount)
	r.Post("/accounts/{accountId}/deposits", h.Deposit)
	r.Post("/accounts/{accountId}/withdrawals", h.Withdraw)
	r.Post("/accounts/{accountId}/internal-transfers", h.InternalTransfer)

	r.Post("/transfers", h.InitiateTransfer)
	r.Get("/transfers/{transferId}", h.GetTransfer)

	return r
}

// CreateAccount handles account creation requests
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}

	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid holder_id", err.Error())
		return
	}

	accountID, err := h.accounts.Create(r.Context(), holderID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, CreateAccountResponse{AccountID: accountID})
}

// CreateSubAccount handles sub-account creation requests
func (h *Handler) CreateSubAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountId")
	if !ok {
		return
	}

	subAccountID, err := h.accounts.CreateSubAccount(r.Context(), accountID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusCreated, CreateSubAccountResponse{SubAccountID: subAccountID})
}

// GetAccount returns the account's balances and pending transactions
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountId")
	if !ok {
		return
	}

	acc, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, newAccountResponse(acc))
}

// Deposit handles deposit requests
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountId")
	if !ok {
		return
	}
	req, ok := parseMoveRequest(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Deposit(r.Context(), accountID, req.subAccountID, req.amount); err != nil {
		h.sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Withdraw handles withdrawal requests
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountId")
	if !ok {
		return
	}
	req, ok := parseMoveRequest(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Withdraw(r.Context(), accountID, req.subAccountID, req.amount); err != nil {
		h.sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InternalTransfer handles same-account transfers between sub-accounts
func (h *Handler) InternalTransfer(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseIDParam(w, r, "accountId")
	if !ok {
		return
	}

	var req InternalTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}

	fromID, err := uuid.Parse(req.FromSubAccountID)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid from_sub_account_id", err.Error())
		return
	}
	toID, err := uuid.Parse(req.ToSubAccountID)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid to_sub_account_id", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid amount", err.Error())
		return
	}

	if err := h.accounts.InternalTransfer(r.Context(), accountID, fromID, toID, amount); err != nil {
		h.sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InitiateTransfer accepts a cross-account transfer for asynchronous processing
func (h *Handler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req InitiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return
	}

	sourceID, err := uuid.Parse(req.SourceSubAccountID)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid source_sub_account_id", err.Error())
		return
	}
	destinationID, err := uuid.Parse(req.DestinationSubAccountID)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid destination_sub_account_id", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid amount", err.Error())
		return
	}

	transferID, err := h.transfers.Initiate(r.Context(), sourceID, destinationID, amount)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusAccepted, InitiateTransferResponse{TransferID: transferID})
}

// GetTransfer returns the current state of a transfer saga
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transferID, ok := parseIDParam(w, r, "transferId")
	if !ok {
		return
	}

	t, err := h.transfers.Get(r.Context(), transferID)
	if err != nil {
		h.sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, TransferResponse{
		TransferID:              t.ID,
		State:                   string(t.State),
		SourceSubAccountID:      t.Source.SubAccountID,
		DestinationSubAccountID: t.Destination.SubAccountID,
		Amount:                  t.Amount.String(),
		FailureReason:           t.FailureReason,
	})
}

// sendDomainError maps domain errors to HTTP status codes.
func (h *Handler) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrSubAccountNotFound),
		errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, transfer.ErrUnknownParticipant):
		sendErrorResponse(w, http.StatusNotFound, "NOT_FOUND", err.Error(), "")

	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameSubAccount):
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "")

	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrLimitExceeded),
		errors.Is(err, domain.ErrCapacityExceeded):
		sendErrorResponse(w, http.StatusUnprocessableEntity, "BUSINESS_RULE_VIOLATION", err.Error(), "")

	default:
		h.logger.Error("internal error", zap.Error(err))
		sendErrorResponse(w, http.StatusInternalServerError, "INTERNAL", "internal error", "")
	}
}

type moveRequest struct {
	subAccountID uuid.UUID
	amount       decimal.Decimal
}

// parseMoveRequest parses the shared deposit/withdrawal body.
func parseMoveRequest(w http.ResponseWriter, r *http.Request) (moveRequest, bool) {
	var req MoveMoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return moveRequest{}, false
	}

	subAccountID, err := uuid.Parse(req.SubAccountID)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid sub_account_id", err.Error())
		return moveRequest{}, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid amount", err.Error())
		return moveRequest{}, false
	}

	return moveRequest{subAccountID: subAccountID, amount: amount}, true
}

// parseIDParam parses a UUID path parameter.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid "+name, err.Error())
		return uuid.Nil, false
	}
	return id, true
}
