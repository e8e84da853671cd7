package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/account"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/domain"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/es"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/eventstore"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/projection"
	"github.com/spbu-ds-practicum-2025/transfer-saga/internal/transfer"
)

type fixture struct {
	router    http.Handler
	accounts  *account.Service
	directory *projection.MemoryDirectory
}

// newFixture wires the API over in-memory infrastructure. The directory is
// fed directly instead of through the projector: these tests cover the HTTP
// surface, not the choreography.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := eventstore.NewMemoryStore()
	accountES := es.NewService(store, domain.AccountAggregateType, domain.NewAccount, domain.AccountEventRegistry())
	transferES := es.NewService(store, domain.TransferAggregateType, domain.NewTransferTransaction, domain.TransferEventRegistry())

	directory := projection.NewMemoryDirectory()
	accounts := account.NewService(accountES)
	transfers := transfer.NewService(directory, transferES)

	handler := NewHandler(accounts, transfers, zaptest.NewLogger(t))
	return &fixture{
		router:    handler.Router(),
		accounts:  accounts,
		directory: directory,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

// newFundedSubAccount creates an account with one funded sub-account and
// registers it in the directory.
func (f *fixture) newFundedSubAccount(t *testing.T, balance int64) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	accountID, err := f.accounts.Create(ctx, uuid.New())
	require.NoError(t, err)
	subAccountID, err := f.accounts.CreateSubAccount(ctx, accountID)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, f.accounts.Deposit(ctx, accountID, subAccountID, decimal.NewFromInt(balance)))
	}
	require.NoError(t, f.directory.Record(ctx, subAccountID, accountID))
	return accountID, subAccountID
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/accounts", CreateAccountRequest{HolderID: uuid.New().String()})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var response CreateAccountResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.NotEqual(t, uuid.Nil, response.AccountID)
}

func TestCreateAccount_InvalidHolderID(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/accounts", CreateAccountRequest{HolderID: "not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreateSubAccount_CapacityExceeded(t *testing.T) {
	f := newFixture(t)
	accountID, _ := f.newFundedSubAccount(t, 0)

	for i := 1; i < domain.MaxSubAccounts; i++ {
		recorder := f.do(t, http.MethodPost, "/accounts/"+accountID.String()+"/sub-accounts", nil)
		require.Equal(t, http.StatusCreated, recorder.Code)
	}

	recorder := f.do(t, http.MethodPost, "/accounts/"+accountID.String()+"/sub-accounts", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", response.Error.Code)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)
	accountID, subAccountID := f.newFundedSubAccount(t, 250)

	recorder := f.do(t, http.MethodGet, "/accounts/"+accountID.String(), nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var response AccountResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, accountID, response.AccountID)
	require.Len(t, response.SubAccounts, 1)
	assert.Equal(t, subAccountID, response.SubAccounts[0].SubAccountID)
	assert.Equal(t, "250", response.SubAccounts[0].Balance)
	assert.Equal(t, "250", response.Total)
}

func TestGetAccount_NotFound(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodGet, "/accounts/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	accountID, subAccountID := f.newFundedSubAccount(t, 0)
	base := "/accounts/" + accountID.String()

	recorder := f.do(t, http.MethodPost, base+"/deposits", MoveMoneyRequest{SubAccountID: subAccountID.String(), Amount: "100.50"})
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = f.do(t, http.MethodPost, base+"/withdrawals", MoveMoneyRequest{SubAccountID: subAccountID.String(), Amount: "40.50"})
	require.Equal(t, http.StatusNoContent, recorder.Code)

	// Insufficient funds is a business-rule violation, not a bad request.
	recorder = f.do(t, http.MethodPost, base+"/withdrawals", MoveMoneyRequest{SubAccountID: subAccountID.String(), Amount: "1000"})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	recorder = f.do(t, http.MethodPost, base+"/deposits", MoveMoneyRequest{SubAccountID: subAccountID.String(), Amount: "-5"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var response AccountResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "60", response.Total)
}

func TestInternalTransfer(t *testing.T) {
	f := newFixture(t)
	accountID, fromID := f.newFundedSubAccount(t, 500)

	recorder := f.do(t, http.MethodPost, "/accounts/"+accountID.String()+"/sub-accounts", nil)
	require.Equal(t, http.StatusCreated, recorder.Code)
	var created CreateSubAccountResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))

	recorder = f.do(t, http.MethodPost, "/accounts/"+accountID.String()+"/internal-transfers", InternalTransferRequest{
		FromSubAccountID: fromID.String(),
		ToSubAccountID:   created.SubAccountID.String(),
		Amount:           "200",
	})
	require.Equal(t, http.StatusNoContent, recorder.Code)

	acc, err := f.accounts.Get(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, acc.SubAccounts[created.SubAccountID].Balance.Equal(decimal.NewFromInt(200)))
}

func TestInitiateTransfer_Accepted(t *testing.T) {
	f := newFixture(t)
	_, sourceSub := f.newFundedSubAccount(t, 1000)
	_, destinationSub := f.newFundedSubAccount(t, 0)

	recorder := f.do(t, http.MethodPost, "/transfers", InitiateTransferRequest{
		SourceSubAccountID:      sourceSub.String(),
		DestinationSubAccountID: destinationSub.String(),
		Amount:                  "300",
	})
	require.Equal(t, http.StatusAccepted, recorder.Code)

	var response InitiateTransferResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	// Without the choreography running the saga stays in PROCESSING.
	recorder = f.do(t, http.MethodGet, "/transfers/"+response.TransferID.String(), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var status TransferResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &status))
	assert.Equal(t, string(domain.TransferStateProcessing), status.State)
	assert.Equal(t, "300", status.Amount)
}

func TestInitiateTransfer_UnknownParticipant(t *testing.T) {
	f := newFixture(t)
	_, sourceSub := f.newFundedSubAccount(t, 1000)

	recorder := f.do(t, http.MethodPost, "/transfers", InitiateTransferRequest{
		SourceSubAccountID:      sourceSub.String(),
		DestinationSubAccountID: uuid.New().String(),
		Amount:                  "300",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetTransfer_NotFound(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodGet, "/transfers/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
