package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"networth/internal/cache"
	"networth/internal/core"
	"networth/internal/log"
	"networth/internal/services"
	"networth/internal/storage"
)

const testUser = "user-1"

type testAPI struct {
	srv   *Server
	store *storage.Store
}

func newTestAPI(t *testing.T, rateLimit int) *testAPI {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dash := services.NewDashboardService(store, cache.NewLRUCache[services.DashboardSummary](10, time.Minute))
	txs := services.NewTransactionService(store, nil, services.WithCommitHook(dash.Invalidate))

	srv := NewServer(ServerConfig{
		Addr:               ":0",
		RateLimitPerMinute: rateLimit,
		Logger:             log.New(log.Config{Format: "json", Output: io.Discard}),
	}, Deps{
		Transactions: txs,
		Dashboard:    dash,
		Intake:       services.NewIntakeRouter(txs),
		Directory:    store,
		Health:       store,
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testAPI{srv: srv, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) seedBank(t *testing.T, id, balance string) {
	t.Helper()
	require.NoError(t, a.store.CreateAccount(context.Background(), core.Account{
		ID: id, UserID: testUser, Kind: core.KindBank, Name: id, Balance: decimal.RequireFromString(balance),
	}))
}

func (a *testAPI) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := a.store.GetAccount(context.Background(), testUser, id)
	require.NoError(t, err)
	return acc.Balance
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	api := newTestAPI(t, 100)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := api.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	require.NoError(t, api.store.Close())
	rr := api.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMiddlewareHeaders(t *testing.T) {
	api := newTestAPI(t, 100)
	rr := api.do(t, http.MethodGet, "/healthz", "", nil)

	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestAPI_RequiresUser(t *testing.T) {
	api := newTestAPI(t, 100)
	rr := api.do(t, http.MethodGet, "/api/transactions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decode[ErrorBody](t, rr).Error, userIDHeader)
}

func TestCreateTransaction(t *testing.T) {
	api := newTestAPI(t, 100)
	api.seedBank(t, "bank-1", "500")

	rr := api.do(t, http.MethodPost, "/api/transactions", testUser, map[string]any{
		"amount":    "100",
		"type":      "expense",
		"date":      "2024-03-01",
		"accountId": "bank-1",
		"merchant":  "Bakery",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	dto := decode[TransactionDTO](t, rr)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "EXPENSE", dto.Type)
	assert.Equal(t, "MANUAL", dto.Source)
	assert.Equal(t, "2024-03-01T00:00:00Z", dto.Date)
	assert.True(t, decimal.NewFromInt(400).Equal(api.balance(t, "bank-1")))

	rr = api.do(t, http.MethodGet, "/api/transactions/"+dto.ID, testUser, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, dto.ID, decode[TransactionDTO](t, rr).ID)
}

func TestCreateTransaction_Errors(t *testing.T) {
	api := newTestAPI(t, 100)
	api.seedBank(t, "bank-1", "500")

	tests := []struct {
		name      string
		body      any
		wantCode  int
		wantField string
	}{
		{"malformed json", `{"amount": `, http.StatusBadRequest, ""},
		{"unknown field", `{"amount": "1", "bogus": true}`, http.StatusBadRequest, ""},
		{"trailing document", `{"amount": "1"} {}`, http.StatusBadRequest, ""},
		{"zero amount", map[string]any{"amount": "0", "accountId": "bank-1"}, http.StatusUnprocessableEntity, "amount"},
		{"bad date", map[string]any{"amount": "1", "date": "03/01/2024"}, http.StatusUnprocessableEntity, "date"},
		{"reserved source", map[string]any{"amount": "1", "source": "AUTO_RECURRING"}, http.StatusUnprocessableEntity, "source"},
		{"custom without interval", map[string]any{"amount": "1", "isRecurring": true, "recurrenceType": "custom", "recurrenceUnit": "days"}, http.StatusUnprocessableEntity, "recurrenceInterval"},
		{"unknown account", map[string]any{"amount": "1", "accountId": "nope"}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, "/api/transactions", testUser, tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			body := decode[ErrorBody](t, rr)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.wantField, body.Field)
		})
	}

	assert.True(t, decimal.NewFromInt(500).Equal(api.balance(t, "bank-1")))
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	api := newTestAPI(t, 100)
	api.seedBank(t, "bank-1", "500")

	rr := api.do(t, http.MethodPost, "/api/transactions", testUser, map[string]any{"amount": 100, "accountId": "bank-1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decode[TransactionDTO](t, rr).ID

	rr = api.do(t, http.MethodPatch, "/api/transactions/"+id, testUser, map[string]any{"amount": "250.50", "description": "  rent \x00"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	dto := decode[TransactionDTO](t, rr)
	assert.Equal(t, "rent", dto.Description)
	assert.True(t, decimal.RequireFromString("249.50").Equal(api.balance(t, "bank-1")))

	rr = api.do(t, http.MethodPatch, "/api/transactions/"+id, "someone-else", map[string]any{"amount": 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodDelete, "/api/transactions/"+id, testUser, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.True(t, decimal.NewFromInt(500).Equal(api.balance(t, "bank-1")))

	rr = api.do(t, http.MethodDelete, "/api/transactions/"+id, testUser, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListTransactions(t *testing.T) {
	api := newTestAPI(t, 100)
	api.seedBank(t, "bank-1", "500")
	api.seedBank(t, "bank-2", "500")

	for _, acc := range []string{"bank-1", "bank-2", "bank-2"} {
		rr := api.do(t, http.MethodPost, "/api/transactions", testUser, map[string]any{"amount": 1, "accountId": acc})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?accountId=bank-2", 2},
		{"?limit=1", 1},
	}
	for _, tt := range tests {
		rr := api.do(t, http.MethodGet, "/api/transactions"+tt.query, testUser, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]TransactionDTO](t, rr), tt.want, tt.query)
	}

	rr := api.do(t, http.MethodGet, "/api/transactions?limit=0", testUser, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/transactions", "someone-else", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t, 100)
	api.seedBank(t, "bank-1", "500")

	for _, body := range []map[string]any{
		{"amount": "1000", "type": "INCOME", "accountId": "bank-1"},
		{"amount": "120", "accountId": "bank-1"},
	} {
		rr := api.do(t, http.MethodPost, "/api/transactions", testUser, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := api.do(t, http.MethodGet, "/api/transactions/dashboard", testUser, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	dto := decode[DashboardDTO](t, rr)
	assert.Equal(t, "Monthly", dto.Period)
	assert.True(t, decimal.NewFromInt(1000).Equal(dto.TotalIncome))
	assert.True(t, decimal.NewFromInt(120).Equal(dto.TotalExpense))
	assert.True(t, decimal.NewFromInt(880).Equal(dto.Net))
	assert.Len(t, dto.Recent, 2)
	require.Len(t, dto.ByCategory, 1)
	assert.Equal(t, core.UncategorizedLabel, dto.ByCategory[0].Name)

	tests := []struct {
		query string
		want  int
	}{
		{"?period=weekly", http.StatusOK},
		{"?period=custom&startDate=2024-01-01&endDate=2024-01-31", http.StatusOK},
		{"?period=custom", http.StatusUnprocessableEntity},
		{"?period=fortnightly", http.StatusUnprocessableEntity},
		{"?period=custom&startDate=yesterday&endDate=2024-01-31", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rr := api.do(t, http.MethodGet, "/api/transactions/dashboard"+tt.query, testUser, nil)
		assert.Equal(t, tt.want, rr.Code, tt.query)
	}
}

func TestCreateParsed(t *testing.T) {
	api := newTestAPI(t, 100)
	api.seedBank(t, "bank-1", "500")

	rr := api.do(t, http.MethodPost, "/api/transactions/parsed", testUser, map[string]any{
		"type":      "BANK_DEPOSIT",
		"amount":    200,
		"currency":  "eur",
		"accountId": "bank-1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[IntakeResultDTO](t, rr)
	assert.Equal(t, "BANK_DEPOSIT", res.Type)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, res.Transaction.ID, res.Ref)
	assert.Equal(t, "INCOME", res.Transaction.Type)
	assert.Equal(t, "AI", res.Transaction.Source)
	assert.True(t, decimal.NewFromInt(700).Equal(api.balance(t, "bank-1")))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unregistered asset kind", map[string]any{"type": "GOLD", "amount": 1}},
		{"unknown kind", map[string]any{"type": "CRYPTO", "amount": 1}},
		{"deposit without account", map[string]any{"type": "BANK_DEPOSIT", "amount": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, "/api/transactions/parsed", testUser, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
		})
	}
}

func TestAccountsAndCategories(t *testing.T) {
	api := newTestAPI(t, 100)

	rr := api.do(t, http.MethodPost, "/api/accounts", testUser, map[string]any{"kind": "bank", "name": "Main", "balance": "10.005"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	bank := decode[AccountDTO](t, rr)
	require.NotNil(t, bank.Balance)
	assert.Nil(t, bank.CreditLimit)

	rr = api.do(t, http.MethodPost, "/api/accounts", testUser, map[string]any{"kind": "CREDIT_CARD", "name": "Visa", "creditLimit": 1000})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = api.do(t, http.MethodPost, "/api/accounts", testUser, map[string]any{"kind": "BROKER", "name": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/accounts", testUser, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]AccountDTO](t, rr), 2)

	rr = api.do(t, http.MethodPost, "/api/categories", testUser, map[string]any{"name": "Food"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = api.do(t, http.MethodPost, "/api/categories", testUser, map[string]any{"name": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/categories", testUser, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	cats := decode[[]CategoryDTO](t, rr)
	require.Len(t, cats, 1)
	assert.Equal(t, "Food", cats[0].Name)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, 2)

	for i := 0; i < 2; i++ {
		rr := api.do(t, http.MethodGet, "/api/transactions", testUser, nil)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := api.do(t, http.MethodGet, "/api/transactions", testUser, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.NotEmpty(t, decode[ErrorBody](t, rr).Error)

	rr = api.do(t, http.MethodGet, "/api/transactions", "other-user", nil)
	assert.Equal(t, http.StatusOK, rr.Code, "limits are per user")

	_, limits := api.srv.Metrics()
	assert.Equal(t, int64(1), limits.TotalHits)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, 100)
	rr := api.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPut, "/api/transactions/x", testUser, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.NewValidationError("amount", "must be positive"), http.StatusUnprocessableEntity},
		{"wrapped validation", errors.Join(errors.New("ctx"), core.ErrValidation), http.StatusUnprocessableEntity},
		{"not found", core.NewNotFoundError("transaction", "t-1"), http.StatusNotFound},
		{"store", &core.StoreTransactionError{Op: "commit", Err: errors.New("disk full")}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			DomainError(tt.err).Write(rr)
			assert.Equal(t, tt.want, rr.Code)
			assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rr.Body.String(), "disk full")
			}
		})
	}
}
