package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"networth/internal/core"
	"networth/internal/ledger"
	"networth/internal/log"
	"networth/internal/services"
)

// TransactionManager is the transaction lifecycle used by the handlers.
type TransactionManager interface {
	Create(ctx context.Context, userID string, in services.CreateTransactionInput) (core.Transaction, error)
	Update(ctx context.Context, userID, id string, in services.UpdateTransactionInput) (core.Transaction, error)
	Remove(ctx context.Context, userID, id string) error
	Get(ctx context.Context, userID, id string) (core.Transaction, error)
	List(ctx context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error)
}

type DashboardProvider interface {
	Summarize(ctx context.Context, userID string, q services.DashboardQuery) (services.DashboardSummary, error)
}

type IntakeDispatcher interface {
	Dispatch(ctx context.Context, userID string, p services.ParsedPayload) (services.IntakeResult, error)
}

// Directory manages accounts, cards and categories.
type Directory interface {
	CreateAccount(ctx context.Context, a core.Account) error
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	transactions TransactionManager
	dashboard    DashboardProvider
	intake       IntakeDispatcher
	directory    Directory
	health       HealthChecker
	logger       *log.StructuredLogger
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, errMalformedBody) {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if !core.IsClientError(err) && !core.IsNotFound(err) {
		h.logger.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, log.NewFields())
	}
	DomainError(err).Write(w)
}

// CreateTransaction records a new transaction.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}

	t, err := h.transactions.Create(r.Context(), userIDFrom(r.Context()), in)
	if err != nil {
		h.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionDTO(t)).Write(w)
}

// UpdateTransaction applies a partial update.
// PATCH /api/transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req UpdateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}

	t, err := h.transactions.Update(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(toTransactionDTO(t)).Write(w)
}

// DeleteTransaction removes a transaction and reverses its effects.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.transactions.Remove(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// GetTransaction returns one transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.transactions.Get(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(toTransactionDTO(t)).Write(w)
}

// ListTransactions returns the user's transactions, newest first.
// GET /api/transactions?accountId=&limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseTransactionFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}
	txs, err := h.transactions.List(r.Context(), userIDFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toTransactionDTOs(txs)).Write(w)
}

// Dashboard summarizes a period.
// GET /api/transactions/dashboard?period=&startDate=&endDate=
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseDashboardQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, log.OpSummarize, err)
		return
	}
	summary, err := h.dashboard.Summarize(r.Context(), userIDFrom(r.Context()), q)
	if err != nil {
		h.fail(w, r, log.OpSummarize, err)
		return
	}
	NewJSONResponse().Body(toDashboardDTO(summary)).Write(w)
}

// CreateParsed dispatches a parsed payload by kind.
// POST /api/transactions/parsed
func (h *Handler) CreateParsed(w http.ResponseWriter, r *http.Request) {
	var req ParsedTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "intake", err)
		return
	}
	p, err := req.toPayload()
	if err != nil {
		h.fail(w, r, "intake", err)
		return
	}

	res, err := h.intake.Dispatch(r.Context(), userIDFrom(r.Context()), p)
	if err != nil {
		h.fail(w, r, "intake", err)
		return
	}
	dto := IntakeResultDTO{Type: string(res.Kind), Ref: res.Ref}
	if res.Transaction != nil {
		t := toTransactionDTO(*res.Transaction)
		dto.Transaction = &t
	}
	NewJSONResponse().Status(http.StatusCreated).Body(dto).Write(w)
}

// CreateAccount adds a bank account, wallet or credit card.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "create_account", err)
		return
	}
	a, err := req.toAccount(userIDFrom(r.Context()), uuid.NewString())
	if err != nil {
		h.fail(w, r, "create_account", err)
		return
	}
	if err := h.directory.CreateAccount(r.Context(), a); err != nil {
		h.fail(w, r, "create_account", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toAccountDTO(a)).Write(w)
}

// ListAccounts returns accounts and cards with their current balances.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.directory.ListAccounts(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, "list_accounts", err)
		return
	}
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	NewJSONResponse().Body(dtos).Write(w)
}

// CreateCategory adds a category.
// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, "create_category", err)
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		h.fail(w, r, "create_category", core.NewValidationError("name", "is required"))
		return
	}
	c := core.Category{ID: uuid.NewString(), UserID: userIDFrom(r.Context()), Name: name}
	if err := h.directory.CreateCategory(r.Context(), c); err != nil {
		h.fail(w, r, "create_category", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(CategoryDTO{ID: c.ID, Name: c.Name}).Write(w)
}

// ListCategories returns the user's categories.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.directory.ListCategories(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.fail(w, r, "list_categories", err)
		return
	}
	dtos := make([]CategoryDTO, 0, len(cats))
	for _, c := range cats {
		dtos = append(dtos, CategoryDTO{ID: c.ID, Name: c.Name})
	}
	NewJSONResponse().Body(dtos).Write(w)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.LogError(r.Context(), "Readiness check failed", err, log.ComponentHTTP, "ready", log.NewFields())
			ServiceUnavailableError("store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

type userIDKey struct{}

const userIDHeader = "X-User-ID"

// requireUser trusts the X-User-ID header set by the upstream auth layer.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			UnauthorizedError("missing " + userIDHeader + " header").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, userID)
		ctx = log.WithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
