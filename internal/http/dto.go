package http

import (
	"github.com/shopspring/decimal"

	"networth/internal/core"
	"networth/internal/services"
)

// CreateTransactionRequest is the body of POST /api/transactions. Amounts may
// be JSON numbers or strings. Dates are YYYY-MM-DD or RFC 3339.
type CreateTransactionRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	Date            string          `json:"date"`
	Description     string          `json:"description"`
	Merchant        string          `json:"merchant"`
	CategoryID      string          `json:"categoryId"`
	AccountID       string          `json:"accountId"`
	CreditCardID    string          `json:"creditCardId"`
	ToBankAccountID string          `json:"toBankAccountId"`
	Source          string          `json:"source"`
	PaymentMethod   string          `json:"paymentMethod"`

	IsRecurring        bool   `json:"isRecurring"`
	RecurrenceType     string `json:"recurrenceType"`
	RecurrenceInterval int    `json:"recurrenceInterval"`
	RecurrenceUnit     string `json:"recurrenceUnit"`
}

// UpdateTransactionRequest is the body of PATCH /api/transactions/{id}.
// Absent fields are left unchanged; an empty string clears a reference.
type UpdateTransactionRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	Type            *string          `json:"type"`
	Date            *string          `json:"date"`
	Description     *string          `json:"description"`
	Merchant        *string          `json:"merchant"`
	CategoryID      *string          `json:"categoryId"`
	AccountID       *string          `json:"accountId"`
	CreditCardID    *string          `json:"creditCardId"`
	ToBankAccountID *string          `json:"toBankAccountId"`
	PaymentMethod   *string          `json:"paymentMethod"`

	IsRecurring        *bool   `json:"isRecurring"`
	RecurrenceType     *string `json:"recurrenceType"`
	RecurrenceInterval *int    `json:"recurrenceInterval"`
	RecurrenceUnit     *string `json:"recurrenceUnit"`
}

// ParsedTransactionRequest is the body of POST /api/transactions/parsed, the
// structured output of an upstream parser.
type ParsedTransactionRequest struct {
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Merchant      string          `json:"merchant"`
	CategoryID    string          `json:"categoryId"`
	AccountID     string          `json:"accountId"`
	CreditCardID  string          `json:"creditCardId"`
	PaymentMethod string          `json:"paymentMethod"`
	Source        string          `json:"source"`
}

type CreateAccountRequest struct {
	Kind        string          `json:"kind"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	UsedAmount  decimal.Decimal `json:"usedAmount"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// TransactionDTO represents a transaction in API responses.
type TransactionDTO struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	Date            string          `json:"date"`
	Description     string          `json:"description,omitempty"`
	Merchant        string          `json:"merchant,omitempty"`
	CategoryID      string          `json:"categoryId,omitempty"`
	AccountID       string          `json:"accountId,omitempty"`
	CreditCardID    string          `json:"creditCardId,omitempty"`
	ToBankAccountID string          `json:"toBankAccountId,omitempty"`
	Source          string          `json:"source"`

	IsRecurring        bool    `json:"isRecurring"`
	RecurrenceType     string  `json:"recurrenceType,omitempty"`
	RecurrenceInterval int     `json:"recurrenceInterval,omitempty"`
	RecurrenceUnit     string  `json:"recurrenceUnit,omitempty"`
	NextRunDate        *string `json:"nextRunDate,omitempty"`
	LastRunDate        *string `json:"lastRunDate,omitempty"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type AccountDTO struct {
	ID          string           `json:"id"`
	Kind        string           `json:"kind"`
	Name        string           `json:"name"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	UsedAmount  *decimal.Decimal `json:"usedAmount,omitempty"`
	CreditLimit *decimal.Decimal `json:"creditLimit,omitempty"`
}

type CategoryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CategoryAmountDTO struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type RecentItemDTO struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
	Merchant    string          `json:"merchant,omitempty"`
	Category    string          `json:"category,omitempty"`
}

type TrendPointDTO struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// DashboardDTO is the response of GET /api/transactions/dashboard.
type DashboardDTO struct {
	Period       string              `json:"period"`
	From         string              `json:"from"`
	To           string              `json:"to"`
	TotalIncome  decimal.Decimal     `json:"totalIncome"`
	TotalExpense decimal.Decimal     `json:"totalExpense"`
	Net          decimal.Decimal     `json:"net"`
	ByCategory   []CategoryAmountDTO `json:"byCategory"`
	Recent       []RecentItemDTO     `json:"recent"`
	Trend        []TrendPointDTO     `json:"trend"`
}

type IntakeResultDTO struct {
	Type        string          `json:"type"`
	Ref         string          `json:"ref,omitempty"`
	Transaction *TransactionDTO `json:"transaction,omitempty"`
}

func toTransactionDTO(t core.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              t.ID,
		Amount:          t.Amount,
		Type:            string(t.Type),
		Date:            t.Date.UTC().Format(dateTimeLayout),
		Description:     t.Description,
		Merchant:        t.Merchant,
		CategoryID:      t.CategoryID,
		AccountID:       t.AccountID,
		CreditCardID:    t.CreditCardID,
		ToBankAccountID: t.ToBankAccountID,
		Source:          string(t.Source),
		IsRecurring:     t.IsRecurring,
		NextRunDate:     formatTime(t.NextRunDate),
		LastRunDate:     formatTime(t.LastRunDate),
		CreatedAt:       t.CreatedAt.UTC().Format(dateTimeLayout),
		UpdatedAt:       t.UpdatedAt.UTC().Format(dateTimeLayout),
	}
	if t.IsRecurring {
		dto.RecurrenceType = string(t.Recurrence.Type)
		if t.Recurrence.Type == core.Custom {
			dto.RecurrenceInterval = t.Recurrence.Interval
			dto.RecurrenceUnit = string(t.Recurrence.Unit)
		}
	}
	return dto
}

func toTransactionDTOs(txs []core.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, t := range txs {
		dtos = append(dtos, toTransactionDTO(t))
	}
	return dtos
}

func toAccountDTO(a core.Account) AccountDTO {
	dto := AccountDTO{ID: a.ID, Kind: string(a.Kind), Name: a.Name}
	if a.Kind == core.KindCreditCard {
		used, limit := a.UsedAmount, a.CreditLimit
		dto.UsedAmount, dto.CreditLimit = &used, &limit
	} else {
		balance := a.Balance
		dto.Balance = &balance
	}
	return dto
}

func toDashboardDTO(s services.DashboardSummary) DashboardDTO {
	dto := DashboardDTO{
		Period:       string(s.Period),
		From:         s.From.UTC().Format(dateTimeLayout),
		To:           s.To.UTC().Format(dateTimeLayout),
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		Net:          s.Net,
		ByCategory:   make([]CategoryAmountDTO, 0, len(s.ByCategory)),
		Recent:       make([]RecentItemDTO, 0, len(s.Recent)),
		Trend:        make([]TrendPointDTO, 0, len(s.Trend)),
	}
	for _, c := range s.ByCategory {
		dto.ByCategory = append(dto.ByCategory, CategoryAmountDTO{Name: c.Name, Amount: c.Amount})
	}
	for _, r := range s.Recent {
		dto.Recent = append(dto.Recent, RecentItemDTO{
			ID:          r.ID,
			Kind:        r.Kind,
			Type:        string(r.Type),
			Amount:      r.Amount,
			Date:        r.Date.UTC().Format(dateTimeLayout),
			Description: r.Description,
			Merchant:    r.Merchant,
			Category:    r.Category,
		})
	}
	for _, p := range s.Trend {
		dto.Trend = append(dto.Trend, TrendPointDTO{
			Date:    p.Date.UTC().Format(dateLayout),
			Income:  p.Income,
			Expense: p.Expense,
		})
	}
	return dto
}
