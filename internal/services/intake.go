package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"networth/internal/core"
)

// ParsedKind is the closed set of kinds a parsed payload can carry.
type ParsedKind string

const (
	ParsedGold        ParsedKind = "GOLD"
	ParsedStock       ParsedKind = "STOCK"
	ParsedBond        ParsedKind = "BOND"
	ParsedExpense     ParsedKind = "EXPENSE"
	ParsedIncome      ParsedKind = "INCOME"
	ParsedBankDeposit ParsedKind = "BANK_DEPOSIT"
)

// ParseKind maps a free-form type tag to a ParsedKind.
func ParseKind(s string) (ParsedKind, error) {
	k := ParsedKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case ParsedGold, ParsedStock, ParsedBond, ParsedExpense, ParsedIncome, ParsedBankDeposit:
		return k, nil
	}
	return "", core.NewValidationError("type", fmt.Sprintf("unsupported parsed type %q", s))
}

// ParsedPayload is the structured output of an upstream parser.
type ParsedPayload struct {
	Kind          ParsedKind
	Amount        decimal.Decimal
	Currency      string
	Date          time.Time
	Description   string
	Merchant      string
	CategoryID    string
	AccountID     string
	CreditCardID  string
	PaymentMethod core.PaymentMethod
	Source        core.Source
}

// IntakeResult is what a handler produced. Transaction is set for the ledger
// kinds; Ref carries an opaque id for the asset kinds.
type IntakeResult struct {
	Kind        ParsedKind
	Transaction *core.Transaction
	Ref         string
}

// IntakeHandler handles one parsed kind for a user.
type IntakeHandler func(ctx context.Context, userID string, p ParsedPayload) (IntakeResult, error)

// IntakeRouter dispatches parsed payloads through an explicit handler table.
type IntakeRouter struct {
	mu       sync.RWMutex
	handlers map[ParsedKind]IntakeHandler
}

// NewIntakeRouter registers the ledger kinds (EXPENSE, INCOME, BANK_DEPOSIT)
// against txs. Asset kinds stay unhandled until Register is called for them.
func NewIntakeRouter(txs *TransactionService) *IntakeRouter {
	r := &IntakeRouter{handlers: make(map[ParsedKind]IntakeHandler)}
	r.Register(ParsedExpense, ledgerHandler(txs, core.Expense))
	r.Register(ParsedIncome, ledgerHandler(txs, core.Income))
	r.Register(ParsedBankDeposit, func(ctx context.Context, userID string, p ParsedPayload) (IntakeResult, error) {
		if p.AccountID == "" {
			return IntakeResult{}, core.NewValidationError("accountId", "is required for BANK_DEPOSIT")
		}
		p.CreditCardID = ""
		return ledgerHandler(txs, core.Income)(ctx, userID, p)
	})
	return r
}

func (r *IntakeRouter) Register(kind ParsedKind, h IntakeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *IntakeRouter) Dispatch(ctx context.Context, userID string, p ParsedPayload) (IntakeResult, error) {
	r.mu.RLock()
	h, ok := r.handlers[p.Kind]
	r.mu.RUnlock()
	if !ok {
		return IntakeResult{}, core.NewValidationError("type", fmt.Sprintf("no handler registered for %s", p.Kind))
	}
	res, err := h(ctx, userID, p)
	if err != nil {
		return IntakeResult{}, err
	}
	res.Kind = p.Kind
	return res, nil
}

func ledgerHandler(txs *TransactionService, typ core.TransactionType) IntakeHandler {
	return func(ctx context.Context, userID string, p ParsedPayload) (IntakeResult, error) {
		source := p.Source
		if source == "" {
			source = core.SourceAI
		}
		t, err := txs.Create(ctx, userID, CreateTransactionInput{
			Amount:        p.Amount,
			Type:          typ,
			Date:          p.Date,
			Description:   p.Description,
			Merchant:      p.Merchant,
			CategoryID:    p.CategoryID,
			AccountID:     p.AccountID,
			CreditCardID:  p.CreditCardID,
			Source:        source,
			PaymentMethod: p.PaymentMethod,
		})
		if err != nil {
			return IntakeResult{}, err
		}
		return IntakeResult{Transaction: &t, Ref: t.ID}, nil
	}
}
