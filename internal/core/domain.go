package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	SourceManual        Source = "MANUAL"
	SourceAI            Source = "AI"
	SourceAutoRecurring Source = "AUTO_RECURRING"
	SourceSMS           Source = "SMS"
)

const (
	Daily   RecurrenceType = "DAILY"
	Weekly  RecurrenceType = "WEEKLY"
	Monthly RecurrenceType = "MONTHLY"
	Custom  RecurrenceType = "CUSTOM"
)

const (
	Days   RecurrenceUnit = "DAYS"
	Weeks  RecurrenceUnit = "WEEKS"
	Months RecurrenceUnit = "MONTHS"
	Years  RecurrenceUnit = "YEARS"
)

const (
	KindBank       AccountKind = "BANK"
	KindWallet     AccountKind = "WALLET"
	KindCreditCard AccountKind = "CREDIT_CARD"
)

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentBank       PaymentMethod = "bank"
)

// UncategorizedLabel is the expense category used when a transaction has no category.
const UncategorizedLabel = "Uncategorized"

type (
	TransactionType string
	Source          string
	RecurrenceType  string
	RecurrenceUnit  string
	AccountKind     string
	PaymentMethod   string

	// RecurrenceRule is the (type, interval, unit) triple driving the cadence calculator.
	RecurrenceRule struct {
		Type     RecurrenceType
		Interval int
		Unit     RecurrenceUnit
	}

	// Account is either a bank/wallet account (Balance) or a credit card (UsedAmount/CreditLimit).
	Account struct {
		ID          string
		UserID      string
		Kind        AccountKind
		Name        string
		Balance     decimal.Decimal
		UsedAmount  decimal.Decimal
		CreditLimit decimal.Decimal
	}

	Category struct {
		ID     string
		UserID string
		Name   string
	}

	Transaction struct {
		ID              string
		UserID          string
		Amount          decimal.Decimal
		Type            TransactionType
		Date            time.Time
		Description     string
		Merchant        string
		CategoryID      string
		AccountID       string
		CreditCardID    string
		ToBankAccountID string
		Source          Source

		IsRecurring bool
		Recurrence  RecurrenceRule
		NextRunDate *time.Time
		LastRunDate *time.Time

		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// ExpenseRecord is the denormalized expense mirror. TransactionID is empty for
	// expenses that were not created through the transaction lifecycle.
	ExpenseRecord struct {
		ID            string
		UserID        string
		TransactionID string
		Amount        decimal.Decimal
		Date          time.Time
		Category      string
		Merchant      string
		Description   string
		PaymentMethod PaymentMethod
		AccountID     string
		CreditCardID  string
	}

	CategoryAmount struct {
		Name   string
		Amount decimal.Decimal
	}
)

// HasAccountReference reports whether the transaction touches any account or card.
func (t Transaction) HasAccountReference() bool {
	return t.AccountID != "" || t.CreditCardID != ""
}

// IsTransfer reports a bank-to-bank transfer.
func (t Transaction) IsTransfer() bool {
	return t.AccountID != "" && t.ToBankAccountID != ""
}

// NeedsExpenseMirror reports whether the transaction must have exactly one expense row.
func (t Transaction) NeedsExpenseMirror() bool {
	return t.Type == Expense && t.HasAccountReference()
}

func (t Transaction) Validate() error {
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	switch t.Type {
	case Income, Expense:
	default:
		return NewValidationError("type", "must be INCOME or EXPENSE")
	}
	if t.Date.IsZero() {
		return NewValidationError("date", "cannot be zero")
	}
	if strings.TrimSpace(t.UserID) == "" {
		return NewValidationError("userId", "is required")
	}
	if len(t.Description) > 500 {
		return NewValidationError("description", "too long (max 500 characters)")
	}
	if t.ToBankAccountID != "" {
		if t.AccountID == "" {
			return NewValidationError("toBankAccountId", "requires accountId")
		}
		if t.ToBankAccountID == t.AccountID {
			return NewValidationError("toBankAccountId", "must differ from accountId")
		}
		if t.CreditCardID != "" {
			return NewValidationError("toBankAccountId", "cannot be combined with creditCardId")
		}
	}
	if t.IsRecurring {
		if err := t.Recurrence.Validate(); err != nil {
			return err
		}
		if t.NextRunDate == nil {
			return NewValidationError("nextRunDate", "is required for recurring transactions")
		}
		if t.LastRunDate != nil && t.NextRunDate.Before(*t.LastRunDate) {
			return NewValidationError("nextRunDate", "must not precede lastRunDate")
		}
	} else if t.NextRunDate != nil || t.LastRunDate != nil {
		return NewValidationError("nextRunDate", "must be empty for non-recurring transactions")
	}
	return nil
}

func (r RecurrenceRule) Validate() error {
	switch r.Type {
	case Daily, Weekly, Monthly:
		return nil
	case Custom:
		if r.Interval < 1 {
			return NewValidationError("recurrenceInterval", "must be at least 1")
		}
		switch r.Unit {
		case Days, Weeks, Months, Years:
			return nil
		default:
			return NewValidationError("recurrenceUnit", "must be DAYS, WEEKS, MONTHS or YEARS")
		}
	case "":
		return NewValidationError("recurrenceType", "is required for recurring transactions")
	default:
		return NewValidationError("recurrenceType", "must be DAILY, WEEKLY, MONTHLY or CUSTOM")
	}
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentDebitCard, PaymentCreditCard, PaymentBank:
		return true
	}
	return false
}
