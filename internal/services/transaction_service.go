package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"networth/internal/core"
	"networth/internal/ledger"
	"networth/internal/log"
)

// ErrNotDue is returned by MaterializeRecurring when the parent is no longer
// due, usually because another run already advanced it.
var ErrNotDue = errors.New("recurring transaction not due")

// EventPublisher receives ledger events after their unit of work committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e core.LedgerEvent) error
}

// CreateTransactionInput carries a new transaction. Zero values take defaults:
// Type EXPENSE, Source MANUAL, Date now.
type CreateTransactionInput struct {
	Amount          decimal.Decimal
	Type            core.TransactionType
	Date            time.Time
	Description     string
	Merchant        string
	CategoryID      string
	AccountID       string
	CreditCardID    string
	ToBankAccountID string
	Source          core.Source
	PaymentMethod   core.PaymentMethod

	IsRecurring bool
	Recurrence  core.RecurrenceRule
}

// UpdateTransactionInput is a partial update; nil fields are left unchanged.
// An empty string clears an optional reference.
type UpdateTransactionInput struct {
	Amount          *decimal.Decimal
	Type            *core.TransactionType
	Date            *time.Time
	Description     *string
	Merchant        *string
	CategoryID      *string
	AccountID       *string
	CreditCardID    *string
	ToBankAccountID *string
	PaymentMethod   *core.PaymentMethod

	IsRecurring        *bool
	RecurrenceType     *core.RecurrenceType
	RecurrenceInterval *int
	RecurrenceUnit     *core.RecurrenceUnit
}

// TransactionService is the transaction lifecycle manager. Every mutation of a
// transaction, its balance effect and its expense mirror commits or rolls back
// as one unit.
type TransactionService struct {
	store     ledger.Store
	publisher EventPublisher
	now       func() time.Time
	onCommit  []func(ctx context.Context, userID string)
	logger    *log.StructuredLogger
}

type TransactionOption func(*TransactionService)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) TransactionOption {
	return func(s *TransactionService) { s.now = now }
}

// WithCommitHook registers fn to run after every committed mutation.
func WithCommitHook(fn func(ctx context.Context, userID string)) TransactionOption {
	return func(s *TransactionService) { s.onCommit = append(s.onCommit, fn) }
}

// NewTransactionService builds the service. publisher may be nil.
func NewTransactionService(store ledger.Store, publisher EventPublisher, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
		logger:    log.NewStructuredLogger(log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentLedger})),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TransactionService) Create(ctx context.Context, userID string, in CreateTransactionInput) (core.Transaction, error) {
	now := s.now().UTC()
	t := core.Transaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Amount:          core.RoundMoney(in.Amount),
		Type:            in.Type,
		Date:            in.Date.UTC(),
		Description:     in.Description,
		Merchant:        in.Merchant,
		CategoryID:      in.CategoryID,
		AccountID:       in.AccountID,
		CreditCardID:    in.CreditCardID,
		ToBankAccountID: in.ToBankAccountID,
		Source:          in.Source,
		IsRecurring:     in.IsRecurring,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if t.Type == "" {
		t.Type = core.Expense
	}
	if t.Source == "" {
		t.Source = core.SourceManual
	}
	if in.Date.IsZero() {
		t.Date = now
	}
	if t.IsRecurring {
		t.Recurrence = in.Recurrence
		last := t.Date
		next := Cadence(t.Date, t.Recurrence)
		t.LastRunDate, t.NextRunDate = &last, &next
	}
	if err := validateTransaction(t, in.PaymentMethod); err != nil {
		return core.Transaction{}, err
	}

	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		return insertWithEffects(ctx, tx, t, in.PaymentMethod)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.committed(ctx, core.EventCreated, t, log.OpCreate)
	return t, nil
}

func (s *TransactionService) Update(ctx context.Context, userID, id string, in UpdateTransactionInput) (core.Transaction, error) {
	var updated core.Transaction
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		old, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		t := applyPatch(old, in)
		t.UpdatedAt = s.now().UTC()

		method := core.PaymentMethod("")
		if in.PaymentMethod != nil {
			method = *in.PaymentMethod
		}
		if err := validateTransaction(t, method); err != nil {
			return err
		}

		if balanceRelevantChange(old, t) {
			if err := ApplyEffect(ctx, tx, old, -1); err != nil {
				return fmt.Errorf("reverse previous effect: %w", err)
			}
			if err := ensureReferences(ctx, tx, t); err != nil {
				return err
			}
			if err := ApplyEffect(ctx, tx, t, 1); err != nil {
				return err
			}
		} else if t.CategoryID != old.CategoryID {
			if err := ensureReferences(ctx, tx, t); err != nil {
				return err
			}
		}

		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if err := syncMirror(ctx, tx, t, method); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.committed(ctx, core.EventUpdated, updated, log.OpUpdate)
	return updated, nil
}

// Remove reverses the full balance effect, then deletes the mirror and the row.
func (s *TransactionService) Remove(ctx context.Context, userID, id string) error {
	var removed core.Transaction
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		old, err := tx.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := ApplyEffect(ctx, tx, old, -1); err != nil {
			return fmt.Errorf("reverse effect: %w", err)
		}
		if _, err := tx.DeleteExpensesByTransaction(ctx, userID, id); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, userID, id); err != nil {
			return err
		}
		removed = old
		return nil
	})
	if err != nil {
		return err
	}

	s.committed(ctx, core.EventDeleted, removed, log.OpDelete)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *TransactionService) List(ctx context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, f)
}

// MaterializeRecurring creates one concrete child of a due recurring parent and
// advances the parent, in a single unit. The next run is anchored on the
// parent's previous next run date, not on now, so a late run keeps the cadence.
func (s *TransactionService) MaterializeRecurring(ctx context.Context, parent core.Transaction, now time.Time) (core.Transaction, error) {
	now = now.UTC()
	var child core.Transaction
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		current, err := tx.GetTransaction(ctx, parent.UserID, parent.ID)
		if err != nil {
			return err
		}
		if !current.IsRecurring || current.NextRunDate == nil || current.NextRunDate.After(now) {
			return ErrNotDue
		}

		method := core.PaymentMethod("")
		if mirror, ok, err := tx.GetExpenseByTransaction(ctx, current.UserID, current.ID); err != nil {
			return err
		} else if ok {
			method = mirror.PaymentMethod
		}

		child = core.Transaction{
			ID:              uuid.NewString(),
			UserID:          current.UserID,
			Amount:          current.Amount,
			Type:            current.Type,
			Date:            now,
			Description:     current.Description,
			Merchant:        current.Merchant,
			CategoryID:      current.CategoryID,
			AccountID:       current.AccountID,
			CreditCardID:    current.CreditCardID,
			ToBankAccountID: current.ToBankAccountID,
			Source:          core.SourceAutoRecurring,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := insertWithEffects(ctx, tx, child, method); err != nil {
			return err
		}

		next := Cadence(*current.NextRunDate, current.Recurrence)
		return tx.AdvanceRecurrence(ctx, current.UserID, current.ID, now, next)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.committed(ctx, core.EventMaterialized, child, log.OpMaterialize)
	return child, nil
}

func (s *TransactionService) committed(ctx context.Context, kind core.EventKind, t core.Transaction, op string) {
	s.logger.LogTransaction(ctx, op, t.UserID, t.ID, core.ToCents(t.Amount), string(t.Type))

	for _, fn := range s.onCommit {
		fn(ctx, t.UserID)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping ledger event", "transaction_id", t.ID)
		return
	}
	ev := core.LedgerEvent{
		ID:            uuid.NewString(),
		Kind:          kind,
		TransactionID: t.ID,
		UserID:        t.UserID,
		Type:          t.Type,
		Amount:        t.Amount,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		// the unit is committed; the event is best effort
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"transaction_id", t.ID,
			"event_kind", kind,
			"error", err)
	}
}

// insertWithEffects writes a new transaction, its balance effect and its mirror.
func insertWithEffects(ctx context.Context, tx ledger.Tx, t core.Transaction, method core.PaymentMethod) error {
	if err := ensureReferences(ctx, tx, t); err != nil {
		return err
	}
	if err := ApplyEffect(ctx, tx, t, 1); err != nil {
		return err
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return err
	}
	if !t.NeedsExpenseMirror() {
		return nil
	}
	mirror, err := buildMirror(ctx, tx, t, core.ExpenseRecord{ID: uuid.NewString()}, method)
	if err != nil {
		return err
	}
	return tx.InsertExpense(ctx, mirror)
}

// syncMirror keeps the expense row linked to t in lock-step with it.
func syncMirror(ctx context.Context, tx ledger.Tx, t core.Transaction, method core.PaymentMethod) error {
	existing, found, err := tx.GetExpenseByTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return err
	}
	switch {
	case t.NeedsExpenseMirror() && found:
		if method == "" && refsMatch(existing, t) {
			method = existing.PaymentMethod
		}
		mirror, err := buildMirror(ctx, tx, t, existing, method)
		if err != nil {
			return err
		}
		return tx.UpdateExpense(ctx, mirror)
	case t.NeedsExpenseMirror():
		mirror, err := buildMirror(ctx, tx, t, core.ExpenseRecord{ID: uuid.NewString()}, method)
		if err != nil {
			return err
		}
		return tx.InsertExpense(ctx, mirror)
	case found:
		_, err := tx.DeleteExpensesByTransaction(ctx, t.UserID, t.ID)
		return err
	}
	return nil
}

func buildMirror(ctx context.Context, tx ledger.Tx, t core.Transaction, base core.ExpenseRecord, method core.PaymentMethod) (core.ExpenseRecord, error) {
	category := core.UncategorizedLabel
	if t.CategoryID != "" {
		name, err := tx.CategoryName(ctx, t.UserID, t.CategoryID)
		if err != nil {
			return core.ExpenseRecord{}, err
		}
		category = name
	}
	if method == "" {
		method = derivePaymentMethod(t)
	}
	base.UserID = t.UserID
	base.TransactionID = t.ID
	base.Amount = t.Amount
	base.Date = t.Date
	base.Category = category
	base.Merchant = t.Merchant
	base.Description = t.Description
	base.PaymentMethod = method
	base.AccountID = t.AccountID
	base.CreditCardID = t.CreditCardID
	return base, nil
}

func derivePaymentMethod(t core.Transaction) core.PaymentMethod {
	if t.CreditCardID != "" && t.AccountID == "" {
		return core.PaymentCreditCard
	}
	return core.PaymentBank
}

func refsMatch(e core.ExpenseRecord, t core.Transaction) bool {
	return e.AccountID == t.AccountID && e.CreditCardID == t.CreditCardID
}

// ensureReferences checks that every account, card and category t points at
// exists and belongs to t's user.
func ensureReferences(ctx context.Context, tx ledger.Reader, t core.Transaction) error {
	for _, id := range []string{t.AccountID, t.ToBankAccountID} {
		if id == "" {
			continue
		}
		ok, err := tx.HasBankAccount(ctx, t.UserID, id)
		if err != nil {
			return err
		}
		if !ok {
			return core.NewNotFoundError("bank_account", id)
		}
	}
	if t.CreditCardID != "" {
		ok, err := tx.HasCreditCard(ctx, t.UserID, t.CreditCardID)
		if err != nil {
			return err
		}
		if !ok {
			return core.NewNotFoundError("credit_card", t.CreditCardID)
		}
	}
	if t.CategoryID != "" {
		if _, err := tx.CategoryName(ctx, t.UserID, t.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func validateTransaction(t core.Transaction, method core.PaymentMethod) error {
	if method != "" && !method.Valid() {
		return core.NewValidationError("paymentMethod", "must be cash, debit_card, credit_card or bank")
	}
	return t.Validate()
}

func balanceRelevantChange(old, t core.Transaction) bool {
	return old.Type != t.Type ||
		!old.Amount.Equal(t.Amount) ||
		old.AccountID != t.AccountID ||
		old.CreditCardID != t.CreditCardID ||
		old.ToBankAccountID != t.ToBankAccountID
}

// applyPatch merges in over old and recomputes the recurrence dates: turning
// recurrence on anchors on the (possibly new) date, turning it off clears both
// dates, and a rule change re-anchors on the last run.
func applyPatch(old core.Transaction, in UpdateTransactionInput) core.Transaction {
	t := old
	if in.Amount != nil {
		t.Amount = core.RoundMoney(*in.Amount)
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.Date != nil {
		t.Date = in.Date.UTC()
	}
	setString(&t.Description, in.Description)
	setString(&t.Merchant, in.Merchant)
	setString(&t.CategoryID, in.CategoryID)
	setString(&t.AccountID, in.AccountID)
	setString(&t.CreditCardID, in.CreditCardID)
	setString(&t.ToBankAccountID, in.ToBankAccountID)

	ruleChanged := false
	if in.RecurrenceType != nil && *in.RecurrenceType != t.Recurrence.Type {
		t.Recurrence.Type = *in.RecurrenceType
		ruleChanged = true
	}
	if in.RecurrenceInterval != nil && *in.RecurrenceInterval != t.Recurrence.Interval {
		t.Recurrence.Interval = *in.RecurrenceInterval
		ruleChanged = true
	}
	if in.RecurrenceUnit != nil && *in.RecurrenceUnit != t.Recurrence.Unit {
		t.Recurrence.Unit = *in.RecurrenceUnit
		ruleChanged = true
	}
	if in.IsRecurring != nil {
		t.IsRecurring = *in.IsRecurring
	}

	switch {
	case !t.IsRecurring:
		t.Recurrence = core.RecurrenceRule{}
		t.NextRunDate, t.LastRunDate = nil, nil
	case !old.IsRecurring:
		last := t.Date
		next := Cadence(t.Date, t.Recurrence)
		t.LastRunDate, t.NextRunDate = &last, &next
	case ruleChanged:
		anchor := t.Date
		if t.LastRunDate != nil {
			anchor = *t.LastRunDate
		}
		next := Cadence(anchor, t.Recurrence)
		t.NextRunDate = &next
	}
	return t
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
