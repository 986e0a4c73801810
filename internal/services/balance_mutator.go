package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"networth/internal/core"
	"networth/internal/ledger"
)

// Target is the balance field a Delta applies to.
type Target int

const (
	BankBalance Target = iota + 1
	CardUsage
)

func (t Target) String() string {
	switch t {
	case BankBalance:
		return "bank_balance"
	case CardUsage:
		return "card_usage"
	default:
		return "unknown"
	}
}

// Delta is one signed change to one account or card.
type Delta struct {
	Target    Target
	AccountID string
	Amount    decimal.Decimal
}

// Effect returns the balance deltas implied by t, multiplied by sign (+1 to
// apply, -1 to reverse). It has no side effects.
//
//	INCOME  + account           -> account += amount
//	EXPENSE + account           -> account -= amount
//	EXPENSE + card only         -> card usage += amount
//	EXPENSE + account + to bank -> account -= amount, to bank += amount
//	EXPENSE + account + card    -> account -= amount, card usage -= amount
func Effect(t core.Transaction, sign int) []Delta {
	amt := t.Amount.Mul(decimal.NewFromInt(int64(sign)))

	switch t.Type {
	case core.Income:
		if t.AccountID != "" {
			return []Delta{{Target: BankBalance, AccountID: t.AccountID, Amount: amt}}
		}
	case core.Expense:
		switch {
		case t.AccountID != "" && t.ToBankAccountID != "":
			return []Delta{
				{Target: BankBalance, AccountID: t.AccountID, Amount: amt.Neg()},
				{Target: BankBalance, AccountID: t.ToBankAccountID, Amount: amt},
			}
		case t.AccountID != "" && t.CreditCardID != "":
			return []Delta{
				{Target: BankBalance, AccountID: t.AccountID, Amount: amt.Neg()},
				{Target: CardUsage, AccountID: t.CreditCardID, Amount: amt.Neg()},
			}
		case t.AccountID != "":
			return []Delta{{Target: BankBalance, AccountID: t.AccountID, Amount: amt.Neg()}}
		case t.CreditCardID != "":
			return []Delta{{Target: CardUsage, AccountID: t.CreditCardID, Amount: amt}}
		}
	}
	return nil
}

// ApplyEffect applies Effect(t, sign) through tx as relative increments. It must
// run inside the same atomic unit as the transaction row write. A missing or
// foreign account surfaces as core.NotFoundError from the store.
func ApplyEffect(ctx context.Context, tx ledger.Tx, t core.Transaction, sign int) error {
	if sign != 1 && sign != -1 {
		return fmt.Errorf("apply effect: sign must be +1 or -1, got %d", sign)
	}
	for _, d := range Effect(t, sign) {
		cents := core.ToCents(d.Amount)
		var err error
		switch d.Target {
		case BankBalance:
			err = tx.AdjustBankBalance(ctx, t.UserID, d.AccountID, cents)
		case CardUsage:
			err = tx.AdjustCardUsage(ctx, t.UserID, d.AccountID, cents)
		}
		if err != nil {
			return fmt.Errorf("apply %s delta to %s: %w", d.Target, d.AccountID, err)
		}
	}
	return nil
}
