// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for decoding and validating request bodies
// and query strings, turning wire DTOs into service inputs.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"networth/internal/core"
	"networth/internal/ledger"
	"networth/internal/services"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errMalformedBody marks a body that is not the expected JSON document.
var errMalformedBody = errors.New("malformed request body")

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", errMalformedBody)
	}
	return nil
}

// parseSource accepts the sources a client may claim. AUTO_RECURRING is
// reserved for the scheduler.
func parseSource(s string) (core.Source, error) {
	switch src := core.Source(upper(s)); src {
	case "":
		return "", nil
	case core.SourceManual, core.SourceAI, core.SourceSMS:
		return src, nil
	default:
		return "", core.NewValidationError("source", "must be MANUAL, AI or SMS")
	}
}

func parsePaymentMethod(s string) core.PaymentMethod {
	return core.PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
}

func (req CreateTransactionRequest) toInput() (services.CreateTransactionInput, error) {
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		return services.CreateTransactionInput{}, err
	}
	source, err := parseSource(req.Source)
	if err != nil {
		return services.CreateTransactionInput{}, err
	}

	in := services.CreateTransactionInput{
		Amount:          req.Amount,
		Type:            core.TransactionType(upper(req.Type)),
		Date:            date,
		Description:     sanitizeInput(req.Description),
		Merchant:        sanitizeInput(req.Merchant),
		CategoryID:      strings.TrimSpace(req.CategoryID),
		AccountID:       strings.TrimSpace(req.AccountID),
		CreditCardID:    strings.TrimSpace(req.CreditCardID),
		ToBankAccountID: strings.TrimSpace(req.ToBankAccountID),
		Source:          source,
		PaymentMethod:   parsePaymentMethod(req.PaymentMethod),
		IsRecurring:     req.IsRecurring,
	}
	if req.IsRecurring {
		in.Recurrence = core.RecurrenceRule{
			Type:     core.RecurrenceType(upper(req.RecurrenceType)),
			Interval: req.RecurrenceInterval,
			Unit:     core.RecurrenceUnit(upper(req.RecurrenceUnit)),
		}
	}
	return in, nil
}

func (req UpdateTransactionRequest) toInput() (services.UpdateTransactionInput, error) {
	in := services.UpdateTransactionInput{
		Amount:             req.Amount,
		Description:        sanitizePtr(req.Description),
		Merchant:           sanitizePtr(req.Merchant),
		CategoryID:         trimPtr(req.CategoryID),
		AccountID:          trimPtr(req.AccountID),
		CreditCardID:       trimPtr(req.CreditCardID),
		ToBankAccountID:    trimPtr(req.ToBankAccountID),
		IsRecurring:        req.IsRecurring,
		RecurrenceInterval: req.RecurrenceInterval,
	}
	if req.Type != nil {
		typ := core.TransactionType(upper(*req.Type))
		in.Type = &typ
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			return services.UpdateTransactionInput{}, err
		}
		in.Date = &date
	}
	if req.PaymentMethod != nil {
		method := parsePaymentMethod(*req.PaymentMethod)
		in.PaymentMethod = &method
	}
	if req.RecurrenceType != nil {
		rt := core.RecurrenceType(upper(*req.RecurrenceType))
		in.RecurrenceType = &rt
	}
	if req.RecurrenceUnit != nil {
		ru := core.RecurrenceUnit(upper(*req.RecurrenceUnit))
		in.RecurrenceUnit = &ru
	}
	return in, nil
}

func (req ParsedTransactionRequest) toPayload() (services.ParsedPayload, error) {
	kind, err := services.ParseKind(req.Type)
	if err != nil {
		return services.ParsedPayload{}, err
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		return services.ParsedPayload{}, err
	}
	source, err := parseSource(req.Source)
	if err != nil {
		return services.ParsedPayload{}, err
	}
	return services.ParsedPayload{
		Kind:          kind,
		Amount:        req.Amount,
		Currency:      upper(req.Currency),
		Date:          date,
		Description:   sanitizeInput(req.Description),
		Merchant:      sanitizeInput(req.Merchant),
		CategoryID:    strings.TrimSpace(req.CategoryID),
		AccountID:     strings.TrimSpace(req.AccountID),
		CreditCardID:  strings.TrimSpace(req.CreditCardID),
		PaymentMethod: parsePaymentMethod(req.PaymentMethod),
		Source:        source,
	}, nil
}

// parseDashboardQuery reads period, startDate and endDate.
func parseDashboardQuery(q url.Values) (services.DashboardQuery, error) {
	period, err := services.ParsePeriod(q.Get("period"))
	if err != nil {
		return services.DashboardQuery{}, err
	}
	start, err := parseOptionalDate("startDate", q.Get("startDate"))
	if err != nil {
		return services.DashboardQuery{}, err
	}
	end, err := parseOptionalDate("endDate", q.Get("endDate"))
	if err != nil {
		return services.DashboardQuery{}, err
	}
	return services.DashboardQuery{Period: period, StartDate: start, EndDate: end}, nil
}

// parseTransactionFilter reads accountId and an optional limit.
func parseTransactionFilter(q url.Values) (ledger.TransactionFilter, error) {
	f := ledger.TransactionFilter{AccountID: strings.TrimSpace(q.Get("accountId"))}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return ledger.TransactionFilter{}, core.NewValidationError("limit", "must be between 1 and 1000")
		}
		f.Limit = n
	}
	return f, nil
}

func (req CreateAccountRequest) toAccount(userID, id string) (core.Account, error) {
	kind := core.AccountKind(upper(req.Kind))
	switch kind {
	case core.KindBank, core.KindWallet, core.KindCreditCard:
	default:
		return core.Account{}, core.NewValidationError("kind", "must be BANK, WALLET or CREDIT_CARD")
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		return core.Account{}, core.NewValidationError("name", "is required")
	}
	if req.CreditLimit.IsNegative() || req.UsedAmount.IsNegative() {
		return core.Account{}, core.NewValidationError("creditLimit", "must not be negative")
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"balance", req.Balance},
		{"creditLimit", req.CreditLimit},
		{"usedAmount", req.UsedAmount},
	} {
		if err := core.ValidateBalance(f.name, f.value); err != nil {
			return core.Account{}, err
		}
	}
	a := core.Account{ID: id, UserID: userID, Kind: kind, Name: name}
	if kind == core.KindCreditCard {
		a.UsedAmount = core.RoundMoney(req.UsedAmount)
		a.CreditLimit = core.RoundMoney(req.CreditLimit)
	} else {
		a.Balance = core.RoundMoney(req.Balance)
	}
	return a, nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
