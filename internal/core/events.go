package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventCreated      EventKind = "transaction.created"
	EventUpdated      EventKind = "transaction.updated"
	EventDeleted      EventKind = "transaction.deleted"
	EventMaterialized EventKind = "transaction.materialized"
)

type EventKind string

// LedgerEvent records a committed lifecycle change. ID is unique per change so
// consumers can store events idempotently.
type LedgerEvent struct {
	ID            string
	Kind          EventKind
	TransactionID string
	UserID        string
	Type          TransactionType
	Amount        decimal.Decimal
	OccurredAt    time.Time
}
