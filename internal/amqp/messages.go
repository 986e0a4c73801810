package amqp

import (
	"encoding/json"
	"time"

	"networth/internal/core"
)

// LedgerEventMessage is the wire form of a core.LedgerEvent. Amounts travel as
// integer cents.
type LedgerEventMessage struct {
	ID            string         `json:"id"`
	Kind          core.EventKind `json:"kind"`
	TransactionID string         `json:"transaction_id"`
	UserID        string         `json:"user_id"`
	Type          string         `json:"type"`
	AmountCents   int64          `json:"amount_cents"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Timestamp     time.Time      `json:"timestamp"`
}

func NewLedgerEventMessage(e core.LedgerEvent) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:            e.ID,
		Kind:          e.Kind,
		TransactionID: e.TransactionID,
		UserID:        e.UserID,
		Type:          string(e.Type),
		AmountCents:   core.ToCents(e.Amount),
		OccurredAt:    e.OccurredAt,
		Timestamp:     time.Now(),
	}
}

// Event converts the message back into a domain event
func (m *LedgerEventMessage) Event() core.LedgerEvent {
	return core.LedgerEvent{
		ID:            m.ID,
		Kind:          m.Kind,
		TransactionID: m.TransactionID,
		UserID:        m.UserID,
		Type:          core.TransactionType(m.Type),
		Amount:        core.FromCents(m.AmountCents),
		OccurredAt:    m.OccurredAt,
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
