package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"networth/internal/amqp"
	"networth/internal/core"
	"networth/internal/sheets"
)

// EventRecorder stores ledger events idempotently. ledger.Store satisfies it.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e core.LedgerEvent) (bool, error)
}

// EventHook is called once per newly recorded event.
type EventHook func(ctx context.Context, e core.LedgerEvent)

// JournalHook mirrors recorded events to an external journal. Mirror failures
// are logged and do not fail the delivery; the event log stays authoritative.
func JournalHook(journal sheets.EventJournal) EventHook {
	return func(ctx context.Context, e core.LedgerEvent) {
		ref, err := journal.AppendEvent(ctx, e)
		if err != nil {
			slog.WarnContext(ctx, "Failed to mirror ledger event",
				"event_id", e.ID,
				"error", err)
			return
		}
		slog.DebugContext(ctx, "Mirrored ledger event", "event_id", e.ID, "row_ref", ref)
	}
}

// EventWorker consumes ledger events from AMQP and appends them to the event
// log. Redelivered events are acknowledged without being recorded twice.
type EventWorker struct {
	recorder EventRecorder
	hooks    []EventHook

	recorded   atomic.Int64
	duplicates atomic.Int64
}

func NewEventWorker(recorder EventRecorder, hooks ...EventHook) *EventWorker {
	return &EventWorker{recorder: recorder, hooks: hooks}
}

// HandleLedgerEvent processes a single ledger event message from AMQP
func (w *EventWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	if msg.ID == "" || msg.TransactionID == "" {
		// requeueing a malformed message would loop forever
		slog.WarnContext(ctx, "Dropping ledger event without id",
			"event_id", msg.ID,
			"transaction_id", msg.TransactionID)
		return nil
	}

	event := msg.Event()
	created, err := w.recorder.RecordEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("record ledger event %s: %w", msg.ID, err)
	}
	if !created {
		w.duplicates.Add(1)
		slog.DebugContext(ctx, "Ledger event already recorded", "event_id", msg.ID)
		return nil
	}

	w.recorded.Add(1)
	for _, hook := range w.hooks {
		hook(ctx, event)
	}

	slog.InfoContext(ctx, "Recorded ledger event",
		"event_id", msg.ID,
		"event_kind", msg.Kind,
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID,
		"amount_cents", msg.AmountCents)
	return nil
}

// Stats returns how many events were recorded and how many were duplicates.
func (w *EventWorker) Stats() (recorded, duplicates int64) {
	return w.recorded.Load(), w.duplicates.Load()
}
