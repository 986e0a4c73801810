package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"networth/internal/core"
	"networth/internal/ledger"
)

// Materializer creates one child of a due recurring parent and advances it.
// *TransactionService is the production implementation.
type Materializer interface {
	MaterializeRecurring(ctx context.Context, parent core.Transaction, now time.Time) (core.Transaction, error)
}

// DueSource lists and claims due recurring parents. ledger.Store satisfies it.
type DueSource interface {
	ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error)
	ClaimRecurring(ctx context.Context, id string, now, until time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id string) error
}

var _ DueSource = (ledger.Store)(nil)

// RunSummary reports one scheduler run.
type RunSummary struct {
	Due       int
	Processed int
	Skipped   int
	Failed    []*core.RecurrenceItemError
}

// RecurringProcessor materializes due recurring transactions
type RecurringProcessor struct {
	source       DueSource
	materializer Materializer
	claimLease   time.Duration
}

// NewRecurringProcessor creates a processor. A positive claimLease makes each
// parent claimed before it is materialized, so several workers can run at once.
func NewRecurringProcessor(source DueSource, materializer Materializer, claimLease time.Duration) *RecurringProcessor {
	return &RecurringProcessor{
		source:       source,
		materializer: materializer,
		claimLease:   claimLease,
	}
}

// ProcessDue processes every parent whose next run date is at or before now,
// one at a time. A failing parent is logged and left untouched so the next run
// retries it; it never stops the batch. Only a failure to list parents is
// returned as an error.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (RunSummary, error) {
	if p.source == nil || p.materializer == nil {
		return RunSummary{}, fmt.Errorf("processor not properly initialized")
	}
	now = now.UTC()

	due, err := p.source.ListDueRecurring(ctx, now)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total_due", len(due),
		"processing_date", now.Format(time.RFC3339))

	summary := RunSummary{Due: len(due)}
	for _, parent := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if p.claimLease > 0 {
			ok, err := p.source.ClaimRecurring(ctx, parent.ID, now, now.Add(p.claimLease))
			if err != nil {
				summary.Failed = append(summary.Failed, p.itemFailed(ctx, parent, fmt.Errorf("claim: %w", err)))
				continue
			}
			if !ok {
				summary.Skipped++
				slog.DebugContext(ctx, "Recurring transaction claimed elsewhere", "parent_id", parent.ID)
				continue
			}
		}

		child, err := p.materializer.MaterializeRecurring(ctx, parent, now)
		if errors.Is(err, ErrNotDue) {
			summary.Skipped++
			p.release(ctx, parent.ID)
			continue
		}
		if err != nil {
			summary.Failed = append(summary.Failed, p.itemFailed(ctx, parent, err))
			p.release(ctx, parent.ID)
			continue
		}

		summary.Processed++
		slog.InfoContext(ctx, "Created transaction from recurring parent",
			"parent_id", parent.ID,
			"transaction_id", child.ID,
			"amount_cents", core.ToCents(child.Amount),
			"recurrence_type", parent.Recurrence.Type)
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
		"total_checked", summary.Due)

	return summary, nil
}

func (p *RecurringProcessor) itemFailed(ctx context.Context, parent core.Transaction, err error) *core.RecurrenceItemError {
	itemErr := &core.RecurrenceItemError{ParentID: parent.ID, Err: err}
	slog.ErrorContext(ctx, "Failed to materialize recurring transaction",
		"parent_id", parent.ID,
		"user_id", parent.UserID,
		"error", itemErr)
	return itemErr
}

func (p *RecurringProcessor) release(ctx context.Context, id string) {
	if p.claimLease <= 0 {
		return
	}
	if err := p.source.ReleaseClaim(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to release recurring claim", "parent_id", id, "error", err)
	}
}
