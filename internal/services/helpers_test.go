package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"networth/internal/core"
	"networth/internal/storage"
)

const testUser = "user-1"

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.Options{
		Driver: storage.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedBank(t *testing.T, s *storage.Store, id, balance string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(context.Background(), core.Account{
		ID: id, UserID: testUser, Kind: core.KindBank, Name: id, Balance: dec(balance),
	}))
}

func seedCard(t *testing.T, s *storage.Store, id, used string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(context.Background(), core.Account{
		ID: id, UserID: testUser, Kind: core.KindCreditCard, Name: id, UsedAmount: dec(used), CreditLimit: dec("5000"),
	}))
}

func bankBalance(t *testing.T, s *storage.Store, id string) decimal.Decimal {
	t.Helper()
	a, err := s.GetAccount(context.Background(), testUser, id)
	require.NoError(t, err)
	return a.Balance
}

func cardUsed(t *testing.T, s *storage.Store, id string) decimal.Decimal {
	t.Helper()
	a, err := s.GetAccount(context.Background(), testUser, id)
	require.NoError(t, err)
	return a.UsedAmount
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e core.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) kinds() []core.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}
