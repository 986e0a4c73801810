package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"networth/internal/core"
	ports "networth/internal/sheets"
)

var (
	_ ports.EventJournal      = (*Journal)(nil)
	_ ports.DashboardExporter = (*Journal)(nil)
)

// Journal keeps the mirrored rows in memory.
type Journal struct {
	mu         sync.Mutex
	events     []core.LedgerEvent
	dashboards []ports.DashboardSnapshot
}

func New() *Journal {
	return &Journal{}
}

// AppendEvent stores the event and returns a synthetic row reference.
func (j *Journal) AppendEvent(_ context.Context, e core.LedgerEvent) (string, error) {
	if e.ID == "" {
		return "", errors.New("ledger event without id")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return fmt.Sprintf("mem:%d", len(j.events)), nil
}

func (j *Journal) ExportDashboard(_ context.Context, s ports.DashboardSnapshot) (string, error) {
	if s.UserID == "" {
		return "", errors.New("dashboard snapshot without user")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.dashboards = append(j.dashboards, s)
	return fmt.Sprintf("mem:dashboard:%d", len(j.dashboards)), nil
}

func (j *Journal) Events() []core.LedgerEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]core.LedgerEvent(nil), j.events...)
}

func (j *Journal) Dashboards() []ports.DashboardSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ports.DashboardSnapshot(nil), j.dashboards...)
}
