// Package cache holds read-through caches for derived data. Entries are
// grouped in partitions (one per user) so a write can drop everything derived
// from that user's ledger at once.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache is a partitioned key/value cache.
type Cache[T any] interface {
	Get(partition, key string) (T, bool)
	Set(partition, key string, data T)
	// Invalidate drops the partition and reports how many entries it held.
	Invalidate(partition string) int
	Len() int
}

// Stats are cumulative counters of a cache.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
	Stats() Stats
}

// Manager runs periodic cleanup for named caches.
type Manager struct {
	mu     sync.Mutex
	caches map[string]Cleaner

	stop     chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]Cleaner),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// StartCleanup begins periodic cleanup. Later calls are no-ops.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.run(interval)
}

func (m *Manager) run(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanOnce()
		case <-m.stop:
			return
		}
	}
}

// cleanOnce drops expired entries from every cache and returns the total.
func (m *Manager) cleanOnce() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		if n := c.CleanExpired(); n > 0 {
			slog.Debug("Cache cleanup", "component", "cache", "cache", name, "removed", n)
			total += n
		}
	}
	return total
}

// Stats returns the counters of every registered cache.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.Stats()
	}
	return out
}

// Stop ends the cleanup loop and waits for it. Safe to call more than once
// and without StartCleanup.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.done
		}
	})
}
