// Package locking provides named exclusive locks with bounded
// acquisition. Each ticket and each part is an independently lockable
// resource; operations spanning a ticket and several parts take the
// ticket lock first and the part locks in ascending identifier order.
package locking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fieldops/fieldservice/pkg/apperrors"
)

// TicketKey returns the lock key for a ticket.
func TicketKey(id uint) string {
	return fmt.Sprintf("ticket/%08d", id)
}

// PartKey returns the lock key for a part. Zero-padding keeps the
// lexicographic sort used by AcquireMany aligned with numeric part order.
func PartKey(id uint) string {
	return fmt.Sprintf("part/%08d", id)
}

type lock struct {
	ch   chan struct{}
	refs int
}

// Manager hands out per-key exclusive locks. Idle keys are dropped
// once their last holder or waiter releases.
type Manager struct {
	mu      sync.Mutex
	locks   map[string]*lock
	timeout time.Duration
}

// NewManager creates a manager whose acquisitions time out after the
// given duration, yielding a ConcurrencyConflictError.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		locks:   make(map[string]*lock),
		timeout: timeout,
	}
}

func (m *Manager) get(key string) *lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &lock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *Manager) put(key string, l *lock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Acquire takes the exclusive lock for key, waiting at most the
// manager's timeout. The returned release function must be called
// exactly once.
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	l := m.get(key)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			m.put(key, l)
		}, nil
	case <-timer.C:
		m.put(key, l)
		return nil, &apperrors.ConcurrencyConflictError{Resource: key}
	case <-ctx.Done():
		m.put(key, l)
		return nil, &apperrors.ConcurrencyConflictError{Resource: key}
	}
}

// AcquireMany takes the locks for all keys in deterministic (sorted)
// order, releasing everything already held if any acquisition fails.
func (m *Manager) AcquireMany(ctx context.Context, keys []string) (func(), error) {
	ordered := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, k := range ordered {
		release, err := m.Acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
